package usage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

func newTestCounter(t *testing.T, now *time.Time) (*Counter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(*now)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCounter(client, WithClock(func() time.Time { return *now })), mr
}

func TestRecordAndGet(t *testing.T) {
	now := time.Date(2026, 6, 10, 22, 0, 0, 0, time.UTC)
	c, mr := newTestCounter(t, &now)
	ctx := context.Background()
	user := identity.Numeric(5)

	got, err := c.Get(ctx, user, entitlements.FeatureAIChat)
	require.NoError(t, err)
	assert.Zero(t, got)

	for i := 1; i <= 3; i++ {
		n, err := c.Record(ctx, user, entitlements.FeatureAIChat)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}
	_, err = c.Record(ctx, user, entitlements.FeatureTranslation)
	require.NoError(t, err)

	got, err = c.Get(ctx, user, entitlements.FeatureAIChat)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	snap, err := c.Snapshot(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, map[entitlements.FeatureType]int64{
		entitlements.FeatureAIChat:      3,
		entitlements.FeatureTranslation: 1,
	}, snap)

	key := dayKey(user, now)
	assert.Equal(t, 2*time.Hour, mr.TTL(key))
}

func TestCountersResetAtUTCMidnight(t *testing.T) {
	now := time.Date(2026, 6, 10, 23, 59, 0, 0, time.UTC)
	c, mr := newTestCounter(t, &now)
	ctx := context.Background()
	user := identity.Numeric(5)

	_, err := c.Record(ctx, user, entitlements.FeatureAIChat)
	require.NoError(t, err)

	mr.FastForward(time.Minute)
	now = now.Add(time.Minute)

	got, err := c.Get(ctx, user, entitlements.FeatureAIChat)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestCountersAreScopedPerUserKind(t *testing.T) {
	now := time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)
	c, _ := newTestCounter(t, &now)
	ctx := context.Background()

	_, err := c.Record(ctx, identity.Numeric(1), entitlements.FeatureAIChat)
	require.NoError(t, err)

	got, err := c.Get(ctx, identity.Numeric(2), entitlements.FeatureAIChat)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestNextReset(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*60*60)
	now := time.Date(2026, 6, 11, 1, 0, 0, 0, berlin) // 23:00 UTC on the 10th
	assert.Equal(t, time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC), NextReset(now))
}

func TestGetFailsWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err = NewCounter(client).Get(context.Background(), identity.Numeric(1), entitlements.FeatureAIChat)
	assert.Error(t, err)
}
