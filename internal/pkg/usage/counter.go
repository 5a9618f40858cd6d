// Package usage keeps per-user daily feature counters in Redis. Counters live
// in one hash per user and UTC day and expire at the next UTC midnight.
package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

const keyPrefix = "usage:daily"

type Counter struct {
	client *redis.Client
	now    func() time.Time
}

type Option func(*Counter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) { c.now = now }
}

func NewCounter(client *redis.Client, opts ...Option) *Counter {
	c := &Counter{client: client, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NextReset is the next UTC midnight after now.
func NextReset(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

func dayKey(user identity.UserID, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, user.Key(), now.UTC().Format("20060102"))
}

// Get returns today's count for a feature. A missing counter is zero.
func (c *Counter) Get(ctx context.Context, user identity.UserID, feature entitlements.FeatureType) (int64, error) {
	val, err := c.client.HGet(ctx, dayKey(user, c.now()), string(feature)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage counter: %w", err)
	}
	return val, nil
}

// Record increments today's count for a feature and returns the new value.
func (c *Counter) Record(ctx context.Context, user identity.UserID, feature entitlements.FeatureType) (int64, error) {
	now := c.now()
	key := dayKey(user, now)

	pipe := c.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, string(feature), 1)
	pipe.ExpireAt(ctx, key, NextReset(now))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record usage: %w", err)
	}
	return incr.Val(), nil
}

// Snapshot returns every counter recorded today for a user.
func (c *Counter) Snapshot(ctx context.Context, user identity.UserID) (map[entitlements.FeatureType]int64, error) {
	data, err := c.client.HGetAll(ctx, dayKey(user, c.now())).Result()
	if err != nil {
		return nil, fmt.Errorf("read usage snapshot: %w", err)
	}
	out := make(map[entitlements.FeatureType]int64, len(data))
	for field, raw := range data {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out[entitlements.FeatureType(field)] = n
	}
	return out, nil
}
