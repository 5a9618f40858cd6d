package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/account/accounttest"
	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

type fakeUsage struct {
	counts map[entitlements.FeatureType]int64
	err    error
	reads  int
}

func (f *fakeUsage) Get(_ context.Context, _ identity.UserID, feature entitlements.FeatureType) (int64, error) {
	f.reads++
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[feature], nil
}

func (f *fakeUsage) Record(_ context.Context, _ identity.UserID, feature entitlements.FeatureType) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = map[entitlements.FeatureType]int64{}
	}
	f.counts[feature]++
	return f.counts[feature], nil
}

func (f *fakeUsage) Snapshot(context.Context, identity.UserID) (map[entitlements.FeatureType]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[entitlements.FeatureType]int64, len(f.counts))
	for k, v := range f.counts {
		out[k] = v
	}
	return out, nil
}

func hubPtr(h entitlements.Hub) *entitlements.Hub { return &h }

func TestFreeTierAtCap(t *testing.T) {
	usage := &fakeUsage{counts: map[entitlements.FeatureType]int64{entitlements.FeatureAIChat: 5}}
	e := NewEvaluator(usage)
	a := &account.Account{ID: identity.Numeric(1), Tier: entitlements.TierFree, Status: entitlements.StatusActive}

	res := e.CheckAccess(context.Background(), a, entitlements.FeatureAIChat, nil)

	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonLimitReached, res.Reason)
	assert.True(t, res.UpgradeRequired)
	require.NotNil(t, res.CurrentUsage)
	assert.Equal(t, int64(5), *res.CurrentUsage)
	require.NotNil(t, res.Limit)
	assert.Equal(t, int64(5), res.Limit.Value())
	assert.NotEmpty(t, res.Message)
}

func TestBelowCapIsAllowed(t *testing.T) {
	usage := &fakeUsage{counts: map[entitlements.FeatureType]int64{entitlements.FeatureAIChat: 4}}
	a := &account.Account{ID: identity.Numeric(1), Tier: entitlements.TierFree, Status: entitlements.StatusActive}

	res := NewEvaluator(usage).CheckAccess(context.Background(), a, entitlements.FeatureAIChat, nil)

	assert.True(t, res.Allowed)
	assert.Equal(t, int64(4), *res.CurrentUsage)
}

func TestHubNotSelectedComesFirst(t *testing.T) {
	usage := &fakeUsage{}
	a := &account.Account{
		ID:           identity.Numeric(1),
		Tier:         entitlements.TierStarter,
		Status:       entitlements.StatusPastDue,
		SelectedHubs: []entitlements.Hub{entitlements.HubWellness},
	}

	res := NewEvaluator(usage).CheckAccess(context.Background(), a, entitlements.FeatureVoiceCommand, nil)

	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonHubNotSelected, res.Reason)
	assert.False(t, res.UpgradeRequired)
	assert.Zero(t, usage.reads)
}

func TestCallerHubAppliesToCrossHubFeatures(t *testing.T) {
	usage := &fakeUsage{}
	a := &account.Account{
		ID:           identity.Numeric(1),
		Tier:         entitlements.TierPro,
		Status:       entitlements.StatusActive,
		SelectedHubs: []entitlements.Hub{entitlements.HubFinance},
	}
	e := NewEvaluator(usage)

	res := e.CheckAccess(context.Background(), a, entitlements.FeatureAIChat, hubPtr(entitlements.HubLearning))
	assert.Equal(t, ReasonHubNotSelected, res.Reason)

	res = e.CheckAccess(context.Background(), a, entitlements.FeatureAIChat, hubPtr(entitlements.HubFinance))
	assert.True(t, res.Allowed)

	res = e.CheckAccess(context.Background(), a, entitlements.FeatureAIChat, nil)
	assert.True(t, res.Allowed)
}

func TestInactiveSubscription(t *testing.T) {
	for _, status := range []entitlements.Status{entitlements.StatusPastDue, entitlements.StatusCanceled} {
		a := &account.Account{
			ID:           identity.Numeric(1),
			Tier:         entitlements.TierPro,
			Status:       status,
			SelectedHubs: []entitlements.Hub{entitlements.HubFinance},
		}
		res := NewEvaluator(&fakeUsage{}).CheckAccess(context.Background(), a, entitlements.FeatureFinanceInsight, nil)
		assert.Equal(t, ReasonSubscriptionInactive, res.Reason, status)
		assert.NotEmpty(t, res.Message)
	}
}

func TestFreeAccountPastDueIsInactive(t *testing.T) {
	usage := &fakeUsage{}
	a := &account.Account{ID: identity.Numeric(1), Tier: entitlements.TierFree, Status: entitlements.StatusPastDue}

	res := NewEvaluator(usage).CheckAccess(context.Background(), a, entitlements.FeatureAIChat, nil)

	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonSubscriptionInactive, res.Reason)
	assert.Zero(t, usage.reads)
}

func TestUltimateSkipsCounter(t *testing.T) {
	usage := &fakeUsage{err: errors.New("down")}
	a := &account.Account{ID: identity.Numeric(1), Tier: entitlements.TierUltimate, Status: entitlements.StatusActive}

	res := NewEvaluator(usage).CheckAccess(context.Background(), a, entitlements.FeatureVoiceCommand, nil)

	assert.True(t, res.Allowed)
	assert.True(t, res.Limit.IsUnlimited())
	assert.Zero(t, usage.reads)
}

func TestUsageFailureFailsClosed(t *testing.T) {
	usage := &fakeUsage{err: errors.New("connection refused")}
	a := &account.Account{ID: identity.Numeric(1), Tier: entitlements.TierFree, Status: entitlements.StatusActive}

	res := NewEvaluator(usage).CheckAccess(context.Background(), a, entitlements.FeatureTranslation, nil)

	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonUsageUnavailable, res.Reason)
}

func TestUnknownFeature(t *testing.T) {
	a := &account.Account{ID: identity.Numeric(1), Tier: entitlements.TierPro}
	res := NewEvaluator(&fakeUsage{}).CheckAccess(context.Background(), a, "teleport", nil)
	assert.Equal(t, ReasonUnknownFeature, res.Reason)
}

func TestServiceLoadsAccount(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	a := store.Put(&account.Account{Tier: entitlements.TierFree, Status: entitlements.StatusActive})
	usage := &fakeUsage{}
	svc := NewService(store, usage)
	ctx := context.Background()

	n, err := svc.RecordUsage(ctx, a.ID, entitlements.FeatureAIChat)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, err := svc.CheckAccess(ctx, a.ID, entitlements.FeatureAIChat, nil)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), *res.CurrentUsage)

	_, err = svc.CheckAccess(ctx, identity.Numeric(999), entitlements.FeatureAIChat, nil)
	assert.ErrorIs(t, err, account.ErrNotFound)

	_, err = svc.RecordUsage(ctx, a.ID, "teleport")
	assert.ErrorIs(t, err, entitlements.ErrUnknownFeature)

	today, err := svc.UsageToday(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, map[entitlements.FeatureType]int64{entitlements.FeatureAIChat: 1}, today)
}
