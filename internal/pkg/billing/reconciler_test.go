package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/account/accounttest"
	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/hublock"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

var reconcileNow = time.Date(2026, 4, 1, 9, 5, 0, 0, time.UTC)

func newTestReconciler(store *accounttest.Store, opts ...ReconcilerOption) *Reconciler {
	opts = append([]ReconcilerOption{WithClock(func() time.Time { return reconcileNow })}, opts...)
	return NewReconciler(store, identity.NewAdapter(store.Backend()), hublock.New(30*24*time.Hour), opts...)
}

func timeRef(t time.Time) *time.Time { return &t }

func starterCheckout(eventID string) *SubscriptionChange {
	return &SubscriptionChange{
		EventID:                eventID,
		EventType:              EventCheckoutCompleted,
		Kind:                   ChangeCheckout,
		Email:                  "ada@example.com",
		Name:                   "Ada",
		Tier:                   entitlements.TierStarter,
		BillingPeriod:          entitlements.PeriodMonthly,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		ProviderStatus:         "trialing",
		PeriodStart:            timeRef(periodStart),
		PeriodEnd:              timeRef(periodEnd),
		Trialing:               true,
		RequestedHubs:          []entitlements.Hub{entitlements.HubWellness},
	}
}

func TestReconcileStarterSignupCreatesAccount(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	r := newTestReconciler(store)

	res, err := r.Reconcile(context.Background(), starterCheckout("evt_1"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.True(t, res.IsNewUser)
	assert.False(t, res.HubChangeRejected)

	a, err := store.FindByProviderCustomer(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, entitlements.TierStarter, a.Tier)
	assert.Equal(t, entitlements.PeriodMonthly, a.BillingPeriod)
	assert.Equal(t, entitlements.StatusTrialing, a.Status)
	assert.Equal(t, 5, a.TrialDays)
	assert.Equal(t, []entitlements.Hub{entitlements.HubWellness}, a.SelectedHubs)
	require.NotNil(t, a.HubsSelectedAt)
	assert.True(t, a.HubsSelectedAt.Equal(reconcileNow))
	assert.True(t, a.IsNewUser)
	assert.Equal(t, "sub_1", a.ProviderSubscriptionID)
	assert.Equal(t, identity.KindNumeric, a.ID.Kind())

	marker, ok := store.Marker("evt_1")
	assert.True(t, ok)
	assert.Equal(t, account.MarkerApplied, marker)
}

func TestReconcileTwiceIsIdempotent(t *testing.T) {
	store := accounttest.NewStore(identity.BackendProfiles)
	r := newTestReconciler(store)
	ctx := context.Background()

	first, err := r.Reconcile(ctx, starterCheckout("evt_1"))
	require.NoError(t, err)
	before, err := store.Get(ctx, first.Account.ID)
	require.NoError(t, err)
	writes := store.Writes

	second, err := r.Reconcile(ctx, starterCheckout("evt_1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)

	after, err := store.Get(ctx, first.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, writes, store.Writes)
	assert.Equal(t, identity.KindOpaque, after.ID.Kind())
}

func TestReconcileSubscriptionDeletedKeepsHubs(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	selectedAt := reconcileNow.Add(-48 * time.Hour)
	existing := store.Put(&account.Account{
		Email:                  "ada@example.com",
		Tier:                   entitlements.TierPro,
		BillingPeriod:          entitlements.PeriodAnnual,
		Status:                 entitlements.StatusActive,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		CurrentPeriodStart:     timeRef(periodStart),
		CurrentPeriodEnd:       timeRef(periodEnd),
		TrialDays:              7,
		SelectedHubs:           []entitlements.Hub{entitlements.HubFinance},
		HubsSelectedAt:         &selectedAt,
	})
	r := newTestReconciler(store)

	res, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:                "evt_del",
		EventType:              EventSubscriptionDeleted,
		Kind:                   ChangeDelete,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		ProviderStatus:         "canceled",
		PeriodStart:            timeRef(periodStart),
		PeriodEnd:              timeRef(periodEnd),
		RequestedHubs:          []entitlements.Hub{entitlements.HubVoice},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)

	a, err := store.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, entitlements.StatusCanceled, a.Status)
	assert.Equal(t, entitlements.TierPro, a.Tier)
	assert.Equal(t, []entitlements.Hub{entitlements.HubFinance}, a.SelectedHubs)
	assert.True(t, a.HubsSelectedAt.Equal(selectedAt))
}

func TestReconcileDiscardsStaleEvent(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	laterEnd := periodEnd.AddDate(0, 1, 0)
	existing := store.Put(&account.Account{
		Email:                  "ada@example.com",
		Tier:                   entitlements.TierPro,
		BillingPeriod:          entitlements.PeriodMonthly,
		Status:                 entitlements.StatusActive,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		CurrentPeriodStart:     timeRef(periodEnd),
		CurrentPeriodEnd:       &laterEnd,
	})
	r := newTestReconciler(store)

	res, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:                "evt_old",
		EventType:              EventSubscriptionUpdated,
		Kind:                   ChangeUpdate,
		Tier:                   entitlements.TierStarter,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		ProviderStatus:         "past_due",
		PeriodStart:            timeRef(periodStart),
		PeriodEnd:              timeRef(periodEnd),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, res.Outcome)

	a, err := store.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, existing, a)

	marker, ok := store.Marker("evt_old")
	require.True(t, ok)
	assert.Equal(t, account.MarkerStale, marker)

	again, err := r.Reconcile(context.Background(), &SubscriptionChange{EventID: "evt_old", Kind: ChangeUpdate})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, again.Outcome)
}

func TestReconcileIgnoresDeletionOfReplacedSubscription(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	existing := store.Put(&account.Account{
		Email:                  "ada@example.com",
		Tier:                   entitlements.TierUltimate,
		Status:                 entitlements.StatusActive,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_new",
	})
	r := newTestReconciler(store)

	res, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:                "evt_del_old",
		EventType:              EventSubscriptionDeleted,
		Kind:                   ChangeDelete,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_old",
		ProviderStatus:         "canceled",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, res.Outcome)

	a, _ := store.Get(context.Background(), existing.ID)
	assert.Equal(t, entitlements.StatusActive, a.Status)
}

func TestReconcileMergesByEmail(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	existing := store.Put(account.NewFree("ada@example.com", "Ada"))
	r := newTestReconciler(store)

	res, err := r.Reconcile(context.Background(), starterCheckout("evt_1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.False(t, res.IsNewUser)
	assert.True(t, res.Account.ID.Equal(existing.ID))
	assert.Equal(t, "cus_1", res.Account.ProviderCustomerID)
	assert.Equal(t, entitlements.TierStarter, res.Account.Tier)
	assert.False(t, res.Account.IsNewUser)
}

func TestReconcileUnknownAccount(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	r := newTestReconciler(store)

	_, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:                "evt_1",
		EventType:              EventSubscriptionDeleted,
		Kind:                   ChangeDelete,
		ProviderCustomerID:     "cus_unknown",
		ProviderSubscriptionID: "sub_1",
		ProviderStatus:         "active",
	})
	assert.ErrorIs(t, err, ErrAccountNotResolvable)
	assert.False(t, IsTransient(err))

	change := starterCheckout("evt_2")
	id := identity.Numeric(77)
	change.UserID = &id
	_, err = r.Reconcile(context.Background(), change)
	assert.ErrorIs(t, err, ErrAccountNotResolvable)

	change = starterCheckout("evt_3")
	change.Email = ""
	change.ProviderCustomerID = "cus_new"
	_, err = r.Reconcile(context.Background(), change)
	assert.ErrorIs(t, err, ErrAccountNotResolvable)
}

func TestReconcileSubscriptionBeforeCheckoutIsDeferred(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	r := newTestReconciler(store)
	ctx := context.Background()

	created := &SubscriptionChange{
		EventID:                "evt_sub_created",
		EventType:              EventSubscriptionCreated,
		Kind:                   ChangeUpdate,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		ProviderStatus:         "trialing",
		PeriodStart:            timeRef(periodStart),
		PeriodEnd:              timeRef(periodEnd),
	}
	res, err := r.Reconcile(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeferred, res.Outcome)
	assert.Nil(t, res.Account)
	assert.Zero(t, store.Writes)
	applied, err := store.EventApplied(ctx, "evt_sub_created")
	require.NoError(t, err)
	assert.False(t, applied)

	res, err = r.Reconcile(ctx, starterCheckout("evt_checkout"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)

	// a redelivery after signup lands on the new account
	res, err = r.Reconcile(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "cus_1", res.Account.ProviderCustomerID)
}

func TestReconcileMissingMetadataUserFallsBackToEmail(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	existing := store.Put(account.NewFree("ada@example.com", "Ada"))
	r := newTestReconciler(store)

	change := starterCheckout("evt_1")
	id := identity.Numeric(77)
	change.UserID = &id

	res, err := r.Reconcile(context.Background(), change)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.True(t, res.Account.ID.Equal(existing.ID))
	assert.Equal(t, entitlements.TierStarter, res.Account.Tier)
}

func TestReconcileIdentityMismatchIsFatal(t *testing.T) {
	store := accounttest.NewStore(identity.BackendProfiles)
	r := newTestReconciler(store)

	change := starterCheckout("evt_1")
	id := identity.Numeric(12)
	change.UserID = &id

	_, err := r.Reconcile(context.Background(), change)
	assert.ErrorIs(t, err, identity.ErrKindMismatch)
	assert.False(t, IsTransient(err))
	assert.Zero(t, store.Writes)
}

func TestReconcileDowngradeToFreeClearsSubscription(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	existing := store.Put(&account.Account{
		Email:                  "ada@example.com",
		Tier:                   entitlements.TierPro,
		BillingPeriod:          entitlements.PeriodMonthly,
		Status:                 entitlements.StatusActive,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		TrialDays:              5,
		SelectedHubs:           []entitlements.Hub{entitlements.HubVoice},
		HubsSelectedAt:         timeRef(reconcileNow.Add(-time.Hour)),
	})
	r := newTestReconciler(store)

	_, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:            "evt_free",
		EventType:          EventSubscriptionUpdated,
		Kind:               ChangeUpdate,
		Tier:               entitlements.TierFree,
		ProviderCustomerID: "cus_1",
		ProviderStatus:     "canceled",
	})
	require.NoError(t, err)

	a, err := store.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, entitlements.TierFree, a.Tier)
	assert.Empty(t, a.ProviderSubscriptionID)
	assert.Empty(t, a.SelectedHubs)
	assert.Empty(t, a.BillingPeriod)
	assert.Zero(t, a.TrialDays)
	assert.Equal(t, "cus_1", a.ProviderCustomerID)
	assert.Equal(t, entitlements.StatusActive, a.Status)
	require.NoError(t, a.Validate())
}

func TestReconcileFreeAccountNeverStaysPastDue(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	existing := store.Put(&account.Account{
		Email:              "ada@example.com",
		Tier:               entitlements.TierFree,
		Status:             entitlements.StatusActive,
		ProviderCustomerID: "cus_1",
	})
	r := newTestReconciler(store)

	_, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:            "evt_due",
		EventType:          EventSubscriptionUpdated,
		Kind:               ChangeUpdate,
		ProviderCustomerID: "cus_1",
		ProviderStatus:     "past_due",
	})
	require.NoError(t, err)

	a, err := store.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, entitlements.StatusActive, a.Status)
}

func TestReconcileHubChangeDuringCooldownIsRejected(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	selectedAt := reconcileNow.Add(-24 * time.Hour)
	existing := store.Put(&account.Account{
		Email:                  "ada@example.com",
		Tier:                   entitlements.TierStarter,
		BillingPeriod:          entitlements.PeriodMonthly,
		Status:                 entitlements.StatusTrialing,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		SelectedHubs:           []entitlements.Hub{entitlements.HubWellness},
		HubsSelectedAt:         &selectedAt,
	})
	r := newTestReconciler(store)

	res, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:                "evt_upd",
		EventType:              EventSubscriptionUpdated,
		Kind:                   ChangeUpdate,
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		ProviderStatus:         "active",
		RequestedHubs:          []entitlements.Hub{entitlements.HubFinance},
	})
	require.NoError(t, err)
	assert.True(t, res.HubChangeRejected)
	assert.Equal(t, hublock.ReasonCooldownActive, res.HubRejectReason)
	assert.Equal(t, 29*24*time.Hour, res.HubLockRemaining)

	a, _ := store.Get(context.Background(), existing.ID)
	assert.Equal(t, entitlements.StatusActive, a.Status)
	assert.Equal(t, []entitlements.Hub{entitlements.HubWellness}, a.SelectedHubs)
}

func TestReconcileSameHubsIsNotAChange(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	selectedAt := reconcileNow.Add(-time.Hour)
	store.Put(&account.Account{
		Email:              "ada@example.com",
		Tier:               entitlements.TierStarter,
		Status:             entitlements.StatusTrialing,
		ProviderCustomerID: "cus_1",
		SelectedHubs:       []entitlements.Hub{entitlements.HubWellness},
		HubsSelectedAt:     &selectedAt,
	})
	r := newTestReconciler(store)

	res, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:            "evt_upd",
		EventType:          EventSubscriptionUpdated,
		Kind:               ChangeUpdate,
		ProviderCustomerID: "cus_1",
		ProviderStatus:     "active",
		RequestedHubs:      []entitlements.Hub{entitlements.HubWellness},
	})
	require.NoError(t, err)
	assert.False(t, res.HubChangeRejected)
	assert.True(t, res.Account.HubsSelectedAt.Equal(selectedAt))
}

func TestReconcileDowngradeBeyondQuotaResetsSelection(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	store.Put(&account.Account{
		Email:              "ada@example.com",
		Tier:               entitlements.TierUltimate,
		Status:             entitlements.StatusActive,
		ProviderCustomerID: "cus_1",
		SelectedHubs:       entitlements.AllHubs,
		HubsSelectedAt:     timeRef(reconcileNow.Add(-time.Hour)),
	})
	r := newTestReconciler(store)

	res, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:            "evt_down",
		EventType:          EventSubscriptionUpdated,
		Kind:               ChangeUpdate,
		Tier:               entitlements.TierStarter,
		BillingPeriod:      entitlements.PeriodMonthly,
		ProviderCustomerID: "cus_1",
		ProviderStatus:     "active",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Account.SelectedHubs)
	assert.Nil(t, res.Account.HubsSelectedAt)
	assert.Equal(t, 5, res.Account.TrialDays)
}

func TestReconcileUnmappedStatusBecomesIncomplete(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	store.Put(&account.Account{Email: "ada@example.com", Tier: entitlements.TierPro, Status: entitlements.StatusActive, ProviderCustomerID: "cus_1"})
	r := newTestReconciler(store)

	res, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:            "evt_paused",
		EventType:          EventSubscriptionUpdated,
		Kind:               ChangeUpdate,
		ProviderCustomerID: "cus_1",
		ProviderStatus:     "paused",
	})
	require.NoError(t, err)
	assert.Equal(t, entitlements.StatusIncomplete, res.Account.Status)
}

func TestReconcileRetriesRevisionConflict(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	existing := store.Put(&account.Account{Email: "ada@example.com", Tier: entitlements.TierPro, Status: entitlements.StatusActive, ProviderCustomerID: "cus_1"})
	store.BeforeUpdate = func(s *accounttest.Store, _ *account.Account) { s.Bump(existing.ID) }
	r := newTestReconciler(store)

	res, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:            "evt_cas",
		EventType:          EventSubscriptionUpdated,
		Kind:               ChangeUpdate,
		ProviderCustomerID: "cus_1",
		ProviderStatus:     "past_due",
	})
	require.NoError(t, err)
	assert.Equal(t, entitlements.StatusPastDue, res.Account.Status)
	assert.Equal(t, int64(3), res.Account.Revision)
}

func TestReconcileGivesUpAfterMaxAttempts(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	existing := store.Put(&account.Account{Email: "ada@example.com", Tier: entitlements.TierPro, Status: entitlements.StatusActive, ProviderCustomerID: "cus_1"})
	store.BeforeUpdate = func(s *accounttest.Store, _ *account.Account) { s.Bump(existing.ID) }
	r := newTestReconciler(store, WithMaxAttempts(1))

	_, err := r.Reconcile(context.Background(), &SubscriptionChange{
		EventID:            "evt_cas",
		EventType:          EventSubscriptionUpdated,
		Kind:               ChangeUpdate,
		ProviderCustomerID: "cus_1",
		ProviderStatus:     "past_due",
	})
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, account.ErrRevisionConflict)
	_, marked := store.Marker("evt_cas")
	assert.False(t, marked)
}

func TestReconcileStoreFailureIsTransient(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	store.Err = errors.New("connection reset")
	r := newTestReconciler(store)

	_, err := r.Reconcile(context.Background(), starterCheckout("evt_1"))
	assert.True(t, IsTransient(err))
}

func TestConsumeNewUser(t *testing.T) {
	store := accounttest.NewStore(identity.BackendUsers)
	r := newTestReconciler(store)
	ctx := context.Background()

	res, err := r.Reconcile(ctx, starterCheckout("evt_1"))
	require.NoError(t, err)

	require.NoError(t, r.ConsumeNewUser(ctx, res.Account.ID))
	a, err := store.Get(ctx, res.Account.ID)
	require.NoError(t, err)
	assert.False(t, a.IsNewUser)

	writes := store.Writes
	require.NoError(t, r.ConsumeNewUser(ctx, res.Account.ID))
	assert.Equal(t, writes, store.Writes)
}
