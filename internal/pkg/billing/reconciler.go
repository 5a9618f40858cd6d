package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/hublock"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
	"github.com/ManuelReschke/HubSuite/internal/pkg/metrics"
)

const defaultMaxAttempts = 3

// Reconciler applies SubscriptionChanges to accounts. Applying the same event
// twice leaves the account exactly as the first application did.
type Reconciler struct {
	store       account.Store
	ids         *identity.Adapter
	lock        *hublock.Lock
	now         func() time.Time
	maxAttempts int
}

type ReconcilerOption func(*Reconciler)

func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// WithMaxAttempts bounds the re-read/re-apply loop on revision conflicts.
func WithMaxAttempts(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func NewReconciler(store account.Store, ids *identity.Adapter, lock *hublock.Lock, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:       store,
		ids:         ids,
		lock:        lock,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile applies one change. It returns ErrAccountNotResolvable,
// identity.ErrKindMismatch or a *TransientStoreError on failure.
func (r *Reconciler) Reconcile(ctx context.Context, change *SubscriptionChange) (*ReconcileResult, error) {
	if change == nil || change.EventID == "" {
		return nil, errors.New("reconcile: change without event id")
	}

	applied, err := r.store.EventApplied(ctx, change.EventID)
	if err != nil {
		return nil, transient("check event marker", err)
	}
	if applied {
		return r.done(change, &ReconcileResult{Outcome: OutcomeDuplicate}), nil
	}

	for attempt := 1; ; attempt++ {
		res, err := r.reconcileOnce(ctx, change)
		switch {
		case err == nil:
			return r.done(change, res), nil
		case errors.Is(err, account.ErrEventApplied):
			// a concurrent delivery of the same event won
			return r.done(change, &ReconcileResult{Outcome: OutcomeDuplicate}), nil
		case errors.Is(err, account.ErrRevisionConflict):
			if attempt >= r.maxAttempts {
				return nil, transient("update account", err)
			}
			log.Infow("revision conflict, re-reading account", "event_id", change.EventID, "attempt", attempt)
		default:
			return nil, err
		}
	}
}

func (r *Reconciler) done(change *SubscriptionChange, res *ReconcileResult) *ReconcileResult {
	metrics.ReconcileOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	if res.HubChangeRejected {
		metrics.HubChangeRejections.WithLabelValues(string(res.HubRejectReason)).Inc()
	}
	accountID := ""
	if res.Account != nil {
		accountID = res.Account.ID.String()
	}
	log.Infow("reconciled subscription event",
		"event_id", change.EventID,
		"type", change.EventType,
		"outcome", res.Outcome,
		"account", accountID,
		"hub_change_rejected", res.HubChangeRejected,
	)
	return res
}

func (r *Reconciler) reconcileOnce(ctx context.Context, change *SubscriptionChange) (*ReconcileResult, error) {
	now := r.now().UTC()

	current, err := r.resolve(ctx, change)
	if errors.Is(err, account.ErrNotFound) {
		if change.UserID == nil && change.Kind == ChangeCheckout && change.Tier.IsPaid() {
			return r.create(ctx, change, now)
		}
		if change.UserID == nil && change.Kind == ChangeUpdate {
			// no marker: a redelivery after signup must still apply
			log.Infow("deferring subscription event until checkout creates the account",
				"event_id", change.EventID, "customer", change.ProviderCustomerID)
			return &ReconcileResult{Outcome: OutcomeDeferred}, nil
		}
		return nil, fmt.Errorf("%w: event %s (%s) customer=%q email=%q", ErrAccountNotResolvable, change.EventID, change.EventType, change.ProviderCustomerID, change.Email)
	}
	if err != nil {
		return nil, err
	}

	if isStale(current, change) {
		if err := r.store.MarkEvent(ctx, change.EventID, current.ID, account.MarkerStale); err != nil {
			return nil, transient("mark stale event", err)
		}
		log.Infow("discarding stale subscription event", "event_id", change.EventID, "account", current.ID.String())
		return &ReconcileResult{Outcome: OutcomeStale, Account: current}, nil
	}

	next := current.Clone()
	next.IsNewUser = false
	res := &ReconcileResult{Outcome: OutcomeUpdated}
	r.apply(next, change, now, res)
	if err := next.Validate(); err != nil {
		return nil, err
	}

	if err := r.store.Update(ctx, next, change.EventID); err != nil {
		if errors.Is(err, account.ErrRevisionConflict) || errors.Is(err, account.ErrEventApplied) {
			return nil, err
		}
		return nil, transient("update account", err)
	}
	res.Account = next
	return res, nil
}

// resolve finds the target account by internal id, then provider customer id,
// then email. A metadata id that matches no account falls through to the
// other keys.
func (r *Reconciler) resolve(ctx context.Context, change *SubscriptionChange) (*account.Account, error) {
	if change.UserID != nil {
		if err := r.ids.Check(*change.UserID); err != nil {
			return nil, err
		}
		a, err := r.lookup(ctx, "get account", func() (*account.Account, error) {
			return r.store.Get(ctx, *change.UserID)
		})
		if !errors.Is(err, account.ErrNotFound) {
			return a, err
		}
		log.Warnw("metadata user id matches no account, trying provider customer and email",
			"event_id", change.EventID, "user_id", change.UserID.String())
	}

	if change.ProviderCustomerID != "" {
		a, err := r.lookup(ctx, "find account by customer", func() (*account.Account, error) {
			return r.store.FindByProviderCustomer(ctx, change.ProviderCustomerID)
		})
		if !errors.Is(err, account.ErrNotFound) {
			return a, err
		}
	}

	if change.Email != "" {
		return r.lookup(ctx, "find account by email", func() (*account.Account, error) {
			return r.store.FindByEmail(ctx, change.Email)
		})
	}
	return nil, account.ErrNotFound
}

func (r *Reconciler) lookup(_ context.Context, op string, fn func() (*account.Account, error)) (*account.Account, error) {
	a, err := fn()
	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, account.ErrNotFound), errors.Is(err, identity.ErrKindMismatch):
		return nil, err
	default:
		return nil, transient(op, err)
	}
}

func (r *Reconciler) create(ctx context.Context, change *SubscriptionChange, now time.Time) (*ReconcileResult, error) {
	if change.Email == "" {
		return nil, fmt.Errorf("%w: signup event %s carries no email", ErrAccountNotResolvable, change.EventID)
	}

	a := account.NewFree(change.Email, change.Name)
	a.Status = entitlements.StatusIncomplete
	res := &ReconcileResult{Outcome: OutcomeCreated, IsNewUser: true}
	r.apply(a, change, now, res)
	a.IsNewUser = true
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if err := r.store.Create(ctx, a, change.EventID); err != nil {
		if errors.Is(err, account.ErrEventApplied) {
			return nil, err
		}
		return nil, transient("create account", err)
	}
	res.Account = a
	return res, nil
}

// apply derives the next account state from a change.
func (r *Reconciler) apply(next *account.Account, change *SubscriptionChange, now time.Time, res *ReconcileResult) {
	previousTier := next.Tier
	if change.Tier != "" {
		next.Tier = change.Tier
	}
	if change.BillingPeriod != "" {
		next.BillingPeriod = change.BillingPeriod
	}

	if change.ProviderCustomerID != "" && (next.ProviderCustomerID == "" || change.Kind == ChangeCheckout) {
		next.ProviderCustomerID = change.ProviderCustomerID
	}
	if change.ProviderSubscriptionID != "" && change.Kind != ChangeDelete {
		next.ProviderSubscriptionID = change.ProviderSubscriptionID
	}
	if next.Email == "" {
		next.Email = change.Email
	}
	if next.Name == "" {
		next.Name = change.Name
	}

	if change.PeriodStart != nil {
		t := change.PeriodStart.UTC()
		next.CurrentPeriodStart = &t
	}
	if change.PeriodEnd != nil {
		t := change.PeriodEnd.UTC()
		next.CurrentPeriodEnd = &t
	}

	switch {
	case change.Kind == ChangeDelete:
		next.Status = entitlements.StatusCanceled
	case change.ProviderStatus != "":
		status, ok := MapProviderStatus(change.ProviderStatus)
		if !ok {
			log.Warnw("unmapped provider subscription status", "event_id", change.EventID, "status", change.ProviderStatus)
		}
		next.Status = status
	}

	if next.Tier == entitlements.TierFree {
		next.BillingPeriod = ""
		next.ProviderSubscriptionID = ""
		next.SelectedHubs = nil
		next.HubsSelectedAt = nil
		next.TrialDays = 0
		if next.Status == entitlements.StatusIncomplete || next.Status.IsInactive() {
			next.Status = entitlements.StatusActive
		}
		return
	}
	next.TrialDays = entitlements.TrialDaysFor(next.Tier, next.BillingPeriod)

	// a downgrade below the stored selection forces a fresh pick
	quota := entitlements.HubQuotaFor(next.Tier)
	if previousTier != next.Tier && !quota.Allows(int64(len(next.SelectedHubs))) {
		next.SelectedHubs = nil
		next.HubsSelectedAt = nil
	}

	if change.Kind == ChangeDelete || len(change.RequestedHubs) == 0 {
		return
	}
	if len(next.SelectedHubs) > 0 && entitlements.SameHubs(next.SelectedHubs, change.RequestedHubs) {
		return
	}
	lock := r.lock.TryCommit(next, change.RequestedHubs, now)
	if !lock.Accepted {
		res.HubChangeRejected = true
		res.HubRejectReason = lock.Reason
		res.HubLockRemaining = lock.Remaining
		log.Infow("hub change rejected", "event_id", change.EventID, "reason", lock.Reason, "remaining", lock.Remaining.String())
	}
}

// isStale reports events older than the persisted state: a period end before
// the stored one for the same subscription, or an event about a subscription
// the account has since replaced. A new checkout always wins, and so does a
// new subscription once the stored one is canceled.
func isStale(current *account.Account, change *SubscriptionChange) bool {
	sameSub := change.ProviderSubscriptionID == "" || current.ProviderSubscriptionID == "" ||
		change.ProviderSubscriptionID == current.ProviderSubscriptionID
	if !sameSub {
		switch change.Kind {
		case ChangeCheckout:
			return false
		case ChangeDelete:
			return true
		default:
			return current.Status != entitlements.StatusCanceled
		}
	}
	if change.PeriodEnd == nil || current.CurrentPeriodEnd == nil {
		return false
	}
	return change.PeriodEnd.Before(*current.CurrentPeriodEnd)
}

// ConsumeNewUser clears IsNewUser once credentials have been provisioned.
func (r *Reconciler) ConsumeNewUser(ctx context.Context, id identity.UserID) error {
	if err := r.ids.Check(id); err != nil {
		return err
	}
	for attempt := 1; ; attempt++ {
		a, err := r.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !a.IsNewUser {
			return nil
		}
		a.IsNewUser = false
		err = r.store.Update(ctx, a, "")
		if !errors.Is(err, account.ErrRevisionConflict) {
			return err
		}
		if attempt >= r.maxAttempts {
			return transient("consume new user flag", err)
		}
	}
}
