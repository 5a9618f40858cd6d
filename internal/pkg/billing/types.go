package billing

import (
	"time"

	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/hublock"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

// Stripe event types the normalizer understands.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

type ChangeKind string

const (
	ChangeCheckout ChangeKind = "checkout"
	ChangeUpdate   ChangeKind = "update"
	ChangeDelete   ChangeKind = "delete"
)

// SubscriptionChange is the provider-agnostic shape of one subscription event.
// Empty Tier or BillingPeriod means "unchanged".
type SubscriptionChange struct {
	EventID   string     `validate:"required"`
	EventType string     `validate:"required"`
	Kind      ChangeKind `validate:"required,oneof=checkout update delete"`

	UserID *identity.UserID
	Email  string `validate:"omitempty,email"`
	Name   string `validate:"max=150"`

	Tier          entitlements.Tier          `validate:"omitempty,oneof=free starter pro ultimate"`
	BillingPeriod entitlements.BillingPeriod `validate:"omitempty,oneof=monthly six_month annual"`

	ProviderCustomerID     string
	ProviderSubscriptionID string
	ProviderStatus         string

	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Trialing    bool
	TrialEnd    *time.Time

	RequestedHubs []entitlements.Hub `validate:"dive,oneof=finance wellness learning voice"`
	OccurredAt    time.Time
}

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
	// OutcomeDeferred is a subscription event for a customer that has no
	// account yet; the checkout that follows creates it from fresh state.
	OutcomeDeferred Outcome = "deferred"
)

// ReconcileResult describes what a reconciliation did.
type ReconcileResult struct {
	Outcome           Outcome
	Account           *account.Account
	IsNewUser         bool
	HubChangeRejected bool
	HubRejectReason   hublock.Reason
	HubLockRemaining  time.Duration
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
