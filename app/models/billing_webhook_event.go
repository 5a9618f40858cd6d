package models

import "time"

const BillingProviderStripe = "stripe"

// Webhook ledger outcomes.
const (
	WebhookOutcomeProcessed    = "processed"
	WebhookOutcomeDuplicate    = "duplicate"
	WebhookOutcomeStale        = "stale"
	WebhookOutcomeIgnored      = "ignored"
	WebhookOutcomeRejected     = "rejected"
	WebhookOutcomeUnresolvable = "unresolvable"
	WebhookOutcomeRetrying     = "retrying"
	WebhookOutcomeDeferred     = "deferred"
)

// BillingWebhookEvent stores provider webhook payloads with deduplication
// metadata and the outcome of their last processing attempt.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:text;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	Attempts        int        `gorm:"not null;default:0" json:"attempts"`
	Outcome         string     `gorm:"type:varchar(20);not null;default:'';index" json:"outcome"`
	ProcessedAt     *time.Time `gorm:"default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Done reports whether an earlier delivery finished without error.
func (e *BillingWebhookEvent) Done() bool {
	return e.ProcessedAt != nil && e.ProcessingError == ""
}
