package models

import "time"

// AppliedEvent marks a provider event as consumed by the reconciler. It is
// written in the same transaction as the account change it caused.
type AppliedEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_id"`
	AccountKey string    `gorm:"type:varchar(64);not null;default:'';index" json:"account_key"`
	Outcome    string    `gorm:"type:varchar(20);not null" json:"outcome"`
	AppliedAt  time.Time `gorm:"not null" json:"applied_at"`
}
