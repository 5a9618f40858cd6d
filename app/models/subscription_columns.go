package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubscriptionColumns is embedded by every table that holds a user's
// subscription state, so the legacy users table and the profiles table keep
// an identical shape during the migration.
type SubscriptionColumns struct {
	SubscriptionTier       string                      `gorm:"type:varchar(20);not null;default:'free';index" json:"subscription_tier"`
	BillingPeriod          string                      `gorm:"type:varchar(20);not null;default:''" json:"billing_period"`
	SubscriptionStatus     string                      `gorm:"type:varchar(20);not null;default:'active'" json:"subscription_status"`
	ProviderCustomerID     *string                     `gorm:"type:varchar(191);uniqueIndex" json:"provider_customer_id,omitempty"`
	ProviderSubscriptionID string                      `gorm:"type:varchar(191);not null;default:'';index" json:"provider_subscription_id"`
	CurrentPeriodStart     *time.Time                  `gorm:"default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time                  `gorm:"default:null" json:"current_period_end,omitempty"`
	TrialDays              int                         `gorm:"not null;default:0" json:"trial_days"`
	SelectedHubs           datatypes.JSONSlice[string] `json:"selected_hubs"`
	HubsSelectedAt         *time.Time                  `gorm:"default:null" json:"hubs_selected_at,omitempty"`
	IsNewUser              bool                        `gorm:"not null;default:false" json:"is_new_user"`
	Revision               int64                       `gorm:"not null;default:0" json:"revision"`
}
