package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/HubSuite/app/models"
	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

// columnsFromAccount maps the subscription part of an account onto the shared columns.
func columnsFromAccount(a *account.Account) models.SubscriptionColumns {
	cols := models.SubscriptionColumns{
		SubscriptionTier:       string(a.Tier),
		BillingPeriod:          string(a.BillingPeriod),
		SubscriptionStatus:     string(a.Status),
		ProviderSubscriptionID: a.ProviderSubscriptionID,
		CurrentPeriodStart:     utcPtr(a.CurrentPeriodStart),
		CurrentPeriodEnd:       utcPtr(a.CurrentPeriodEnd),
		TrialDays:              a.TrialDays,
		SelectedHubs:           datatypes.JSONSlice[string](entitlements.HubStrings(a.SelectedHubs)),
		HubsSelectedAt:         utcPtr(a.HubsSelectedAt),
		IsNewUser:              a.IsNewUser,
		Revision:               a.Revision,
	}
	// NULL keeps the unique index open for accounts without a customer
	if a.ProviderCustomerID != "" {
		customer := a.ProviderCustomerID
		cols.ProviderCustomerID = &customer
	}
	return cols
}

func accountFromColumns(id identity.UserID, email, name string, cols models.SubscriptionColumns) (*account.Account, error) {
	tier, err := entitlements.ParseTier(cols.SubscriptionTier)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", id, err)
	}
	a := &account.Account{
		ID:                     id,
		Email:                  email,
		Name:                   name,
		Tier:                   tier,
		BillingPeriod:          entitlements.BillingPeriod(cols.BillingPeriod),
		Status:                 entitlements.Status(cols.SubscriptionStatus),
		ProviderSubscriptionID: cols.ProviderSubscriptionID,
		CurrentPeriodStart:     utcPtr(cols.CurrentPeriodStart),
		CurrentPeriodEnd:       utcPtr(cols.CurrentPeriodEnd),
		TrialDays:              cols.TrialDays,
		HubsSelectedAt:         utcPtr(cols.HubsSelectedAt),
		IsNewUser:              cols.IsNewUser,
		Revision:               cols.Revision,
	}
	if cols.ProviderCustomerID != nil {
		a.ProviderCustomerID = *cols.ProviderCustomerID
	}
	if len(cols.SelectedHubs) > 0 {
		hubs, err := entitlements.ParseHubs(cols.SelectedHubs)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", id, err)
		}
		a.SelectedHubs = hubs
	}
	return a, nil
}

// subscriptionUpdates lists every subscription column explicitly so zero
// values are written too.
func subscriptionUpdates(cols models.SubscriptionColumns) map[string]interface{} {
	hubs := cols.SelectedHubs
	if hubs == nil {
		hubs = datatypes.JSONSlice[string]{}
	}
	return map[string]interface{}{
		"subscription_tier":        cols.SubscriptionTier,
		"billing_period":           cols.BillingPeriod,
		"subscription_status":      cols.SubscriptionStatus,
		"provider_customer_id":     cols.ProviderCustomerID,
		"provider_subscription_id": cols.ProviderSubscriptionID,
		"current_period_start":     cols.CurrentPeriodStart,
		"current_period_end":       cols.CurrentPeriodEnd,
		"trial_days":               cols.TrialDays,
		"selected_hubs":            hubs,
		"hubs_selected_at":         cols.HubsSelectedAt,
		"is_new_user":              cols.IsNewUser,
		"revision":                 cols.Revision + 1,
	}
}

// updateRevisioned runs the compare-and-swap update shared by both stores.
func updateRevisioned(tx *gorm.DB, model interface{}, id interface{}, revision int64, updates map[string]interface{}) error {
	res := tx.Model(model).Where("id = ? AND revision = ?", id, revision).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return account.ErrNotFound
		}
		return account.ErrRevisionConflict
	}
	return nil
}

// insertMarker records eventID. An existing marker yields account.ErrEventApplied.
func insertMarker(tx *gorm.DB, eventID string, id identity.UserID, outcome string) error {
	if eventID == "" {
		return nil
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&models.AppliedEvent{
		EventID:    eventID,
		AccountKey: id.Key(),
		Outcome:    outcome,
		AppliedAt:  time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return account.ErrEventApplied
	}
	return nil
}

func eventApplied(ctx context.Context, db *gorm.DB, eventID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.AppliedEvent{}).Where("event_id = ?", eventID).Count(&count).Error
	return count > 0, err
}

func markEvent(ctx context.Context, db *gorm.DB, eventID string, id identity.UserID, outcome string) error {
	err := insertMarker(db.WithContext(ctx), eventID, id, outcome)
	if errors.Is(err, account.ErrEventApplied) {
		return nil
	}
	return err
}

// notFound translates gorm's sentinel into the store contract.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return account.ErrNotFound
	}
	return err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
