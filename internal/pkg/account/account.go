// Package account holds the store-agnostic subscription record of a user and
// the contract both user stores implement.
package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

// Account is the canonical subscription state of one user.
type Account struct {
	ID    identity.UserID `json:"id"`
	Email string          `json:"email"`
	Name  string          `json:"name,omitempty"`

	Tier          entitlements.Tier          `json:"tier"`
	BillingPeriod entitlements.BillingPeriod `json:"billingPeriod,omitempty"`
	Status        entitlements.Status        `json:"status"`

	ProviderCustomerID     string `json:"providerCustomerId,omitempty"`
	ProviderSubscriptionID string `json:"providerSubscriptionId,omitempty"`

	CurrentPeriodStart *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd,omitempty"`
	TrialDays          int        `json:"trialDays"`

	SelectedHubs   []entitlements.Hub `json:"selectedHubs"`
	HubsSelectedAt *time.Time         `json:"hubsSelectedAt,omitempty"`

	IsNewUser bool  `json:"isNewUser"`
	Revision  int64 `json:"revision"`
}

// NewFree returns a free account with no subscription.
func NewFree(email, name string) *Account {
	return &Account{
		Email:  email,
		Name:   name,
		Tier:   entitlements.TierFree,
		Status: entitlements.StatusActive,
	}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.CurrentPeriodStart = cloneTime(a.CurrentPeriodStart)
	c.CurrentPeriodEnd = cloneTime(a.CurrentPeriodEnd)
	c.HubsSelectedAt = cloneTime(a.HubsSelectedAt)
	if a.SelectedHubs != nil {
		c.SelectedHubs = append([]entitlements.Hub(nil), a.SelectedHubs...)
	}
	return &c
}

func (a *Account) HasHub(h entitlements.Hub) bool {
	for _, s := range a.SelectedHubs {
		if s == h {
			return true
		}
	}
	return false
}

// TrialEndsAt is set only while the account is trialing.
func (a *Account) TrialEndsAt() *time.Time {
	if a.Status != entitlements.StatusTrialing || a.TrialDays == 0 || a.CurrentPeriodStart == nil {
		return nil
	}
	end := entitlements.TrialEnd(*a.CurrentPeriodStart, a.TrialDays)
	return &end
}

var ErrInvalidAccount = errors.New("invalid account state")

// Validate checks the invariants every persisted account holds.
func (a *Account) Validate() error {
	if _, err := entitlements.ParseTier(string(a.Tier)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	if a.Tier == entitlements.TierFree {
		if a.ProviderSubscriptionID != "" {
			return fmt.Errorf("%w: free account carries subscription %q", ErrInvalidAccount, a.ProviderSubscriptionID)
		}
		if len(a.SelectedHubs) > 0 {
			return fmt.Errorf("%w: free account carries selected hubs", ErrInvalidAccount)
		}
	}
	if a.CurrentPeriodStart != nil && a.CurrentPeriodEnd != nil && a.CurrentPeriodEnd.Before(*a.CurrentPeriodStart) {
		return fmt.Errorf("%w: period ends before it starts", ErrInvalidAccount)
	}
	if a.TrialDays < 0 {
		return fmt.Errorf("%w: negative trial days", ErrInvalidAccount)
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
