// Package hublock enforces how many hubs an account may select and how often
// the selection may change.
package hublock

import (
	"time"

	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/env"
)

const DefaultCooldown = 30 * 24 * time.Hour

type Reason string

const (
	ReasonQuotaExceeded  Reason = "quota_exceeded"
	ReasonCooldownActive Reason = "cooldown_active"
	ReasonUnknownHub     Reason = "unknown_hub"
	ReasonEmptySelection Reason = "empty_selection"
)

// Result of a lock decision. Remaining is set only for cooldown rejections.
type Result struct {
	Accepted  bool               `json:"accepted"`
	Reason    Reason             `json:"reason,omitempty"`
	Remaining time.Duration      `json:"-"`
	Hubs      []entitlements.Hub `json:"hubs,omitempty"`
}

func (r Result) RemainingSeconds() int64 {
	return int64((r.Remaining + time.Second - 1) / time.Second)
}

type Lock struct {
	cooldown time.Duration
}

// New returns a lock with the given cooldown. Zero or negative means DefaultCooldown.
func New(cooldown time.Duration) *Lock {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Lock{cooldown: cooldown}
}

// NewFromEnv reads HUB_SELECTION_COOLDOWN.
func NewFromEnv() *Lock {
	return New(env.GetDuration("HUB_SELECTION_COOLDOWN", DefaultCooldown))
}

func (l *Lock) Cooldown() time.Duration { return l.cooldown }

// CanChange reports whether a new selection would currently pass the cooldown.
func (l *Lock) CanChange(a *account.Account, now time.Time) Result {
	if !entitlements.RequiresHubSelection(a.Tier) {
		return Result{Accepted: true}
	}
	if remaining := l.remaining(a, now); remaining > 0 {
		return Result{Reason: ReasonCooldownActive, Remaining: remaining}
	}
	return Result{Accepted: true}
}

// TryCommit validates the requested selection and, when accepted, writes it to
// a together with the selection time. A rejection leaves a untouched.
func (l *Lock) TryCommit(a *account.Account, requested []entitlements.Hub, now time.Time) Result {
	hubs, err := entitlements.ParseHubs(entitlements.HubStrings(requested))
	if err != nil {
		return Result{Reason: ReasonUnknownHub}
	}

	switch a.Tier {
	case entitlements.TierFree:
		// free users see every hub, nothing is stored
		a.SelectedHubs = nil
		a.HubsSelectedAt = nil
		return Result{Accepted: true}
	case entitlements.TierUltimate:
		commit(a, hubs, now)
		return Result{Accepted: true, Hubs: hubs}
	}

	if len(hubs) == 0 {
		return Result{Reason: ReasonEmptySelection}
	}
	if !entitlements.HubQuotaFor(a.Tier).Allows(int64(len(hubs))) {
		return Result{Reason: ReasonQuotaExceeded}
	}
	if remaining := l.remaining(a, now); remaining > 0 {
		return Result{Reason: ReasonCooldownActive, Remaining: remaining}
	}

	commit(a, hubs, now)
	return Result{Accepted: true, Hubs: hubs}
}

func (l *Lock) remaining(a *account.Account, now time.Time) time.Duration {
	if a.HubsSelectedAt == nil {
		return 0
	}
	elapsed := now.Sub(*a.HubsSelectedAt)
	if elapsed >= l.cooldown {
		return 0
	}
	return l.cooldown - elapsed
}

func commit(a *account.Account, hubs []entitlements.Hub, now time.Time) {
	a.SelectedHubs = hubs
	t := now.UTC()
	a.HubsSelectedAt = &t
}
