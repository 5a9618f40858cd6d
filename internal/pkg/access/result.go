package access

import (
	"fmt"

	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
)

type Reason string

const (
	ReasonHubNotSelected       Reason = "hub_not_selected"
	ReasonSubscriptionInactive Reason = "subscription_inactive"
	ReasonLimitReached         Reason = "limit_reached"
	ReasonUnknownFeature       Reason = "unknown_feature"
	ReasonUsageUnavailable     Reason = "usage_unavailable"
)

// Result is the single answer every feature gate consumes.
type Result struct {
	Allowed         bool                `json:"allowed"`
	Reason          Reason              `json:"reason,omitempty"`
	Message         string              `json:"message,omitempty"`
	CurrentUsage    *int64              `json:"currentUsage,omitempty"`
	Limit           *entitlements.Limit `json:"limit,omitempty"`
	UpgradeRequired bool                `json:"upgradeRequired,omitempty"`
}

func allowed(usage *int64, limit entitlements.Limit) Result {
	return Result{Allowed: true, CurrentUsage: usage, Limit: &limit}
}

func hubNotSelected(hub entitlements.Hub) Result {
	return Result{
		Reason:  ReasonHubNotSelected,
		Message: fmt.Sprintf("The %s hub is not part of your current hub selection.", hub),
	}
}

func subscriptionInactive(status entitlements.Status) Result {
	msg := "Your subscription has ended. Renew it to continue."
	if status == entitlements.StatusPastDue {
		msg = "Your last payment failed. Update your payment details to continue."
	}
	return Result{Reason: ReasonSubscriptionInactive, Message: msg}
}

func limitReached(usage int64, limit entitlements.Limit) Result {
	return Result{
		Reason:          ReasonLimitReached,
		Message:         fmt.Sprintf("You have used all %d of today's requests for this feature. Upgrade for a higher limit.", limit.Value()),
		CurrentUsage:    &usage,
		Limit:           &limit,
		UpgradeRequired: true,
	}
}

func unknownFeature(f entitlements.FeatureType) Result {
	return Result{Reason: ReasonUnknownFeature, Message: fmt.Sprintf("Unknown feature %q.", f)}
}

func usageUnavailable() Result {
	return Result{Reason: ReasonUsageUnavailable, Message: "Usage could not be verified right now. Please try again shortly."}
}
