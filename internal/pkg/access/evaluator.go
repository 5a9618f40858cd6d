// Package access answers "may this user use this feature right now".
package access

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

// UsageReader returns today's usage of a feature.
type UsageReader interface {
	Get(ctx context.Context, user identity.UserID, feature entitlements.FeatureType) (int64, error)
}

type Evaluator struct {
	usage UsageReader
}

func NewEvaluator(usage UsageReader) *Evaluator {
	return &Evaluator{usage: usage}
}

// CheckAccess evaluates hub selection, subscription status and the daily
// limit, in that order. hub is the caller's hub context and is only consulted
// for features that do not belong to a hub themselves. Usage read failures
// deny access.
func (e *Evaluator) CheckAccess(ctx context.Context, a *account.Account, feature entitlements.FeatureType, hub *entitlements.Hub) Result {
	if !entitlements.KnownFeature(feature) {
		return unknownFeature(feature)
	}

	if entitlements.RequiresHubSelection(a.Tier) {
		required, ok := entitlements.FeatureHub(feature)
		if !ok && hub != nil {
			required, ok = *hub, true
		}
		if ok && !a.HasHub(required) {
			return hubNotSelected(required)
		}
	}

	if a.Status.IsInactive() {
		return subscriptionInactive(a.Status)
	}

	limit, _ := entitlements.DailyLimit(a.Tier, feature)
	if limit.IsUnlimited() {
		return allowed(nil, limit)
	}

	used, err := e.usage.Get(ctx, a.ID, feature)
	if err != nil {
		log.Errorw("usage counter unavailable, denying access", "user", a.ID.String(), "feature", feature, "error", err)
		return usageUnavailable()
	}
	if !limit.Allows(used + 1) {
		return limitReached(used, limit)
	}
	return allowed(&used, limit)
}
