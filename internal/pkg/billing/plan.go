package billing

import (
	"strings"

	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
)

// MapProviderStatus maps a Stripe subscription status. Unknown statuses map to
// incomplete with ok=false so callers can log them.
func MapProviderStatus(raw string) (status entitlements.Status, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trialing":
		return entitlements.StatusTrialing, true
	case "active":
		return entitlements.StatusActive, true
	case "past_due", "unpaid":
		return entitlements.StatusPastDue, true
	case "canceled", "incomplete_expired":
		return entitlements.StatusCanceled, true
	case "incomplete":
		return entitlements.StatusIncomplete, true
	default:
		return entitlements.StatusIncomplete, false
	}
}

// periodFromInterval maps a recurring price interval to a billing period.
func periodFromInterval(interval string, count int64) (entitlements.BillingPeriod, bool) {
	if count <= 0 {
		count = 1
	}
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "month":
		switch count {
		case 1:
			return entitlements.PeriodMonthly, true
		case 6:
			return entitlements.PeriodSixMonth, true
		case 12:
			return entitlements.PeriodAnnual, true
		}
	case "year":
		if count == 1 {
			return entitlements.PeriodAnnual, true
		}
	}
	return "", false
}
