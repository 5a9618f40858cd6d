package entitlements

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	shortTrialDays = 5
	longTrialDays  = 7
)

// TrialDaysFor returns the trial length granted for a tier and billing period.
// Ultimate and free carry no trial.
func TrialDaysFor(tier Tier, period BillingPeriod) int {
	switch tier {
	case TierStarter, TierPro:
		if period == PeriodMonthly {
			return shortTrialDays
		}
		if period == PeriodSixMonth || period == PeriodAnnual {
			return longTrialDays
		}
		return 0
	default:
		return 0
	}
}

// TrialEnd is the instant the trial granted at start ends.
func TrialEnd(start time.Time, days int) time.Time {
	return start.AddDate(0, 0, days)
}

// Limit is a non-negative cap or unlimited. The zero value is a cap of 0.
type Limit struct {
	value     int64
	unlimited bool
}

var Unlimited = Limit{unlimited: true}

func LimitOf(n int64) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{value: n}
}

func (l Limit) IsUnlimited() bool { return l.unlimited }

// Value is meaningless when IsUnlimited.
func (l Limit) Value() int64 { return l.value }

// Allows reports whether n items fit under the cap.
func (l Limit) Allows(n int64) bool {
	return l.unlimited || n <= l.value
}

func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(l.value, 10)
}

// MarshalJSON encodes a number or the string "unlimited".
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return json.Marshal("unlimited")
	}
	return []byte(strconv.FormatInt(l.value, 10)), nil
}

func (l *Limit) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "unlimited" {
			*l = Unlimited
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*l = LimitOf(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*l = LimitOf(n)
	return nil
}

// HubQuotaFor is the number of hubs a tier may select. Free has every hub
// implicitly and stores none; ultimate has every hub.
func HubQuotaFor(tier Tier) Limit {
	switch tier {
	case TierStarter, TierPro:
		return LimitOf(1)
	default:
		return Unlimited
	}
}

// RequiresHubSelection reports tiers whose access is scoped to selected hubs.
func RequiresHubSelection(tier Tier) bool {
	return !HubQuotaFor(tier).IsUnlimited()
}
