package entitlements

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownTier    = errors.New("unknown tier")
	ErrUnknownPeriod  = errors.New("unknown billing period")
	ErrUnknownHub     = errors.New("unknown hub")
	ErrUnknownFeature = errors.New("unknown feature")
)

type Tier string

const (
	TierFree     Tier = "free"
	TierStarter  Tier = "starter"
	TierPro      Tier = "pro"
	TierUltimate Tier = "ultimate"
)

// AllTiers is ordered by rank.
var AllTiers = []Tier{TierFree, TierStarter, TierPro, TierUltimate}

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TierFree, TierStarter, TierPro, TierUltimate:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

// Rank orders tiers for upgrade/downgrade comparisons.
func (t Tier) Rank() int {
	switch t {
	case TierUltimate:
		return 3
	case TierPro:
		return 2
	case TierStarter:
		return 1
	default:
		return 0
	}
}

func (t Tier) IsPaid() bool {
	return t.Rank() > 0
}

type BillingPeriod string

const (
	PeriodMonthly  BillingPeriod = "monthly"
	PeriodSixMonth BillingPeriod = "six_month"
	PeriodAnnual   BillingPeriod = "annual"
)

var AllPeriods = []BillingPeriod{PeriodMonthly, PeriodSixMonth, PeriodAnnual}

// ParseBillingPeriod accepts the canonical names plus the aliases checkout
// pages have used over time.
func ParseBillingPeriod(s string) (BillingPeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "month":
		return PeriodMonthly, nil
	case "six_month", "six-month", "6_month", "6month", "semiannual", "semi_annual":
		return PeriodSixMonth, nil
	case "annual", "yearly", "year":
		return PeriodAnnual, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
}

type Status string

const (
	StatusTrialing   Status = "trialing"
	StatusActive     Status = "active"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
	StatusIncomplete Status = "incomplete"
)

// IsInactive reports statuses that block paid access.
func (s Status) IsInactive() bool {
	return s == StatusPastDue || s == StatusCanceled
}

type Hub string

const (
	HubFinance  Hub = "finance"
	HubWellness Hub = "wellness"
	HubLearning Hub = "learning"
	HubVoice    Hub = "voice"
)

var AllHubs = []Hub{HubFinance, HubWellness, HubLearning, HubVoice}

func ParseHub(s string) (Hub, error) {
	h := Hub(strings.ToLower(strings.TrimSpace(s)))
	switch h {
	case HubFinance, HubWellness, HubLearning, HubVoice:
		return h, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownHub, s)
	}
}

// ParseHubs parses, deduplicates and sorts a hub list.
func ParseHubs(raw []string) ([]Hub, error) {
	seen := make(map[Hub]struct{}, len(raw))
	out := make([]Hub, 0, len(raw))
	for _, r := range raw {
		h, err := ParseHub(r)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	SortHubs(out)
	return out, nil
}

func SortHubs(hubs []Hub) {
	sort.Slice(hubs, func(i, j int) bool { return hubs[i] < hubs[j] })
}

// SameHubs compares two hub sets ignoring order and duplicates.
func SameHubs(a, b []Hub) bool {
	as := make(map[Hub]struct{}, len(a))
	for _, h := range a {
		as[h] = struct{}{}
	}
	bs := make(map[Hub]struct{}, len(b))
	for _, h := range b {
		bs[h] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for h := range as {
		if _, ok := bs[h]; !ok {
			return false
		}
	}
	return true
}

func HubStrings(hubs []Hub) []string {
	out := make([]string, len(hubs))
	for i, h := range hubs {
		out[i] = string(h)
	}
	return out
}
