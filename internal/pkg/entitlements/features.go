package entitlements

import (
	"fmt"
	"strings"
)

type FeatureType string

const (
	FeatureAIChat          FeatureType = "ai_chat"
	FeatureTranslation     FeatureType = "translation"
	FeatureVoiceCommand    FeatureType = "voice_command"
	FeatureFinanceInsight  FeatureType = "finance_insight"
	FeatureWellnessJournal FeatureType = "wellness_journal"
	FeatureLearningLesson  FeatureType = "learning_lesson"
)

type featurePolicy struct {
	hub    Hub // empty for cross-hub features
	limits map[Tier]Limit
}

var featurePolicies = map[FeatureType]featurePolicy{
	FeatureAIChat: {
		limits: map[Tier]Limit{TierFree: LimitOf(5), TierStarter: LimitOf(25), TierPro: LimitOf(100), TierUltimate: Unlimited},
	},
	FeatureTranslation: {
		limits: map[Tier]Limit{TierFree: LimitOf(10), TierStarter: LimitOf(100), TierPro: LimitOf(500), TierUltimate: Unlimited},
	},
	FeatureVoiceCommand: {
		hub:    HubVoice,
		limits: map[Tier]Limit{TierFree: LimitOf(3), TierStarter: LimitOf(20), TierPro: LimitOf(60), TierUltimate: Unlimited},
	},
	FeatureFinanceInsight: {
		hub:    HubFinance,
		limits: map[Tier]Limit{TierFree: LimitOf(2), TierStarter: LimitOf(10), TierPro: LimitOf(50), TierUltimate: Unlimited},
	},
	FeatureWellnessJournal: {
		hub:    HubWellness,
		limits: map[Tier]Limit{TierFree: LimitOf(3), TierStarter: LimitOf(15), TierPro: LimitOf(50), TierUltimate: Unlimited},
	},
	FeatureLearningLesson: {
		hub:    HubLearning,
		limits: map[Tier]Limit{TierFree: LimitOf(2), TierStarter: LimitOf(10), TierPro: LimitOf(40), TierUltimate: Unlimited},
	},
}

func ParseFeature(s string) (FeatureType, error) {
	f := FeatureType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := featurePolicies[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
	}
	return f, nil
}

func KnownFeature(f FeatureType) bool {
	_, ok := featurePolicies[f]
	return ok
}

// FeatureHub returns the hub a feature belongs to, if any.
func FeatureHub(f FeatureType) (Hub, bool) {
	p, ok := featurePolicies[f]
	if !ok || p.hub == "" {
		return "", false
	}
	return p.hub, true
}

// DailyLimit returns the per-day cap of a feature for a tier. ok is false for
// unknown features.
func DailyLimit(tier Tier, f FeatureType) (Limit, bool) {
	p, ok := featurePolicies[f]
	if !ok {
		return Limit{}, false
	}
	l, ok := p.limits[tier]
	if !ok {
		// unknown tiers are capped like free
		return p.limits[TierFree], true
	}
	return l, true
}
