package access

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
	"github.com/ManuelReschke/HubSuite/internal/pkg/metrics"
)

// AccountReader loads one account.
type AccountReader interface {
	Get(ctx context.Context, id identity.UserID) (*account.Account, error)
}

// UsageRecorder increments today's usage of a feature.
type UsageRecorder interface {
	UsageReader
	Record(ctx context.Context, user identity.UserID, feature entitlements.FeatureType) (int64, error)
	Snapshot(ctx context.Context, user identity.UserID) (map[entitlements.FeatureType]int64, error)
}

// Service resolves an account and evaluates it.
type Service struct {
	accounts  AccountReader
	usage     UsageRecorder
	evaluator *Evaluator
}

func NewService(accounts AccountReader, usage UsageRecorder) *Service {
	return &Service{
		accounts:  accounts,
		usage:     usage,
		evaluator: NewEvaluator(usage),
	}
}

// CheckAccess performs one account read and at most one counter read. The
// error is set only when the account cannot be loaded.
func (s *Service) CheckAccess(ctx context.Context, id identity.UserID, feature entitlements.FeatureType, hub *entitlements.Hub) (Result, error) {
	a, err := s.accounts.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("load account %s: %w", id.String(), err)
	}

	res := s.evaluator.CheckAccess(ctx, a, feature, hub)
	label := "allowed"
	if !res.Allowed {
		label = string(res.Reason)
	}
	featureLabel := string(feature)
	if res.Reason == ReasonUnknownFeature {
		featureLabel = "unknown"
	}
	metrics.AccessDecisions.WithLabelValues(featureLabel, label).Inc()
	return res, nil
}

// RecordUsage counts one use of a feature.
func (s *Service) RecordUsage(ctx context.Context, id identity.UserID, feature entitlements.FeatureType) (int64, error) {
	if !entitlements.KnownFeature(feature) {
		return 0, fmt.Errorf("%w: %q", entitlements.ErrUnknownFeature, feature)
	}
	return s.usage.Record(ctx, id, feature)
}

// UsageToday returns every feature counter of the current UTC day.
func (s *Service) UsageToday(ctx context.Context, id identity.UserID) (map[entitlements.FeatureType]int64, error) {
	return s.usage.Snapshot(ctx, id)
}
