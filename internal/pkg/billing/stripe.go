package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/subscription"

	"github.com/ManuelReschke/HubSuite/internal/pkg/env"
)

// ProviderSubscription is the subset of a Stripe subscription the normalizer reads.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PeriodStart        time.Time
	PeriodEnd          time.Time
	TrialStart         time.Time
	TrialEnd           time.Time
	Metadata           map[string]string
	PriceInterval      string
	PriceIntervalCount int64
}

// SubscriptionFetcher looks up the current state of a subscription.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, id string) (*ProviderSubscription, error)
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

func StripeConfigFromEnv() StripeConfig {
	return StripeConfig{
		SecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
	}
}

// StripeClient talks to the Stripe API.
type StripeClient struct {
	cfg StripeConfig
}

func NewStripeClient(cfg StripeConfig) *StripeClient {
	stripe.Key = cfg.SecretKey
	return &StripeClient{cfg: cfg}
}

func NewStripeClientFromEnv() *StripeClient {
	return NewStripeClient(StripeConfigFromEnv())
}

func (c *StripeClient) WebhookSecret() string { return c.cfg.WebhookSecret }

// FetchSubscription reads a subscription. Failures wrap ErrProviderUnavailable.
func (c *StripeClient) FetchSubscription(ctx context.Context, id string) (*ProviderSubscription, error) {
	if c.cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: stripe secret key not configured", ErrProviderUnavailable)
	}

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := subscription.Get(id, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == 404 {
			return nil, fmt.Errorf("subscription %s not found: %w", id, err)
		}
		return nil, errors.Join(ErrProviderUnavailable, fmt.Errorf("get subscription %s: %w", id, err))
	}
	return fromStripeSubscription(sub), nil
}

func fromStripeSubscription(sub *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		ID:         sub.ID,
		Status:     string(sub.Status),
		TrialStart: unixTime(sub.TrialStart),
		TrialEnd:   unixTime(sub.TrialEnd),
		Metadata:   sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.PeriodStart = unixTime(item.CurrentPeriodStart)
		out.PeriodEnd = unixTime(item.CurrentPeriodEnd)
		if item.Price != nil && item.Price.Recurring != nil {
			out.PriceInterval = string(item.Price.Recurring.Interval)
			out.PriceIntervalCount = item.Price.Recurring.IntervalCount
		}
	}
	return out
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
