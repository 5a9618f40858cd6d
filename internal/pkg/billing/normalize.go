package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v82"

	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

// Metadata keys written by the checkout page.
const (
	metaTier          = "tier"
	metaBillingPeriod = "billingPeriod"
	metaSelectedHubs  = "selectedHubs"
	metaUserID        = "userId"
)

// expandableID decodes a Stripe reference that is either an id string or an
// expanded object carrying an id.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type checkoutSession struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          expandableID      `json:"customer"`
	Subscription      expandableID      `json:"subscription"`
	CustomerEmail     string            `json:"customer_email"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	CustomerDetails   *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
}

type subscriptionObject struct {
	ID       string            `json:"id"`
	Customer expandableID      `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`

	TrialStart int64 `json:"trial_start"`
	TrialEnd   int64 `json:"trial_end"`
	// Older API versions keep the period on the subscription itself.
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`

	Items struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              *struct {
				Recurring *struct {
					Interval      string `json:"interval"`
					IntervalCount int64  `json:"interval_count"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (o *subscriptionObject) toProvider() *ProviderSubscription {
	out := &ProviderSubscription{
		ID:          o.ID,
		CustomerID:  string(o.Customer),
		Status:      o.Status,
		Metadata:    o.Metadata,
		TrialStart:  unixTime(o.TrialStart),
		TrialEnd:    unixTime(o.TrialEnd),
		PeriodStart: unixTime(o.CurrentPeriodStart),
		PeriodEnd:   unixTime(o.CurrentPeriodEnd),
	}
	if len(o.Items.Data) > 0 {
		item := o.Items.Data[0]
		if item.CurrentPeriodStart > 0 {
			out.PeriodStart = unixTime(item.CurrentPeriodStart)
		}
		if item.CurrentPeriodEnd > 0 {
			out.PeriodEnd = unixTime(item.CurrentPeriodEnd)
		}
		if item.Price != nil && item.Price.Recurring != nil {
			out.PriceInterval = item.Price.Recurring.Interval
			out.PriceIntervalCount = item.Price.Recurring.IntervalCount
		}
	}
	return out
}

// Normalizer turns verified Stripe events into SubscriptionChanges.
type Normalizer struct {
	fetcher  SubscriptionFetcher
	validate *validator.Validate
}

func NewNormalizer(fetcher SubscriptionFetcher) *Normalizer {
	return &Normalizer{fetcher: fetcher, validate: validator.New()}
}

// Normalize has no side effects beyond the subscription lookup for checkout
// sessions, whose own payload is never trusted for period data.
func (n *Normalizer) Normalize(ctx context.Context, event stripe.Event) (*SubscriptionChange, error) {
	eventType := string(event.Type)
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, &NormalizationError{Kind: KindMalformedPayload, EventType: eventType, Field: "data.object"}
	}

	var (
		change *SubscriptionChange
		err    error
	)
	switch eventType {
	case EventCheckoutCompleted:
		change, err = n.fromCheckout(ctx, eventType, event.Data.Raw)
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		change, err = n.fromSubscription(eventType, ChangeUpdate, event.Data.Raw)
	case EventSubscriptionDeleted:
		change, err = n.fromSubscription(eventType, ChangeDelete, event.Data.Raw)
	default:
		log.Infow("ignoring unhandled stripe event", "event_id", event.ID, "type", eventType)
		return nil, &NormalizationError{Kind: KindUnknownEventType, EventType: eventType}
	}
	if err != nil {
		return nil, err
	}

	change.EventID = event.ID
	change.EventType = eventType
	if event.Created > 0 {
		change.OccurredAt = time.Unix(event.Created, 0).UTC()
	}

	if err := n.validate.Struct(change); err != nil {
		return nil, &NormalizationError{Kind: KindInvalidField, EventType: eventType, Err: err}
	}
	if change.PeriodStart != nil && change.PeriodEnd != nil && change.PeriodEnd.Before(*change.PeriodStart) {
		return nil, &NormalizationError{Kind: KindInvalidField, EventType: eventType, Field: "current_period_end", Err: errors.New("period ends before it starts")}
	}
	return change, nil
}

func (n *Normalizer) fromCheckout(ctx context.Context, eventType string, raw json.RawMessage) (*SubscriptionChange, error) {
	var session checkoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, &NormalizationError{Kind: KindMalformedPayload, EventType: eventType, Err: err}
	}

	meta := session.Metadata
	tierRaw := metaValue(meta, metaTier)
	if tierRaw == "" {
		return nil, &NormalizationError{Kind: KindMissingMetadata, EventType: eventType, Field: metaTier}
	}
	periodRaw := metaValue(meta, metaBillingPeriod, "billing_period")
	if periodRaw == "" {
		return nil, &NormalizationError{Kind: KindMissingMetadata, EventType: eventType, Field: metaBillingPeriod}
	}

	change := &SubscriptionChange{
		Kind:               ChangeCheckout,
		Email:              strings.TrimSpace(session.CustomerEmail),
		ProviderCustomerID: string(session.Customer),
	}
	if session.CustomerDetails != nil {
		if session.CustomerDetails.Email != "" {
			change.Email = strings.TrimSpace(session.CustomerDetails.Email)
		}
		change.Name = strings.TrimSpace(session.CustomerDetails.Name)
	}

	var err error
	if change.Tier, err = entitlements.ParseTier(tierRaw); err != nil {
		return nil, &NormalizationError{Kind: KindInvalidField, EventType: eventType, Field: metaTier, Err: err}
	}
	if change.BillingPeriod, err = entitlements.ParseBillingPeriod(periodRaw); err != nil {
		return nil, &NormalizationError{Kind: KindInvalidField, EventType: eventType, Field: metaBillingPeriod, Err: err}
	}
	if change.RequestedHubs, err = parseHubList(metaValue(meta, metaSelectedHubs, "selected_hubs")); err != nil {
		return nil, &NormalizationError{Kind: KindInvalidField, EventType: eventType, Field: metaSelectedHubs, Err: err}
	}

	userRef := metaValue(meta, metaUserID, "user_id")
	if userRef == "" {
		userRef = strings.TrimSpace(session.ClientReferenceID)
	}
	if userRef != "" {
		id, err := identity.Parse(userRef)
		if err != nil {
			return nil, &NormalizationError{Kind: KindInvalidField, EventType: eventType, Field: metaUserID, Err: err}
		}
		change.UserID = &id
	}

	subID := string(session.Subscription)
	if subID == "" {
		if change.Tier.IsPaid() {
			return nil, &NormalizationError{Kind: KindMalformedPayload, EventType: eventType, Field: "subscription"}
		}
		return change, nil
	}

	sub, err := n.fetcher.FetchSubscription(ctx, subID)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			return nil, transient("fetch subscription "+subID, err)
		}
		return nil, &NormalizationError{Kind: KindMalformedPayload, EventType: eventType, Field: "subscription", Err: err}
	}

	change.ProviderSubscriptionID = sub.ID
	if change.ProviderCustomerID == "" {
		change.ProviderCustomerID = sub.CustomerID
	}
	applyProviderState(change, sub)
	return change, nil
}

func (n *Normalizer) fromSubscription(eventType string, kind ChangeKind, raw json.RawMessage) (*SubscriptionChange, error) {
	var obj subscriptionObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &NormalizationError{Kind: KindMalformedPayload, EventType: eventType, Err: err}
	}
	if obj.ID == "" {
		return nil, &NormalizationError{Kind: KindMalformedPayload, EventType: eventType, Field: "id"}
	}

	sub := obj.toProvider()
	change := &SubscriptionChange{
		Kind:                   kind,
		ProviderCustomerID:     sub.CustomerID,
		ProviderSubscriptionID: sub.ID,
	}
	applyProviderState(change, sub)

	meta := sub.Metadata
	var err error
	if raw := metaValue(meta, metaTier); raw != "" {
		if change.Tier, err = entitlements.ParseTier(raw); err != nil {
			return nil, &NormalizationError{Kind: KindInvalidField, EventType: eventType, Field: metaTier, Err: err}
		}
	}
	if raw := metaValue(meta, metaBillingPeriod, "billing_period"); raw != "" {
		if change.BillingPeriod, err = entitlements.ParseBillingPeriod(raw); err != nil {
			return nil, &NormalizationError{Kind: KindInvalidField, EventType: eventType, Field: metaBillingPeriod, Err: err}
		}
	} else if p, ok := periodFromInterval(sub.PriceInterval, sub.PriceIntervalCount); ok {
		change.BillingPeriod = p
	}
	if change.RequestedHubs, err = parseHubList(metaValue(meta, metaSelectedHubs, "selected_hubs")); err != nil {
		return nil, &NormalizationError{Kind: KindInvalidField, EventType: eventType, Field: metaSelectedHubs, Err: err}
	}
	if ref := metaValue(meta, metaUserID, "user_id"); ref != "" {
		id, err := identity.Parse(ref)
		if err != nil {
			return nil, &NormalizationError{Kind: KindInvalidField, EventType: eventType, Field: metaUserID, Err: err}
		}
		change.UserID = &id
	}
	return change, nil
}

func applyProviderState(change *SubscriptionChange, sub *ProviderSubscription) {
	change.ProviderStatus = sub.Status
	change.PeriodStart = timePtr(sub.PeriodStart)
	change.PeriodEnd = timePtr(sub.PeriodEnd)
	change.TrialEnd = timePtr(sub.TrialEnd)
	change.Trialing = strings.EqualFold(sub.Status, "trialing")
}

// parseHubList reads a JSON array string, falling back to a comma separated list.
func parseHubList(raw string) ([]entitlements.Hub, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var items []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("decode hub list: %w", err)
		}
	} else {
		items = strings.Split(raw, ",")
	}

	cleaned := items[:0]
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return entitlements.ParseHubs(cleaned)
}

func metaValue(meta map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(meta[k]); v != "" {
			return v
		}
	}
	return ""
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
