package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v82"

	"github.com/ManuelReschke/HubSuite/app/models"
	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/hublock"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
	"github.com/ManuelReschke/HubSuite/internal/pkg/metrics"
)

// Service ties the webhook ledger, the normalizer and the reconciler together
// and serves the hub selection operations.
type Service struct {
	repo       Repository
	normalizer *Normalizer
	reconciler *Reconciler
	accounts   account.Store
	ids        *identity.Adapter
	lock       *hublock.Lock
}

func NewService(repo Repository, normalizer *Normalizer, reconciler *Reconciler) *Service {
	return &Service{
		repo:       repo,
		normalizer: normalizer,
		reconciler: reconciler,
		accounts:   reconciler.store,
		ids:        reconciler.ids,
		lock:       reconciler.lock,
	}
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed stores the outcome of a processing attempt.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, outcome string, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, outcome, errMsg)
}

func (s *Service) GetWebhookEvent(ctx context.Context, providerEventID string) (*models.BillingWebhookEvent, error) {
	return s.repo.GetWebhookEvent(ctx, models.BillingProviderStripe, providerEventID)
}

func (s *Service) ListFailedWebhookEvents(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error) {
	return s.repo.ListFailedWebhookEvents(ctx, limit)
}

// ProcessEvent normalizes and reconciles one verified event.
func (s *Service) ProcessEvent(ctx context.Context, event stripe.Event) (*ReconcileResult, error) {
	change, err := s.normalizer.Normalize(ctx, event)
	if err != nil {
		return nil, err
	}
	return s.reconciler.Reconcile(ctx, change)
}

func (s *Service) GetAccount(ctx context.Context, id identity.UserID) (*account.Account, error) {
	if err := s.ids.Check(id); err != nil {
		return nil, err
	}
	return s.accounts.Get(ctx, id)
}

// CanChangeHubs reports whether the account's hub selection is unlocked.
func (s *Service) CanChangeHubs(ctx context.Context, id identity.UserID) (hublock.Result, error) {
	a, err := s.GetAccount(ctx, id)
	if err != nil {
		return hublock.Result{}, err
	}
	return s.lock.CanChange(a, s.reconciler.now()), nil
}

// SelectHubs commits a user-initiated hub selection through the lock.
func (s *Service) SelectHubs(ctx context.Context, id identity.UserID, hubs []entitlements.Hub) (hublock.Result, *account.Account, error) {
	for attempt := 1; ; attempt++ {
		a, err := s.GetAccount(ctx, id)
		if err != nil {
			return hublock.Result{}, nil, err
		}

		res := s.lock.TryCommit(a, hubs, s.reconciler.now())
		if !res.Accepted {
			metrics.HubChangeRejections.WithLabelValues(string(res.Reason)).Inc()
			return res, a, nil
		}

		err = s.accounts.Update(ctx, a, "")
		if err == nil {
			return res, a, nil
		}
		if !errors.Is(err, account.ErrRevisionConflict) {
			return hublock.Result{}, nil, transient("save hub selection", err)
		}
		if attempt >= s.reconciler.maxAttempts {
			return hublock.Result{}, nil, transient("save hub selection", err)
		}
	}
}

// ConsumeNewUser clears the new-user flag after credential provisioning.
func (s *Service) ConsumeNewUser(ctx context.Context, id identity.UserID) error {
	return s.reconciler.ConsumeNewUser(ctx, id)
}
