package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/ManuelReschke/HubSuite/app/models"
	"github.com/ManuelReschke/HubSuite/internal/pkg/jobqueue"
)

// ReprocessWebhookEvent runs a recorded delivery through the pipeline again
// and stores the new outcome. Rows that already finished are left alone.
func (s *Service) ReprocessWebhookEvent(ctx context.Context, webhookEventID uint) (string, error) {
	row, err := s.repo.GetWebhookEventByID(ctx, webhookEventID)
	if err != nil {
		return "", err
	}
	if row.Done() {
		return row.Outcome, nil
	}
	if !row.SignatureValid {
		return models.WebhookOutcomeRejected, errors.New("ledger row was never verified")
	}

	var event stripe.Event
	if err := json.Unmarshal([]byte(row.PayloadJSON), &event); err != nil {
		perr := &NormalizationError{Kind: KindMalformedPayload, EventType: row.EventType, Err: err}
		return models.WebhookOutcomeRejected, s.MarkWebhookProcessed(ctx, row.ID, models.WebhookOutcomeRejected, perr)
	}

	res, procErr := s.ProcessEvent(ctx, event)
	outcome, ledgerErr := LedgerOutcome(res, procErr)
	if err := s.MarkWebhookProcessed(ctx, row.ID, outcome, ledgerErr); err != nil {
		log.Errorw("failed to update webhook ledger", "webhook_event_id", row.ID, "error", err)
	}
	if outcome == models.WebhookOutcomeRetrying {
		return outcome, procErr
	}
	return outcome, nil
}

// ReconcileJobHandler adapts ReprocessWebhookEvent to the retry queue. Only
// transient failures are retried; everything else stays in the ledger.
func (s *Service) ReconcileJobHandler() jobqueue.Handler {
	return func(ctx context.Context, job *jobqueue.Job) error {
		payload, err := jobqueue.ReconcileEventJobPayloadFromMap(job.Payload)
		if err != nil || payload.WebhookEventID == 0 {
			return fmt.Errorf("%w: invalid reconcile payload", jobqueue.ErrPermanent)
		}

		outcome, err := s.ReprocessWebhookEvent(ctx, payload.WebhookEventID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: webhook event %d not found", jobqueue.ErrPermanent, payload.WebhookEventID)
		}
		if err != nil && !IsTransient(err) {
			return fmt.Errorf("%w: %v", jobqueue.ErrPermanent, err)
		}
		if err != nil {
			return err
		}
		log.Infow("retried webhook event", "webhook_event_id", payload.WebhookEventID, "provider_event_id", payload.ProviderEventID, "outcome", outcome)
		return nil
	}
}

// EnqueueRetry schedules a ledger row for reprocessing.
func EnqueueRetry(ctx context.Context, q *jobqueue.Queue, row *models.BillingWebhookEvent) error {
	_, err := q.EnqueueJob(ctx, jobqueue.JobTypeReconcileEvent, jobqueue.ReconcileEventJobPayload{
		WebhookEventID:  row.ID,
		ProviderEventID: row.ProviderEventID,
		EventType:       row.EventType,
	}.ToMap())
	return err
}

// RetrySweep re-enqueues ledger rows whose last attempt failed transiently.
// Enqueueing a row twice is harmless: finished rows are skipped and the
// reconciler is idempotent.
func (s *Service) RetrySweep(limit int) jobqueue.SweepFunc {
	return func(ctx context.Context, q *jobqueue.Queue) error {
		rows, err := s.repo.ListWebhookEventsByOutcome(ctx, models.WebhookOutcomeRetrying, limit)
		if err != nil {
			return err
		}
		for i := range rows {
			if err := EnqueueRetry(ctx, q, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	}
}
