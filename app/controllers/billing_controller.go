package controllers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/HubSuite/app/models"
	"github.com/ManuelReschke/HubSuite/internal/pkg/billing"
	"github.com/ManuelReschke/HubSuite/internal/pkg/jobqueue"
	"github.com/ManuelReschke/HubSuite/internal/pkg/metrics"
)

const webhookTimeout = 15 * time.Second

// BillingController receives Stripe webhooks.
type BillingController struct {
	svc           *billing.Service
	webhookSecret string
	queue         *jobqueue.Queue
}

// NewBillingController creates the webhook controller. queue may be nil, in
// which case transient failures rely on Stripe redelivery alone.
func NewBillingController(svc *billing.Service, webhookSecret string, queue *jobqueue.Queue) *BillingController {
	return &BillingController{svc: svc, webhookSecret: webhookSecret, queue: queue}
}

// HandleStripeWebhook verifies, records and reconciles one Stripe delivery.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	started := time.Now()
	rawBody := append([]byte(nil), c.BodyRaw()...)

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	event, verifyErr := billing.VerifyStripeWebhook(rawBody, c.Get("Stripe-Signature"), bc.webhookSecret)
	eventType := eventTypeLabel(string(event.Type))
	defer func() {
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(c.Response().StatusCode())).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(started).Seconds())
	}()

	// Unverified payloads are keyed by their hash so they can never shadow a
	// real event id in the ledger.
	input := billing.WebhookEventInput{
		Provider:       models.BillingProviderStripe,
		PayloadJSON:    string(rawBody),
		SignatureValid: verifyErr == nil,
	}
	if verifyErr == nil {
		input.ProviderEventID = event.ID
		input.EventType = string(event.Type)
	}

	created, stored, err := bc.svc.RecordWebhookEvent(ctx, input)
	if err != nil {
		log.Errorw("failed to record webhook event", "event_id", event.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed", "message": "Could not record webhook event"})
	}

	if verifyErr != nil {
		_ = bc.svc.MarkWebhookProcessed(ctx, stored.ID, models.WebhookOutcomeRejected, verifyErr)
		log.Warnw("rejected stripe webhook", "ip", c.IP(), "error", verifyErr)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature", "message": "Stripe signature verification failed"})
	}
	if !created && stored.Done() {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "outcome": models.WebhookOutcomeDuplicate})
	}

	res, procErr := bc.svc.ProcessEvent(ctx, event)
	outcome, ledgerErr := billing.LedgerOutcome(res, procErr)
	if err := bc.svc.MarkWebhookProcessed(ctx, stored.ID, outcome, ledgerErr); err != nil {
		log.Errorw("failed to update webhook ledger", "event_id", event.ID, "error", err)
	}

	switch outcome {
	case models.WebhookOutcomeRejected:
		log.Warnw("dropped stripe event", "event_id", event.ID, "type", event.Type, "error", procErr)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": procErr.Error()})
	case models.WebhookOutcomeUnresolvable:
		log.Errorw("stripe event has no resolvable account", "event_id", event.ID, "type", event.Type, "error", procErr)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "account_not_resolvable", "message": procErr.Error()})
	case models.WebhookOutcomeRetrying:
		log.Errorw("stripe event failed transiently", "event_id", event.ID, "type", event.Type, "error", procErr)
		if bc.queue != nil {
			if err := billing.EnqueueRetry(ctx, bc.queue, stored); err != nil {
				log.Errorw("failed to enqueue webhook retry", "event_id", event.ID, "error", err)
			}
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconcile_failed", "message": "Temporary failure, the event will be retried"})
	}

	body := fiber.Map{"ok": true, "outcome": outcome}
	if res != nil && res.HubChangeRejected {
		body["hubChangeRejected"] = string(res.HubRejectReason)
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

// eventTypeLabel keeps the metric label set bounded.
func eventTypeLabel(t string) string {
	switch t {
	case billing.EventCheckoutCompleted, billing.EventSubscriptionCreated,
		billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		return t
	case "":
		return "unverified"
	default:
		return "other"
	}
}
