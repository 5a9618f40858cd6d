package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/HubSuite/internal/pkg/billing"
	"github.com/ManuelReschke/HubSuite/internal/pkg/jobqueue"
	"github.com/ManuelReschke/HubSuite/internal/pkg/usercontext"
)

const defaultFailedWebhookLimit = 50

// AdminQueueController exposes the webhook ledger and retry queue to operators.
type AdminQueueController struct {
	svc   *billing.Service
	queue *jobqueue.Queue
}

func NewAdminQueueController(svc *billing.Service, queue *jobqueue.Queue) *AdminQueueController {
	return &AdminQueueController{svc: svc, queue: queue}
}

// HandleQueueStats returns retry queue sizes and per-status job counters.
func (aqc *AdminQueueController) HandleQueueStats(c *fiber.Ctx) error {
	if aqc.queue == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "queue_disabled", "Retry queue is not configured")
	}
	ctx := c.UserContext()

	pending, err := aqc.queue.GetQueueSize(ctx)
	if err != nil {
		return aqc.handleError(c, "Failed to read queue size", err)
	}
	processing, err := aqc.queue.GetProcessingSize(ctx)
	if err != nil {
		return aqc.handleError(c, "Failed to read processing size", err)
	}
	stats, err := aqc.queue.GetJobStats(ctx)
	if err != nil {
		return aqc.handleError(c, "Failed to read job stats", err)
	}

	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"running":    aqc.queue.IsRunning(),
		"stats":      stats,
	})
}

// HandleFailedWebhooks lists ledger rows whose last attempt did not finish.
func (aqc *AdminQueueController) HandleFailedWebhooks(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultFailedWebhookLimit)
	if limit <= 0 || limit > 500 {
		limit = defaultFailedWebhookLimit
	}
	rows, err := aqc.svc.ListFailedWebhookEvents(c.UserContext(), limit)
	if err != nil {
		return aqc.handleError(c, "Failed to list webhook events", err)
	}
	// payloads stay in the database
	for i := range rows {
		rows[i].PayloadJSON = ""
	}
	return c.JSON(fiber.Map{"events": rows, "count": len(rows)})
}

// HandleRetryWebhook reprocesses one ledger row synchronously.
func (aqc *AdminQueueController) HandleRetryWebhook(c *fiber.Ctx) error {
	id, err := c.ParamsInt("eventId")
	if err != nil || id <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_event_id", "Webhook event id must be a positive integer")
	}

	outcome, err := aqc.svc.ReprocessWebhookEvent(c.UserContext(), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Webhook event not found")
	}
	if err != nil && outcome == "" {
		return aqc.handleError(c, "Failed to reprocess webhook event", err)
	}

	body := fiber.Map{"id": id, "outcome": outcome}
	if err != nil {
		body["error"] = err.Error()
	}
	log.Infow("admin retried webhook event", "webhook_event_id", id, "outcome", outcome, "caller", usercontext.GetUserContext(c).Caller)
	return c.JSON(body)
}

func (aqc *AdminQueueController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Errorw(message, "error", err)
	return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", message)
}
