package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/HubSuite/internal/pkg/constants"
	"github.com/ManuelReschke/HubSuite/internal/pkg/metrics"
)

// WebhookRouter serves the provider webhook, health probe and metrics.
type WebhookRouter struct {
	deps Dependencies
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post(constants.WebhookStripeRoute, h.deps.Billing.HandleStripeWebhook)
	app.Get(constants.MetricsRoute, metrics.Handler())
	app.Get(constants.HealthRoute, h.handleHealth)
}

func (h WebhookRouter) handleHealth(c *fiber.Ctx) error {
	if h.deps.Ready != nil {
		if err := h.deps.Ready(); err != nil {
			log.Warnw("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func NewWebhookRouter(deps Dependencies) *WebhookRouter {
	return &WebhookRouter{deps: deps}
}
