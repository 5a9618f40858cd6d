package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/HubSuite/app/controllers"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the wired controllers and settings the routes need.
type Dependencies struct {
	Billing        *controllers.BillingController
	Access         *controllers.AccessController
	Hubs           *controllers.HubController
	Admin          *controllers.AdminQueueController
	Identity       *identity.Adapter
	InternalAPIKey string
	// LimiterStorage backs the API rate limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
	// Ready reports whether the service can take traffic.
	Ready func() error
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// Webhook and probe routes come first so the API key middleware never
	// sees Stripe deliveries.
	setup(app, NewWebhookRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
