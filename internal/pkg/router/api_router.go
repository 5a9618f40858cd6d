package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apiv1 "github.com/ManuelReschke/HubSuite/internal/api/v1"
	"github.com/ManuelReschke/HubSuite/internal/pkg/constants"
	"github.com/ManuelReschke/HubSuite/internal/pkg/env"
	"github.com/ManuelReschke/HubSuite/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Max:        env.GetInt("API_RATE_LIMIT", 600),
		Expiration: env.GetDuration("API_RATE_WINDOW", time.Minute),
		Storage:    h.deps.LimiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.Get("X-Caller", "internal") + "|" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Too many requests"})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group(constants.APIV1Route, middleware.InternalAPIKeyMiddleware(h.deps.InternalAPIKey))
	apiServer := apiv1.NewAPIServer(h.deps.Access, h.deps.Hubs, h.deps.Admin)
	apiv1.RegisterHandlers(v1, apiServer, middleware.SubjectMiddleware(h.deps.Identity))
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
