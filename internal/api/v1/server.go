// Package apiv1 is the internal RPC surface documented in docs/v1/openapi.yml.
package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// Pong is the body of GET /ping.
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface lists the operations of the v1 API.
type ServerInterface interface {
	GetPing(c *fiber.Ctx) error

	GetUserAccess(c *fiber.Ctx) error
	PostUserUsage(c *fiber.Ctx) error
	GetUserUsage(c *fiber.Ctx) error
	GetUserHubsCanChange(c *fiber.Ctx) error
	PutUserHubs(c *fiber.Ctx) error
	GetUserSubscription(c *fiber.Ctx) error
	PostUserConsumeNewUser(c *fiber.Ctx) error

	GetAdminQueue(c *fiber.Ctx) error
	GetAdminFailedWebhooks(c *fiber.Ctx) error
	PostAdminRetryWebhook(c *fiber.Ctx) error
}

// RegisterHandlers mounts every operation on router. userMiddleware runs in
// front of the /users/:id routes.
func RegisterHandlers(router fiber.Router, si ServerInterface, userMiddleware ...fiber.Handler) {
	router.Get("/ping", si.GetPing)

	users := router.Group("/users/:id", userMiddleware...)
	users.Get("/access", si.GetUserAccess)
	users.Post("/usage", si.PostUserUsage)
	users.Get("/usage", si.GetUserUsage)
	users.Get("/hubs/can-change", si.GetUserHubsCanChange)
	users.Put("/hubs", si.PutUserHubs)
	users.Get("/subscription", si.GetUserSubscription)
	users.Post("/consume-new-user", si.PostUserConsumeNewUser)

	admin := router.Group("/admin")
	admin.Get("/queue", si.GetAdminQueue)
	admin.Get("/webhooks/failed", si.GetAdminFailedWebhooks)
	admin.Post("/webhooks/:eventId/retry", si.PostAdminRetryWebhook)
}
