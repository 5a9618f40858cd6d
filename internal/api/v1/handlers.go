package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to the controllers to keep behavior consistent
	"github.com/ManuelReschke/HubSuite/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	access *controllers.AccessController
	hubs   *controllers.HubController
	admin  *controllers.AdminQueueController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(access *controllers.AccessController, hubs *controllers.HubController, admin *controllers.AdminQueueController) *APIServer {
	return &APIServer{access: access, hubs: hubs, admin: admin}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

func (s *APIServer) GetUserAccess(c *fiber.Ctx) error {
	return s.access.HandleCheckAccess(c)
}

func (s *APIServer) PostUserUsage(c *fiber.Ctx) error {
	return s.access.HandleRecordUsage(c)
}

func (s *APIServer) GetUserUsage(c *fiber.Ctx) error {
	return s.access.HandleGetUsage(c)
}

func (s *APIServer) GetUserHubsCanChange(c *fiber.Ctx) error {
	return s.hubs.HandleCanChangeHubs(c)
}

func (s *APIServer) PutUserHubs(c *fiber.Ctx) error {
	return s.hubs.HandleSelectHubs(c)
}

func (s *APIServer) GetUserSubscription(c *fiber.Ctx) error {
	return s.hubs.HandleGetSubscription(c)
}

func (s *APIServer) PostUserConsumeNewUser(c *fiber.Ctx) error {
	return s.hubs.HandleConsumeNewUser(c)
}

func (s *APIServer) GetAdminQueue(c *fiber.Ctx) error {
	return s.admin.HandleQueueStats(c)
}

func (s *APIServer) GetAdminFailedWebhooks(c *fiber.Ctx) error {
	return s.admin.HandleFailedWebhooks(c)
}

func (s *APIServer) PostAdminRetryWebhook(c *fiber.Ctx) error {
	return s.admin.HandleRetryWebhook(c)
}
