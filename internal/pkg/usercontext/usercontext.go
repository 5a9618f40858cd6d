package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

// UserContext represents the caller and the account a request acts on
type UserContext struct {
	Subject       identity.UserID `json:"subject"`
	Caller        string          `json:"caller"`
	Authenticated bool            `json:"authenticated"`
}

// GetUserContext retrieves the user context from fiber context
// Returns an unauthenticated context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

func SetUserContext(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserContext, uc)
}

// GetSubject returns the parsed :id of the request, if any
func GetSubject(c *fiber.Ctx) (identity.UserID, bool) {
	id := GetUserContext(c).Subject
	return id, !id.IsZero()
}
