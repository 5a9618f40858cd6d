package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
	"github.com/ManuelReschke/HubSuite/internal/pkg/usercontext"
)

// SubjectMiddleware parses the :id route parameter once and checks it against
// the active user store. Handlers read it back with usercontext.GetSubject.
func SubjectMiddleware(ids *identity.Adapter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := ids.Parse(c.Params("id"))
		if err != nil {
			if errors.Is(err, identity.ErrKindMismatch) {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"error":   "user_id_kind_mismatch",
					"message": err.Error(),
				})
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "invalid_user_id",
				"message": err.Error(),
			})
		}

		uc := usercontext.GetUserContext(c)
		uc.Subject = id
		usercontext.SetUserContext(c, uc)
		return c.Next()
	}
}
