package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

var validate = validator.New()

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func missingSubject(c *fiber.Ctx) error {
	return jsonError(c, fiber.StatusBadRequest, "invalid_user_id", "User id missing")
}

// parseBody decodes and validates a JSON request body. A non-empty message
// means the body was rejected.
func parseBody(c *fiber.Ctx, out interface{}) string {
	if err := c.BodyParser(out); err != nil {
		return "Request body must be JSON"
	}
	if err := validate.Struct(out); err != nil {
		return err.Error()
	}
	return ""
}

// accountError writes the response for a failed account lookup or update.
func accountError(c *fiber.Ctx, id identity.UserID, err error) error {
	switch {
	case errors.Is(err, account.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
	case errors.Is(err, identity.ErrKindMismatch):
		return jsonError(c, fiber.StatusUnprocessableEntity, "user_id_kind_mismatch", err.Error())
	default:
		log.Errorw("account operation failed", "user_id", id.String(), "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load account")
	}
}
