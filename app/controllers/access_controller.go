package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/HubSuite/internal/pkg/access"
	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/usage"
	"github.com/ManuelReschke/HubSuite/internal/pkg/usercontext"
)

// AccessController serves entitlement checks and usage recording.
type AccessController struct {
	svc *access.Service
}

func NewAccessController(svc *access.Service) *AccessController {
	return &AccessController{svc: svc}
}

type recordUsageRequest struct {
	Feature string `json:"feature" validate:"required"`
}

// HandleCheckAccess answers GET /users/:id/access?feature=&hub=.
func (ac *AccessController) HandleCheckAccess(c *fiber.Ctx) error {
	id, ok := usercontext.GetSubject(c)
	if !ok {
		return missingSubject(c)
	}

	feature := strings.TrimSpace(c.Query("feature"))
	if feature == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_feature", "Query parameter 'feature' is required")
	}

	var hub *entitlements.Hub
	if raw := strings.TrimSpace(c.Query("hub")); raw != "" {
		h, err := entitlements.ParseHub(raw)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_hub", err.Error())
		}
		hub = &h
	}

	res, err := ac.svc.CheckAccess(c.UserContext(), id, entitlements.FeatureType(strings.ToLower(feature)), hub)
	if err != nil {
		return accountError(c, id, err)
	}
	return c.JSON(res)
}

// HandleRecordUsage answers POST /users/:id/usage.
func (ac *AccessController) HandleRecordUsage(c *fiber.Ctx) error {
	id, ok := usercontext.GetSubject(c)
	if !ok {
		return missingSubject(c)
	}

	var req recordUsageRequest
	if msg := parseBody(c, &req); msg != "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", msg)
	}

	feature, err := entitlements.ParseFeature(req.Feature)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_feature", err.Error())
	}

	n, err := ac.svc.RecordUsage(c.UserContext(), id, feature)
	if err != nil {
		if errors.Is(err, entitlements.ErrUnknownFeature) {
			return jsonError(c, fiber.StatusBadRequest, "invalid_feature", err.Error())
		}
		log.Errorw("failed to record usage", "user_id", id.String(), "feature", feature, "error", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "usage_unavailable", "Usage could not be recorded")
	}
	return c.JSON(fiber.Map{"feature": feature, "currentUsage": n})
}

// HandleGetUsage answers GET /users/:id/usage with today's counters.
func (ac *AccessController) HandleGetUsage(c *fiber.Ctx) error {
	id, ok := usercontext.GetSubject(c)
	if !ok {
		return missingSubject(c)
	}

	today, err := ac.svc.UsageToday(c.UserContext(), id)
	if err != nil {
		log.Errorw("failed to read usage", "user_id", id.String(), "error", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "usage_unavailable", "Usage could not be read")
	}
	return c.JSON(fiber.Map{
		"usage":    today,
		"resetsAt": usage.NextReset(time.Now()).Format(time.RFC3339),
	})
}
