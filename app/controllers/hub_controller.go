package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/billing"
	"github.com/ManuelReschke/HubSuite/internal/pkg/entitlements"
	"github.com/ManuelReschke/HubSuite/internal/pkg/hublock"
	"github.com/ManuelReschke/HubSuite/internal/pkg/usercontext"
)

// HubController serves hub selection and the subscription projection.
type HubController struct {
	svc *billing.Service
}

func NewHubController(svc *billing.Service) *HubController {
	return &HubController{svc: svc}
}

type selectHubsRequest struct {
	Hubs []string `json:"hubs" validate:"required,max=8"`
}

type subscriptionView struct {
	*account.Account
	TrialEndsAt *time.Time         `json:"trialEndsAt,omitempty"`
	HubQuota    entitlements.Limit `json:"hubQuota"`
}

func lockBody(res hublock.Result) fiber.Map {
	body := fiber.Map{"accepted": res.Accepted}
	if res.Reason != "" {
		body["reason"] = res.Reason
	}
	if res.Remaining > 0 {
		body["remainingSeconds"] = res.RemainingSeconds()
	}
	return body
}

// HandleCanChangeHubs answers GET /users/:id/hubs/can-change.
func (hc *HubController) HandleCanChangeHubs(c *fiber.Ctx) error {
	id, ok := usercontext.GetSubject(c)
	if !ok {
		return missingSubject(c)
	}

	res, err := hc.svc.CanChangeHubs(c.UserContext(), id)
	if err != nil {
		return accountError(c, id, err)
	}
	body := lockBody(res)
	body["canChange"] = res.Accepted
	delete(body, "accepted")
	return c.JSON(body)
}

// HandleSelectHubs answers PUT /users/:id/hubs. Lock rejections are normal
// results and come back with 200 and accepted=false.
func (hc *HubController) HandleSelectHubs(c *fiber.Ctx) error {
	id, ok := usercontext.GetSubject(c)
	if !ok {
		return missingSubject(c)
	}

	var req selectHubsRequest
	if msg := parseBody(c, &req); msg != "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", msg)
	}
	hubs := make([]entitlements.Hub, 0, len(req.Hubs))
	for _, h := range req.Hubs {
		hubs = append(hubs, entitlements.Hub(h))
	}

	res, a, err := hc.svc.SelectHubs(c.UserContext(), id, hubs)
	if err != nil {
		return accountError(c, id, err)
	}
	body := lockBody(res)
	body["selectedHubs"] = entitlements.HubStrings(a.SelectedHubs)
	if a.HubsSelectedAt != nil {
		body["hubsSelectedAt"] = a.HubsSelectedAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(body)
}

// HandleGetSubscription answers GET /users/:id/subscription.
func (hc *HubController) HandleGetSubscription(c *fiber.Ctx) error {
	id, ok := usercontext.GetSubject(c)
	if !ok {
		return missingSubject(c)
	}

	a, err := hc.svc.GetAccount(c.UserContext(), id)
	if err != nil {
		return accountError(c, id, err)
	}
	return c.JSON(subscriptionView{
		Account:     a,
		TrialEndsAt: a.TrialEndsAt(),
		HubQuota:    entitlements.HubQuotaFor(a.Tier),
	})
}

// HandleConsumeNewUser answers POST /users/:id/consume-new-user, called once
// credentials for a webhook-created account were provisioned.
func (hc *HubController) HandleConsumeNewUser(c *fiber.Ctx) error {
	id, ok := usercontext.GetSubject(c)
	if !ok {
		return missingSubject(c)
	}
	if err := hc.svc.ConsumeNewUser(c.UserContext(), id); err != nil {
		return accountError(c, id, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
