// handlers/moderation.go
package handlers

import (
	"competition-engine/middleware"
	"competition-engine/services"

	"github.com/gofiber/fiber/v2"
)

func setupModerationRoutes(router fiber.Router, h *Handler) {
	moderators := middleware.RequireRole(RoleModerator, RoleAdmin)

	router.Get("/competitions/:id/moderation", moderators, h.ListModeration)
	router.Get("/competitions/:id/moderation/:stage_id", moderators, h.ListModeration)
	router.Post("/competitions/:id/moderation/:stage_id", moderators, h.Moderate)
}

func (h *Handler) ListModeration(c *fiber.Ctx) error {
	entries, err := h.svc.Moderation.ListModerationEntries(c.UserContext(), c.Params("id"), c.Params("stage_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(entries)
}

type moderateRequest struct {
	Decisions []services.ModerationDecision `json:"decisions"`
}

func (h *Handler) Moderate(c *fiber.Ctx) error {
	var req moderateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Decisions) == 0 {
		return badRequest(c, "decisions are required")
	}
	results, err := h.svc.Moderation.Moderate(c.UserContext(), c.Params("id"), c.Params("stage_id"), req.Decisions)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"results": results})
}
