// handlers/chain.go
package handlers

import (
	"competition-engine/middleware"
	"competition-engine/models"

	"github.com/gofiber/fiber/v2"
)

func setupChainRoutes(router fiber.Router, h *Handler) {
	admin := middleware.RequireRole(RoleAdmin)

	router.Post("/competitions/:id/chain", admin, h.BuildChain)
	router.Get("/competitions/:id/chain", h.GetChain)
	router.Delete("/competitions/:id/chain", admin, h.DeleteChain)
	router.Post("/stages/:stage_id/draw", admin, h.ExecuteDraw)
}

type buildChainRequest struct {
	Edges []models.ChainEdge `json:"edges"`
}

func (h *Handler) BuildChain(c *fiber.Ctx) error {
	var req buildChainRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	edges, err := h.svc.Chains.BuildChain(c.UserContext(), c.Params("id"), req.Edges)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"edges": edges})
}

func (h *Handler) GetChain(c *fiber.Ctx) error {
	edges, err := h.svc.Chains.GetChain(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"edges": edges})
}

func (h *Handler) DeleteChain(c *fiber.Ctx) error {
	ok, err := h.svc.Chains.DeleteChain(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "competition not found"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ExecuteDraw(c *fiber.Ctx) error {
	drawn, err := h.svc.Draws.ExecuteDraw(c.UserContext(), c.Params("stage_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"drawn": drawn})
}
