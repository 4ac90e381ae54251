// handlers/entries.go
package handlers

import (
	"encoding/json"

	"competition-engine/middleware"
	"competition-engine/models"
	"competition-engine/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

func setupEntryRoutes(router fiber.Router, h *Handler) {
	sweep := middleware.SweepCompetition(h.svc.Entries, services.ErrCompetitionNotFound, h.logger)

	router.Post("/competitions/:id/sweep", h.Sweep)
	router.Post("/competitions/:id/entries", h.Submit)
	router.Get("/competitions/:id/entries", sweep, h.ListEntries)
	router.Get("/competitions/:id/entries/:entry_id", h.GetEntry)
	router.Patch("/competitions/:id/entries/:entry_id/state", h.UpdateEntryState)
	router.Post("/competitions/:id/entries/:entry_id/advance", h.ManualAdvance)
	router.Delete("/competitions/:id/entries/:entry_id", middleware.RequireRole(RoleAdmin), h.DeleteEntry)
}

type submitEntryRequest struct {
	PlayerID string          `json:"player_id"`
	Metadata json.RawMessage `json:"metadata"`
}

func (h *Handler) Submit(c *fiber.Ctx) error {
	var req submitEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	entry, err := h.svc.Entries.Submit(c.UserContext(), c.Params("id"), models.Entry{
		PlayerID: req.PlayerID,
		Metadata: datatypes.JSON(req.Metadata),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

func (h *Handler) Sweep(c *fiber.Ctx) error {
	moved, err := h.svc.Entries.Sweep(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"swept": true, "moved": moved})
}

func (h *Handler) ListEntries(c *fiber.Ctx) error {
	entries, err := h.svc.Entries.ListEntries(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(entries)
}

// entryInCompetition loads the :entry_id entry, swept, and checks it belongs
// to the :id competition.
func (h *Handler) entryInCompetition(c *fiber.Ctx) (models.Entry, error) {
	entry, err := h.svc.Entries.SweepEntry(c.UserContext(), c.Params("entry_id"))
	if err != nil {
		return entry, err
	}
	if entry.CompetitionID != c.Params("id") {
		return entry, services.ErrEntryNotFound
	}
	return entry, nil
}

func (h *Handler) DeleteEntry(c *fiber.Ctx) error {
	ok, err := h.svc.Entries.DeleteEntry(c.UserContext(), c.Params("id"), c.Params("entry_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if !ok {
		return respondError(c, h.logger, services.ErrEntryNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) GetEntry(c *fiber.Ctx) error {
	entry, err := h.entryInCompetition(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(entry)
}

type updateStateRequest struct {
	State string `json:"state"`
}

func (h *Handler) UpdateEntryState(c *fiber.Ctx) error {
	var req updateStateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	entry, err := h.entryInCompetition(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	entry, err = h.svc.Entries.UpdateState(c.UserContext(), entry.ID, req.State)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(entry)
}

func (h *Handler) ManualAdvance(c *fiber.Ctx) error {
	entry, err := h.entryInCompetition(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	advanced, err := h.svc.Entries.ManualAdvance(c.UserContext(), entry.ID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"advanced": advanced})
}
