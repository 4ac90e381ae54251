package handlers

import (
	"errors"
	"log/slog"

	"competition-engine/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps service errors onto HTTP responses.
func respondError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	if list, ok := services.AsErrorList(err); ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": list.Items()})
	}
	switch {
	case errors.Is(err, services.ErrCompetitionNotFound),
		errors.Is(err, services.ErrStageNotFound),
		errors.Is(err, services.ErrEntryNotFound),
		errors.Is(err, services.ErrPlayerNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNoChain):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	logger.Error("request failed", "layer", "handler", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
