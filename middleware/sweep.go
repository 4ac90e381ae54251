package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type CompetitionSweeper interface {
	Sweep(ctx context.Context, competitionID string) (int, error)
}

// SweepCompetition advances timed-out entries of the :id competition before
// the request is served. A failed sweep is logged and does not block reads;
// notFound errors are left for the handler to report.
func SweepCompetition(sweeper CompetitionSweeper, notFound error, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return c.Next()
		}
		if _, err := sweeper.Sweep(c.UserContext(), id); err != nil && !errors.Is(err, notFound) {
			logger.Error("request sweep failed", "layer", "middleware", "competition_id", id, "error", err)
		}
		return c.Next()
	}
}
