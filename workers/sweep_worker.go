package workers

import (
	"context"
	"log/slog"
	"time"

	"competition-engine/models"
)

type CompetitionLister interface {
	ListCompetitions(ctx context.Context) ([]models.Competition, error)
}

type Sweeper interface {
	Sweep(ctx context.Context, competitionID string) (int, error)
}

// SweepWorker periodically advances timed-out entries of every competition.
type SweepWorker struct {
	Competitions CompetitionLister
	Entries      Sweeper
	Logger       *slog.Logger
}

func NewSweepWorker(competitions CompetitionLister, entries Sweeper, logger *slog.Logger) *SweepWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepWorker{
		Competitions: competitions,
		Entries:      entries,
		Logger:       logger.With("module", "sweep_worker", "layer", "worker"),
	}
}

// RunOnce sweeps every competition once. A failing competition is logged and
// skipped. It returns the number of entries moved.
func (w *SweepWorker) RunOnce(ctx context.Context) (int, error) {
	comps, err := w.Competitions.ListCompetitions(ctx)
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, comp := range comps {
		if ctx.Err() != nil {
			return moved, ctx.Err()
		}
		n, err := w.Entries.Sweep(ctx, comp.ID)
		if err != nil {
			w.Logger.Error("sweep failed", "competition_id", comp.ID, "error", err)
			continue
		}
		moved += n
	}
	return moved, nil
}

// Poll runs RunOnce every interval until ctx is done.
func (w *SweepWorker) Poll(ctx context.Context, interval time.Duration) {
	w.Logger.Info("starting sweep polling", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("sweep polling stopped")
			return
		case <-ticker.C:
			moved, err := w.RunOnce(ctx)
			if err != nil {
				w.Logger.Error("sweep pass failed", "error", err)
				continue
			}
			if moved > 0 {
				w.Logger.Info("sweep pass finished", "moved", moved)
			}
		}
	}
}
