package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"competition-engine/models"
	"competition-engine/storage"
)

const keyDraw = "Draw"

const maxDrawAttempts = 3

// DrawService schedules and executes random draws. A draw runs at most once
// per stage: either from its scheduled job or from a manual advance.
type DrawService struct {
	*core
	scheduler Scheduler
	archive   DrawArchive
	timeout   time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Schedule replaces any pending job of the stage with a new one firing at
// the stage end time, and resets the stage to not drawn.
func (d *DrawService) Schedule(ctx context.Context, stage models.Stage) (models.Stage, error) {
	state, err := stage.DrawState()
	if err != nil {
		return stage, err
	}
	if state.JobHandle != "" {
		if err := d.scheduler.Cancel(state.JobHandle); err != nil {
			return stage, fmt.Errorf("cancel draw job of stage %s: %w", stage.ID, err)
		}
	}

	stageID := stage.ID
	handle, err := d.scheduler.ScheduleOnce(stage.EndTime, "draw-"+stageID, func() {
		d.runScheduled(stageID)
	})
	if err != nil {
		return stage, fmt.Errorf("schedule draw of stage %s: %w", stageID, err)
	}

	stage.SetDrawState(models.DrawState{Drawn: false, JobHandle: handle})
	if err := d.store.UpdateStage(ctx, stage); err != nil {
		_ = d.scheduler.Cancel(handle)
		return stage, fmt.Errorf("save draw state of stage %s: %w", stageID, err)
	}
	d.logger.Info("draw scheduled",
		"event", "draw_scheduled",
		"competition_id", stage.CompetitionID,
		"stage_id", stageID,
		"at", stage.EndTime,
	)
	return stage, nil
}

// Cancel removes the pending job of the stage and clears its draw state.
func (d *DrawService) Cancel(ctx context.Context, stage models.Stage) (models.Stage, error) {
	state, err := stage.DrawState()
	if err != nil {
		return stage, err
	}
	if state.JobHandle != "" {
		if err := d.scheduler.Cancel(state.JobHandle); err != nil {
			return stage, fmt.Errorf("cancel draw job of stage %s: %w", stage.ID, err)
		}
	}
	stage.SetDrawState(models.DrawState{})
	if err := d.store.UpdateStage(ctx, stage); err != nil {
		return stage, fmt.Errorf("save draw state of stage %s: %w", stage.ID, err)
	}
	d.logger.Info("draw cancelled", "event", "draw_cancelled", "competition_id", stage.CompetitionID, "stage_id", stage.ID)
	return stage, nil
}

func (d *DrawService) cancelAll(ctx context.Context, graph models.CompetitionGraph) error {
	for _, st := range graph.StagesOfType(models.StageRandomDraw) {
		if _, err := d.Cancel(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteDraw draws the winners of a random draw stage. It returns true when
// the stage is drawn, including when it already was, and false when no entry
// sits at the stage.
func (d *DrawService) ExecuteDraw(ctx context.Context, stageID string) (bool, error) {
	stage, err := d.findStage(ctx, stageID)
	if err != nil {
		return false, err
	}
	unlock := d.locks.Lock(stage.CompetitionID)
	defer unlock()

	graph, err := d.load(ctx, stage.CompetitionID)
	if err != nil {
		return false, err
	}
	return d.executeLocked(ctx, graph, stageID)
}

// executeLocked expects the competition lock to be held by the caller. A draw
// whose candidates moved before the commit is retried on a fresh snapshot.
func (d *DrawService) executeLocked(ctx context.Context, graph models.CompetitionGraph, stageID string) (bool, error) {
	for attempt := 1; ; attempt++ {
		drawn, err := d.drawOnce(ctx, graph, stageID)
		if !errors.Is(err, storage.ErrStale) {
			return drawn, err
		}
		if attempt == maxDrawAttempts {
			return false, fmt.Errorf("draw stage %s: candidates kept changing: %w", stageID, err)
		}
		d.logger.Warn("draw candidates changed, retrying",
			"event", "draw_retry",
			"competition_id", graph.Competition.ID,
			"stage_id", stageID,
			"attempt", attempt,
		)
		if graph, err = d.load(ctx, graph.Competition.ID); err != nil {
			return false, err
		}
	}
}

func (d *DrawService) drawOnce(ctx context.Context, graph models.CompetitionGraph, stageID string) (bool, error) {
	stage, ok := graph.Stages[stageID]
	if !ok {
		return false, ErrStageNotFound
	}
	rules, err := stage.Rules()
	if err != nil {
		return false, err
	}
	drawRules, ok := rules.(models.RandomDrawRules)
	if !ok {
		return false, single(keyDraw, fmt.Sprintf("Stage %s is not a random draw stage.", stageID))
	}
	state, err := stage.DrawState()
	if err != nil {
		return false, err
	}
	if state.Drawn {
		return true, nil
	}

	edge, ok := graph.Edges[stageID]
	if !ok {
		return false, ErrNoChain
	}
	target, ok := edge.Success()
	if !ok {
		return false, single(keyDraw, "Random draw stage has no success stage.")
	}

	candidates := graph.EntriesAt(stageID)
	if len(candidates) == 0 {
		d.logger.Info("draw skipped, no entries",
			"event", "draw_empty",
			"competition_id", graph.Competition.ID,
			"stage_id", stageID,
		)
		return false, nil
	}

	winners := d.pick(candidates, drawRules.Winners)
	moves := make([]models.Move, 0, len(winners))
	for _, w := range winners {
		moves = append(moves, models.Move{EntryID: w.ID, From: stageID, To: target})
	}

	applied, err := d.commit(ctx, graph.Competition.ID, models.Changeset{
		Moves:    moves,
		Draw:     stageID,
		AllMoves: true,
	})
	if errors.Is(err, storage.ErrAlreadyDrawn) {
		d.logger.Info("draw already executed",
			"event", "draw_already_executed",
			"competition_id", graph.Competition.ID,
			"stage_id", stageID,
		)
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if state.JobHandle != "" {
		if err := d.scheduler.Cancel(state.JobHandle); err != nil {
			d.logger.Warn("cancel draw job failed", "stage_id", stageID, "error", err)
		}
	}

	result := models.DrawResult{
		CompetitionID: graph.Competition.ID,
		StageID:       stageID,
		TargetStageID: target,
		Requested:     drawRules.Winners,
		Candidates:    len(candidates),
		DrawnAt:       d.now(),
	}
	for _, m := range applied {
		result.Winners = append(result.Winners, m.EntryID)
	}
	if err := d.archive.SaveDraw(ctx, result); err != nil {
		d.logger.Error("archive draw result failed", "event", "draw_archive_failed", "stage_id", stageID, "error", err)
	}
	d.logger.Info("draw executed",
		"event", "draw_executed",
		"competition_id", graph.Competition.ID,
		"stage_id", stageID,
		"candidates", len(candidates),
		"winners", len(applied),
	)
	return true, nil
}

// pick samples min(want, len(candidates)) entries without replacement.
func (d *DrawService) pick(candidates []models.Entry, want int) []models.Entry {
	d.rngMu.Lock()
	perm := d.rng.Perm(len(candidates))
	d.rngMu.Unlock()

	n := min(want, len(candidates))
	out := make([]models.Entry, 0, n)
	for _, i := range perm[:n] {
		out = append(out, candidates[i])
	}
	return out
}

func (d *DrawService) runScheduled(stageID string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	drawn, err := d.ExecuteDraw(ctx, stageID)
	switch {
	case errors.Is(err, ErrStageNotFound), errors.Is(err, ErrCompetitionNotFound):
		d.logger.Info("draw job fired for a removed stage", "stage_id", stageID)
	case err != nil:
		d.logger.Error("scheduled draw failed", "event", "draw_failed", "stage_id", stageID, "error", err)
	default:
		d.logger.Info("scheduled draw finished", "stage_id", stageID, "drawn", drawn)
	}
}

// Restore schedules the pending draws of every chained competition. Job
// handles do not survive a restart, so it runs once at startup.
func (d *DrawService) Restore(ctx context.Context) (int, error) {
	comps, err := d.store.ListCompetitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list competitions: %w", err)
	}
	restored := 0
	for _, comp := range comps {
		n, err := d.restoreCompetition(ctx, comp.ID)
		if err != nil {
			return restored, err
		}
		restored += n
	}
	return restored, nil
}

func (d *DrawService) restoreCompetition(ctx context.Context, competitionID string) (int, error) {
	unlock := d.locks.Lock(competitionID)
	defer unlock()

	graph, err := d.load(ctx, competitionID)
	if err != nil {
		return 0, err
	}
	if !graph.HasChain() {
		return 0, nil
	}
	n := 0
	for _, st := range graph.StagesOfType(models.StageRandomDraw) {
		state, err := st.DrawState()
		if err != nil {
			return n, err
		}
		if state.Drawn {
			continue
		}
		if _, err := d.Schedule(ctx, st); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
