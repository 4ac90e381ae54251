package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"competition-engine/models"
	"competition-engine/storage"

	"github.com/google/uuid"
)

const keyEntryUpdate = "EntryUpdate"

// EntryService places entries in a chain and moves them along it.
type EntryService struct {
	*core
	draws *DrawService
}

// Submit creates an entry at the chain's start stage. A hard-fail rejects it
// without persisting anything.
func (s *EntryService) Submit(ctx context.Context, competitionID string, entry models.Entry) (models.Entry, error) {
	unlock := s.locks.Lock(competitionID)
	defer unlock()

	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return entry, err
	}

	exists, err := s.store.PlayerExists(ctx, competitionID, entry.PlayerID)
	if err != nil {
		return entry, fmt.Errorf("check player: %w", err)
	}
	if entry.PlayerID == "" || !exists {
		return entry, single(keyEntryFailed, "Player doesn't exist for this competition. No entry was added.")
	}
	if !graph.HasChain() {
		return entry, ErrNoChain
	}

	now := s.now()
	entry.ID = uuid.NewString()
	entry.CompetitionID = competitionID
	entry.CreatedAt = now

	edge, start, ok := startStage(graph, now)
	if !ok {
		return entry, ErrNoChain
	}

	errs := NewErrorList()
	switch s.rules.Evaluate(entry, start, graph.Entries, now, errs) {
	case VerdictHardFail:
		return entry, errs
	case VerdictSoftFail:
		entry.State = start.ID
		if id, ok := edge.Fail(); ok {
			entry.State = id
		}
	default:
		entry.State = start.ID
		if id, ok := edge.Success(); ok {
			entry.State = id
		}
	}

	if err := s.store.CreateEntry(ctx, &entry); err != nil {
		return entry, fmt.Errorf("create entry: %w", err)
	}
	s.logger.Info("entry submitted",
		"event", "entry_submitted",
		"competition_id", competitionID,
		"entry_id", entry.ID,
		"state", entry.State,
	)
	return entry, nil
}

// startStage picks the first start stage in chain order whose window holds
// now, falling back to the first start stage.
func startStage(graph models.CompetitionGraph, now time.Time) (models.ChainEdge, models.Stage, bool) {
	starts := graph.StartEdges()
	if len(starts) == 0 {
		return models.ChainEdge{}, models.Stage{}, false
	}
	for _, e := range starts {
		if st, ok := graph.Stages[e.StageID]; ok && st.OpenAt(now) {
			return e, st, true
		}
	}
	st, ok := graph.Stages[starts[0].StageID]
	return starts[0], st, ok
}

// Sweep advances every entry whose timed stage has ended. It returns the
// number of entries moved.
func (s *EntryService) Sweep(ctx context.Context, competitionID string) (int, error) {
	unlock := s.locks.Lock(competitionID)
	defer unlock()

	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return 0, err
	}
	if !graph.HasChain() {
		return 0, nil
	}

	now := s.now()
	var moves []models.Move
	for _, e := range graph.Entries {
		if mv, ok := s.autoAdvance(graph, e, now); ok {
			moves = append(moves, mv)
		}
	}
	applied, err := s.commit(ctx, competitionID, models.Changeset{Moves: moves})
	if err != nil {
		return 0, err
	}
	if len(applied) > 0 {
		s.logger.Info("competition swept",
			"event", "competition_swept",
			"competition_id", competitionID,
			"moved", len(applied),
		)
	}
	return len(applied), nil
}

// SweepEntry applies the sweep to a single entry and returns its current
// version.
func (s *EntryService) SweepEntry(ctx context.Context, entryID string) (models.Entry, error) {
	found, err := s.findEntry(ctx, entryID)
	if err != nil {
		return found, err
	}
	unlock := s.locks.Lock(found.CompetitionID)
	defer unlock()

	graph, err := s.load(ctx, found.CompetitionID)
	if err != nil {
		return found, err
	}
	entry, ok := graph.Entry(entryID)
	if !ok {
		return found, ErrEntryNotFound
	}
	mv, ok := s.autoAdvance(graph, entry, s.now())
	if !ok {
		return entry, nil
	}
	applied, err := s.commit(ctx, entry.CompetitionID, models.Changeset{Moves: []models.Move{mv}})
	if err != nil {
		return entry, err
	}
	if len(applied) == 1 {
		entry.State = mv.To
	}
	return entry, nil
}

// autoAdvance only ever moves entries out of ended Moderate stages, and only
// to the fail stage. Success always needs an explicit decision.
func (s *EntryService) autoAdvance(graph models.CompetitionGraph, entry models.Entry, now time.Time) (models.Move, bool) {
	if entry.Terminal() {
		return models.Move{}, false
	}
	stage, ok := graph.Stages[entry.State]
	if !ok {
		return models.Move{}, false
	}
	edge, ok := graph.Edges[entry.State]
	if !ok {
		return models.Move{}, false
	}
	if stage.TransitionMode != models.TransitionTimed || stage.ManualAdvance || !stage.ClosedAt(now) {
		return models.Move{}, false
	}
	if stage.Type != models.StageModerate {
		return models.Move{}, false
	}
	failID, ok := edge.Fail()
	if !ok {
		return models.Move{}, false
	}
	target, ok := graph.Stages[failID]
	if !ok {
		return models.Move{}, false
	}
	if s.rules.Evaluate(entry, target, graph.Entries, now, NewErrorList()) != VerdictOK {
		return models.Move{}, false
	}
	return models.Move{EntryID: entry.ID, From: entry.State, To: failID}, true
}

// ManualAdvance pushes an entry out of a stage flagged for manual advance.
// On a random draw stage it runs the draw instead and reports whether one
// happened.
func (s *EntryService) ManualAdvance(ctx context.Context, entryID string) (bool, error) {
	found, err := s.findEntry(ctx, entryID)
	if err != nil {
		return false, err
	}
	unlock := s.locks.Lock(found.CompetitionID)
	defer unlock()

	graph, err := s.load(ctx, found.CompetitionID)
	if err != nil {
		return false, err
	}
	entry, ok := graph.Entry(entryID)
	if !ok {
		return false, ErrEntryNotFound
	}
	if entry.Terminal() {
		return false, single(keyEntryUpdate, "Entry has been deactivated.")
	}
	stage, ok := graph.Stages[entry.State]
	if !ok {
		return false, single(keyEntryUpdate, "Entry is not in a stage of the chain.")
	}
	edge, ok := graph.Edges[entry.State]
	if !ok {
		return false, ErrNoChain
	}
	if !stage.ManualAdvance || stage.TransitionMode != models.TransitionTimed {
		return false, single(keyEntryUpdate, "Stage does not allow manual advance.")
	}

	switch stage.Type {
	case models.StageRandomDraw:
		return s.draws.executeLocked(ctx, graph, stage.ID)
	case models.StageModerate:
		return false, single(keyEntryUpdate, "Moderate stages are advanced through moderation.")
	}

	now := s.now()
	errs := NewErrorList()
	var targets []string
	if id, ok := edge.Success(); ok {
		targets = append(targets, id)
	}
	if id, ok := edge.Fail(); ok {
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		return false, single(keyEntryUpdate, "Stage has no success or fail stage.")
	}

	for _, id := range targets {
		target, ok := graph.Stages[id]
		if !ok {
			continue
		}
		attempt := NewErrorList()
		if s.rules.Evaluate(entry, target, graph.Entries, now, attempt) != VerdictOK {
			errs.Merge(attempt)
			continue
		}
		applied, err := s.commit(ctx, entry.CompetitionID, models.Changeset{
			Moves: []models.Move{{EntryID: entry.ID, From: entry.State, To: id}},
		})
		if err != nil {
			return false, err
		}
		if len(applied) == 0 {
			return false, single(keyEntryUpdate, "Entry state changed before it could be advanced.")
		}
		s.logger.Info("entry advanced manually", "event", "entry_advanced", "entry_id", entry.ID, "from", entry.State, "to", id)
		return true, nil
	}
	return false, errs
}

// UpdateState moves an entry along one of its current stage's edges after
// checking the destination stage rules.
func (s *EntryService) UpdateState(ctx context.Context, entryID, requested string) (models.Entry, error) {
	found, err := s.findEntry(ctx, entryID)
	if err != nil {
		return found, err
	}
	unlock := s.locks.Lock(found.CompetitionID)
	defer unlock()

	graph, err := s.load(ctx, found.CompetitionID)
	if err != nil {
		return found, err
	}
	entry, ok := graph.Entry(entryID)
	if !ok {
		return found, ErrEntryNotFound
	}

	edge, ok := graph.Edges[entry.State]
	if !ok || requested == "" || !edge.Targets(requested) {
		return entry, single(keyEntryUpdate, "Update to entry state failed, cannot move to proposed state from current state.")
	}
	target, ok := graph.Stages[requested]
	if !ok {
		return entry, single(keyBadReference, fmt.Sprintf("Stage Id %s does not exist.", requested))
	}

	errs := NewErrorList()
	if s.rules.Evaluate(entry, target, graph.Entries, s.now(), errs) != VerdictOK {
		return entry, errs
	}

	applied, err := s.commit(ctx, entry.CompetitionID, models.Changeset{
		Moves: []models.Move{{EntryID: entry.ID, From: entry.State, To: requested}},
	})
	if err != nil {
		return entry, err
	}
	if len(applied) == 0 {
		return entry, single(keyEntryUpdate, "Entry state changed before the update could be applied.")
	}
	entry.State = requested
	return entry, nil
}

// DeleteEntry removes an entry from its competition. It returns false when
// the entry does not exist there.
func (s *EntryService) DeleteEntry(ctx context.Context, competitionID, entryID string) (bool, error) {
	unlock := s.locks.Lock(competitionID)
	defer unlock()

	err := s.store.DeleteEntry(ctx, competitionID, entryID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete entry %s: %w", entryID, err)
	}
	s.logger.Info("entry deleted", "event", "entry_deleted", "competition_id", competitionID, "entry_id", entryID)
	return true, nil
}

func (s *EntryService) GetEntry(ctx context.Context, entryID string) (models.Entry, error) {
	return s.findEntry(ctx, entryID)
}

// ListEntries returns the competition's entries that are still in the chain.
func (s *EntryService) ListEntries(ctx context.Context, competitionID string) ([]models.Entry, error) {
	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Entry, 0, len(graph.Entries))
	for _, e := range graph.Entries {
		if !e.Terminal() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
