package services

import (
	"context"
	"fmt"

	"competition-engine/models"
)

// MaxModerationBatch bounds the decisions applied by one Moderate call.
const MaxModerationBatch = 30

const keyModeration = "Moderation"

type ModerationDecision struct {
	EntryID string `json:"entry_id"`
	Accept  bool   `json:"accept"`
}

type ModerationResult struct {
	EntryID string `json:"entry_id"`
	State   string `json:"state,omitempty"`
	Moved   bool   `json:"moved"`
	Message string `json:"message"`
}

type ModerationService struct {
	*core
}

// Moderate applies accept/reject decisions to entries parked in a moderation
// stage. Each decision gets its own result; the moves are committed together.
func (s *ModerationService) Moderate(ctx context.Context, competitionID, stageID string, decisions []ModerationDecision) ([]ModerationResult, error) {
	unlock := s.locks.Lock(competitionID)
	defer unlock()

	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	stage, ok := graph.Stages[stageID]
	if !ok || stage.Type != models.StageModerate {
		return nil, single(keyModeration, fmt.Sprintf("Stage %s is not a moderation stage of this competition.", stageID))
	}
	edge, ok := graph.Edges[stageID]
	if !ok {
		return nil, ErrNoChain
	}

	current := make(map[string]string, len(graph.Entries))
	for _, e := range graph.Entries {
		current[e.ID] = e.State
	}

	results := make([]ModerationResult, 0, len(decisions))
	var moves []models.Move
	moveResult := map[string]int{}

	for i, d := range decisions {
		res := ModerationResult{EntryID: d.EntryID}
		if i >= MaxModerationBatch {
			res.Message = fmt.Sprintf("Not processed, a batch holds at most %d decisions.", MaxModerationBatch)
			results = append(results, res)
			continue
		}

		state, found := current[d.EntryID]
		switch {
		case !found:
			res.Message = "Entry not found."
		case state == models.TerminalState:
			res.State = state
			res.Message = "Entry has been deactivated."
		case state != stageID:
			res.State = state
			if st, ok := graph.Stages[state]; ok && st.Type == models.StageModerate {
				res.Message = "Entry not in this moderation stage."
			} else {
				res.Message = "Entry not in a moderation stage."
			}
		default:
			to, msg, ok := moderationTarget(edge, d.Accept)
			res.State = state
			res.Message = msg
			if ok {
				res.State = to
				res.Moved = true
				current[d.EntryID] = to
				moveResult[d.EntryID] = len(results)
				moves = append(moves, models.Move{EntryID: d.EntryID, From: stageID, To: to})
			}
		}
		results = append(results, res)
	}

	applied, err := s.commit(ctx, competitionID, models.Changeset{Moves: moves})
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, m := range applied {
		done[m.EntryID] = true
	}
	for _, m := range moves {
		if done[m.EntryID] {
			continue
		}
		r := &results[moveResult[m.EntryID]]
		r.Moved = false
		r.State = stageID
		r.Message = "Entry state changed before the decision was applied."
	}

	s.logger.Info("moderation applied",
		"event", "moderation_applied",
		"competition_id", competitionID,
		"stage_id", stageID,
		"decisions", len(decisions),
		"moved", len(applied),
	)
	return results, nil
}

func moderationTarget(edge models.ChainEdge, accept bool) (string, string, bool) {
	if accept {
		id, ok := edge.Success()
		if !ok {
			return "", "Moderation stage has no success stage.", false
		}
		return id, fmt.Sprintf("Entry accepted and moved to stage %s.", id), true
	}
	if id, ok := edge.Fail(); ok {
		return id, fmt.Sprintf("Entry rejected and moved to stage %s.", id), true
	}
	return models.TerminalState, "Entry rejected and deactivated.", true
}

// ListModerationEntries returns the entries waiting in the given moderation
// stage, or in any moderation stage when stageID is empty.
func (s *ModerationService) ListModerationEntries(ctx context.Context, competitionID, stageID string) ([]models.Entry, error) {
	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if stageID != "" {
		st, ok := graph.Stages[stageID]
		if !ok || st.Type != models.StageModerate {
			return nil, single(keyModeration, fmt.Sprintf("Stage %s is not a moderation stage of this competition.", stageID))
		}
		return graph.EntriesAt(stageID), nil
	}
	var out []models.Entry
	for _, e := range graph.Entries {
		if st, ok := graph.Stages[e.State]; ok && st.Type == models.StageModerate {
			out = append(out, e)
		}
	}
	return out, nil
}
