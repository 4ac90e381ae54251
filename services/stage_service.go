package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"competition-engine/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type StageService struct {
	*core
	draws *DrawService
}

// StagePatch lists the stage fields that may change after creation. Nil
// fields are left untouched. The stage type never changes.
type StagePatch struct {
	Name           *string                `json:"name"`
	StartTime      *time.Time             `json:"start_time"`
	EndTime        *time.Time             `json:"end_time"`
	TransitionMode *models.TransitionMode `json:"transition_mode"`
	ManualAdvance  *bool                  `json:"manual_advance"`
	Rules          json.RawMessage        `json:"rules"`
}

// CreateStage adds a stage to a competition that has no chain yet.
func (s *StageService) CreateStage(ctx context.Context, competitionID string, st models.Stage) (models.Stage, error) {
	unlock := s.locks.Lock(competitionID)
	defer unlock()

	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return st, err
	}
	if graph.HasChain() {
		return st, single(keyChain, "Delete the chain before adding stages.")
	}

	st.ID = uuid.NewString()
	st.CompetitionID = competitionID
	st.StartTime = st.StartTime.UTC()
	st.EndTime = st.EndTime.UTC()
	if st.TransitionMode == "" {
		st.TransitionMode = models.TransitionTimed
	}
	st.State = nil
	if st.Type == models.StageRandomDraw {
		st.SetDrawState(models.DrawState{})
	}

	errs := NewErrorList()
	if !ValidateStage(st, errs) {
		return st, errs
	}
	if err := s.store.CreateStage(ctx, &st); err != nil {
		return st, fmt.Errorf("create stage: %w", err)
	}
	s.logger.Info("stage created", "event", "stage_created", "competition_id", competitionID, "stage_id", st.ID, "type", st.Type)
	return st, nil
}

func (s *StageService) GetStage(ctx context.Context, stageID string) (models.Stage, error) {
	return s.findStage(ctx, stageID)
}

// ListStages returns the stages in chain order, or by start time when the
// competition has no chain.
func (s *StageService) ListStages(ctx context.Context, competitionID string) ([]models.Stage, error) {
	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Stage, 0, len(graph.Stages))
	for _, st := range graph.Stages {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		ei, ej := graph.Edges[out[i].ID], graph.Edges[out[j].ID]
		if ei.Position != ej.Position {
			return ei.Position < ej.Position
		}
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateStage applies a patch. When the competition has a chain the whole
// chain is validated again, and a pending draw is rescheduled if its end
// time moved.
func (s *StageService) UpdateStage(ctx context.Context, stageID string, patch StagePatch) (models.Stage, error) {
	found, err := s.findStage(ctx, stageID)
	if err != nil {
		return found, err
	}
	unlock := s.locks.Lock(found.CompetitionID)
	defer unlock()

	graph, err := s.load(ctx, found.CompetitionID)
	if err != nil {
		return found, err
	}
	stage, ok := graph.Stages[stageID]
	if !ok {
		return found, ErrStageNotFound
	}
	before := stage

	if patch.Name != nil {
		stage.Name = *patch.Name
	}
	if patch.StartTime != nil {
		stage.StartTime = patch.StartTime.UTC()
	}
	if patch.EndTime != nil {
		stage.EndTime = patch.EndTime.UTC()
	}
	if patch.TransitionMode != nil {
		stage.TransitionMode = *patch.TransitionMode
	}
	if patch.ManualAdvance != nil {
		stage.ManualAdvance = *patch.ManualAdvance
	}
	if len(patch.Rules) > 0 {
		if _, err := models.DecodeRules(stage.Type, patch.Rules); err != nil {
			return before, single("Stage", "Stage rules could not be read.")
		}
		stage.RuleSet = datatypes.JSON(patch.Rules)
	}

	errs := NewErrorList()
	if !ValidateStage(stage, errs) {
		return before, errs
	}
	if graph.HasChain() {
		graph.Stages[stageID] = stage
		if !ValidateChain(graph.Stages, graph.OrderedEdges(), errs) {
			return before, errs
		}
	}

	if err := s.store.UpdateStage(ctx, stage); err != nil {
		return before, fmt.Errorf("update stage: %w", err)
	}

	if graph.HasChain() && stage.Type == models.StageRandomDraw && !stage.EndTime.Equal(before.EndTime) {
		state, err := stage.DrawState()
		if err != nil {
			return stage, err
		}
		if !state.Drawn {
			if stage, err = s.draws.Schedule(ctx, stage); err != nil {
				return stage, err
			}
		}
	}
	s.logger.Info("stage updated", "event", "stage_updated", "competition_id", stage.CompetitionID, "stage_id", stageID)
	return stage, nil
}

// DeleteStage removes a stage and any entry sitting at it. A chained stage is
// only removed with cascade, which deletes the whole chain first. It returns
// false when the stage does not exist.
func (s *StageService) DeleteStage(ctx context.Context, stageID string, cascade bool) (bool, error) {
	found, err := s.findStage(ctx, stageID)
	if errors.Is(err, ErrStageNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	unlock := s.locks.Lock(found.CompetitionID)
	defer unlock()

	graph, err := s.load(ctx, found.CompetitionID)
	if errors.Is(err, ErrCompetitionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	stage, ok := graph.Stages[stageID]
	if !ok {
		return false, nil
	}

	if graph.HasChain() {
		if !cascade {
			return false, single(keyChain, "Stage is part of the chain. Delete the chain before deleting stages.")
		}
		if err := s.draws.cancelAll(ctx, graph); err != nil {
			return false, err
		}
		if err := s.store.DeleteChain(ctx, graph.Competition.ID); err != nil {
			return false, fmt.Errorf("delete chain: %w", err)
		}
		s.logger.Info("chain deleted", "event", "chain_deleted", "competition_id", graph.Competition.ID, "reason", "stage_deleted")
	} else if stage.Type == models.StageRandomDraw {
		if _, err := s.draws.Cancel(ctx, stage); err != nil {
			return false, err
		}
	}

	if err := s.store.DeleteStage(ctx, graph.Competition.ID, stageID); err != nil {
		return false, fmt.Errorf("delete stage: %w", err)
	}
	s.logger.Info("stage deleted", "event", "stage_deleted", "competition_id", graph.Competition.ID, "stage_id", stageID)
	return true, nil
}
