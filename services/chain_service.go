package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"competition-engine/models"
)

type ChainService struct {
	*core
	draws *DrawService
}

// BuildChain validates and commits the chain of a competition, then schedules
// a draw job for every random draw stage. Edges are stored in stage end time
// order.
func (s *ChainService) BuildChain(ctx context.Context, competitionID string, edges []models.ChainEdge) ([]models.ChainEdge, error) {
	unlock := s.locks.Lock(competitionID)
	defer unlock()

	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if graph.HasChain() {
		return nil, single(keyChain, "A chain already exists for this competition.")
	}
	if len(graph.Stages) == 0 {
		return nil, single(keyChain, "Create stages before adding the chain.")
	}

	errs := NewErrorList()
	if !ValidateChain(graph.Stages, edges, errs) {
		return nil, errs
	}

	committed := make([]models.ChainEdge, len(edges))
	copy(committed, edges)
	sort.SliceStable(committed, func(i, j int) bool {
		a, b := graph.Stages[committed[i].StageID], graph.Stages[committed[j].StageID]
		if !a.EndTime.Equal(b.EndTime) {
			return a.EndTime.Before(b.EndTime)
		}
		return a.ID < b.ID
	})
	for i := range committed {
		committed[i].CompetitionID = competitionID
		committed[i].Position = i
	}

	if err := s.store.SaveChain(ctx, competitionID, committed); err != nil {
		return nil, fmt.Errorf("save chain: %w", err)
	}

	for _, e := range committed {
		st := graph.Stages[e.StageID]
		if st.Type != models.StageRandomDraw {
			continue
		}
		if _, err := s.draws.Schedule(ctx, st); err != nil {
			return committed, err
		}
	}

	s.logger.Info("chain built",
		"event", "chain_built",
		"competition_id", competitionID,
		"stages", len(committed),
	)
	return committed, nil
}

// GetChain returns the committed edges in chain order.
func (s *ChainService) GetChain(ctx context.Context, competitionID string) ([]models.ChainEdge, error) {
	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if !graph.HasChain() {
		return nil, ErrNoChain
	}
	return graph.OrderedEdges(), nil
}

// DeleteChain cancels the competition's draw jobs and removes its chain,
// entries and players. It returns false when the competition does not exist.
func (s *ChainService) DeleteChain(ctx context.Context, competitionID string) (bool, error) {
	unlock := s.locks.Lock(competitionID)
	defer unlock()

	graph, err := s.load(ctx, competitionID)
	if errors.Is(err, ErrCompetitionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.draws.cancelAll(ctx, graph); err != nil {
		return false, err
	}
	if err := s.store.DeleteChain(ctx, competitionID); err != nil {
		return false, fmt.Errorf("delete chain: %w", err)
	}

	s.logger.Info("chain deleted",
		"event", "chain_deleted",
		"competition_id", competitionID,
		"entries", len(graph.Entries),
		"players", len(graph.Players),
	)
	return true, nil
}
