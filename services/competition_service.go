package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"competition-engine/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type CompetitionService struct {
	*core
	draws *DrawService
}

func (s *CompetitionService) CreateCompetition(ctx context.Context, c models.Competition) (models.Competition, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return c, single("Competition", "Competition title is required.")
	}
	now := s.now()
	c.ID = uuid.NewString()
	c.Slug = slug.Make(c.Title)
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.store.CreateCompetition(ctx, &c); err != nil {
		return c, fmt.Errorf("create competition: %w", err)
	}
	s.logger.Info("competition created", "event", "competition_created", "competition_id", c.ID, "slug", c.Slug)
	return c, nil
}

func (s *CompetitionService) GetCompetition(ctx context.Context, id string) (models.Competition, error) {
	graph, err := s.load(ctx, id)
	if err != nil {
		return models.Competition{}, err
	}
	return graph.Competition, nil
}

func (s *CompetitionService) ListCompetitions(ctx context.Context) ([]models.Competition, error) {
	comps, err := s.store.ListCompetitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	return comps, nil
}

// CompetitionPatch lists the competition fields that may change. Nil fields
// are left untouched.
type CompetitionPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// UpdateCompetition applies a patch. A new title also gets a new slug.
func (s *CompetitionService) UpdateCompetition(ctx context.Context, id string, patch CompetitionPatch) (models.Competition, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	graph, err := s.load(ctx, id)
	if err != nil {
		return models.Competition{}, err
	}
	c := graph.Competition
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return c, single("Competition", "Competition title is required.")
		}
		if title != c.Title {
			c.Title = title
			c.Slug = slug.Make(title)
		}
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	c.UpdatedAt = s.now()
	if err := s.store.UpdateCompetition(ctx, c); err != nil {
		return graph.Competition, fmt.Errorf("update competition: %w", err)
	}
	s.logger.Info("competition updated", "event", "competition_updated", "competition_id", id, "slug", c.Slug)
	return c, nil
}

// DeleteCompetition cancels pending draws then removes the competition and
// everything it owns. It returns false when the competition does not exist.
func (s *CompetitionService) DeleteCompetition(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	graph, err := s.load(ctx, id)
	if errors.Is(err, ErrCompetitionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.draws.cancelAll(ctx, graph); err != nil {
		return false, err
	}
	if err := s.store.DeleteCompetition(ctx, id); err != nil {
		return false, fmt.Errorf("delete competition: %w", err)
	}
	s.logger.Info("competition deleted", "event", "competition_deleted", "competition_id", id)
	return true, nil
}
