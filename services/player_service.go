package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"competition-engine/models"
	"competition-engine/storage"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"gorm.io/datatypes"
)

type PlayerService struct {
	*core
}

// RegisterPlayer adds a player to a competition. Emails are unique per
// competition regardless of case.
func (s *PlayerService) RegisterPlayer(ctx context.Context, competitionID string, p models.Player) (models.Player, error) {
	unlock := s.locks.Lock(competitionID)
	defer unlock()

	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return p, err
	}

	p.Email = strings.TrimSpace(p.Email)
	if p.Email == "" {
		return p, single("Player", "Player email is required.")
	}
	if emailTaken(graph, p.Email, "") {
		return p, single("Player", "Player with this email already exists for this competition.")
	}

	p.ID = uuid.NewString()
	p.CompetitionID = competitionID
	p.CreatedAt = s.now()
	if err := s.store.CreatePlayer(ctx, &p); err != nil {
		return p, fmt.Errorf("create player: %w", err)
	}
	s.logger.Info("player registered", "event", "player_registered", "competition_id", competitionID, "player_id", p.ID)
	return p, nil
}

func (s *PlayerService) ListPlayers(ctx context.Context, competitionID string) ([]models.Player, error) {
	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Player, 0, len(graph.Players))
	for _, p := range graph.Players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// emailTaken reports whether another player of the competition than
// exceptID already uses email, ignoring case.
func emailTaken(graph models.CompetitionGraph, email, exceptID string) bool {
	fold := cases.Fold()
	key := fold.String(strings.TrimSpace(email))
	for _, existing := range graph.Players {
		if existing.ID == exceptID {
			continue
		}
		if fold.String(strings.TrimSpace(existing.Email)) == key {
			return true
		}
	}
	return false
}

func (s *PlayerService) GetPlayer(ctx context.Context, competitionID, playerID string) (models.Player, error) {
	p, err := s.store.FindPlayer(ctx, playerID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && p.CompetitionID != competitionID) {
		return models.Player{}, ErrPlayerNotFound
	}
	if err != nil {
		return p, fmt.Errorf("find player %s: %w", playerID, err)
	}
	return p, nil
}

// PlayerPatch lists the player fields that may change. Nil fields are left
// untouched.
type PlayerPatch struct {
	Email    *string         `json:"email"`
	Metadata json.RawMessage `json:"metadata"`
}

// UpdatePlayer applies a patch. A new email must stay unique within the
// competition, ignoring case.
func (s *PlayerService) UpdatePlayer(ctx context.Context, competitionID, playerID string, patch PlayerPatch) (models.Player, error) {
	unlock := s.locks.Lock(competitionID)
	defer unlock()

	graph, err := s.load(ctx, competitionID)
	if err != nil {
		return models.Player{}, err
	}
	p, ok := graph.Players[playerID]
	if !ok {
		return p, ErrPlayerNotFound
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email == "" {
			return p, single("Player", "Player email is required.")
		}
		if emailTaken(graph, email, playerID) {
			return p, single("Player", "Player with this email already exists for this competition.")
		}
		p.Email = email
	}
	if len(patch.Metadata) > 0 {
		p.Metadata = datatypes.JSON(patch.Metadata)
	}
	if err := s.store.UpdatePlayer(ctx, p); err != nil {
		return graph.Players[playerID], fmt.Errorf("update player: %w", err)
	}
	s.logger.Info("player updated", "event", "player_updated", "competition_id", competitionID, "player_id", playerID)
	return p, nil
}

// DeletePlayer removes the player and every entry it submitted. It returns
// false when the player does not exist.
func (s *PlayerService) DeletePlayer(ctx context.Context, competitionID, playerID string) (bool, error) {
	unlock := s.locks.Lock(competitionID)
	defer unlock()

	graph, err := s.load(ctx, competitionID)
	if errors.Is(err, ErrCompetitionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, ok := graph.Players[playerID]; !ok {
		return false, nil
	}
	removed := 0
	for _, e := range graph.Entries {
		if e.PlayerID == playerID {
			removed++
		}
	}
	if err := s.store.DeletePlayer(ctx, competitionID, playerID); err != nil {
		return false, fmt.Errorf("delete player: %w", err)
	}
	s.logger.Info("player deleted",
		"event", "player_deleted",
		"competition_id", competitionID,
		"player_id", playerID,
		"entries", removed,
	)
	return true, nil
}
