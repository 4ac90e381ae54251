package services

import (
	"context"
	"time"

	"competition-engine/models"
)

// CompetitionStore reads competition snapshots and persists their changes.
type CompetitionStore interface {
	CreateCompetition(ctx context.Context, c *models.Competition) error
	ListCompetitions(ctx context.Context) ([]models.Competition, error)
	LoadCompetition(ctx context.Context, id string) (models.CompetitionGraph, error)
	DeleteCompetition(ctx context.Context, id string) error
	UpdateCompetition(ctx context.Context, c models.Competition) error
	CreatePlayer(ctx context.Context, p *models.Player) error
	FindPlayer(ctx context.Context, id string) (models.Player, error)
	UpdatePlayer(ctx context.Context, p models.Player) error
	DeletePlayer(ctx context.Context, competitionID, playerID string) error
	PlayerExists(ctx context.Context, competitionID, playerID string) (bool, error)
	CreateEntry(ctx context.Context, e *models.Entry) error
	FindEntry(ctx context.Context, id string) (models.Entry, error)
	DeleteEntry(ctx context.Context, competitionID, entryID string) error
	SaveChain(ctx context.Context, competitionID string, edges []models.ChainEdge) error
	DeleteChain(ctx context.Context, competitionID string) error
	Commit(ctx context.Context, competitionID string, cs models.Changeset) ([]models.Move, error)
}

// StageStore reads and updates single stages.
type StageStore interface {
	CreateStage(ctx context.Context, st *models.Stage) error
	FindStage(ctx context.Context, id string) (models.Stage, error)
	UpdateStage(ctx context.Context, st models.Stage) error
	DeleteStage(ctx context.Context, competitionID, stageID string) error
}

type Store interface {
	CompetitionStore
	StageStore
}

// Scheduler runs one-shot callbacks. Handles are opaque.
type Scheduler interface {
	ScheduleOnce(when time.Time, name string, fn func()) (string, error)
	Cancel(handle string) error
}

// DrawArchive keeps a durable copy of executed draws.
type DrawArchive interface {
	SaveDraw(ctx context.Context, result models.DrawResult) error
}

type noopArchive struct{}

func (noopArchive) SaveDraw(context.Context, models.DrawResult) error { return nil }
