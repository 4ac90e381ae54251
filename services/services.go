package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"competition-engine/models"
	"competition-engine/storage"

	"github.com/jonboulle/clockwork"
)

// Deps are the collaborators shared by every service. Store and Scheduler
// are required; the rest have defaults.
type Deps struct {
	Store       Store
	Scheduler   Scheduler
	Rules       RuleEvaluator
	Clock       clockwork.Clock
	Random      *rand.Rand
	Archive     DrawArchive
	Logger      *slog.Logger
	DrawTimeout time.Duration
}

type Services struct {
	Competitions *CompetitionService
	Stages       *StageService
	Players      *PlayerService
	Chains       *ChainService
	Entries      *EntryService
	Moderation   *ModerationService
	Draws        *DrawService
}

func New(deps Deps) *Services {
	c := newCore(deps)

	draws := &DrawService{
		core:      c,
		scheduler: deps.Scheduler,
		archive:   deps.Archive,
		rng:       deps.Random,
		timeout:   deps.DrawTimeout,
	}
	if draws.archive == nil {
		draws.archive = noopArchive{}
	}
	if draws.rng == nil {
		now := c.clock.Now().UnixNano()
		draws.rng = rand.New(rand.NewPCG(uint64(now), uint64(now>>1)))
	}
	if draws.timeout <= 0 {
		draws.timeout = 30 * time.Second
	}

	return &Services{
		Competitions: &CompetitionService{core: c, draws: draws},
		Stages:       &StageService{core: c, draws: draws},
		Players:      &PlayerService{core: c},
		Chains:       &ChainService{core: c, draws: draws},
		Entries:      &EntryService{core: c, draws: draws},
		Moderation:   &ModerationService{core: c},
		Draws:        draws,
	}
}

// core holds what every service needs to run one locked operation against a
// fresh competition snapshot.
type core struct {
	store  Store
	rules  RuleEvaluator
	clock  clockwork.Clock
	locks  *competitionLocks
	logger *slog.Logger
}

func newCore(deps Deps) *core {
	c := &core{
		store:  deps.Store,
		rules:  deps.Rules,
		clock:  deps.Clock,
		locks:  newCompetitionLocks(),
		logger: resolveLogger(deps.Logger).With("module", "competition-engine", "layer", "service"),
	}
	if c.rules == nil {
		c.rules = StageRuleEvaluator{}
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	return c
}

func (c *core) now() time.Time {
	return c.clock.Now().UTC()
}

func (c *core) load(ctx context.Context, competitionID string) (models.CompetitionGraph, error) {
	graph, err := c.store.LoadCompetition(ctx, competitionID)
	if errors.Is(err, storage.ErrNotFound) {
		return graph, ErrCompetitionNotFound
	}
	if err != nil {
		return graph, fmt.Errorf("load competition %s: %w", competitionID, err)
	}
	return graph, nil
}

func (c *core) findEntry(ctx context.Context, entryID string) (models.Entry, error) {
	e, err := c.store.FindEntry(ctx, entryID)
	if errors.Is(err, storage.ErrNotFound) {
		return e, ErrEntryNotFound
	}
	if err != nil {
		return e, fmt.Errorf("find entry %s: %w", entryID, err)
	}
	return e, nil
}

func (c *core) findStage(ctx context.Context, stageID string) (models.Stage, error) {
	st, err := c.store.FindStage(ctx, stageID)
	if errors.Is(err, storage.ErrNotFound) {
		return st, ErrStageNotFound
	}
	if err != nil {
		return st, fmt.Errorf("find stage %s: %w", stageID, err)
	}
	return st, nil
}

func (c *core) commit(ctx context.Context, competitionID string, cs models.Changeset) ([]models.Move, error) {
	if cs.Empty() {
		return nil, nil
	}
	applied, err := c.store.Commit(ctx, competitionID, cs)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrCompetitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("commit competition %s: %w", competitionID, err)
	}
	if skipped := len(cs.Moves) - len(applied); skipped > 0 {
		c.logger.Warn("entry moves skipped, state changed underneath",
			"event", "moves_skipped",
			"competition_id", competitionID,
			"skipped", skipped,
		)
	}
	return applied, nil
}
