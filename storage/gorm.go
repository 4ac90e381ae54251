package storage

import (
	"context"
	"errors"
	"fmt"

	"competition-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) CreateCompetition(ctx context.Context, c *models.Competition) error {
	return s.DB.WithContext(ctx).Create(c).Error
}

func (s *GormStore) ListCompetitions(ctx context.Context) ([]models.Competition, error) {
	var out []models.Competition
	if err := s.DB.WithContext(ctx).Order("created_at asc, id asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LoadCompetition reads the competition with its stages, chain, players and
// entries inside one read transaction.
func (s *GormStore) LoadCompetition(ctx context.Context, id string) (models.CompetitionGraph, error) {
	var graph models.CompetitionGraph
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comp models.Competition
		if err := tx.First(&comp, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		graph = models.NewCompetitionGraph(comp)

		var stages []models.Stage
		if err := tx.Where("competition_id = ?", id).Find(&stages).Error; err != nil {
			return fmt.Errorf("load stages: %w", err)
		}
		for _, st := range stages {
			graph.Stages[st.ID] = st
		}

		var edges []models.ChainEdge
		if err := tx.Where("competition_id = ?", id).Find(&edges).Error; err != nil {
			return fmt.Errorf("load chain: %w", err)
		}
		for _, e := range edges {
			graph.Edges[e.StageID] = e
		}

		var players []models.Player
		if err := tx.Where("competition_id = ?", id).Find(&players).Error; err != nil {
			return fmt.Errorf("load players: %w", err)
		}
		for _, p := range players {
			graph.Players[p.ID] = p
		}

		if err := tx.Where("competition_id = ?", id).Order("created_at asc, id asc").Find(&graph.Entries).Error; err != nil {
			return fmt.Errorf("load entries: %w", err)
		}
		return nil
	})
	return graph, err
}

func (s *GormStore) DeleteCompetition(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comp models.Competition
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&comp, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if err := purgeChain(tx, id); err != nil {
			return err
		}
		if err := tx.Where("competition_id = ?", id).Delete(&models.Stage{}).Error; err != nil {
			return fmt.Errorf("delete stages: %w", err)
		}
		return tx.Delete(&comp).Error
	})
}

// UpdateCompetition saves the editable columns of the competition.
func (s *GormStore) UpdateCompetition(ctx context.Context, c models.Competition) error {
	res := s.DB.WithContext(ctx).Model(&c).
		Select("title", "slug", "description", "updated_at").
		Updates(c)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func lockCompetition(tx *gorm.DB, id string) error {
	var comp models.Competition
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&comp, "id = ?", id).Error; err != nil {
		return notFound(err)
	}
	return nil
}

func purgeChain(tx *gorm.DB, competitionID string) error {
	if err := tx.Where("competition_id = ?", competitionID).Delete(&models.ChainEdge{}).Error; err != nil {
		return fmt.Errorf("delete chain: %w", err)
	}
	if err := tx.Where("competition_id = ?", competitionID).Delete(&models.Entry{}).Error; err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if err := tx.Where("competition_id = ?", competitionID).Delete(&models.Player{}).Error; err != nil {
		return fmt.Errorf("delete players: %w", err)
	}
	return nil
}

func (s *GormStore) CreatePlayer(ctx context.Context, p *models.Player) error {
	return s.DB.WithContext(ctx).Create(p).Error
}

func (s *GormStore) FindPlayer(ctx context.Context, id string) (models.Player, error) {
	var p models.Player
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return p, notFound(err)
	}
	return p, nil
}

func (s *GormStore) UpdatePlayer(ctx context.Context, p models.Player) error {
	res := s.DB.WithContext(ctx).Model(&p).Select("email", "metadata").Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePlayer removes the player together with its entries.
func (s *GormStore) DeletePlayer(ctx context.Context, competitionID, playerID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCompetition(tx, competitionID); err != nil {
			return err
		}
		if err := tx.Where("competition_id = ? AND player_id = ?", competitionID, playerID).Delete(&models.Entry{}).Error; err != nil {
			return fmt.Errorf("delete entries of player %s: %w", playerID, err)
		}
		res := tx.Where("competition_id = ? AND id = ?", competitionID, playerID).Delete(&models.Player{})
		if res.Error != nil {
			return fmt.Errorf("delete player %s: %w", playerID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormStore) PlayerExists(ctx context.Context, competitionID, playerID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Player{}).
		Where("competition_id = ? AND id = ?", competitionID, playerID).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) CreateEntry(ctx context.Context, e *models.Entry) error {
	return s.DB.WithContext(ctx).Create(e).Error
}

func (s *GormStore) FindEntry(ctx context.Context, id string) (models.Entry, error) {
	var e models.Entry
	if err := s.DB.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return e, notFound(err)
	}
	return e, nil
}

func (s *GormStore) DeleteEntry(ctx context.Context, competitionID, entryID string) error {
	res := s.DB.WithContext(ctx).Where("competition_id = ? AND id = ?", competitionID, entryID).Delete(&models.Entry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SaveChain(ctx context.Context, competitionID string, edges []models.ChainEdge) error {
	if len(edges) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comp models.Competition
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&comp, "id = ?", competitionID).Error; err != nil {
			return notFound(err)
		}
		for i := range edges {
			edges[i].CompetitionID = competitionID
		}
		return tx.Create(&edges).Error
	})
}

// DeleteChain removes the chain together with the competition's entries and
// players.
func (s *GormStore) DeleteChain(ctx context.Context, competitionID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comp models.Competition
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&comp, "id = ?", competitionID).Error; err != nil {
			return notFound(err)
		}
		return purgeChain(tx, competitionID)
	})
}

// Commit claims the draw stage, if any, and applies every move whose entry is
// still in its From state. It returns the moves that were applied.
func (s *GormStore) Commit(ctx context.Context, competitionID string, cs models.Changeset) ([]models.Move, error) {
	var applied []models.Move
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comp models.Competition
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&comp, "id = ?", competitionID).Error; err != nil {
			return notFound(err)
		}
		if cs.Draw != "" {
			if err := claimDraw(tx, competitionID, cs.Draw); err != nil {
				return err
			}
		}
		applied = applied[:0]
		for _, m := range cs.Moves {
			res := tx.Model(&models.Entry{}).
				Where("id = ? AND competition_id = ? AND state = ?", m.EntryID, competitionID, m.From).
				Update("state", m.To)
			if res.Error != nil {
				return fmt.Errorf("move entry %s: %w", m.EntryID, res.Error)
			}
			if res.RowsAffected == 1 {
				applied = append(applied, m)
			} else if cs.AllMoves {
				return ErrStale
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// claimDraw re-reads the stage under a row lock and marks it drawn.
func claimDraw(tx *gorm.DB, competitionID, stageID string) error {
	var st models.Stage
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&st, "id = ? AND competition_id = ?", stageID, competitionID).Error; err != nil {
		return notFound(err)
	}
	state, err := st.DrawState()
	if err != nil {
		return fmt.Errorf("read draw state of stage %s: %w", stageID, err)
	}
	if state.Drawn {
		return ErrAlreadyDrawn
	}
	st.SetDrawState(models.DrawState{Drawn: true})
	res := tx.Model(&models.Stage{}).Where("id = ? AND competition_id = ?", stageID, competitionID).Update("state", st.State)
	if res.Error != nil {
		return fmt.Errorf("update stage %s: %w", stageID, res.Error)
	}
	return nil
}

func (s *GormStore) CreateStage(ctx context.Context, st *models.Stage) error {
	return s.DB.WithContext(ctx).Create(st).Error
}

func (s *GormStore) FindStage(ctx context.Context, id string) (models.Stage, error) {
	var st models.Stage
	if err := s.DB.WithContext(ctx).First(&st, "id = ?", id).Error; err != nil {
		return st, notFound(err)
	}
	return st, nil
}

// UpdateStage saves every column of the stage.
func (s *GormStore) UpdateStage(ctx context.Context, st models.Stage) error {
	res := s.DB.WithContext(ctx).Model(&st).
		Select("name", "start_time", "end_time", "transition_mode", "manual_advance", "rule_set", "state", "updated_at").
		Updates(st)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStage removes the stage and every entry sitting at it.
func (s *GormStore) DeleteStage(ctx context.Context, competitionID, stageID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCompetition(tx, competitionID); err != nil {
			return err
		}
		if err := tx.Where("competition_id = ? AND state = ?", competitionID, stageID).Delete(&models.Entry{}).Error; err != nil {
			return fmt.Errorf("delete entries at stage %s: %w", stageID, err)
		}
		res := tx.Where("competition_id = ? AND id = ?", competitionID, stageID).Delete(&models.Stage{})
		if res.Error != nil {
			return fmt.Errorf("delete stage %s: %w", stageID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
