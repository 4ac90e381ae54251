// Package storage persists competitions, stages, chains, players and entries.
package storage

import (
	"errors"

	"competition-engine/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyDrawn rejects a changeset claiming a stage that is drawn.
	ErrAlreadyDrawn = errors.New("stage already drawn")
	// ErrStale rejects an all-moves changeset whose entries changed.
	ErrStale = errors.New("entry state changed")
)

// Migrate creates or updates the tables used by GormStore.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Competition{},
		&models.Stage{},
		&models.ChainEdge{},
		&models.Player{},
		&models.Entry{},
	)
}
