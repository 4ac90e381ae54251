package models

import (
	"time"

	"gorm.io/datatypes"
)

// TerminalState is the state of an entry that has left the chain for good.
// Stage ids are UUIDs so it never collides with one.
const TerminalState = "terminal"

type Entry struct {
	ID            string         `json:"id" gorm:"primaryKey"`
	CompetitionID string         `json:"competition_id" gorm:"not null;index"`
	PlayerID      string         `json:"player_id" gorm:"not null;index"`
	Metadata      datatypes.JSON `json:"metadata,omitempty"`
	State         string         `json:"state" gorm:"not null;index"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (e Entry) Terminal() bool {
	return e.State == TerminalState
}

// Move relocates one entry. It only applies while the entry is still in From.
type Move struct {
	EntryID string `json:"entry_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// Changeset is persisted atomically. Moves are applied as compare-and-set on
// the entry state.
type Changeset struct {
	Moves []Move
	// Draw marks a random draw stage drawn. The stored flag is re-read inside
	// the commit and an already drawn stage aborts the whole changeset.
	Draw string
	// AllMoves aborts the changeset when any move no longer applies.
	AllMoves bool
}

func (c Changeset) Empty() bool {
	return len(c.Moves) == 0 && c.Draw == ""
}
