package models

import (
	"time"

	"gorm.io/datatypes"
)

// Competition owns a set of stages, the chain wiring them together, its
// registered players and their entries.
type Competition struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	OwnerID     string    `json:"owner_id" gorm:"index"`
	Title       string    `json:"title" gorm:"not null"`
	Slug        string    `json:"slug" gorm:"index"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Player is a participant registered to a competition. Email is unique per
// competition, compared case-insensitively.
type Player struct {
	ID            string         `json:"id" gorm:"primaryKey"`
	CompetitionID string         `json:"competition_id" gorm:"not null;index"`
	Email         string         `json:"email" gorm:"not null"`
	Metadata      datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
}
