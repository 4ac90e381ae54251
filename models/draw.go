package models

import "time"

// DrawResult records the outcome of one executed draw.
type DrawResult struct {
	CompetitionID string    `json:"competition_id"`
	StageID       string    `json:"stage_id"`
	TargetStageID string    `json:"target_stage_id"`
	Requested     int       `json:"requested"`
	Candidates    int       `json:"candidates"`
	Winners       []string  `json:"winners"`
	DrawnAt       time.Time `json:"drawn_at"`
}
