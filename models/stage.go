package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Stage is one time-boxed node of a competition's chain.
type Stage struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	CompetitionID  string         `json:"competition_id" gorm:"not null;index"`
	Type           StageType      `json:"type" gorm:"type:varchar(16);not null"`
	Name           string         `json:"name" gorm:"not null"`
	StartTime      time.Time      `json:"start_time" gorm:"not null"`
	EndTime        time.Time      `json:"end_time" gorm:"not null"`
	TransitionMode TransitionMode `json:"transition_mode" gorm:"type:varchar(16);default:'timed'"`
	ManualAdvance  bool           `json:"manual_advance" gorm:"default:false"`
	RuleSet        datatypes.JSON `json:"rules,omitempty"`
	State          datatypes.JSON `json:"state,omitempty"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// DrawState is the mutable state of a random draw stage.
type DrawState struct {
	Drawn     bool   `json:"drawn"`
	JobHandle string `json:"job_handle,omitempty"`
}

func (s Stage) Rules() (StageRules, error) {
	return DecodeRules(s.Type, s.RuleSet)
}

func (s *Stage) SetRules(r StageRules) error {
	if r.StageType() != s.Type {
		return fmt.Errorf("rules of type %s cannot be set on a %s stage", r.StageType(), s.Type)
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	s.RuleSet = datatypes.JSON(raw)
	return nil
}

func (s Stage) DrawState() (DrawState, error) {
	var st DrawState
	if len(s.State) == 0 || string(s.State) == "null" {
		return st, nil
	}
	if err := json.Unmarshal(s.State, &st); err != nil {
		return st, fmt.Errorf("decode state of stage %s: %w", s.ID, err)
	}
	return st, nil
}

func (s *Stage) SetDrawState(st DrawState) {
	raw, _ := json.Marshal(st)
	s.State = datatypes.JSON(raw)
}

// ClosedAt reports whether the stage window has ended at t.
func (s Stage) ClosedAt(t time.Time) bool {
	return t.After(s.EndTime)
}

// OpenAt reports whether t falls within [StartTime, EndTime].
func (s Stage) OpenAt(t time.Time) bool {
	return !t.Before(s.StartTime) && !t.After(s.EndTime)
}
