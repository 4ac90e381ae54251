package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type StageType string

const (
	StageSubmission StageType = "submission"
	StageModerate   StageType = "moderate"
	StageRandomDraw StageType = "randomdraw"
	StageCustom     StageType = "custom"
)

func (t StageType) Valid() bool {
	switch t {
	case StageSubmission, StageModerate, StageRandomDraw, StageCustom:
		return true
	}
	return false
}

type TransitionMode string

const (
	TransitionTimed   TransitionMode = "timed"
	TransitionAction  TransitionMode = "action"
	TransitionHolding TransitionMode = "holding"
)

func (m TransitionMode) Valid() bool {
	switch m {
	case TransitionTimed, TransitionAction, TransitionHolding:
		return true
	}
	return false
}

// Interval is the window a submission limit applies to.
type Interval string

const (
	IntervalMinute Interval = "minute"
	IntervalHour   Interval = "hour"
	IntervalDay    Interval = "day"
	IntervalWeek   Interval = "week"
	IntervalMonth  Interval = "month"
)

// Window returns the length of the interval. A month is 2629746 seconds.
func (i Interval) Window() (time.Duration, bool) {
	switch i {
	case IntervalMinute:
		return time.Minute, true
	case IntervalHour:
		return time.Hour, true
	case IntervalDay:
		return 24 * time.Hour, true
	case IntervalWeek:
		return 7 * 24 * time.Hour, true
	case IntervalMonth:
		return 2629746 * time.Second, true
	}
	return 0, false
}

// StageRules is the rule payload of a stage. The concrete type always matches
// the stage type: SubmissionRules, RandomDrawRules, ModerateRules or CustomRules.
type StageRules interface {
	StageType() StageType
	sealed()
}

type SubmissionRules struct {
	Interval   Interval `json:"interval"`
	MaxEntries int      `json:"max_entries"`
}

type RandomDrawRules struct {
	Winners int `json:"winners"`
}

type ModerateRules struct{}

type CustomRules struct{}

func (SubmissionRules) StageType() StageType { return StageSubmission }
func (RandomDrawRules) StageType() StageType { return StageRandomDraw }
func (ModerateRules) StageType() StageType   { return StageModerate }
func (CustomRules) StageType() StageType     { return StageCustom }

func (SubmissionRules) sealed() {}
func (RandomDrawRules) sealed() {}
func (ModerateRules) sealed()   {}
func (CustomRules) sealed()     {}

// DecodeRules interprets a raw payload for the given stage type. An empty
// payload decodes to the zero rules of that type.
func DecodeRules(t StageType, raw []byte) (StageRules, error) {
	empty := len(raw) == 0 || string(raw) == "null"
	switch t {
	case StageSubmission:
		var r SubmissionRules
		if !empty {
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, fmt.Errorf("decode submission rules: %w", err)
			}
		}
		return r, nil
	case StageRandomDraw:
		var r RandomDrawRules
		if !empty {
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, fmt.Errorf("decode random draw rules: %w", err)
			}
		}
		return r, nil
	case StageModerate:
		return ModerateRules{}, nil
	case StageCustom:
		return CustomRules{}, nil
	default:
		return nil, fmt.Errorf("unknown stage type %q", t)
	}
}
