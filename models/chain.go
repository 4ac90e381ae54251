package models

// ChainEdge wires one stage to its success and fail targets. A committed chain
// holds exactly one edge per stage of the competition.
type ChainEdge struct {
	StageID        string  `json:"stage_id" gorm:"primaryKey"`
	CompetitionID  string  `json:"competition_id" gorm:"not null;index"`
	SuccessStageID *string `json:"success_stage_id,omitempty"`
	FailStageID    *string `json:"fail_stage_id,omitempty"`
	IsStart        bool    `json:"is_start" gorm:"default:false"`
	Position       int     `json:"position" gorm:"default:0"`
}

func (e ChainEdge) Success() (string, bool) {
	if e.SuccessStageID == nil || *e.SuccessStageID == "" {
		return "", false
	}
	return *e.SuccessStageID, true
}

func (e ChainEdge) Fail() (string, bool) {
	if e.FailStageID == nil || *e.FailStageID == "" {
		return "", false
	}
	return *e.FailStageID, true
}

// Targets reports whether id is this edge's success or fail target.
func (e ChainEdge) Targets(id string) bool {
	if s, ok := e.Success(); ok && s == id {
		return true
	}
	if f, ok := e.Fail(); ok && f == id {
		return true
	}
	return false
}
