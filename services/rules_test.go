package services

import (
	"testing"
	"time"

	"competition-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submissionStage(t *testing.T, interval models.Interval, max int) models.Stage {
	return models.Stage{
		ID:             "sub",
		Type:           models.StageSubmission,
		Name:           "submit",
		StartTime:      t0,
		EndTime:        t0.Add(day),
		TransitionMode: models.TransitionTimed,
		RuleSet:        rulesJSON(t, models.SubmissionRules{Interval: interval, MaxEntries: max}),
	}
}

func TestSubmissionRejectsEntriesOutsideTheWindow(t *testing.T) {
	stage := submissionStage(t, models.IntervalHour, 5)
	var eval StageRuleEvaluator

	for _, at := range []time.Time{t0.Add(-time.Second), t0.Add(day + time.Second)} {
		errs := NewErrorList()
		v := eval.Evaluate(models.Entry{ID: "e", PlayerID: "p", CreatedAt: at}, stage, nil, at, errs)
		assert.Equal(t, VerdictHardFail, v)
		assert.Contains(t, errs.Messages(keyEntryFailed)[0], "closed")
	}

	errs := NewErrorList()
	v := eval.Evaluate(models.Entry{ID: "e", PlayerID: "p", CreatedAt: t0}, stage, nil, t0, errs)
	assert.Equal(t, VerdictOK, v)
	assert.False(t, errs.HasErrors())
}

func TestSubmissionLimitCountsOnlyThePlayersEntriesInsideTheInterval(t *testing.T) {
	stage := submissionStage(t, models.IntervalHour, 2)
	now := t0.Add(5 * time.Hour)
	prior := []models.Entry{
		{ID: "old", PlayerID: "p", CreatedAt: now.Add(-time.Hour - time.Second)},
		{ID: "other", PlayerID: "q", CreatedAt: now.Add(-time.Minute)},
		{ID: "recent", PlayerID: "p", CreatedAt: now.Add(-30 * time.Minute)},
	}
	var eval StageRuleEvaluator

	entry := models.Entry{ID: "new", PlayerID: "p", CreatedAt: now}
	assert.Equal(t, VerdictOK, eval.Evaluate(entry, stage, prior, now, NewErrorList()))

	prior = append(prior, models.Entry{ID: "edge", PlayerID: "p", CreatedAt: now.Add(-time.Hour)})
	errs := NewErrorList()
	assert.Equal(t, VerdictHardFail, eval.Evaluate(entry, stage, prior, now, errs))
	assert.Contains(t, errs.Error(), "exceeded the number of entries")
}

func TestSubmissionLimitIgnoresTheEvaluatedEntry(t *testing.T) {
	stage := submissionStage(t, models.IntervalDay, 1)
	entry := models.Entry{ID: "e", PlayerID: "p", CreatedAt: t0.Add(time.Hour)}

	v := StageRuleEvaluator{}.Evaluate(entry, stage, []models.Entry{entry}, t0.Add(time.Hour), NewErrorList())

	assert.Equal(t, VerdictOK, v)
}

func TestSubmissionJudgesMovedEntriesAtTheTimeOfTheMove(t *testing.T) {
	stage := submissionStage(t, models.IntervalHour, 1)
	stage.StartTime = t0.Add(2 * day)
	stage.EndTime = t0.Add(3 * day)
	// created days before the stage opened
	entry := models.Entry{ID: "e", PlayerID: "p", CreatedAt: t0.Add(time.Hour)}
	var eval StageRuleEvaluator

	assert.Equal(t, VerdictOK, eval.Evaluate(entry, stage, []models.Entry{entry}, t0.Add(2*day+time.Hour), NewErrorList()))

	errs := NewErrorList()
	assert.Equal(t, VerdictHardFail, eval.Evaluate(entry, stage, nil, t0.Add(3*day+time.Second), errs))
	assert.Contains(t, errs.Messages(keyEntryFailed)[0], "closed")

	// the limit window is anchored at the move, not at the creation time
	recent := models.Entry{ID: "recent", PlayerID: "p", CreatedAt: t0.Add(2*day + 30*time.Minute)}
	errs = NewErrorList()
	assert.Equal(t, VerdictHardFail, eval.Evaluate(entry, stage, []models.Entry{entry, recent}, t0.Add(2*day+time.Hour), errs))
	assert.Contains(t, errs.Error(), "exceeded the number of entries")
}

func TestIntervalWindows(t *testing.T) {
	cases := map[models.Interval]time.Duration{
		models.IntervalMinute: 60 * time.Second,
		models.IntervalHour:   3600 * time.Second,
		models.IntervalDay:    86400 * time.Second,
		models.IntervalWeek:   604800 * time.Second,
		models.IntervalMonth:  2629746 * time.Second,
	}
	for interval, want := range cases {
		got, ok := interval.Window()
		require.True(t, ok, interval)
		assert.Equal(t, want, got, interval)
	}
	_, ok := models.Interval("fortnight").Window()
	assert.False(t, ok)
}

func TestNonSubmissionStagesOnlyCheckTheEndTime(t *testing.T) {
	for _, typ := range []models.StageType{models.StageModerate, models.StageRandomDraw, models.StageCustom} {
		stage := models.Stage{ID: "s", Type: typ, Name: "s", StartTime: t0, EndTime: t0.Add(day)}
		if typ == models.StageRandomDraw {
			stage.RuleSet = rulesJSON(t, models.RandomDrawRules{Winners: 1})
		}
		entry := models.Entry{ID: "e", PlayerID: "p", CreatedAt: t0.Add(-7 * day)}

		assert.Equal(t, VerdictOK, StageRuleEvaluator{}.Evaluate(entry, stage, nil, t0.Add(-day), NewErrorList()), typ)
		assert.Equal(t, VerdictOK, StageRuleEvaluator{}.Evaluate(entry, stage, nil, t0.Add(day), NewErrorList()), typ)

		errs := NewErrorList()
		assert.Equal(t, VerdictHardFail, StageRuleEvaluator{}.Evaluate(entry, stage, nil, t0.Add(day+time.Nanosecond), errs), typ)
		assert.Contains(t, errs.Error(), "is closed")
	}
}

func TestValidateStage(t *testing.T) {
	good := submissionStage(t, models.IntervalWeek, 3)
	assert.True(t, ValidateStage(good, NewErrorList()))

	tests := []struct {
		name   string
		mutate func(*models.Stage)
		want   string
	}{
		{"end before start", func(s *models.Stage) { s.EndTime = s.StartTime }, "start time must be before"},
		{"unknown interval", func(s *models.Stage) {
			s.RuleSet = rulesJSON(t, models.SubmissionRules{Interval: "year", MaxEntries: 1})
		}, "interval 'year'"},
		{"no entries allowed", func(s *models.Stage) {
			s.RuleSet = rulesJSON(t, models.SubmissionRules{Interval: models.IntervalDay})
		}, "at least one entry"},
		{"no winners", func(s *models.Stage) {
			s.Type = models.StageRandomDraw
			s.RuleSet = rulesJSON(t, models.RandomDrawRules{})
		}, "at least one winner"},
		{"unknown type", func(s *models.Stage) { s.Type = "lottery" }, "not supported"},
		{"unknown mode", func(s *models.Stage) { s.TransitionMode = "eventually" }, "Transition mode"},
		{"unnamed", func(s *models.Stage) { s.Name = "" }, "name is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := good
			tc.mutate(&st)
			errs := NewErrorList()
			assert.False(t, ValidateStage(st, errs))
			assert.Contains(t, errs.Error(), tc.want)
		})
	}
}

func TestSetRulesRejectsMismatchedPayload(t *testing.T) {
	st := models.Stage{Type: models.StageModerate}
	assert.Error(t, st.SetRules(models.RandomDrawRules{Winners: 2}))
	require.NoError(t, st.SetRules(models.ModerateRules{}))

	rules, err := st.Rules()
	require.NoError(t, err)
	assert.IsType(t, models.ModerateRules{}, rules)
}
