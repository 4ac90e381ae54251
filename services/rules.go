package services

import (
	"fmt"
	"time"

	"competition-engine/models"
)

// Verdict classifies whether an entry may occupy a stage.
type Verdict int

const (
	VerdictOK Verdict = iota
	// VerdictSoftFail parks the entry on a fallback stage.
	VerdictSoftFail
	// VerdictHardFail blocks the operation.
	VerdictHardFail
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictSoftFail:
		return "soft-fail"
	case VerdictHardFail:
		return "hard-fail"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

const keyEntryFailed = "EntryFailed"

// RuleEvaluator decides whether entry may occupy stage. entries is the
// competition's current entry set; failures are reported to sink.
type RuleEvaluator interface {
	Evaluate(entry models.Entry, stage models.Stage, entries []models.Entry, now time.Time, sink ErrorSink) Verdict
}

// StageRuleEvaluator applies the built-in rules of each stage type.
type StageRuleEvaluator struct{}

func (StageRuleEvaluator) Evaluate(entry models.Entry, stage models.Stage, entries []models.Entry, now time.Time, sink ErrorSink) Verdict {
	rules, err := stage.Rules()
	if err != nil {
		sink.Add(keyEntryFailed, fmt.Sprintf("Stage %q has unreadable rules.", stage.Name))
		return VerdictHardFail
	}

	switch r := rules.(type) {
	case models.SubmissionRules:
		return evaluateSubmission(entry, stage, r, entries, now, sink)
	case models.RandomDrawRules, models.ModerateRules, models.CustomRules:
		if stage.ClosedAt(now) {
			sink.Add(keyEntryFailed, fmt.Sprintf("Stage of type '%s' is closed.", stage.Type))
			return VerdictHardFail
		}
		return VerdictOK
	default:
		sink.Add(keyEntryFailed, fmt.Sprintf("Stage type '%s' is not supported.", stage.Type))
		return VerdictHardFail
	}
}

// evaluateSubmission judges the entry at now: for a new entry that is its
// creation time, for a moved entry the time of the move.
func evaluateSubmission(entry models.Entry, stage models.Stage, rules models.SubmissionRules, entries []models.Entry, now time.Time, sink ErrorSink) Verdict {
	if !stage.OpenAt(now) {
		sink.Add(keyEntryFailed, "Stage of type 'submission' is closed. No entry was added.")
		return VerdictHardFail
	}
	window, ok := rules.Interval.Window()
	if !ok {
		sink.Add(keyEntryFailed, fmt.Sprintf("Stage %q has an unknown interval %q.", stage.Name, rules.Interval))
		return VerdictHardFail
	}
	if rules.MaxEntries <= 0 {
		return VerdictOK
	}

	from := now.Add(-window)
	count := 0
	for _, prior := range entries {
		if prior.ID == entry.ID || prior.PlayerID != entry.PlayerID {
			continue
		}
		if prior.CreatedAt.Before(from) || prior.CreatedAt.After(now) {
			continue
		}
		count++
	}
	if count >= rules.MaxEntries {
		sink.Add(keyEntryFailed, fmt.Sprintf("Player has exceeded the number of entries for the %s interval. No entry was added.", rules.Interval))
		return VerdictHardFail
	}
	return VerdictOK
}

// ValidateStage checks a stage definition on its own, without its chain.
func ValidateStage(stage models.Stage, sink ErrorSink) bool {
	ok := true
	fail := func(msg string) {
		sink.Add("Stage", msg)
		ok = false
	}

	if stage.Name == "" {
		fail("Stage name is required.")
	}
	if !stage.Type.Valid() {
		fail(fmt.Sprintf("Stage type '%s' is not supported.", stage.Type))
		return false
	}
	if !stage.TransitionMode.Valid() {
		fail(fmt.Sprintf("Transition mode '%s' is not supported.", stage.TransitionMode))
	}
	if !stage.StartTime.Before(stage.EndTime) {
		fail("Stage start time must be before its end time.")
	}

	rules, err := stage.Rules()
	if err != nil {
		fail("Stage rules could not be read.")
		return false
	}
	switch r := rules.(type) {
	case models.SubmissionRules:
		if _, known := r.Interval.Window(); !known {
			fail(fmt.Sprintf("Submission interval '%s' is not supported.", r.Interval))
		}
		if r.MaxEntries < 1 {
			fail("Submission stages must allow at least one entry per interval.")
		}
	case models.RandomDrawRules:
		if r.Winners < 1 {
			fail("Random draw stages must pick at least one winner.")
		}
	case models.ModerateRules, models.CustomRules:
	}
	return ok
}
