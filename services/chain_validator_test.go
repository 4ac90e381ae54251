package services

import (
	"context"
	"testing"
	"time"

	"competition-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainStage(id string, typ models.StageType, start, end time.Time) models.Stage {
	return models.Stage{ID: id, Type: typ, Name: id, StartTime: start, EndTime: end, TransitionMode: models.TransitionTimed}
}

func exampleStages() map[string]models.Stage {
	return map[string]models.Stage{
		"1": plainStage("1", models.StageSubmission, t0, t0.Add(day)),
		"2": plainStage("2", models.StageModerate, t0.Add(day), t0.Add(2*day)),
		"3": plainStage("3", models.StageRandomDraw, t0.Add(2*day), t0.Add(3*day)),
		"4": plainStage("4", models.StageCustom, t0.Add(3*day), t0.Add(4*day)),
	}
}

func exampleEdges() []models.ChainEdge {
	return []models.ChainEdge{
		edge("1", "2", "", true),
		edge("2", "", "3", false),
		edge("3", "4", "", false),
		edge("4", "", "", false),
	}
}

func TestValidateChainAcceptsTheExampleChain(t *testing.T) {
	errs := NewErrorList()
	assert.True(t, ValidateChain(exampleStages(), exampleEdges(), errs))
	assert.Empty(t, errs.Items())
}

func TestValidateChainRequiresAStartStage(t *testing.T) {
	edges := exampleEdges()
	edges[0].IsStart = false

	errs := NewErrorList()
	assert.False(t, ValidateChain(exampleStages(), edges, errs))
	assert.Equal(t, []string{"Chain must have at least one start stage."}, errs.Messages(keyChain))
}

func TestValidateChainReportsMissingTargets(t *testing.T) {
	edges := exampleEdges()
	edges[3] = edge("4", "99", "", false)

	errs := NewErrorList()
	assert.False(t, ValidateChain(exampleStages(), edges, errs))
	require.Len(t, errs.Messages(keyBadReference), 1)
	assert.Contains(t, errs.Messages(keyBadReference)[0], "99")
}

func TestValidateChainTypeRules(t *testing.T) {
	stages := exampleStages()
	stages["5"] = plainStage("5", models.StageModerate, t0, t0.Add(day))
	stages["6"] = plainStage("6", models.StageRandomDraw, t0.Add(4*day), t0.Add(5*day))
	edges := append(exampleEdges(),
		edge("5", "2", "", true),
		edge("6", "", "", false),
	)

	errs := NewErrorList()
	assert.False(t, ValidateChain(stages, edges, errs))

	assert.Contains(t, errs.Messages(stageKey("5")), "Moderate stages cannot be the start stage.")
	assert.Contains(t, errs.Messages(stageKey("5")), "Moderate stages must be referenced by another stage.")
	assert.Contains(t, errs.Messages(stageKey("6")), "Random draw stages must be referenced by another stage.")
	assert.Contains(t, errs.Messages(stageKey("6")), "Random draw stages must have a success stage.")
	assert.Empty(t, errs.Messages(stageKey("2")))
}

func TestValidateChainAllowsCustomStartStages(t *testing.T) {
	stages := map[string]models.Stage{
		"c": plainStage("c", models.StageCustom, t0, t0.Add(day)),
	}
	assert.True(t, ValidateChain(stages, []models.ChainEdge{edge("c", "", "", true)}, NewErrorList()))
}

func TestValidateChainReportsTemporalOverlap(t *testing.T) {
	stages := exampleStages()
	overlapping := stages["2"]
	overlapping.StartTime = t0.Add(12 * time.Hour)
	stages["2"] = overlapping

	errs := NewErrorList()
	assert.False(t, ValidateChain(stages, exampleEdges(), errs))

	assert.Contains(t, errs.Messages(stageKey("1"))[0], "Clashes with stage id 2")
	assert.Contains(t, errs.Messages(stageKey("2"))[0], "Clashes with inbound stage id 1")
}

func TestValidateChainRejectsSelfReference(t *testing.T) {
	stages := map[string]models.Stage{
		"c": plainStage("c", models.StageCustom, t0, t0.Add(day)),
	}
	errs := NewErrorList()
	assert.False(t, ValidateChain(stages, []models.ChainEdge{edge("c", "c", "", true)}, errs))
	assert.Contains(t, errs.Error(), "Clashes with inbound stage id c")
}

func TestValidateChainReportsEveryProblem(t *testing.T) {
	stages := exampleStages()
	stages["orphan"] = plainStage("orphan", models.StageCustom, t0, t0.Add(day))
	edges := []models.ChainEdge{
		edge("1", "2", "", false),
		edge("1", "2", "", false),
		edge("2", "", "", false),
		edge("3", "", "", false),
		edge("ghost", "", "", false),
	}

	errs := NewErrorList()
	assert.False(t, ValidateChain(stages, edges, errs))

	msg := errs.Error()
	for _, want := range []string{
		"Chain must have at least one start stage.",
		"Stage appears more than once in the chain.",
		"Stage Id ghost does not belong to this competition.",
		"Stage Id orphan: Stage is not part of the chain.",
		"Stage Id 4: Stage is not part of the chain.",
		"Random draw stages must have a success stage.",
		"Random draw stages must be referenced by another stage.",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateChainIsDeterministic(t *testing.T) {
	stages := exampleStages()
	edges := []models.ChainEdge{edge("2", "", "", true), edge("3", "", "", true)}

	first := NewErrorList()
	ValidateChain(stages, edges, first)
	for i := 0; i < 20; i++ {
		again := NewErrorList()
		ValidateChain(stages, edges, again)
		assert.Equal(t, first.Items(), again.Items())
	}
}

func TestBuildChainRejectsASecondChain(t *testing.T) {
	f := newFixture(t)
	ex := f.exampleChain(t, 10, 1)

	_, err := f.svc.Chains.BuildChain(context.Background(), ex.comp.ID, []models.ChainEdge{
		edge(ex.custom.ID, "", "", true),
	})

	list, ok := AsErrorList(err)
	require.True(t, ok)
	assert.Equal(t, []string{"A chain already exists for this competition."}, list.Messages(keyChain))
}

func TestBuildChainRejectsInvalidChainsWithoutSaving(t *testing.T) {
	f := newFixture(t)
	comp := f.competition(t)
	mod := f.stage(t, comp.ID, models.StageModerate, "moderate", t0, t0.Add(day), nil, false)

	_, err := f.svc.Chains.BuildChain(context.Background(), comp.ID, []models.ChainEdge{edge(mod.ID, "", "", true)})

	_, ok := AsErrorList(err)
	require.True(t, ok)
	_, err = f.svc.Chains.GetChain(context.Background(), comp.ID)
	assert.ErrorIs(t, err, ErrNoChain)
}

func TestBuildChainOrdersEdgesByEndTimeAndSchedulesDraws(t *testing.T) {
	f := newFixture(t)
	ex := f.exampleChain(t, 10, 1)

	edges, err := f.svc.Chains.GetChain(context.Background(), ex.comp.ID)
	require.NoError(t, err)
	require.Len(t, edges, 4)
	assert.Equal(t, []string{ex.submission.ID, ex.moderate.ID, ex.draw.ID, ex.custom.ID},
		[]string{edges[0].StageID, edges[1].StageID, edges[2].StageID, edges[3].StageID})

	state := f.stageState(t, ex.draw.ID)
	assert.False(t, state.Drawn)
	job, ok := f.sched.job(state.JobHandle)
	require.True(t, ok)
	assert.True(t, job.when.Equal(ex.draw.EndTime))
	assert.Equal(t, 1, f.sched.pending())
}

func TestBuildChainNeedsStages(t *testing.T) {
	f := newFixture(t)
	comp := f.competition(t)

	_, err := f.svc.Chains.BuildChain(context.Background(), comp.ID, nil)

	assert.ErrorContains(t, err, "Create stages before adding the chain.")
}

func TestBuildChainUnknownCompetition(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Chains.BuildChain(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrCompetitionNotFound)
}
