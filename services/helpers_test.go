package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"competition-engine/models"
	"competition-engine/storage"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type fakeJob struct {
	when time.Time
	name string
	fn   func()
}

type fakeScheduler struct {
	mu     sync.Mutex
	next   int
	jobs   map[string]fakeJob
	cancel []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: map[string]fakeJob{}}
}

func (f *fakeScheduler) ScheduleOnce(when time.Time, name string, fn func()) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	handle := fmt.Sprintf("job-%d", f.next)
	f.jobs[handle] = fakeJob{when: when, name: name, fn: fn}
	return handle, nil
}

func (f *fakeScheduler) Cancel(handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancel = append(f.cancel, handle)
	delete(f.jobs, handle)
	return nil
}

func (f *fakeScheduler) job(handle string) (fakeJob, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[handle]
	return j, ok
}

func (f *fakeScheduler) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

// fire runs a job the way the scheduler would and forgets it.
func (f *fakeScheduler) fire(t *testing.T, handle string) {
	t.Helper()
	f.mu.Lock()
	j, ok := f.jobs[handle]
	delete(f.jobs, handle)
	f.mu.Unlock()
	require.True(t, ok, "job %s not scheduled", handle)
	j.fn()
}

type recordingArchive struct {
	mu      sync.Mutex
	results []models.DrawResult
}

func (r *recordingArchive) SaveDraw(_ context.Context, res models.DrawResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

type fixture struct {
	svc     *Services
	store   *storage.MemoryStore
	sched   *fakeScheduler
	clock   *clockwork.FakeClock
	archive *recordingArchive
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{
		store:   storage.NewMemoryStore(),
		sched:   newFakeScheduler(),
		clock:   clockwork.NewFakeClockAt(t0.Add(time.Hour)),
		archive: &recordingArchive{},
	}
	deps := Deps{
		Store:     f.store,
		Scheduler: f.sched,
		Clock:     f.clock,
		Random:    rand.New(rand.NewPCG(1, 2)),
		Archive:   f.archive,
	}
	for _, o := range opts {
		o(&deps)
	}
	f.svc = New(deps)
	return f
}

func (f *fixture) competition(t *testing.T) models.Competition {
	t.Helper()
	c, err := f.svc.Competitions.CreateCompetition(context.Background(), models.Competition{Title: "Summer Giveaway"})
	require.NoError(t, err)
	return c
}

func rulesJSON(t *testing.T, r models.StageRules) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	return datatypes.JSON(raw)
}

func (f *fixture) stage(t *testing.T, competitionID string, typ models.StageType, name string, start, end time.Time, rules models.StageRules, manual bool) models.Stage {
	t.Helper()
	st := models.Stage{
		Type:          typ,
		Name:          name,
		StartTime:     start,
		EndTime:       end,
		ManualAdvance: manual,
	}
	if rules != nil {
		st.RuleSet = rulesJSON(t, rules)
	}
	created, err := f.svc.Stages.CreateStage(context.Background(), competitionID, st)
	require.NoError(t, err)
	return created
}

func (f *fixture) player(t *testing.T, competitionID, email string) models.Player {
	t.Helper()
	p, err := f.svc.Players.RegisterPlayer(context.Background(), competitionID, models.Player{Email: email})
	require.NoError(t, err)
	return p
}

func (f *fixture) stageState(t *testing.T, stageID string) models.DrawState {
	t.Helper()
	st, err := f.store.FindStage(context.Background(), stageID)
	require.NoError(t, err)
	state, err := st.DrawState()
	require.NoError(t, err)
	return state
}

func (f *fixture) entryState(t *testing.T, entryID string) string {
	t.Helper()
	e, err := f.store.FindEntry(context.Background(), entryID)
	require.NoError(t, err)
	return e.State
}

func ptr(s string) *string { return &s }

func edge(stageID string, success, fail string, start bool) models.ChainEdge {
	e := models.ChainEdge{StageID: stageID, IsStart: start}
	if success != "" {
		e.SuccessStageID = ptr(success)
	}
	if fail != "" {
		e.FailStageID = ptr(fail)
	}
	return e
}

// exampleChain builds submission -> moderate -(fail)-> random draw -> custom,
// each stage one day long, starting at t0.
type exampleChain struct {
	comp       models.Competition
	submission models.Stage
	moderate   models.Stage
	draw       models.Stage
	custom     models.Stage
	player     models.Player
}

func (f *fixture) exampleChain(t *testing.T, maxEntries, winners int) exampleChain {
	t.Helper()
	ctx := context.Background()
	var ex exampleChain
	ex.comp = f.competition(t)
	id := ex.comp.ID
	ex.submission = f.stage(t, id, models.StageSubmission, "submit", t0, t0.Add(day),
		models.SubmissionRules{Interval: models.IntervalHour, MaxEntries: maxEntries}, false)
	ex.moderate = f.stage(t, id, models.StageModerate, "moderate", t0.Add(day), t0.Add(2*day), nil, false)
	ex.draw = f.stage(t, id, models.StageRandomDraw, "draw", t0.Add(2*day), t0.Add(3*day),
		models.RandomDrawRules{Winners: winners}, false)
	ex.custom = f.stage(t, id, models.StageCustom, "winners", t0.Add(3*day), t0.Add(4*day), nil, false)
	ex.player = f.player(t, id, "player@example.com")

	_, err := f.svc.Chains.BuildChain(ctx, id, []models.ChainEdge{
		edge(ex.submission.ID, ex.moderate.ID, "", true),
		edge(ex.moderate.ID, "", ex.draw.ID, false),
		edge(ex.draw.ID, ex.custom.ID, "", false),
		edge(ex.custom.ID, "", "", false),
	})
	require.NoError(t, err)
	return ex
}

func (f *fixture) submit(t *testing.T, competitionID, playerID string) models.Entry {
	t.Helper()
	e, err := f.svc.Entries.Submit(context.Background(), competitionID, models.Entry{PlayerID: playerID})
	require.NoError(t, err)
	return e
}
