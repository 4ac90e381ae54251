package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"competition-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedLister struct {
	comps []models.Competition
	err   error
}

func (l fixedLister) ListCompetitions(context.Context) ([]models.Competition, error) {
	return l.comps, l.err
}

type countingSweeper struct {
	mu    sync.Mutex
	calls []string
	moved map[string]int
	fail  map[string]error
}

func (s *countingSweeper) Sweep(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	if err := s.fail[id]; err != nil {
		return 0, err
	}
	return s.moved[id], nil
}

func (s *countingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestRunOnceSweepsEveryCompetition(t *testing.T) {
	lister := fixedLister{comps: []models.Competition{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	sweeper := &countingSweeper{
		moved: map[string]int{"a": 2, "c": 1},
		fail:  map[string]error{"b": errors.New("db down")},
	}
	w := NewSweepWorker(lister, sweeper, nil)

	moved, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, moved)
	assert.Equal(t, []string{"a", "b", "c"}, sweeper.calls)
}

func TestRunOnceReportsListFailure(t *testing.T) {
	w := NewSweepWorker(fixedLister{err: errors.New("no db")}, &countingSweeper{}, nil)

	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestPollStopsWithContext(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewSweepWorker(fixedLister{comps: []models.Competition{{ID: "a"}}}, sweeper, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Poll(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return sweeper.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop")
	}
}
