package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJobScheduler(t *testing.T) *JobScheduler {
	t.Helper()
	s, err := NewJobScheduler(nil, nil)
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestJobSchedulerRunsAtTheGivenTime(t *testing.T) {
	s := newJobScheduler(t)
	var ran atomic.Int32

	handle, err := s.ScheduleOnce(time.Now().Add(100*time.Millisecond), "draw-soon", func() { ran.Add(1) })
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	require.Eventually(t, func() bool { return ran.Load() == 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestJobSchedulerRunsPastJobsImmediately(t *testing.T) {
	s := newJobScheduler(t)
	var ran atomic.Int32

	_, err := s.ScheduleOnce(time.Now().Add(-time.Hour), "draw-late", func() { ran.Add(1) })
	require.NoError(t, err)

	require.Eventually(t, func() bool { return ran.Load() == 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestJobSchedulerCancel(t *testing.T) {
	s := newJobScheduler(t)
	var ran atomic.Int32

	handle, err := s.ScheduleOnce(time.Now().Add(time.Hour), "draw-later", func() { ran.Add(1) })
	require.NoError(t, err)
	require.Equal(t, 1, s.Pending())

	require.NoError(t, s.Cancel(handle))
	require.Eventually(t, func() bool { return s.Pending() == 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Zero(t, ran.Load())

	assert.NoError(t, s.Cancel(handle), "cancelling twice is not an error")
	assert.NoError(t, s.Cancel(""))
	assert.Error(t, s.Cancel("not-a-job"))
}
