// services/scheduler.go
package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// JobScheduler runs one-shot jobs on gocron. Handles are gocron job ids.
type JobScheduler struct {
	sched gocron.Scheduler
	clock clockwork.Clock
}

func NewJobScheduler(clock clockwork.Clock, logger *slog.Logger) (*JobScheduler, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	sched, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLogger(resolveLogger(logger).With("module", "scheduler")),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &JobScheduler{sched: sched, clock: clock}, nil
}

func (j *JobScheduler) Start() {
	j.sched.Start()
}

func (j *JobScheduler) Shutdown() error {
	return j.sched.Shutdown()
}

// ScheduleOnce runs fn at when, or right away when that moment has passed.
func (j *JobScheduler) ScheduleOnce(when time.Time, name string, fn func()) (string, error) {
	start := gocron.OneTimeJobStartImmediately()
	if when.After(j.clock.Now()) {
		start = gocron.OneTimeJobStartDateTime(when)
	}
	job, err := j.sched.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithTags("draw"),
	)
	if err != nil {
		return "", err
	}
	return job.ID().String(), nil
}

// Cancel removes a pending job. Unknown handles are ignored.
func (j *JobScheduler) Cancel(handle string) error {
	if handle == "" {
		return nil
	}
	id, err := uuid.Parse(handle)
	if err != nil {
		return fmt.Errorf("invalid job handle %q: %w", handle, err)
	}
	if err := j.sched.RemoveJob(id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return err
	}
	return nil
}

// Pending returns the number of jobs still registered.
func (j *JobScheduler) Pending() int {
	return len(j.sched.Jobs())
}
