package services

import (
	"strings"
	"sync"
)

// competitionLocks serialises mutations per competition. Locks are held for
// a single operation and dropped once no caller references them.
type competitionLocks struct {
	mu    sync.Mutex
	locks map[string]*lockRef
}

type lockRef struct {
	mu   sync.Mutex
	refs int
}

func newCompetitionLocks() *competitionLocks {
	return &competitionLocks{locks: map[string]*lockRef{}}
}

// Lock blocks until the competition is free and returns its unlock func.
// The id is copied: callers may pass strings backed by reused request
// buffers.
func (c *competitionLocks) Lock(competitionID string) func() {
	competitionID = strings.Clone(competitionID)
	c.mu.Lock()
	ref, ok := c.locks[competitionID]
	if !ok {
		ref = &lockRef{}
		c.locks[competitionID] = ref
	}
	ref.refs++
	c.mu.Unlock()

	ref.mu.Lock()
	return func() {
		ref.mu.Unlock()
		c.mu.Lock()
		ref.refs--
		if ref.refs == 0 {
			delete(c.locks, competitionID)
		}
		c.mu.Unlock()
	}
}
