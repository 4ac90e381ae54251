package storage

import (
	"context"
	"sort"
	"sync"

	"competition-engine/models"
)

// MemoryStore keeps everything in process memory. It is safe for concurrent
// use and mirrors GormStore semantics, including compare-and-set moves.
type MemoryStore struct {
	mu           sync.RWMutex
	competitions map[string]models.Competition
	stages       map[string]models.Stage
	edges        map[string]models.ChainEdge
	players      map[string]models.Player
	entries      map[string]models.Entry
	entryOrder   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		competitions: map[string]models.Competition{},
		stages:       map[string]models.Stage{},
		edges:        map[string]models.ChainEdge{},
		players:      map[string]models.Player{},
		entries:      map[string]models.Entry{},
	}
}

func (m *MemoryStore) CreateCompetition(_ context.Context, c *models.Competition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.competitions[c.ID] = *c
	return nil
}

func (m *MemoryStore) ListCompetitions(_ context.Context) ([]models.Competition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Competition, 0, len(m.competitions))
	for _, c := range m.competitions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) LoadCompetition(_ context.Context, id string) (models.CompetitionGraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	comp, ok := m.competitions[id]
	if !ok {
		return models.CompetitionGraph{}, ErrNotFound
	}
	g := models.NewCompetitionGraph(comp)
	for _, st := range m.stages {
		if st.CompetitionID == id {
			g.Stages[st.ID] = st
		}
	}
	for _, e := range m.edges {
		if e.CompetitionID == id {
			g.Edges[e.StageID] = e
		}
	}
	for _, p := range m.players {
		if p.CompetitionID == id {
			g.Players[p.ID] = p
		}
	}
	for _, eid := range m.entryOrder {
		if e := m.entries[eid]; e.CompetitionID == id {
			g.Entries = append(g.Entries, e)
		}
	}
	return g, nil
}

func (m *MemoryStore) DeleteCompetition(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.competitions[id]; !ok {
		return ErrNotFound
	}
	m.purgeChain(id)
	for sid, st := range m.stages {
		if st.CompetitionID == id {
			delete(m.stages, sid)
		}
	}
	delete(m.competitions, id)
	return nil
}

func (m *MemoryStore) UpdateCompetition(_ context.Context, c models.Competition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.competitions[c.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title = c.Title
	cur.Slug = c.Slug
	cur.Description = c.Description
	cur.UpdatedAt = c.UpdatedAt
	m.competitions[c.ID] = cur
	return nil
}

// dropEntries removes the entries drop matches and keeps the insertion order
// of the rest.
func (m *MemoryStore) dropEntries(drop func(models.Entry) bool) {
	kept := m.entryOrder[:0]
	for _, eid := range m.entryOrder {
		if drop(m.entries[eid]) {
			delete(m.entries, eid)
			continue
		}
		kept = append(kept, eid)
	}
	m.entryOrder = kept
}

func (m *MemoryStore) purgeChain(competitionID string) {
	for sid, e := range m.edges {
		if e.CompetitionID == competitionID {
			delete(m.edges, sid)
		}
	}
	for pid, p := range m.players {
		if p.CompetitionID == competitionID {
			delete(m.players, pid)
		}
	}
	m.dropEntries(func(e models.Entry) bool { return e.CompetitionID == competitionID })
}

func (m *MemoryStore) CreatePlayer(_ context.Context, p *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.ID] = *p
	return nil
}

func (m *MemoryStore) FindPlayer(_ context.Context, id string) (models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return p, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) UpdatePlayer(_ context.Context, p models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.players[p.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Email = p.Email
	cur.Metadata = p.Metadata
	m.players[p.ID] = cur
	return nil
}

func (m *MemoryStore) DeletePlayer(_ context.Context, competitionID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.competitions[competitionID]; !ok {
		return ErrNotFound
	}
	p, ok := m.players[playerID]
	if !ok || p.CompetitionID != competitionID {
		return ErrNotFound
	}
	m.dropEntries(func(e models.Entry) bool {
		return e.CompetitionID == competitionID && e.PlayerID == playerID
	})
	delete(m.players, playerID)
	return nil
}

func (m *MemoryStore) PlayerExists(_ context.Context, competitionID, playerID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[playerID]
	return ok && p.CompetitionID == competitionID, nil
}

func (m *MemoryStore) CreateEntry(_ context.Context, e *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		m.entryOrder = append(m.entryOrder, e.ID)
	}
	m.entries[e.ID] = *e
	return nil
}

func (m *MemoryStore) FindEntry(_ context.Context, id string) (models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return e, ErrNotFound
	}
	return e, nil
}

func (m *MemoryStore) DeleteEntry(_ context.Context, competitionID, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok || e.CompetitionID != competitionID {
		return ErrNotFound
	}
	m.dropEntries(func(e models.Entry) bool { return e.ID == entryID })
	return nil
}

func (m *MemoryStore) SaveChain(_ context.Context, competitionID string, edges []models.ChainEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.competitions[competitionID]; !ok {
		return ErrNotFound
	}
	for _, e := range edges {
		e.CompetitionID = competitionID
		m.edges[e.StageID] = e
	}
	return nil
}

func (m *MemoryStore) DeleteChain(_ context.Context, competitionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.competitions[competitionID]; !ok {
		return ErrNotFound
	}
	m.purgeChain(competitionID)
	return nil
}

func (m *MemoryStore) Commit(_ context.Context, competitionID string, cs models.Changeset) ([]models.Move, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.competitions[competitionID]; !ok {
		return nil, ErrNotFound
	}

	var claimed models.Stage
	if cs.Draw != "" {
		st, ok := m.stages[cs.Draw]
		if !ok || st.CompetitionID != competitionID {
			return nil, ErrNotFound
		}
		state, err := st.DrawState()
		if err != nil {
			return nil, err
		}
		if state.Drawn {
			return nil, ErrAlreadyDrawn
		}
		st.SetDrawState(models.DrawState{Drawn: true})
		claimed = st
	}

	var applied []models.Move
	for _, mv := range cs.Moves {
		e, ok := m.entries[mv.EntryID]
		if !ok || e.CompetitionID != competitionID || e.State != mv.From {
			if cs.AllMoves {
				return nil, ErrStale
			}
			continue
		}
		applied = append(applied, mv)
	}

	if cs.Draw != "" {
		m.stages[cs.Draw] = claimed
	}
	for _, mv := range applied {
		e := m.entries[mv.EntryID]
		e.State = mv.To
		m.entries[mv.EntryID] = e
	}
	return applied, nil
}

func (m *MemoryStore) CreateStage(_ context.Context, st *models.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[st.ID] = *st
	return nil
}

func (m *MemoryStore) FindStage(_ context.Context, id string) (models.Stage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stages[id]
	if !ok {
		return st, ErrNotFound
	}
	return st, nil
}

func (m *MemoryStore) UpdateStage(_ context.Context, st models.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stages[st.ID]; !ok {
		return ErrNotFound
	}
	m.stages[st.ID] = st
	return nil
}

func (m *MemoryStore) DeleteStage(_ context.Context, competitionID, stageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.competitions[competitionID]; !ok {
		return ErrNotFound
	}
	st, ok := m.stages[stageID]
	if !ok || st.CompetitionID != competitionID {
		return ErrNotFound
	}
	m.dropEntries(func(e models.Entry) bool {
		return e.CompetitionID == competitionID && e.State == stageID
	})
	delete(m.stages, stageID)
	return nil
}
