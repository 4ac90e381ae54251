package models

import "sort"

// CompetitionGraph is a consistent snapshot of one competition. Stages, edges
// and players are keyed by id; lookups never go through back-references.
type CompetitionGraph struct {
	Competition Competition
	Stages      map[string]Stage
	Edges       map[string]ChainEdge
	Players     map[string]Player
	Entries     []Entry
}

func NewCompetitionGraph(c Competition) CompetitionGraph {
	return CompetitionGraph{
		Competition: c,
		Stages:      map[string]Stage{},
		Edges:       map[string]ChainEdge{},
		Players:     map[string]Player{},
	}
}

func (g CompetitionGraph) HasChain() bool {
	return len(g.Edges) > 0
}

// OrderedEdges returns the chain edges sorted by position, then stage id.
func (g CompetitionGraph) OrderedEdges() []ChainEdge {
	out := make([]ChainEdge, 0, len(g.Edges))
	for _, e := range g.Edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].StageID < out[j].StageID
	})
	return out
}

func (g CompetitionGraph) StartEdges() []ChainEdge {
	var out []ChainEdge
	for _, e := range g.OrderedEdges() {
		if e.IsStart {
			out = append(out, e)
		}
	}
	return out
}

func (g CompetitionGraph) Entry(id string) (Entry, bool) {
	for _, e := range g.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// EntriesAt returns the entries currently occupying a stage.
func (g CompetitionGraph) EntriesAt(stageID string) []Entry {
	var out []Entry
	for _, e := range g.Entries {
		if e.State == stageID {
			out = append(out, e)
		}
	}
	return out
}

// StagesOfType returns stages of type t in chain order when a chain exists,
// otherwise by start time.
func (g CompetitionGraph) StagesOfType(t StageType) []Stage {
	var out []Stage
	for _, s := range g.Stages {
		if s.Type == t {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ei, ej := g.Edges[out[i].ID], g.Edges[out[j].ID]
		if ei.Position != ej.Position {
			return ei.Position < ej.Position
		}
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
