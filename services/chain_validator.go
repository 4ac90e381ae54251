package services

import (
	"fmt"
	"sort"

	"competition-engine/models"

	"golang.org/x/sync/errgroup"
)

const (
	keyChain        = "Chain"
	keyBadReference = "Bad Stage Reference"
)

func stageKey(id string) string {
	return "Stage Id " + id
}

// ValidateChain reports every structural and temporal problem of a chain
// proposal. It returns true only when no problem was found.
func ValidateChain(stages map[string]models.Stage, edges []models.ChainEdge, sink ErrorSink) bool {
	structural := NewErrorList()

	if len(edges) == 0 {
		structural.Add(keyChain, "Chain must contain at least one stage.")
	}

	seen := make(map[string]bool, len(edges))
	valid := make([]models.ChainEdge, 0, len(edges))
	hasStart := false
	for _, e := range edges {
		if _, ok := stages[e.StageID]; !ok {
			structural.Add(keyBadReference, fmt.Sprintf("Stage Id %s does not belong to this competition.", e.StageID))
			continue
		}
		if seen[e.StageID] {
			structural.Add(stageKey(e.StageID), "Stage appears more than once in the chain.")
			continue
		}
		seen[e.StageID] = true
		valid = append(valid, e)
		if e.IsStart {
			hasStart = true
		}
	}
	if !hasStart {
		structural.Add(keyChain, "Chain must have at least one start stage.")
	}

	ids := make([]string, 0, len(stages))
	for id := range stages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !seen[id] {
			structural.Add(stageKey(id), "Stage is not part of the chain.")
		}
	}

	inbound := make(map[string][]models.Stage, len(valid))
	for _, e := range valid {
		src := stages[e.StageID]
		successID, hasSuccess := e.Success()
		if hasSuccess {
			inbound[successID] = append(inbound[successID], src)
		}
		if failID, ok := e.Fail(); ok && (!hasSuccess || failID != successID) {
			inbound[failID] = append(inbound[failID], src)
		}
	}

	perStage := make([]*ErrorList, len(valid))
	var g errgroup.Group
	for i, e := range valid {
		perStage[i] = NewErrorList()
		g.Go(func() error {
			checkChainStage(e, stages, inbound[e.StageID], perStage[i])
			return nil
		})
	}
	_ = g.Wait()

	ok := !structural.HasErrors()
	for _, it := range structural.Items() {
		sink.Add(it.Key, it.Message)
	}
	for _, list := range perStage {
		if list.HasErrors() {
			ok = false
		}
		for _, it := range list.Items() {
			sink.Add(it.Key, it.Message)
		}
	}
	return ok
}

func checkChainStage(edge models.ChainEdge, stages map[string]models.Stage, inbound []models.Stage, sink ErrorSink) {
	stage := stages[edge.StageID]
	key := stageKey(stage.ID)

	var targets []models.Stage
	resolve := func(label string, id string, declared bool) {
		if !declared {
			return
		}
		t, ok := stages[id]
		if !ok {
			sink.Add(keyBadReference, fmt.Sprintf("%s stage %s of stage %s does not exist.", label, id, stage.ID))
			return
		}
		targets = append(targets, t)
	}
	successID, hasSuccess := edge.Success()
	failID, hasFail := edge.Fail()
	resolve("Success", successID, hasSuccess)
	resolve("Fail", failID, hasFail)

	fromOthers := 0
	for _, src := range inbound {
		if src.ID != stage.ID {
			fromOthers++
		}
	}

	switch stage.Type {
	case models.StageSubmission:
		for _, t := range targets {
			if t.StartTime.Before(stage.EndTime) {
				sink.Add(key, fmt.Sprintf("Clashes with stage id %s: it starts before this stage ends.", t.ID))
			}
		}
	case models.StageModerate:
		if edge.IsStart {
			sink.Add(key, "Moderate stages cannot be the start stage.")
		}
		if fromOthers == 0 {
			sink.Add(key, "Moderate stages must be referenced by another stage.")
		}
	case models.StageRandomDraw:
		if edge.IsStart {
			sink.Add(key, "Random draw stages cannot be the start stage.")
		}
		if fromOthers == 0 {
			sink.Add(key, "Random draw stages must be referenced by another stage.")
		}
		if !hasSuccess {
			sink.Add(key, "Random draw stages must have a success stage.")
		}
	case models.StageCustom:
	default:
		sink.Add(key, fmt.Sprintf("Stage type '%s' is not supported.", stage.Type))
	}

	for _, src := range inbound {
		if src.EndTime.After(stage.StartTime) {
			sink.Add(key, fmt.Sprintf("Clashes with inbound stage id %s: it ends after this stage starts.", src.ID))
		}
	}
}
