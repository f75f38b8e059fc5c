package engine

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Simulate runs a dry-run merge and records simulation.completed
// (original_source/engine.py's simulate, Invariant 1 part 1: can_merge).
func (e *Engine) Simulate(ctx context.Context, source, target, intentID, tenantID, cwd, traceID string) (*models.Simulation, error) {
	sim, err := e.SCM.SimulateMerge(ctx, source, target, cwd)
	if err != nil {
		return nil, err
	}

	result := &models.Simulation{
		Mergeable:    sim.Mergeable,
		Conflicts:    sim.Conflicts,
		FilesChanged: sim.FilesChanged,
		Source:       source,
		Target:       target,
		Timestamp:    models.NowISO(),
	}

	ev := models.NewEvent(models.EventSimulationCompleted, map[string]any{
		"mergeable":     result.Mergeable,
		"conflicts":     result.Conflicts,
		"files_changed": result.FilesChanged,
		"source":        source,
		"target":        target,
	})
	ev.TraceID = traceID
	ev.IntentID = strPtr(intentID)
	ev.TenantID = strPtr(tenantID)
	ev.Evidence = map[string]any{"source": source, "target": target, "conflict_count": len(result.Conflicts)}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, err
	}
	return result, nil
}

// SimulateFromLast retrieves the most recent simulation recorded for
// intentID (a dev fallback so a validation retry doesn't re-run the
// dry-run merge). Returns (nil, false, nil) when none is found.
func (e *Engine) SimulateFromLast(ctx context.Context, intentID string) (*models.Simulation, bool, error) {
	events, err := e.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventSimulationCompleted),
		IntentID:  strPtr(intentID),
		Limit:     1,
	})
	if err != nil {
		return nil, false, err
	}
	if len(events) == 0 {
		return nil, false, nil
	}

	p := events[0].Payload
	return &models.Simulation{
		Mergeable:    asBool(p["mergeable"]),
		Conflicts:    asStrings(p["conflicts"]),
		FilesChanged: asStrings(p["files_changed"]),
		Source:       asString(p["source"]),
		Target:       asString(p["target"]),
	}, true, nil
}

func eventTypePtr(t models.EventType) *string {
	s := string(t)
	return &s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
