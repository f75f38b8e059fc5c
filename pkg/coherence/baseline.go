package coherence

import (
	"context"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// LoadBaselines reads the most recent coherence.baseline_updated
// event's payload (spec.md §4.5 "Baselines are loaded from the most
// recent coherence.baseline_updated event"). No event yet is not an
// error — it simply means every question is unbaselined.
func LoadBaselines(ctx context.Context, log *eventlog.Log) (map[string]float64, error) {
	eventType := string(models.EventCoherenceBaselineSet)
	events, err := log.Query(ctx, store.EventQuery{EventType: &eventType, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return map[string]float64{}, nil
	}
	raw, ok := events[0].Payload["baselines"]
	if !ok {
		return map[string]float64{}, nil
	}
	baselines := map[string]float64{}
	if typed, ok := raw.(map[string]float64); ok {
		for k, v := range typed {
			baselines[k] = v
		}
		return baselines, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return baselines, nil
	}
	for k, v := range m {
		switch n := v.(type) {
		case float64:
			baselines[k] = n
		case int:
			baselines[k] = float64(n)
		}
	}
	return baselines, nil
}

// UpdateBaselines appends a coherence.baseline_updated event carrying
// the current, error-free results' values as the new baselines, and
// returns the map it just persisted.
func UpdateBaselines(ctx context.Context, log *eventlog.Log, results []models.CoherenceResult) (map[string]float64, error) {
	baselines := map[string]float64{}
	for _, r := range results {
		if r.Error == nil {
			baselines[r.QuestionID] = r.Value
		}
	}
	_, err := log.Append(ctx, &models.Event{
		EventType: models.EventCoherenceBaselineSet,
		Payload:   map[string]any{"baselines": baselines},
	})
	if err != nil {
		return nil, fmt.Errorf("coherence: update baselines: %w", err)
	}
	return baselines, nil
}
