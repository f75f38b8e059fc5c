package events

import (
	"context"
	"fmt"
	"testing"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEventQuerier implements eventQuerier for testing the adapter.
type mockEventQuerier struct {
	events []*models.Event
	err    error
}

func (m *mockEventQuerier) QueryEvents(_ context.Context, filter store.EventQuery) ([]*models.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	if filter.Limit > 0 && len(m.events) > filter.Limit {
		return m.events[:filter.Limit], nil
	}
	return m.events, nil
}

func TestEventServiceAdapter_GetCatchupEvents(t *testing.T) {
	querier := &mockEventQuerier{
		events: []*models.Event{
			{ID: "evt-10", Timestamp: "2026-01-01T00:00:00Z", EventType: models.EventIntentMerged},
			{ID: "evt-20", Timestamp: "2026-01-01T00:01:00Z", EventType: models.EventIntentRejected},
		},
	}

	adapter := NewEventServiceAdapter(querier)
	events, err := adapter.GetCatchupEvents(context.Background(), GlobalChannel, "", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "evt-10", events[0].ID)
	assert.Equal(t, "evt-20", events[1].ID)
	assert.Equal(t, models.EventIntentMerged, events[0].Event.EventType)
}

func TestEventServiceAdapter_GetCatchupEvents_WithLimit(t *testing.T) {
	querier := &mockEventQuerier{
		events: []*models.Event{
			{ID: "evt-1"}, {ID: "evt-2"}, {ID: "evt-3"},
		},
	}

	adapter := NewEventServiceAdapter(querier)
	events, err := adapter.GetCatchupEvents(context.Background(), GlobalChannel, "", 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, "evt-2", events[1].ID)
}

func TestEventServiceAdapter_GetCatchupEvents_Error(t *testing.T) {
	querier := &mockEventQuerier{err: fmt.Errorf("database connection lost")}

	adapter := NewEventServiceAdapter(querier)
	events, err := adapter.GetCatchupEvents(context.Background(), GlobalChannel, "", 10)
	assert.Error(t, err)
	assert.Nil(t, events)
	assert.Contains(t, err.Error(), "database connection lost")
}

func TestEventServiceAdapter_GetCatchupEvents_Empty(t *testing.T) {
	querier := &mockEventQuerier{events: []*models.Event{}}

	adapter := NewEventServiceAdapter(querier)
	events, err := adapter.GetCatchupEvents(context.Background(), GlobalChannel, "", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventServiceAdapter_GetCatchupEvents_RoutesIntentChannel(t *testing.T) {
	intentID := "intent-42"
	querier := &mockEventQuerier{events: []*models.Event{{ID: "evt-1", IntentID: &intentID}}}

	adapter := NewEventServiceAdapter(querier)
	events, err := adapter.GetCatchupEvents(context.Background(), IntentChannel(intentID), "2026-01-01T00:00:00Z", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}
