package events

import (
	"encoding/json"
	"testing"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireEvent_JSON(t *testing.T) {
	intentID := "intent-1"
	evt := &models.Event{
		ID:        "evt-1",
		TraceID:   "trace-1",
		Timestamp: "2026-02-13T10:00:00Z",
		EventType: models.EventIntentMerged,
		IntentID:  &intentID,
		Payload:   map[string]any{"sha": "abc123"},
	}

	wire := WireEvent{Channel: IntentChannel(intentID), Event: evt}
	data, err := json.Marshal(wire)
	require.NoError(t, err)

	var decoded WireEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "intent:intent-1", decoded.Channel)
	require.NotNil(t, decoded.Event)
	assert.Equal(t, "evt-1", decoded.Event.ID)
	assert.Equal(t, models.EventIntentMerged, decoded.Event.EventType)
	assert.Equal(t, "abc123", decoded.Event.Payload["sha"])
}

func TestWireEvent_GlobalChannelHasNoIDs(t *testing.T) {
	evt := &models.Event{ID: "evt-2", EventType: models.EventQueueReset, Payload: map[string]any{}}
	wire := WireEvent{Channel: GlobalChannel, Event: evt}

	data, err := json.Marshal(wire)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"channel":"global"`)
}
