package events

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// eventQuerier abstracts the event query method needed by
// EventServiceAdapter. Implemented by pkg/store's EventStore port.
type eventQuerier interface {
	QueryEvents(ctx context.Context, filter store.EventQuery) ([]*models.Event, error)
}

// EventServiceAdapter wraps an eventQuerier to implement CatchupQuerier.
type EventServiceAdapter struct {
	querier eventQuerier
}

// NewEventServiceAdapter creates a CatchupQuerier from an event store.
func NewEventServiceAdapter(es eventQuerier) *EventServiceAdapter {
	return &EventServiceAdapter{querier: es}
}

// GetCatchupEvents queries events on channel since sinceTimestamp (exclusive),
// capped at limit, in the order the querier returns them (newest first
// for the pkg/store backends); it does not reorder them. The channel is translated into the
// matching EventQuery filter (intent/tenant/global).
func (a *EventServiceAdapter) GetCatchupEvents(ctx context.Context, channel, sinceTimestamp string, limit int) ([]CatchupEvent, error) {
	filter := store.EventQuery{Since: sinceTimestamp, Limit: limit}
	switch {
	case channel == GlobalChannel:
	case len(channel) > len("intent:") && channel[:len("intent:")] == "intent:":
		id := channel[len("intent:"):]
		filter.IntentID = &id
	case len(channel) > len("tenant:") && channel[:len("tenant:")] == "tenant:":
		id := channel[len("tenant:"):]
		filter.TenantID = &id
	}

	evts, err := a.querier.QueryEvents(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := make([]CatchupEvent, len(evts))
	for i, evt := range evts {
		result[i] = CatchupEvent{ID: evt.ID, Timestamp: evt.Timestamp, Event: evt}
	}
	return result, nil
}
