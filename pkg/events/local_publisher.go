package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

// LocalPublisher broadcasts events directly to this process's
// ConnectionManager without going through PostgreSQL NOTIFY. Used when
// running the in-memory store backend (storefactory.BackendMemory),
// where there is no database to pg_notify through and every subscriber
// already lives in this same process.
type LocalPublisher struct {
	manager *ConnectionManager
}

// NewLocalPublisher creates a LocalPublisher over manager.
func NewLocalPublisher(manager *ConnectionManager) *LocalPublisher {
	return &LocalPublisher{manager: manager}
}

// Publish broadcasts event to the global channel, plus its intent and
// tenant channels if any, mirroring EventPublisher's channel routing.
func (p *LocalPublisher) Publish(ctx context.Context, event *models.Event) error {
	channels := []string{GlobalChannel}
	if event.IntentID != nil {
		channels = append(channels, IntentChannel(*event.IntentID))
	}
	if event.TenantID != nil {
		channels = append(channels, TenantChannel(*event.TenantID))
	}

	for _, channel := range channels {
		payload, err := json.Marshal(WireEvent{Channel: channel, Event: event})
		if err != nil {
			return fmt.Errorf("marshal wire event for channel %s: %w", channel, err)
		}
		p.manager.Broadcast(channel, payload)
	}
	return nil
}
