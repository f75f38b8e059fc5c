package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

// EventPublisher broadcasts already-persisted events via PostgreSQL
// NOTIFY for WebSocket delivery. It does NOT append to the event log —
// pkg/eventlog owns persistence; this package only tails it. A single
// pg_notify per target channel keeps a client's "global" subscription
// and its "intent:<id>" subscription in sync with one INSERT.
type EventPublisher struct {
	db *sql.DB
}

// NewEventPublisher creates a new EventPublisher.
// The db parameter should be the *sql.DB from database.Client.DB().
func NewEventPublisher(db *sql.DB) *EventPublisher {
	return &EventPublisher{db: db}
}

// Publish broadcasts an already-appended event to the global channel,
// plus the intent and tenant channels it belongs to, if any.
func (p *EventPublisher) Publish(ctx context.Context, event *models.Event) error {
	channels := []string{GlobalChannel}
	if event.IntentID != nil {
		channels = append(channels, IntentChannel(*event.IntentID))
	}
	if event.TenantID != nil {
		channels = append(channels, TenantChannel(*event.TenantID))
	}

	for _, channel := range channels {
		if err := p.notify(ctx, channel, event); err != nil {
			return fmt.Errorf("notify channel %s: %w", channel, err)
		}
	}
	return nil
}

// notify sends a single pg_notify for the given channel.
func (p *EventPublisher) notify(ctx context.Context, channel string, event *models.Event) error {
	wire := WireEvent{Channel: channel, Event: event}
	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("failed to marshal wire event: %w", err)
	}

	notifyPayload, err := truncateIfNeeded(string(payload), event)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// truncateIfNeeded returns the payload string as-is if it fits within
// PostgreSQL's 8000-byte NOTIFY limit, otherwise a minimal envelope
// carrying only the routing fields a client needs to re-fetch the full
// event via catchup.
func truncateIfNeeded(payloadStr string, event *models.Event) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	truncated := map[string]any{
		"id":         event.ID,
		"event_type": event.EventType,
		"timestamp":  event.Timestamp,
		"truncated":  true,
	}
	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}
