package events

import "github.com/ghmbegerez/converge/pkg/models"

// WireEvent is what actually goes out over NOTIFY and WebSocket: a
// models.Event plus the channel it was routed to, so a client
// subscribed to multiple channels (e.g. global + one intent) can tell
// them apart without re-deriving routing from the payload.
type WireEvent struct {
	Channel string        `json:"channel"`
	Event   *models.Event `json:"event"`
}
