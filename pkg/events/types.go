// Package events provides real-time event delivery via WebSocket and
// PostgreSQL NOTIFY/LISTEN for cross-replica distribution. It is a live
// tail over the same events table the event log (pkg/eventlog) appends
// to: every Append is persisted once and then fanned out to subscribed
// WebSocket connections without polling.
//
// Channel naming:
//   - GlobalChannel — every event, used by dashboards watching the whole
//     system (queue state, worker heartbeats).
//   - IntentChannel(id) — events scoped to a single intent, used by a
//     client watching one pull request's validation/merge progress.
//   - TenantChannel(id) — events scoped to a single tenant.
package events

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action         string  `json:"action"`                    // "subscribe", "unsubscribe", "catchup", "ping"
	Channel        string  `json:"channel,omitempty"`          // Channel name (e.g., "intent:owner/repo:pr-42")
	LastTimestamp  *string `json:"last_timestamp,omitempty"`   // ISO-8601 cursor, for catchup
}

// GlobalChannel is the channel carrying every persisted event.
const GlobalChannel = "global"

// IntentChannel returns the channel name for a specific intent's events.
// Format: "intent:{intent_id}"
func IntentChannel(intentID string) string {
	return "intent:" + intentID
}

// TenantChannel returns the channel name for a specific tenant's events.
// Format: "tenant:{tenant_id}"
func TenantChannel(tenantID string) string {
	return "tenant:" + tenantID
}
