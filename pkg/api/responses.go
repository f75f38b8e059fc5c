package api

import "github.com/ghmbegerez/converge/pkg/database"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	Database      *database.HealthStatus `json:"database"`
	Configuration map[string]any         `json:"configuration"`
}

// ReadyResponse is returned by GET /readyz: a plain boolean liveness
// check with no database round-trip, so orchestrators can distinguish
// "process is up" from "process is fully healthy" (GET /health).
type ReadyResponse struct {
	Ready bool `json:"ready"`
}

// IntentResponse is returned by GET /intents/:id.
type IntentResponse struct {
	ID             string         `json:"id"`
	Source         string         `json:"source"`
	Target         string         `json:"target"`
	Status         string         `json:"status"`
	RiskLevel      string         `json:"risk_level"`
	Priority       int            `json:"priority"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
	CreatedBy      string         `json:"created_by"`
	Semantic       map[string]any `json:"semantic"`
	Technical      map[string]any `json:"technical"`
	ChecksRequired []string       `json:"checks_required,omitempty"`
	Dependencies   []string       `json:"dependencies,omitempty"`
	Retries        int            `json:"retries"`
}

// WebhookResponse is returned by POST /webhooks/github: the dispatcher's
// result payload plus the delivery ID it was recorded under.
type WebhookResponse struct {
	DeliveryID string         `json:"delivery_id"`
	Result     map[string]any `json:"result"`
}
