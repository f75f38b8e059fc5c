package models

// Intent is the materialized view over intent-related events
// (spec.md §3). It represents a proposed merge from Source to Target.
type Intent struct {
	ID             string                 `json:"id"`
	Source         string                 `json:"source"`
	Target         string                 `json:"target"`
	Status         Status                 `json:"status"`
	CreatedAt      string                 `json:"created_at"`
	CreatedBy      string                 `json:"created_by"`
	RiskLevel      RiskLevel              `json:"risk_level"`
	Priority       int                    `json:"priority"`
	Semantic       map[string]any         `json:"semantic"`
	Technical      map[string]any         `json:"technical"`
	ChecksRequired []string               `json:"checks_required"`
	Dependencies   []string               `json:"dependencies"`
	Retries        int                    `json:"retries"`
	TenantID       *string                `json:"tenant_id,omitempty"`
	PlanID         *string                `json:"plan_id,omitempty"`
	OriginType     OriginType             `json:"origin_type"`
	UpdatedAt      string                 `json:"updated_at,omitempty"`
}

// NewIntent builds an Intent with system defaults applied, mirroring
// original_source/models.py's Intent construction defaults.
func NewIntent(id, source, target string) *Intent {
	now := NowISO()
	return &Intent{
		ID:             id,
		Source:         source,
		Target:         target,
		Status:         StatusReady,
		CreatedAt:      now,
		CreatedBy:      "system",
		RiskLevel:      RiskMedium,
		Priority:       3,
		Semantic:       map[string]any{},
		Technical:      map[string]any{},
		ChecksRequired: nil,
		Dependencies:   nil,
		Retries:        0,
		OriginType:     OriginHuman,
		UpdatedAt:      now,
	}
}

// ScopeHint returns technical.scope_hint, if present, used by the risk
// engine's scope-node edge weighting (spec.md §4.3).
func (i *Intent) ScopeHint() (string, bool) {
	v, ok := i.Technical["scope_hint"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Repo returns technical.repo, if present.
func (i *Intent) Repo() (string, bool) {
	v, ok := i.Technical["repo"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
