package intake

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/store"
)

// Status is the dashboard/CLI view of a tenant's current intake
// posture (original_source/intake.py's intake_status).
type Status struct {
	Mode           Mode
	AutoMode       Mode
	ManualOverride bool
	Override       *Override
	Signals        map[string]any
	Config         Config
	TenantID       string
}

// GetStatus reports tenantID's current mode, the auto-computed mode it
// would use absent an override, and the signals behind that computation.
func GetStatus(ctx context.Context, policy store.PolicyStore, signals HealthSignals, tenantID string, cfg Config) (*Status, error) {
	var tid *string
	if tenantID != "" {
		tid = &tenantID
	}

	mode, sig, err := resolveMode(ctx, policy, signals, tid, cfg)
	if err != nil {
		return nil, err
	}

	override, err := getOverride(ctx, policy, tenantID)
	if err != nil {
		return nil, err
	}

	return &Status{
		Mode:           mode,
		AutoMode:       Mode(sig["auto_mode"].(string)),
		ManualOverride: override != nil,
		Override:       override,
		Signals:        sig,
		Config:         cfg,
		TenantID:       tenantID,
	}, nil
}
