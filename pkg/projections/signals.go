package projections

import "context"

// HealthSignalsAdapter exposes Service as pkg/intake's HealthSignals
// port, so the intake auto-mode decision can read live repo health,
// verification debt, and queue depth without pkg/intake importing
// pkg/projections directly (spec.md §4.11 feeds §4.7).
type HealthSignalsAdapter struct {
	Service *Service
}

// NewHealthSignalsAdapter wraps a projections Service as an
// intake.HealthSignals implementation.
func NewHealthSignalsAdapter(svc *Service) *HealthSignalsAdapter {
	return &HealthSignalsAdapter{Service: svc}
}

// RepoHealthScore satisfies intake.HealthSignals.
func (a *HealthSignalsAdapter) RepoHealthScore(tenantID *string) (float64, string, float64, error) {
	snap, err := a.Service.RepoHealth(context.Background(), tenantID, 24)
	if err != nil {
		return 0, "", 0, err
	}
	return snap.RepoHealthScore, snap.Status, snap.ConflictRate, nil
}

// VerificationDebtScore satisfies intake.HealthSignals.
func (a *HealthSignalsAdapter) VerificationDebtScore(tenantID *string) (float64, string, error) {
	snap, err := a.Service.VerificationDebt(context.Background(), VerificationDebtOptions{TenantID: tenantID})
	if err != nil {
		return 0, "", err
	}
	return snap.DebtScore, snap.Status, nil
}

// QueueCounts satisfies intake.HealthSignals.
func (a *HealthSignalsAdapter) QueueCounts(tenantID *string) (int, int, error) {
	snap, err := a.Service.QueueState(context.Background(), tenantID)
	if err != nil {
		return 0, 0, err
	}
	return snap.Total, len(snap.Pending), nil
}
