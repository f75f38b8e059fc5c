package policy

// Profile is one risk-level's gate configuration (spec.md §4.4).
type Profile struct {
	EntropyBudget  float64        `json:"entropy_budget"`
	ContainmentMin float64        `json:"containment_min"`
	Checks         []string       `json:"checks"`
	Security       SecurityLimits `json:"security"`
}

// SecurityLimits caps the security gate's tolerated finding counts.
type SecurityLimits struct {
	MaxCritical int `json:"max_critical"`
	MaxHigh     int `json:"max_high"`
}

// RiskThresholds bounds the separate, gradually-rolled-out risk gate.
type RiskThresholds struct {
	RiskScore        float64 `json:"risk_score"`
	DamageScore      float64 `json:"damage_score"`
	PropagationScore float64 `json:"propagation_score"`
}

// Coherence pass/warn thresholds, profile-specific per spec.md §4.4
// gate 5 ("75 by default; 80 for critical profile" / "60/70" warn).
const (
	coherencePassDefault  = 75.0
	coherencePassCritical = 80.0
	coherenceWarnDefault  = 60.0
	coherenceWarnCritical = 70.0
)

// DefaultProfiles returns a fresh copy of the built-in low/medium/high/
// critical profiles (entropy budgets 25/18/12/6). CalibrateProfiles
// returns these unchanged when it has no historical samples; its
// safety floors (15/10/6/3) sit below these budgets.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"low": {
			EntropyBudget:  25.0,
			ContainmentMin: 0.4,
			Checks:         []string{"lint"},
			Security:       SecurityLimits{MaxCritical: 0, MaxHigh: 5},
		},
		"medium": {
			EntropyBudget:  18.0,
			ContainmentMin: 0.5,
			Checks:         []string{"lint", "unit_tests"},
			Security:       SecurityLimits{MaxCritical: 0, MaxHigh: 2},
		},
		"high": {
			EntropyBudget:  12.0,
			ContainmentMin: 0.65,
			Checks:         []string{"lint", "unit_tests", "integration_tests"},
			Security:       SecurityLimits{MaxCritical: 0, MaxHigh: 1},
		},
		"critical": {
			EntropyBudget:  6.0,
			ContainmentMin: 0.8,
			Checks:         []string{"lint", "unit_tests", "integration_tests", "security_scan"},
			Security:       SecurityLimits{MaxCritical: 0, MaxHigh: 0},
		},
	}
}

// DefaultRiskThresholds returns the built-in risk-gate limits.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{RiskScore: 70.0, DamageScore: 70.0, PropagationScore: 60.0}
}

// Calibration multipliers and safety floors (spec.md §4.4
// "Calibration... conservative multipliers and floors, so calibration
// never relaxes strict profiles below a safety floor").
const (
	calibLowMult      = 0.7
	calibCriticalMult = 1.0
	calibFloorLow     = 15.0
	calibFloorMedium  = 10.0
	calibFloorHigh    = 6.0
	calibFloorCritical = 3.0
	calibP75          = 0.75
	calibP90          = 0.90
	calibP95          = 0.95
)
