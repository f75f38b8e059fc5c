package intake

import (
	"encoding/json"
	"os"
)

// Config holds the intake thresholds, an optional extension of the
// policy config file's top-level "intake" section (original_source/
// intake.py's _load_intake_config reads it off the same document the
// Policy Engine loads).
type Config struct {
	PauseBelowHealth    float64 `json:"pause_below_health"`
	ThrottleBelowHealth float64 `json:"throttle_below_health"`
	ThrottleRatio       float64 `json:"throttle_ratio"`
}

// DefaultConfig mirrors original_source/intake.py's DEFAULT_INTAKE_CONFIG.
// defaults.py (which held the numeric constants intake.py imports) was
// not present in the filtered original_source copy; these values are
// reconstructed from spec.md §4.6's prose thresholds.
func DefaultConfig() Config {
	return Config{
		PauseBelowHealth:    30.0,
		ThrottleBelowHealth: 60.0,
		ThrottleRatio:       0.5,
	}
}

// configPaths mirrors pkg/policy's DefaultConfigPaths: the same policy
// document may carry an "intake" section alongside "profiles"/"risk".
var configPaths = []string{".converge/policy.json", "policy.json", "policy.default.json"}

type fileShape struct {
	Intake *Config `json:"intake"`
}

// LoadConfig reads the intake section from configPath (if non-empty) or
// the first of configPaths that exists, falling back to DefaultConfig
// for any field the file omits.
func LoadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()
	paths := configPaths
	if configPath != "" {
		paths = append([]string{configPath}, configPaths...)
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return cfg, err
		}
		var raw fileShape
		if err := json.Unmarshal(data, &raw); err != nil {
			return cfg, err
		}
		if raw.Intake != nil {
			if raw.Intake.PauseBelowHealth != 0 {
				cfg.PauseBelowHealth = raw.Intake.PauseBelowHealth
			}
			if raw.Intake.ThrottleBelowHealth != 0 {
				cfg.ThrottleBelowHealth = raw.Intake.ThrottleBelowHealth
			}
			if raw.Intake.ThrottleRatio != 0 {
				cfg.ThrottleRatio = raw.Intake.ThrottleRatio
			}
		}
		break
	}
	return cfg, nil
}
