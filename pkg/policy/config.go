package policy

import (
	"encoding/json"
	"os"

	"dario.cat/mergo"
)

// Config is the layered policy configuration: built-in defaults,
// optionally overridden by a config file, optionally overridden again
// per origin type (spec.md §4.4 "Configuration is layered").
type Config struct {
	Profiles        map[string]Profile                    `json:"profiles"`
	Risk            RiskThresholds                         `json:"risk"`
	OriginOverrides map[string]map[string]map[string]any  `json:"origin_overrides,omitempty"`
}

// fileShape mirrors the JSON document on disk; only present sections
// override the defaults, matching original_source/policy.py's
// load_config which updates each dict independently.
type fileShape struct {
	Profiles        map[string]map[string]any            `json:"profiles"`
	Risk            map[string]float64                    `json:"risk"`
	OriginOverrides map[string]map[string]map[string]any `json:"origin_overrides"`
}

// DefaultConfigPaths is the lookup order load_config tries when no
// explicit path is given (spec.md §4.4; original_source/policy.py).
var DefaultConfigPaths = []string{".converge/policy.json", "policy.json", "policy.default.json"}

// LoadConfig reads the first existing path in order (configPath first
// if non-empty, then DefaultConfigPaths), shallow-merging any present
// section onto the built-in defaults. A missing file at every path is
// not an error: the built-in defaults are a complete, valid policy.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{Profiles: DefaultProfiles(), Risk: DefaultRiskThresholds()}

	paths := DefaultConfigPaths
	if configPath != "" {
		paths = append([]string{configPath}, DefaultConfigPaths...)
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		var raw fileShape
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if err := applyFile(cfg, &raw); err != nil {
			return nil, err
		}
		break
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw *fileShape) error {
	for level, overrides := range raw.Profiles {
		base := cfg.Profiles[level]
		if err := mergo.Merge(&base, decodeProfile(overrides), mergo.WithOverride); err != nil {
			return err
		}
		cfg.Profiles[level] = base
	}
	if len(raw.Risk) > 0 {
		// mergo.WithOverride only overwrites dst with non-zero src
		// fields, so an absent key in raw.Risk (zero-valued here)
		// leaves the existing default untouched.
		override := RiskThresholds{
			RiskScore:        raw.Risk["risk_score"],
			DamageScore:      raw.Risk["damage_score"],
			PropagationScore: raw.Risk["propagation_score"],
		}
		if err := mergo.Merge(&cfg.Risk, override, mergo.WithOverride); err != nil {
			return err
		}
	}
	if raw.OriginOverrides != nil {
		cfg.OriginOverrides = raw.OriginOverrides
	}
	return nil
}

// decodeProfile round-trips a loosely-typed JSON override map through
// the strict Profile shape so mergo can merge field-by-field.
func decodeProfile(m map[string]any) Profile {
	data, _ := json.Marshal(m)
	var p Profile
	_ = json.Unmarshal(data, &p)
	return p
}

// ProfileFor resolves the profile for a risk level, applying any
// origin-type-specific override (falling back to "_default" within
// that origin's overrides, then to the base profile) per
// original_source/policy.py's PolicyConfig.profile_for.
func (c *Config) ProfileFor(riskLevel string, originType string) Profile {
	base, ok := c.Profiles[riskLevel]
	if !ok {
		base = c.Profiles["medium"]
	}
	if originType == "" || c.OriginOverrides == nil {
		return base
	}
	originRules, ok := c.OriginOverrides[originType]
	if !ok {
		return base
	}
	overrides, ok := originRules[riskLevel]
	if !ok {
		overrides, ok = originRules["_default"]
		if !ok {
			return base
		}
	}
	merged := decodeProfile(overrides)
	if err := mergo.Merge(&merged, base); err != nil {
		return base
	}
	return merged
}
