package analytics

import "github.com/ghmbegerez/converge/pkg/models"

// Event payloads stored by an in-process eventlog backend (memory)
// carry their original Go types (models.RiskSignals, []models.Bomb,
// map[string]any graph metrics); a backend that round-trips through
// JSON (postgres) decodes the same payload into generic
// map[string]any/[]any/float64. Every extractor below handles both
// shapes so analytics can read a risk.evaluated payload regardless of
// which store produced it.

func getFloat(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	f, _ := toFloat(m[key])
	return f
}

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func extractSignals(raw any) map[string]any {
	switch v := raw.(type) {
	case models.RiskSignals:
		return map[string]any{
			"entropic_load":    v.EntropicLoad,
			"contextual_value": v.ContextualValue,
			"complexity_delta": v.ComplexityDelta,
			"path_dependence":  v.PathDependence,
		}
	case map[string]any:
		return v
	default:
		return map[string]any{}
	}
}

func extractBombTypes(raw any) []string {
	switch v := raw.(type) {
	case []models.Bomb:
		out := make([]string, 0, len(v))
		for _, b := range v {
			out = append(out, b.Type)
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, rb := range v {
			if m, ok := rb.(map[string]any); ok {
				out = append(out, getString(m, "type"))
			}
		}
		return out
	case []string:
		return v
	default:
		return nil
	}
}

func bombCount(raw any) int {
	switch v := raw.(type) {
	case []models.Bomb:
		return len(v)
	case []any:
		return len(v)
	default:
		return 0
	}
}

func extractGraphMetrics(raw any) map[string]any {
	if m, ok := raw.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func listLen(raw any) int {
	switch v := raw.(type) {
	case []any:
		return len(v)
	case []string:
		return len(v)
	default:
		return 0
	}
}
