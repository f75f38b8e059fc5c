package semantic

import (
	"fmt"
	"sort"
	"strings"
)

// BuildCanonicalText produces a stable text representation of an
// intent's source/target/semantic fields for embedding. Neither
// semantic/canonical.py nor its tests survived the retrieval pack's
// filtering — this is reconstructed directly from its two call sites
// (harness.py's _check_semantic_similarity, conflicts.py's candidate
// generation comment) to produce deterministic, order-independent text
// from the same inputs those callers pass: source, target, and the
// intent's semantic map (description/scope/affected_areas).
func BuildCanonicalText(source, target string, semantic map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "source:%s target:%s", source, target)

	if desc, ok := semantic["description"].(string); ok && desc != "" {
		fmt.Fprintf(&b, " description:%s", desc)
	}

	scope := stringSlice(semantic["scope"])
	if len(scope) == 0 {
		scope = stringSlice(semantic["affected_areas"])
	}
	if len(scope) > 0 {
		sort.Strings(scope)
		fmt.Fprintf(&b, " scope:%s", strings.Join(scope, ","))
	}

	return b.String()
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		out := append([]string(nil), vv...)
		return out
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
