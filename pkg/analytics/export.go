package analytics

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ghmbegerez/converge/pkg/models"
)

// decisionRecord is one flat row of the exported dataset, joining
// intent -> simulation -> risk -> policy (analytics.py's
// _build_decision_record).
type decisionRecord struct {
	IntentID  string  `json:"intent_id"`
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Status    string  `json:"status"`
	RiskLevel string  `json:"risk_level"`
	Priority  int     `json:"priority"`
	Retries   int     `json:"retries"`
	TenantID  *string `json:"tenant_id,omitempty"`
	CreatedAt string  `json:"created_at"`

	Mergeable         *bool `json:"mergeable"`
	ConflictCount     int   `json:"conflict_count"`
	FilesChangedCount int   `json:"files_changed_count"`

	RiskScore        *float64 `json:"risk_score"`
	DamageScore      *float64 `json:"damage_score"`
	EntropyScore     *float64 `json:"entropy_score"`
	PropagationScore *float64 `json:"propagation_score"`
	ContainmentScore *float64 `json:"containment_score"`

	EntropicLoad    float64 `json:"entropic_load"`
	ContextualValue float64 `json:"contextual_value"`
	ComplexityDelta float64 `json:"complexity_delta"`
	PathDependence  float64 `json:"path_dependence"`

	BombCount int      `json:"bomb_count"`
	BombTypes []string `json:"bomb_types"`

	PolicyVerdict string `json:"policy_verdict"`
	PolicyProfile string `json:"policy_profile"`

	GraphNodes   *float64 `json:"graph_nodes"`
	GraphEdges   *float64 `json:"graph_edges"`
	GraphDensity *float64 `json:"graph_density"`
}

func (s *Service) buildDecisionRecord(ctx context.Context, intent *models.Intent) (*decisionRecord, error) {
	riskPayload, err := s.latestEventPayload(ctx, models.EventRiskEvaluated, intent.ID)
	if err != nil {
		return nil, err
	}
	simPayload, err := s.latestEventPayload(ctx, models.EventSimulationCompleted, intent.ID)
	if err != nil {
		return nil, err
	}
	policyPayload, err := s.latestEventPayload(ctx, models.EventPolicyEvaluated, intent.ID)
	if err != nil {
		return nil, err
	}

	signals := extractSignals(riskPayload["signals"])

	rec := &decisionRecord{
		IntentID:  intent.ID,
		Source:    intent.Source,
		Target:    intent.Target,
		Status:    string(intent.Status),
		RiskLevel: string(intent.RiskLevel),
		Priority:  intent.Priority,
		Retries:   intent.Retries,
		TenantID:  intent.TenantID,
		CreatedAt: intent.CreatedAt,

		ConflictCount:     listLen(simPayload["conflicts"]),
		FilesChangedCount: listLen(simPayload["files_changed"]),

		EntropicLoad:    getFloat(signals, "entropic_load"),
		ContextualValue: getFloat(signals, "contextual_value"),
		ComplexityDelta: getFloat(signals, "complexity_delta"),
		PathDependence:  getFloat(signals, "path_dependence"),

		BombCount: bombCount(riskPayload["bombs"]),
		BombTypes: extractBombTypes(riskPayload["bombs"]),

		PolicyVerdict: getString(policyPayload, "verdict"),
		PolicyProfile: getString(policyPayload, "profile_used"),
	}

	if m, ok := simPayload["mergeable"].(bool); ok {
		rec.Mergeable = &m
	}
	if riskPayload != nil {
		v := getFloat(riskPayload, "risk_score")
		rec.RiskScore = &v
		v = getFloat(riskPayload, "damage_score")
		rec.DamageScore = &v
		v = getFloat(riskPayload, "entropy_score")
		rec.EntropyScore = &v
		v = getFloat(riskPayload, "propagation_score")
		rec.PropagationScore = &v
		v = getFloat(riskPayload, "containment_score")
		rec.ContainmentScore = &v
	}

	graph := extractGraphMetrics(riskPayload["graph_metrics"])
	if len(graph) > 0 {
		v := getFloat(graph, "nodes")
		rec.GraphNodes = &v
		v = getFloat(graph, "edges")
		rec.GraphEdges = &v
		v = getFloat(graph, "density")
		rec.GraphDensity = &v
	}

	return rec, nil
}

// ExportDecisions joins every intent with its latest risk/simulation/
// policy evaluations into one flat record per intent and writes the
// result as JSONL or CSV for offline analysis and model retraining
// (analytics.py's export_decisions).
func (s *Service) ExportDecisions(ctx context.Context, outputPath string, tenantID *string, format string) (map[string]any, error) {
	if format == "" {
		format = "jsonl"
	}
	intents, err := s.Intents.ListAllIntents(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(intents) > exportIntentLimit {
		intents = intents[:exportIntentLimit]
	}

	records := make([]*decisionRecord, 0, len(intents))
	for _, intent := range intents {
		rec, err := s.buildDecisionRecord(ctx, intent)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if outputPath == "" {
		outputPath = filepath.Join(DefaultDatasetDir, "decisions."+format)
	}
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	if format == "csv" {
		if err := writeDecisionsCSV(records, outputPath); err != nil {
			return nil, err
		}
	} else {
		if err := writeDecisionsJSONL(records, outputPath); err != nil {
			return nil, err
		}
	}

	result := map[string]any{
		"records":     len(records),
		"format":      format,
		"output_path": outputPath,
		"timestamp":   models.NowISO(),
	}

	ev := models.NewEvent(models.EventDatasetExported, result)
	ev.TenantID = tenantID
	ev.Evidence = map[string]any{"records": len(records)}
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return result, nil
}

func writeDecisionsJSONL(records []*decisionRecord, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func writeDecisionsCSV(records []*decisionRecord, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"intent_id", "source", "target", "status", "risk_level", "priority", "retries",
		"tenant_id", "created_at", "mergeable", "conflict_count", "files_changed_count",
		"risk_score", "damage_score", "entropy_score", "propagation_score", "containment_score",
		"entropic_load", "contextual_value", "complexity_delta", "path_dependence",
		"bomb_count", "bomb_types", "policy_verdict", "policy_profile",
		"graph_nodes", "graph_edges", "graph_density",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.IntentID, r.Source, r.Target, r.Status, r.RiskLevel,
			strconv.Itoa(r.Priority), strconv.Itoa(r.Retries),
			derefString(r.TenantID), r.CreatedAt,
			derefBoolString(r.Mergeable), strconv.Itoa(r.ConflictCount), strconv.Itoa(r.FilesChangedCount),
			derefFloatString(r.RiskScore), derefFloatString(r.DamageScore), derefFloatString(r.EntropyScore),
			derefFloatString(r.PropagationScore), derefFloatString(r.ContainmentScore),
			fmt.Sprintf("%g", r.EntropicLoad), fmt.Sprintf("%g", r.ContextualValue),
			fmt.Sprintf("%g", r.ComplexityDelta), fmt.Sprintf("%g", r.PathDependence),
			strconv.Itoa(r.BombCount), strings.Join(r.BombTypes, ","),
			r.PolicyVerdict, r.PolicyProfile,
			derefFloatString(r.GraphNodes), derefFloatString(r.GraphEdges), derefFloatString(r.GraphDensity),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBoolString(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func derefFloatString(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%g", *f)
}
