package analytics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/policy"
	"github.com/ghmbegerez/converge/pkg/store"
)

// RunCalibration gathers historical risk.evaluated entropy scores and
// recomputes policy profile thresholds from their distribution
// (analytics.py's run_calibration). The new profiles are persisted to
// outputPath and a calibration.completed event records the pass.
func (s *Service) RunCalibration(ctx context.Context, configPath, outputPath string) (map[string]any, error) {
	eventType := string(models.EventRiskEvaluated)
	events, err := s.Log.Query(ctx, store.EventQuery{EventType: &eventType, Limit: calibrationQueryLimit})
	if err != nil {
		return nil, err
	}

	historical := make([]float64, 0, len(events))
	for _, ev := range events {
		if score, ok := ev.Payload["entropy_score"]; ok {
			if f, ok := toFloat(score); ok {
				historical = append(historical, f)
			}
		}
	}

	cfg, err := policy.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	newProfiles := policy.CalibrateProfiles(historical, cfg.Profiles)

	result := map[string]any{
		"calibrated_profiles": newProfiles,
		"data_points":         len(historical),
		"timestamp":           models.NowISO(),
	}

	if outputPath == "" {
		outputPath = DefaultCalibratedProfilesPath
	}
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	data, err := json.MarshalIndent(newProfiles, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return nil, err
	}
	result["output_path"] = outputPath

	ev := models.NewEvent(models.EventCalibrationCompleted, result)
	ev.Evidence = map[string]any{"data_points": len(historical)}
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return result, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
