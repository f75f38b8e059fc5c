// Package coherence implements the Coherence Harness (spec.md §4.5):
// configurable, assertion-based checks run against shell commands,
// scored by severity-weighted penalty, with baseline tracking and
// cross-validation against a risk evaluation.
package coherence

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ghmbegerez/converge/pkg/models"
)

// DefaultHarnessPath is the on-disk location of the harness config
// (spec.md §4.5).
const DefaultHarnessPath = ".converge/coherence_harness.json"

// QuestionTimeoutSeconds bounds each question's check command (spec.md §4.5
// "execute check with a hard timeout (60s)").
const QuestionTimeoutSeconds = 60

// HarnessConfig is the on-disk shape of the harness config file.
type HarnessConfig struct {
	Version   string                    `json:"version"`
	Questions []models.CoherenceQuestion `json:"questions"`
}

// DefaultTemplate is the starter harness written by InitHarness,
// grounded on original_source/coherence.py's HARNESS_TEMPLATE.
func DefaultTemplate() HarnessConfig {
	return HarnessConfig{
		Version: "1.1.0",
		Questions: []models.CoherenceQuestion{
			{
				ID: "q-test-count", Question: "Has the test file count decreased?",
				Check: "find tests/ -name 'test_*.go' | wc -l", Assertion: "result >= baseline",
				Severity: "high", Category: "structural", Enabled: true,
			},
			{
				ID: "q-no-fixme-growth", Question: "Has the TODO/FIXME count increased?",
				Check: "grep -r 'TODO\\|FIXME' . --include='*.go' | wc -l", Assertion: "result <= baseline",
				Severity: "medium", Category: "structural", Enabled: true,
			},
			{
				ID: "q-no-large-files", Question: "Were files larger than 1MB added to source?",
				Check: "find . -type f -name '*.go' -size +1M | wc -l", Assertion: "result == 0",
				Severity: "high", Category: "structural", Enabled: true,
			},
			{
				ID: "q-src-file-count", Question: "Is the source file count stable?",
				Check: "find . -name '*.go' | wc -l", Assertion: "result >= baseline",
				Severity: "medium", Category: "structural", Enabled: false,
			},
		},
	}
}

// LoadHarness reads the harness config from path (DefaultHarnessPath
// if empty). A missing file is not an error: it yields no questions,
// the same "nothing configured yet" state original_source/coherence.py
// treats as a pass-through (spec.md §4.5 is silent on this; a harness
// file is opt-in).
func LoadHarness(path string) (*HarnessConfig, error) {
	if path == "" {
		path = DefaultHarnessPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &HarnessConfig{Version: "none"}, nil
		}
		return nil, err
	}
	var cfg HarnessConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnabledQuestions returns only the questions whose Enabled flag is
// set, the filter original_source/coherence.py's load_questions
// applies before returning to callers.
func (c *HarnessConfig) EnabledQuestions() []models.CoherenceQuestion {
	var enabled []models.CoherenceQuestion
	for _, q := range c.Questions {
		if q.Enabled {
			enabled = append(enabled, q)
		}
	}
	return enabled
}

// InitHarness writes the default template to path if nothing exists
// there yet, creating parent directories as needed.
func InitHarness(path string) (created bool, err error) {
	if path == "" {
		path = DefaultHarnessPath
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	data, err := json.MarshalIndent(DefaultTemplate(), "", "  ")
	if err != nil {
		return false, err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
