package coherence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadHarness_MissingFileYieldsNoneVersion(t *testing.T) {
	cfg, err := LoadHarness(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Version)
	assert.Empty(t, cfg.Questions)
}

func TestInitHarness_CreatesTemplateOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "coherence_harness.json")

	created, err := InitHarness(path)
	require.NoError(t, err)
	assert.True(t, created)

	createdAgain, err := InitHarness(path)
	require.NoError(t, err)
	assert.False(t, createdAgain, "a second call must not overwrite the existing file")

	cfg, err := LoadHarness(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplate().Version, cfg.Version)
	assert.NotEmpty(t, cfg.Questions)
}

func TestEnabledQuestions_FiltersDisabled(t *testing.T) {
	cfg := DefaultTemplate()
	enabled := cfg.EnabledQuestions()
	for _, q := range enabled {
		assert.True(t, q.Enabled)
	}
	assert.Less(t, len(enabled), len(cfg.Questions), "the template includes at least one disabled question")
}

func TestLoadHarness_RoundTripsWrittenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.json")
	_, err := InitHarness(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "q-test-count")
}
