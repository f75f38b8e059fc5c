package checkrunner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellRunner_PassingCheckCapturesStdout(t *testing.T) {
	r := &ShellRunner{Commands: map[string][]string{
		"lint": {"sh", "-c", "echo all good"},
	}}
	results, err := r.RunChecks(context.Background(), []string{"lint"}, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Contains(t, results[0].Details, "all good")
}

func TestShellRunner_FailingCheckCapturesStderr(t *testing.T) {
	r := &ShellRunner{Commands: map[string][]string{
		"unit_tests": {"sh", "-c", "echo boom 1>&2; exit 1"},
	}}
	results, err := r.RunChecks(context.Background(), []string{"unit_tests"}, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Details, "boom")
}

func TestShellRunner_UnsupportedCheckIsSkipped(t *testing.T) {
	r := NewShellRunner()
	results, err := r.RunChecks(context.Background(), []string{"not_a_real_check"}, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestShellRunner_MultipleChecksRunInOrder(t *testing.T) {
	r := &ShellRunner{Commands: map[string][]string{
		"lint":       {"sh", "-c", "echo one"},
		"unit_tests": {"sh", "-c", "echo two"},
	}}
	results, err := r.RunChecks(context.Background(), []string{"lint", "unit_tests"}, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "lint", results[0].CheckType)
	assert.Equal(t, "unit_tests", results[1].CheckType)
}
