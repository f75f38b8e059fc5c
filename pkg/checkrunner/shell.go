package checkrunner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/ghmbegerez/converge/pkg/models"
)

// CheckTimeoutSeconds bounds a single check's subprocess. defaults.py's
// CHECK_TIMEOUT_SECONDS was absent from the filtered original_source
// copy; this value is reconstructed conservatively for CI-scale checks.
const CheckTimeoutSeconds = 300

// OutputLimit truncates captured stdout/stderr before it is stored in
// an event payload (defaults.py's CHECK_OUTPUT_LIMIT, reconstructed).
const OutputLimit = 4000

// checkCommands mirrors original_source/engine.py's check_commands map.
var checkCommands = map[string][]string{
	"lint":              {"make", "lint"},
	"unit_tests":        {"make", "test"},
	"integration_tests": {"make", "test-integration"},
	"security_scan":     {"make", "security-scan"},
	"contract_tests":    {"make", "test-contract"},
}

// ShellRunner runs each check as a subprocess via the project's
// Makefile targets, the default CheckRunner backend (original_source/
// engine.py's run_checks). Commands defaults to checkCommands; tests
// inject their own map of cheap stand-in commands.
type ShellRunner struct {
	Commands map[string][]string
}

func NewShellRunner() *ShellRunner { return &ShellRunner{Commands: checkCommands} }

func (r *ShellRunner) RunChecks(ctx context.Context, checks []string, cwd string) ([]models.CheckResult, error) {
	results := make([]models.CheckResult, 0, len(checks))
	for _, checkType := range checks {
		if !SupportedChecks[checkType] {
			continue
		}
		results = append(results, r.runOne(ctx, checkType, cwd))
	}
	return results, nil
}

func (r *ShellRunner) runOne(ctx context.Context, checkType, cwd string) models.CheckResult {
	commands := r.Commands
	if commands == nil {
		commands = checkCommands
	}
	cmd, ok := commands[checkType]
	if !ok {
		cmd = []string{"echo", "no-op"}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, CheckTimeoutSeconds*time.Second)
	defer cancel()

	start := time.Now()
	c := exec.CommandContext(timeoutCtx, cmd[0], cmd[1:]...)
	c.Dir = cwd
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	runErr := c.Run()
	duration := time.Since(start).Milliseconds()

	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return models.CheckResult{CheckType: checkType, Passed: false, Details: "check timed out", DurationMS: duration}
	}
	if runErr != nil {
		if _, isExit := runErr.(*exec.ExitError); !isExit {
			return models.CheckResult{CheckType: checkType, Passed: false, Details: runErr.Error(), DurationMS: duration}
		}
		return models.CheckResult{CheckType: checkType, Passed: false, Details: truncate(stderr.String()), DurationMS: duration}
	}
	return models.CheckResult{CheckType: checkType, Passed: true, Details: truncate(stdout.String()), DurationMS: duration}
}

func truncate(s string) string {
	if len(s) > OutputLimit {
		return s[:OutputLimit]
	}
	return s
}
