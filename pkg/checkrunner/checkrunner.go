// Package checkrunner defines the pluggable backend the validation
// pipeline uses to run an intent's required checks (spec.md §4.7, §9
// "Subprocess execution for checks"): a default shell/subprocess runner
// and a gRPC runner for delegating checks to an out-of-process service.
package checkrunner

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/models"
)

// SupportedChecks is the whitelist of check names the pipeline accepts;
// an unknown name is silently skipped, matching original_source/
// engine.py's run_checks (never a fatal error — a misconfigured profile
// just runs fewer checks than it listed).
var SupportedChecks = map[string]bool{
	"lint":               true,
	"unit_tests":         true,
	"integration_tests":  true,
	"security_scan":      true,
	"contract_tests":     true,
}

// Runner executes a set of named checks against a working tree.
type Runner interface {
	RunChecks(ctx context.Context, checks []string, cwd string) ([]models.CheckResult, error)
}
