package engine

import (
	"context"
	"errors"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/scm"
)

// fakeSCM lets tests script simulate/merge outcomes per source/target pair.
type fakeSCM struct {
	simResult  *scm.Simulation
	simErr     error
	mergeSHA   string
	mergeErr   error
	mergeCalls int
}

func (f *fakeSCM) SimulateMerge(ctx context.Context, source, target, cwd string) (*scm.Simulation, error) {
	if f.simErr != nil {
		return nil, f.simErr
	}
	if f.simResult != nil {
		return f.simResult, nil
	}
	return &scm.Simulation{Mergeable: true, FilesChanged: []string{"a.go"}}, nil
}

func (f *fakeSCM) ExecuteMerge(ctx context.Context, source, target, cwd string) (string, error) {
	f.mergeCalls++
	if f.mergeErr != nil {
		return "", f.mergeErr
	}
	return f.mergeSHA, nil
}

func (f *fakeSCM) LogEntries(ctx context.Context, maxCommits int, cwd string) ([]scm.LogEntry, error) {
	return nil, nil
}

// fakeRunner returns pre-scripted check results regardless of input.
type fakeRunner struct {
	results []models.CheckResult
	err     error
}

func (f *fakeRunner) RunChecks(ctx context.Context, checks []string, cwd string) ([]models.CheckResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	out := make([]models.CheckResult, len(checks))
	for i, c := range checks {
		out[i] = models.CheckResult{CheckType: c, Passed: true}
	}
	return out, nil
}

type nilCoupling struct{}

func (nilCoupling) LoadCouplingData(cwd string) ([]map[string]any, error) { return nil, nil }

var errBoom = errors.New("boom")
