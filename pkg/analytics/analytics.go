// Package analytics provides on-demand analytical capabilities that
// operate on larger datasets than the engine's per-decision path
// touches: git history (archaeology, coupling), historical risk
// events (calibration), and full decision-dataset export for offline
// analysis and model retraining (SPEC_FULL.md §4.12).
// Grounded on original_source/src/converge/analytics.py.
package analytics

import (
	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/projections"
	"github.com/ghmbegerez/converge/pkg/scm"
	"github.com/ghmbegerez/converge/pkg/store"
)

// Archaeology constants (analytics.py's module-level constants).
const (
	DefaultMaxCommits       = 400
	ArchaeologyTopN         = 20
	busFactorThreshold      = 0.05
	hotspotChangeThreshold  = 10
	couplingMinCoChanges    = 2
	couplingTopN            = 50
	quickCouplingMaxCommits = 200
)

// Review constants.
const (
	reviewRiskThreshold   = 50.0
	reviewCriticalDisplay = 3
)

// Query/export limits.
const (
	calibrationQueryLimit = 10000
	exportIntentLimit     = 100000
	decisionQueryLimit    = 50
)

// DefaultSnapshotPath is where ArchaeologyReport's output is cached
// for LoadCouplingData/LoadHotspotSet to reuse without rescanning git
// history on every risk evaluation.
const DefaultSnapshotPath = ".converge/archaeology_snapshot.json"

// DefaultCalibratedProfilesPath is where RunCalibration persists its
// output.
const DefaultCalibratedProfilesPath = ".converge/calibrated_profiles.json"

// DefaultDatasetDir is the directory of the export_decisions default
// output location; the file name inside it depends on the format.
const DefaultDatasetDir = ".converge/datasets"

// Service bundles the dependencies analytics operations need: git
// history, the event log, and the store ports the decision-dataset
// export and risk review join against.
type Service struct {
	SCM         scm.SCM
	Log         *eventlog.Log
	Intents     store.IntentStore
	Projections *projections.Service
}

// New builds an analytics Service.
func New(scmImpl scm.SCM, log *eventlog.Log, intents store.IntentStore, proj *projections.Service) *Service {
	return &Service{SCM: scmImpl, Log: log, Intents: intents, Projections: proj}
}

