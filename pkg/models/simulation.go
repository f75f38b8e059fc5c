package models

// Simulation is the (pure) outcome of a dry-run merge (spec.md §4.2).
type Simulation struct {
	Mergeable     bool     `json:"mergeable"`
	Conflicts     []string `json:"conflicts"`
	FilesChanged  []string `json:"files_changed"`
	Timestamp     string   `json:"timestamp"`
	Source        string   `json:"source"`
	Target        string   `json:"target"`
}

// CheckResult is the outcome of one required verification check
// (lint, unit_tests, ...) run by a CheckRunner (spec.md §4.7, §9).
type CheckResult struct {
	CheckType  string `json:"check_type"`
	Passed     bool   `json:"passed"`
	Details    string `json:"details"`
	DurationMS int64  `json:"duration_ms"`
}

// QueueLock is the advisory lock row serializing queue processing
// (spec.md §3, §4.1).
type QueueLock struct {
	LockName  string `json:"lock_name"`
	HolderPID string `json:"holder_pid"`
	AcquiredAt string `json:"acquired_at"`
	ExpiresAt  string `json:"expires_at"`
}
