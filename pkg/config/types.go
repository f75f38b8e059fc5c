package config

import "time"

// SystemYAMLConfig holds the ambient, YAML-defined system settings for the
// converge core: HTTP surface, queue worker pacing, and retention.
// This mirrors the teacher's SystemYAMLConfig resolution pattern
// (nil-safe sub-config resolution against built-in defaults) but for
// a merge-coordination engine instead of an alert-orchestration one.
type SystemYAMLConfig struct {
	HTTP      *HTTPYAMLConfig      `yaml:"http,omitempty"`
	Queue     *QueueYAMLConfig     `yaml:"queue,omitempty"`
	Retention *RetentionYAMLConfig `yaml:"retention,omitempty"`
}

// HTTPYAMLConfig is the raw YAML shape for the HTTP surface.
type HTTPYAMLConfig struct {
	Port         string `yaml:"port,omitempty"`
	GinMode      string `yaml:"gin_mode,omitempty"`
	ReadTimeout  string `yaml:"read_timeout,omitempty"`
	WriteTimeout string `yaml:"write_timeout,omitempty"`
}

// QueueYAMLConfig is the raw YAML shape for worker/queue pacing.
type QueueYAMLConfig struct {
	PollInterval string `yaml:"poll_interval,omitempty"`
	BatchSize    int    `yaml:"batch_size,omitempty"`
	MaxRetries   int    `yaml:"max_retries,omitempty"`
	Target       string `yaml:"target,omitempty"`
	AutoConfirm  *bool  `yaml:"auto_confirm,omitempty"`
	SkipChecks   *bool  `yaml:"skip_checks,omitempty"`
	LockTTL      string `yaml:"lock_ttl,omitempty"`
}

// RetentionYAMLConfig is the raw YAML shape for event retention.
type RetentionYAMLConfig struct {
	EventRetentionDays int    `yaml:"event_retention_days,omitempty"`
	PruneInterval      string `yaml:"prune_interval,omitempty"`
}

// ConvergeYAMLConfig is the top-level shape of converge.yaml.
type ConvergeYAMLConfig struct {
	System *SystemYAMLConfig `yaml:"system,omitempty"`
}

// HTTPConfig is the resolved HTTP server configuration.
type HTTPConfig struct {
	Port         string        `yaml:"port"`
	GinMode      string        `yaml:"gin_mode"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// QueueConfig is the resolved worker/queue pacing configuration, fed
// into the Worker (spec.md §4.9). It is resolved from defaults and
// converge.yaml only; no CONVERGE_WORKER_* environment variable is read.
type QueueConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxRetries   int           `yaml:"max_retries"`
	Target       string        `yaml:"target"`
	AutoConfirm  bool          `yaml:"auto_confirm"`
	SkipChecks   bool          `yaml:"skip_checks"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// RetentionConfig is the resolved event-retention configuration.
type RetentionConfig struct {
	EventRetentionDays int           `yaml:"event_retention_days"`
	PruneInterval      time.Duration `yaml:"prune_interval"`
}
