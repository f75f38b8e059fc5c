package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads converge.yaml from configDir, merges it with the
// built-in defaults, validates the result, and returns the resolved
// Config. It mirrors the teacher's Initialize → load → validate shape
// (pkg/config/loader.go in the retrieval pack) but resolves a system
// config instead of agent/chain/MCP registries.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	raw, err := load(configDir)
	if err != nil {
		return nil, err
	}

	cfg, err := resolve(configDir, raw)
	if err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded",
		"config_dir", configDir,
		"http_port", cfg.HTTP.Port,
		"queue_poll_interval", cfg.Queue.PollInterval,
		"retention_days", cfg.Retention.EventRetentionDays)

	return cfg, nil
}

func load(configDir string) (*ConvergeYAMLConfig, error) {
	path := filepath.Join(configDir, "converge.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No ambient config file: defaults-only is a valid configuration.
			return &ConvergeYAMLConfig{}, nil
		}
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrConfigNotFound, err))
	}

	expanded := ExpandEnv(data)

	var cfg ConvergeYAMLConfig
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return &cfg, nil
}

func resolve(configDir string, raw *ConvergeYAMLConfig) (*Config, error) {
	httpCfg := DefaultHTTPConfig()
	queueCfg := DefaultQueueConfig()
	retentionCfg := DefaultRetentionConfig()

	if raw.System != nil {
		if err := resolveHTTP(httpCfg, raw.System.HTTP); err != nil {
			return nil, err
		}
		if err := resolveQueue(queueCfg, raw.System.Queue); err != nil {
			return nil, err
		}
		if err := resolveRetention(retentionCfg, raw.System.Retention); err != nil {
			return nil, err
		}
	}

	return &Config{
		configDir: configDir,
		HTTP:      httpCfg,
		Queue:     queueCfg,
		Retention: retentionCfg,
	}, nil
}

// resolveHTTP applies non-zero overrides from the YAML shape onto the
// built-in defaults, nil-safe like the teacher's resolveXConfig helpers.
func resolveHTTP(dst *HTTPConfig, src *HTTPYAMLConfig) error {
	if src == nil {
		return nil
	}
	if src.Port != "" {
		dst.Port = src.Port
	}
	if src.GinMode != "" {
		dst.GinMode = src.GinMode
	}
	if src.ReadTimeout != "" {
		d, err := time.ParseDuration(src.ReadTimeout)
		if err != nil {
			return NewValidationError("system.http", "read_timeout", err)
		}
		dst.ReadTimeout = d
	}
	if src.WriteTimeout != "" {
		d, err := time.ParseDuration(src.WriteTimeout)
		if err != nil {
			return NewValidationError("system.http", "write_timeout", err)
		}
		dst.WriteTimeout = d
	}
	return nil
}

func resolveQueue(dst *QueueConfig, src *QueueYAMLConfig) error {
	if src == nil {
		return nil
	}
	override := QueueConfig{}
	if src.PollInterval != "" {
		d, err := time.ParseDuration(src.PollInterval)
		if err != nil {
			return NewValidationError("system.queue", "poll_interval", err)
		}
		override.PollInterval = d
	}
	override.BatchSize = src.BatchSize
	override.MaxRetries = src.MaxRetries
	override.Target = src.Target
	if src.AutoConfirm != nil {
		override.AutoConfirm = *src.AutoConfirm
	}
	if src.SkipChecks != nil {
		override.SkipChecks = *src.SkipChecks
	}
	if src.LockTTL != "" {
		d, err := time.ParseDuration(src.LockTTL)
		if err != nil {
			return NewValidationError("system.queue", "lock_ttl", err)
		}
		override.LockTTL = d
	}
	// Shallow-merge the explicit overrides onto the defaults, same
	// pattern as the teacher's mergo.Merge(queueConfig, ..., WithOverride).
	return mergo.Merge(dst, override, mergo.WithOverride)
}

func resolveRetention(dst *RetentionConfig, src *RetentionYAMLConfig) error {
	if src == nil {
		return nil
	}
	if src.EventRetentionDays != 0 {
		dst.EventRetentionDays = src.EventRetentionDays
	}
	if src.PruneInterval != "" {
		d, err := time.ParseDuration(src.PruneInterval)
		if err != nil {
			return NewValidationError("system.retention", "prune_interval", err)
		}
		dst.PruneInterval = d
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.HTTP.Port == "" {
		return NewValidationError("system.http", "port", ErrMissingRequiredField)
	}
	if cfg.Queue.BatchSize <= 0 {
		return NewValidationError("system.queue", "batch_size", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if cfg.Queue.MaxRetries < 0 {
		return NewValidationError("system.queue", "max_retries", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	if cfg.Queue.PollInterval <= 0 {
		return NewValidationError("system.queue", "poll_interval", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if cfg.Retention.EventRetentionDays < 0 {
		return NewValidationError("system.retention", "event_retention_days", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	return nil
}
