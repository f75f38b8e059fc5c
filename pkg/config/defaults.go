package config

import "time"

// DefaultHTTPConfig returns the built-in HTTP defaults.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Port:         "8080",
		GinMode:      "debug",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

// DefaultQueueConfig returns the built-in queue/worker defaults,
// matching the env-var defaults enumerated in spec.md §6.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    20,
		MaxRetries:   3,
		Target:       "main",
		AutoConfirm:  false,
		SkipChecks:   false,
		LockTTL:      60 * time.Second,
	}
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		EventRetentionDays: 365,
		PruneInterval:      12 * time.Hour,
	}
}
