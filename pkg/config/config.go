package config

// Config is the umbrella configuration object returned by Initialize
// and threaded through the HTTP server and worker entrypoints.
type Config struct {
	configDir string

	HTTP      *HTTPConfig
	Queue     *QueueConfig
	Retention *RetentionConfig
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// Stats summarizes the loaded configuration for the health endpoint.
type Stats struct {
	HTTPPort        string `json:"http_port"`
	QueuePollSecond float64 `json:"queue_poll_interval_seconds"`
	RetentionDays   int    `json:"retention_days"`
}

// Stats returns configuration statistics for the health check handler.
func (c *Config) Stats() Stats {
	return Stats{
		HTTPPort:        c.HTTP.Port,
		QueuePollSecond: c.Queue.PollInterval.Seconds(),
		RetentionDays:   c.Retention.EventRetentionDays,
	}
}
