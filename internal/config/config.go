package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// EmailDebounceWindow bounds unseen-message emails to one per
	// (sender, receiver) pair per window.
	EmailDebounceWindow time.Duration `mapstructure:"email_debounce_window" yaml:"email_debounce_window"`
	EmailQueueSize      int           `mapstructure:"email_queue_size" yaml:"email_queue_size"`
	EmailWorkers        int           `mapstructure:"email_workers" yaml:"email_workers"`

	// SessionBuffer is the per-session outbound event queue capacity.
	SessionBuffer int `mapstructure:"session_buffer" yaml:"session_buffer"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                ":8080",
		DatabasePath:        "pixelchat.db",
		LogLevel:            "info",
		ReadHeaderTimeout:   5 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		JWTSecret:           "",
		JWTIssuer:           "pixelchat",
		JWTAudience:         "pixelchat",
		JWTTTL:              24 * time.Hour,
		EmailDebounceWindow: 15 * time.Minute,
		EmailQueueSize:      256,
		EmailWorkers:        2,
		SessionBuffer:       32,
	}
}
