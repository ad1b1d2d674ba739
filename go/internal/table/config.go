package table

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for a session client.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`

	// SweepWindow is how long a sweep event stays visible.
	SweepWindow time.Duration `yaml:"sweep_window"`
	// ErrorWindow is how long a transient error message stays visible.
	ErrorWindow time.Duration `yaml:"error_window"`
	// DealWindow bounds the deal phase when presentation never calls
	// FinishDeal. Zero disables the automatic end.
	DealWindow time.Duration `yaml:"deal_window"`

	MaxEphemeralEvents int `yaml:"max_ephemeral_events"`
	InboxSize          int `yaml:"inbox_size"`
}

// ConnectionConfig holds configuration for the websocket connection
type ConnectionConfig struct {
	URL             string          `yaml:"url"` // e.g. ws://localhost:8000
	DialTimeout     time.Duration   `yaml:"dial_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	PingInterval    time.Duration   `yaml:"ping_interval"`
	MaxMessageSize  int64           `yaml:"max_message_size"`
	ReadBufferSize  int             `yaml:"read_buffer_size"`
	WriteBufferSize int             `yaml:"write_buffer_size"`
	SendBufferSize  int             `yaml:"send_buffer_size"`
	Reconnect       ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig controls the opt-in automatic reconnect. When disabled
// a dropped connection stays disconnected until Connect is called again.
type ReconnectConfig struct {
	Enabled         bool          `yaml:"enabled"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time"`
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		Connection:         DefaultConnectionConfig(),
		SweepWindow:        2500 * time.Millisecond,
		ErrorWindow:        4 * time.Second,
		DealWindow:         1500 * time.Millisecond,
		MaxEphemeralEvents: 4,
		InboxSize:          64,
	}
}

// DefaultConnectionConfig returns default websocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		URL:             "ws://localhost:8000",
		DialTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		PingInterval:    25 * time.Second,
		MaxMessageSize:  64 * 1024, // a full state frame is a few KB
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		SendBufferSize:  32,
		Reconnect: ReconnectConfig{
			Enabled:         false,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
			MaxElapsedTime:  2 * time.Minute,
		},
	}
}

// NewConfigFromEnv reads SCOPA_* environment variables on top of the
// defaults.
func NewConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Connection.URL = getEnv("SCOPA_WS_URL", cfg.Connection.URL)
	cfg.Connection.DialTimeout = getEnvAsDuration("SCOPA_DIAL_TIMEOUT", cfg.Connection.DialTimeout)
	cfg.Connection.PingInterval = getEnvAsDuration("SCOPA_PING_INTERVAL", cfg.Connection.PingInterval)
	cfg.Connection.Reconnect.Enabled = getEnvAsBool("SCOPA_RECONNECT", cfg.Connection.Reconnect.Enabled)
	cfg.Connection.Reconnect.MaxElapsedTime = getEnvAsDuration("SCOPA_RECONNECT_MAX_ELAPSED", cfg.Connection.Reconnect.MaxElapsedTime)
	cfg.SweepWindow = getEnvAsDuration("SCOPA_SWEEP_WINDOW", cfg.SweepWindow)
	cfg.ErrorWindow = getEnvAsDuration("SCOPA_ERROR_WINDOW", cfg.ErrorWindow)
	cfg.DealWindow = getEnvAsDuration("SCOPA_DEAL_WINDOW", cfg.DealWindow)
	cfg.MaxEphemeralEvents = getEnvAsInt("SCOPA_MAX_EVENTS", cfg.MaxEphemeralEvents)
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
