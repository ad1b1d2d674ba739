package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/mcdev12/scopa/go/internal/relay"
	"github.com/mcdev12/scopa/go/internal/table"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML file of the client binary
type Config struct {
	// Server is the game server base URL, http(s) or ws(s)
	Server       string       `yaml:"server"`
	IdentityPath string       `yaml:"identity_path"`
	Client       table.Config `yaml:"client"`

	Bridge struct {
		Listen string `yaml:"listen"`
	} `yaml:"bridge"`

	// Relay publishes derived events to NATS when set
	Relay bool             `yaml:"relay"`
	NATS  relay.NATSConfig `yaml:"nats"`
}

func defaultConfig() *Config {
	cfg := &Config{
		Server: getEnv("SCOPA_SERVER", "http://localhost:8000"),
		Client: table.NewConfigFromEnv(),
	}
	cfg.IdentityPath = getEnv("SCOPA_IDENTITY_PATH", "")
	cfg.Bridge.Listen = getEnv("SCOPA_BRIDGE_LISTEN", "127.0.0.1:7070")
	cfg.NATS = relay.DefaultNATSConfig()
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.Relay = os.Getenv("NATS_URL") != ""
	return cfg
}

// loadConfig overlays the YAML file at path on cfg
func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

// lobbyURL turns the server URL into the http base the lobby is served on
func lobbyURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
