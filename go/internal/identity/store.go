package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcdev12/scopa/go/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrNoIdentity is returned by Load when nothing has been cached yet.
var ErrNoIdentity = errors.New("no cached identity")

// Identity is the seat a player last held, kept so a dropped client can
// reconnect to the same game.
type Identity struct {
	Server  string         `yaml:"server"`
	Session models.Session `yaml:"session"`
	SavedAt time.Time      `yaml:"saved_at"`
}

// Store keeps a single identity in a YAML file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns <user config dir>/scopa/identity.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config dir: %w", err)
	}
	return filepath.Join(dir, "scopa", "identity.yaml"), nil
}

func (s *Store) Path() string {
	return s.path
}

// Save replaces the cached identity.
func (s *Store) Save(id Identity) error {
	if id.Session.SessionID == "" || id.Session.LocalPlayerID == "" {
		return fmt.Errorf("refusing to cache incomplete identity")
	}
	if id.SavedAt.IsZero() {
		id.SavedAt = time.Now().UTC()
	}

	data, err := yaml.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create identity dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace identity: %w", err)
	}
	return nil
}

// Load reads the cached identity.
func (s *Store) Load() (Identity, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Identity{}, ErrNoIdentity
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read identity file: %w", err)
	}

	var id Identity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("failed to parse identity: %w", err)
	}
	if id.Session.SessionID == "" || id.Session.LocalPlayerID == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

// Clear forgets the cached identity.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove identity: %w", err)
	}
	return nil
}
