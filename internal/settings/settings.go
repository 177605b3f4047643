// Package settings persists the user-facing bridge settings: remote access,
// the address allow-list and auto-start flags.
//
// The file is YAML. Keys missing from an older file are backfilled with
// defaults on load; keys this version does not know are kept and written
// back unchanged. Writes hold an advisory lock on a sibling ".lock" file and
// replace the settings file atomically.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/cadbridge/internal/access"
)

// ErrCorrupt marks a settings file that exists but does not decode.
var ErrCorrupt = errors.New("settings file is corrupt")

// Settings is the persisted settings document.
type Settings struct {
	RemoteEnabled        bool   `yaml:"remote_enabled"`
	AllowedIPs           string `yaml:"allowed_ips"`
	AutoStartServer      bool   `yaml:"auto_start_server"`
	StartupRemoteEnabled bool   `yaml:"startup_remote_enabled"`

	// Extra holds keys written by other versions.
	Extra map[string]any `yaml:",inline"`
}

// Defaults returns the settings used when no file exists.
func Defaults() *Settings {
	return &Settings{
		RemoteEnabled:        false,
		AllowedIPs:           access.DefaultAllowList,
		AutoStartServer:      true,
		StartupRemoteEnabled: false,
	}
}

// Load reads settings from path. A missing file yields Defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	return parse(data)
}

// parse decodes data on top of the defaults, so absent keys keep their
// default values.
func parse(data []byte) (*Settings, error) {
	s := Defaults()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if s.AllowedIPs == "" {
		s.AllowedIPs = access.DefaultAllowList
	}
	return s, nil
}

// Save writes s to path under the settings lock.
func Save(path string, s *Settings) error {
	return withLock(path, func() error {
		return write(path, s)
	})
}

// Update loads the settings, applies fn and saves the result, all under the
// settings lock. Nothing is written when fn fails.
func Update(path string, fn func(s *Settings) error) (*Settings, error) {
	var out *Settings
	err := withLock(path, func() error {
		s, err := Load(path)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		if err := write(path, s); err != nil {
			return err
		}
		out = s
		return nil
	})
	return out, err
}

// SetAllowList validates list, stores its normalized form and returns the
// entries that were dropped.
func (s *Settings) SetAllowList(list string) ([]string, error) {
	normalized, problems, err := access.Normalize(list)
	if err != nil {
		return problems, err
	}
	s.AllowedIPs = normalized
	return problems, nil
}

func withLock(path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking settings file: %w", err)
	}
	defer lock.Unlock() //nolint:errcheck // released on process exit regardless

	return fn()
}

func write(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}
