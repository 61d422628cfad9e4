package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

// Backends a project can sync against.
const (
	BackendGitHub = "github"
	BackendS3     = "s3"
)

// ConfigEnvVar overrides the user config file location.
const ConfigEnvVar = "GDA_CONFIG"

// ErrUnknownBackend is returned for a backend name gda has no store for.
var ErrUnknownBackend = errors.New("unknown backend")

// Settings are the user-level preferences read from config.toml.
type Settings struct {
	// Backend selects the release store: "github" (default) or "s3".
	Backend string `toml:"backend"`

	// LogLevel is a zerolog level name.
	LogLevel string `toml:"log_level"`

	GitHub GitHubSettings `toml:"github"`
	S3     S3Settings     `toml:"s3"`
}

type GitHubSettings struct {
	Token     string `toml:"token"`
	BaseURL   string `toml:"base_url"`
	UploadURL string `toml:"upload_url"`
}

type S3Settings struct {
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	PathStyle bool   `toml:"path_style"`
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() *Settings {
	return &Settings{Backend: BackendGitHub, LogLevel: "warn"}
}

// SettingsPath returns the user config file location:
// $GDA_CONFIG, else $XDG_CONFIG_HOME/gda/config.toml.
func SettingsPath() string {
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return p
	}
	return filepath.Join(xdg.ConfigHome, "gda", "config.toml")
}

// LoadSettings reads the config file at path on top of the defaults.
// A missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return s, nil
	}

	var raw Settings
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("backend") {
		s.Backend = strings.ToLower(strings.TrimSpace(raw.Backend))
	}
	if meta.IsDefined("log_level") {
		s.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	s.GitHub = raw.GitHub
	s.S3 = raw.S3

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the backend name.
func (s *Settings) Validate() error {
	switch s.Backend {
	case BackendGitHub, BackendS3:
		return nil
	default:
		return fmt.Errorf("%w %q (want %q or %q)", ErrUnknownBackend, s.Backend, BackendGitHub, BackendS3)
	}
}
