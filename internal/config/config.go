// Package config loads the client configuration from a YAML file with
// environment-variable overrides, creating a default file on first run.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "eventcal"

// Config is the top-level application configuration.
type Config struct {
	// BaseURL is the root of the event-scheduler API.
	BaseURL string `yaml:"base_url" envconfig:"base_url"`

	// Timezone is the IANA zone used for display; empty means the system zone.
	Timezone string `yaml:"timezone" envconfig:"timezone"`

	// WeekStart is "monday" or "sunday".
	WeekStart string `yaml:"week_start" envconfig:"week_start"`

	// RefreshCron schedules the background event refresh
	// (standard 5-field cron, e.g. "*/5 * * * *"). Empty disables it.
	RefreshCron string `yaml:"refresh" envconfig:"refresh"`

	// TimeFormat and DateFormat are Go reference layouts.
	TimeFormat string `yaml:"time_format" envconfig:"time_format"`
	DateFormat string `yaml:"date_format" envconfig:"date_format"`

	// StartupView is "calendar" or "list".
	StartupView string `yaml:"startup_view" envconfig:"startup_view"`

	// ConfirmDelete asks before deleting an event.
	ConfirmDelete bool `yaml:"confirm_delete" envconfig:"confirm_delete"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level" envconfig:"log_level"`

	// TokenPath overrides where the session tokens are stored.
	TokenPath string `yaml:"token_path,omitempty" envconfig:"token_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:       "http://localhost:8000/api",
		WeekStart:     "monday",
		RefreshCron:   "*/5 * * * *",
		TimeFormat:    "15:04",
		DateFormat:    "Jan 2, 2006",
		StartupView:   "calendar",
		ConfirmDelete: true,
		LogLevel:      "info",
	}
}

// Path resolves the config file location: $EVENTCAL_CONFIG, then the XDG
// config dir, then ~/.config/eventcal/config.yaml.
func Path() (string, error) {
	if p := os.Getenv("EVENTCAL_CONFIG"); p != "" {
		return p, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "eventcal", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "eventcal", "config.yaml"), nil
}

// Load reads the config at path (or the default location when path is
// empty), writing a default file on first run, then applies EVENTCAL_*
// environment overrides.
func Load(path string) (*Config, error) {
	var err error
	if path == "" {
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML with owner-only permissions.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) validate() error {
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		return fmt.Errorf("invalid week_start %q (monday or sunday)", c.WeekStart)
	}
	switch c.StartupView {
	case "calendar", "list":
	default:
		return fmt.Errorf("invalid startup_view %q (calendar or list)", c.StartupView)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured display timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// WeekStartDay maps the configured week start onto time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// ResolveTokenPath returns the token storage location, deriving it from the
// config dir when not explicitly set.
func (c *Config) ResolveTokenPath() (string, error) {
	if c.TokenPath != "" {
		return c.TokenPath, nil
	}
	cfgPath, err := Path()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(cfgPath), "tokens.json"), nil
}
