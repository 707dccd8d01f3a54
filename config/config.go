// Package config loads the TOML configuration. Configuration is read once
// at startup; a malformed player template or an empty source list is a
// startup failure, not something to limp along with.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"

	"github.com/aniterm/aniterm/player"
)

// Config holds every tunable. Flags override file values, the file overrides
// defaults.
type Config struct {
	// Player is the command template the launcher substitutes the stream
	// into. Placeholders: {url}, {user_agent}, {referer}, {title}, {headers}.
	Player string `toml:"player"`

	// Sources is the adapter priority order.
	Sources []string `toml:"sources"`

	// SearchMode is "first" (first non-empty source wins) or "aggregate"
	// (union of all sources).
	SearchMode string `toml:"search_mode"`

	// Mode selects the translation: "sub", "dub" or "raw".
	Mode string `toml:"mode"`

	// Quality is "best", "worst" or an exact label like "720p".
	Quality string `toml:"quality"`

	// Retries bounds retry of transient transport failures per call.
	Retries int `toml:"retries"`

	// TimeoutSeconds bounds each network request.
	TimeoutSeconds int `toml:"timeout_seconds"`

	// History toggles the watch-history side file.
	History bool `toml:"history"`

	Debug bool `toml:"debug"`
}

// Default is the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Player:         player.DefaultTemplate(),
		Sources:        []string{"allanime", "animefire"},
		SearchMode:     "first",
		Mode:           "sub",
		Quality:        "best",
		Retries:        2,
		TimeoutSeconds: 12,
		History:        true,
	}
}

// Dir returns the platform config directory for this app.
func Dir() string {
	return filepath.Join(configdir.LocalConfig(), "aniterm")
}

// Path returns the config file location.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// HistoryPath returns the watch-history side file location.
func HistoryPath() string {
	return filepath.Join(Dir(), "history.tsv")
}

// Load reads the config file, merges it over the defaults and applies the
// ANITERM_PLAYER environment override. A missing file is fine; an unreadable
// or invalid one is not.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path())
	switch {
	case os.IsNotExist(err):
		// Defaults.
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", Path(), err)
		}
	}

	if env := os.Getenv("ANITERM_PLAYER"); env != "" {
		cfg.Player = env
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config is usable. Called again after flag overrides.
func (c *Config) Validate() error {
	if err := player.Validate(c.Player); err != nil {
		return fmt.Errorf("invalid player template: %w", err)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("no sources configured")
	}
	switch c.SearchMode {
	case "first", "aggregate":
	default:
		return fmt.Errorf("unsupported search_mode %q (valid: first, aggregate)", c.SearchMode)
	}
	switch c.Mode {
	case "sub", "dub", "raw":
	default:
		return fmt.Errorf("unsupported mode %q (valid: sub, dub, raw)", c.Mode)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries cannot be negative")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	return nil
}
