// Package config loads framegraph settings from TOML.
//
// Resolution order (later overrides earlier):
//  1. Built-in defaults
//  2. The config file, if one is given
//  3. Command-line flags, applied by the caller
//
// A file only needs the fields it wants to change.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/roach88/framegraph/internal/continuity"
	"github.com/roach88/framegraph/internal/state"
)

// Config is the full set of settings.
type Config struct {
	Run RunConfig `toml:"run"`

	Log LogConfig `toml:"log"`

	Trace TraceConfig `toml:"trace"`

	// Continuity overrides the default policy of individual roles, keyed by
	// role name (position, radius, opacity, color, custom).
	Continuity map[string]continuity.RoleConfig `toml:"continuity,omitempty"`
}

// RunConfig controls the frame loop of the run command.
type RunConfig struct {
	// Frames is how many frames to execute.
	Frames int `toml:"frames"`

	// StartMs is the time of the first frame.
	StartMs float64 `toml:"start_ms"`

	// StepMs is the time between frames.
	StepMs float64 `toml:"step_ms"`

	// ArenaSize is the arena chunk size in float32 values.
	ArenaSize int `toml:"arena_size"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`

	// Format is text or json.
	Format string `toml:"format"`
}

// TraceConfig controls frame trace recording.
type TraceConfig struct {
	// DB is the sqlite path traces are written to. Empty disables recording.
	DB string `toml:"db,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Frames:    60,
			StepMs:    1000.0 / 60.0,
			ArenaSize: state.DefaultArenaChunk,
		},
		Log: LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data into cfg, leaving fields the data omits untouched,
// and validates the result.
func Parse(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg.Validate()
}

// Validate checks ranges and names.
func (c *Config) Validate() error {
	if c.Run.Frames < 0 {
		return fmt.Errorf("run.frames must be >= 0, got %d", c.Run.Frames)
	}
	if c.Run.StepMs < 0 {
		return fmt.Errorf("run.step_ms must be >= 0, got %g", c.Run.StepMs)
	}
	if c.Run.ArenaSize <= 0 {
		return fmt.Errorf("run.arena_size must be > 0, got %d", c.Run.ArenaSize)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := c.Policies(); err != nil {
		return err
	}
	return nil
}

// Policies returns the default continuity table with the configured
// overrides applied.
func (c *Config) Policies() (*continuity.Table, error) {
	if len(c.Continuity) == 0 {
		return continuity.DefaultTable(), nil
	}
	t, err := continuity.DefaultTable().WithOverrides(c.Continuity)
	if err != nil {
		return nil, fmt.Errorf("continuity: %w", err)
	}
	return t, nil
}

// ParseLevel converts a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: unknown level %q", s)
	}
	return l, nil
}
