package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framegraph/internal/continuity"
	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/state"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60, cfg.Run.Frames)
	assert.Equal(t, state.DefaultArenaChunk, cfg.Run.ArenaSize)
	assert.Equal(t, "warn", cfg.Log.Level)

	p, err := cfg.Policies()
	require.NoError(t, err)
	assert.Same(t, continuity.DefaultTable(), p)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverDefaults(t *testing.T) {
	cfg, err := Load("testdata/framegraph.toml")
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.Run.Frames)
	assert.Equal(t, 8.0, cfg.Run.StepMs)
	assert.Equal(t, state.DefaultArenaChunk, cfg.Run.ArenaSize, "omitted keys keep defaults")
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "frames.db", cfg.Trace.DB)

	lvl, err := ParseLevel(cfg.Log.Level)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	p, err := cfg.Policies()
	require.NoError(t, err)
	assert.Equal(t, ir.SlewPolicy(ir.GaugeAdd, 200), p.PolicyFor(ir.RolePosition))
	assert.Equal(t, continuity.PolicyForSemantic(ir.RoleColor), p.PolicyFor(ir.RoleColor))
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load("testdata/unknown.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.fps")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/missing.toml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative frames", func(c *Config) { c.Run.Frames = -1 }, "run.frames"},
		{"negative step", func(c *Config) { c.Run.StepMs = -1 }, "run.step_ms"},
		{"zero arena", func(c *Config) { c.Run.ArenaSize = 0 }, "run.arena_size"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad policy", func(c *Config) {
			c.Continuity = map[string]continuity.RoleConfig{"radius": {Policy: "teleport"}}
		}, "continuity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}
}
