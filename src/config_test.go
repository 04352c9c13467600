package jt9decode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DefaultConfig(t *testing.T) {
	var cfg = DefaultConfig()

	// Everything but the jt9 location has a sensible default.
	assert.Error(t, cfg.Validate())

	cfg.Engine = "/usr/local/bin/jt9"
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "JT9DECODE", cfg.Key)
	assert.Equal(t, "FT2", cfg.Mode)
	assert.Equal(t, 1500, cfg.QSOFreq)
	assert.Equal(t, 100, cfg.Tolerance)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 100, int(cfg.PollBudget/cfg.PollInterval))
}

func Test_DecodeConfig(t *testing.T) {
	var cfg = DefaultConfig()

	var yaml = `
engine: /opt/wsjtx/bin/jt9
mode: ft8
depth: 2
mycall: G4ABC
mygrid: IO91wm
poll_budget: 20s
decode_log: /var/log/jt9decode
decode_log_daily: true
spot_port: 8073
`

	require.NoError(t, DecodeConfig(strings.NewReader(yaml), &cfg))

	assert.Equal(t, "/opt/wsjtx/bin/jt9", cfg.Engine)
	assert.Equal(t, "ft8", cfg.Mode)
	assert.Equal(t, 2, cfg.Depth)
	assert.Equal(t, "G4ABC", cfg.MyCall)
	assert.Equal(t, 20*time.Second, cfg.PollBudget)
	assert.True(t, cfg.DecodeLogDaily)
	assert.Equal(t, 8073, cfg.SpotPort)

	// Untouched.
	assert.Equal(t, 200, cfg.FreqLow)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)

	assert.NoError(t, cfg.Validate())
}

func Test_DecodeConfigEmpty(t *testing.T) {
	var cfg = DefaultConfig()

	require.NoError(t, DecodeConfig(strings.NewReader(""), &cfg))
	assert.Equal(t, DefaultConfig(), cfg)
}

func Test_DecodeConfigBad(t *testing.T) {
	var cfg = DefaultConfig()

	assert.ErrorIs(t, DecodeConfig(strings.NewReader("no_such_option: 1\n"), &cfg), ErrFormat)
	assert.ErrorIs(t, DecodeConfig(strings.NewReader("depth: [1, 2\n"), &cfg), ErrFormat)
	assert.ErrorIs(t, DecodeConfig(strings.NewReader("depth: deep\n"), &cfg), ErrFormat)
}

func Test_LoadConfig(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "jt9decode.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: FT4\nchannel: 1\n"), 0644))

	var cfg = DefaultConfig()
	var used, err = LoadConfig(path, &cfg)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "FT4", cfg.Mode)
	assert.Equal(t, 1, cfg.Channel)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	assert.ErrorIs(t, err, ErrIO)
}

func Test_ValidateConfig(t *testing.T) {
	var tests = []struct {
		name   string
		change func(c *Config)
		expect string
	}{
		{"mode", func(c *Config) { c.Mode = "JT65" }, "unknown mode"},
		{"depth low", func(c *Config) { c.Depth = 0 }, "depth"},
		{"depth high", func(c *Config) { c.Depth = 4 }, "depth"},
		{"freq range", func(c *Config) { c.FreqHigh = c.FreqLow }, "frequency range"},
		{"tolerance", func(c *Config) { c.Tolerance = -1 }, "tolerance"},
		{"long call", func(c *Config) { c.MyCall = "VERYLONGCALLSIGN" }, "call sign"},
		{"long grid", func(c *Config) { c.MyGrid = "FN20XA12" }, "grid"},
		{"bad grid", func(c *Config) { c.MyGrid = "ZZ99" }, "ZZ99"},
		{"key", func(c *Config) { c.Key = "" }, "key"},
		{"backend", func(c *Config) { c.ShmBackend = "mmap" }, "backend"},
		{"channel", func(c *Config) { c.Channel = 2 }, "channel"},
		{"poll", func(c *Config) { c.PollInterval = 0 }, "poll"},
		{"budget", func(c *Config) { c.PollBudget = time.Millisecond }, "poll"},
		{"spot port", func(c *Config) { c.SpotPort = 70000 }, "spot port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg = DefaultConfig()
			cfg.Engine = "jt9"
			tt.change(&cfg)

			var err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expect)
		})
	}
}

func Test_ValidateConfigCollectsAll(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.Depth = 9
	cfg.Channel = 5

	var err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jt9 path")
	assert.Contains(t, err.Error(), "depth")
	assert.Contains(t, err.Error(), "channel")
}
