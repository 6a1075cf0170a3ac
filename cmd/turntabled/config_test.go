package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 0.08, cfg.Inhibitor.Threshold)
	require.Equal(t, 2, cfg.Inhibitor.RearmRounds)
	require.Equal(t, defaultSocketPath, cfg.IPC.SocketPath)
}

func TestParseConfig_OverlaysDefaults(t *testing.T) {
	cfg, err := parseConfig([]byte(`
sensors:
  light:
    device: /dev/input/event7
inhibitor:
  rearm_rounds: 3
http:
  port: 0
`))
	require.NoError(t, err)
	require.Equal(t, "/dev/input/event7", cfg.Sensors.Light.Device)
	require.Equal(t, uint16(defaultLightEventType), cfg.Sensors.Light.EventType)
	require.Equal(t, uint16(defaultLightEventCode), cfg.Sensors.Light.EventCode)
	require.Equal(t, defaultHallDevice, cfg.Sensors.Hall.Device)
	require.Equal(t, 3, cfg.Inhibitor.RearmRounds)
	require.Equal(t, 0.08, cfg.Inhibitor.Threshold)
	require.Equal(t, 0, cfg.HTTP.Port)
	require.NoError(t, cfg.Validate())
}

func TestParseConfig_RejectsUnknownField(t *testing.T) {
	_, err := parseConfig([]byte("inhibitor:\n  treshold: 0.1\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "treshold")
}

func TestParseConfig_RejectsTrailingDocument(t *testing.T) {
	_, err := parseConfig([]byte("logging:\n  level: debug\n---\nlogging:\n  level: info\n"))
	require.ErrorContains(t, err, "trailing document")
}

func TestParseConfig_TrailingCommentsAllowed(t *testing.T) {
	cfg, err := parseConfig([]byte("logging:\n  level: debug\n# trailing comment\n"))
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestParseConfig_EmptyFileIsDefaults(t *testing.T) {
	cfg, err := parseConfig(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	_, err := LoadConfigFile("")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "turntabled.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ipc:\n  socket_path: /run/tt.sock\n"), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, "/run/tt.sock", cfg.IPC.SocketPath)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"threshold zero", func(c *Config) { c.Inhibitor.Threshold = 0 }, "inhibitor.threshold"},
		{"threshold one", func(c *Config) { c.Inhibitor.Threshold = 1 }, "inhibitor.threshold"},
		{"rearm zero", func(c *Config) { c.Inhibitor.RearmRounds = 0 }, "inhibitor.rearm_rounds"},
		{"rearm too large", func(c *Config) { c.Inhibitor.RearmRounds = maxRearmRounds + 1 }, "inhibitor.rearm_rounds"},
		{"empty socket", func(c *Config) { c.IPC.SocketPath = "" }, "ipc.socket_path"},
		{"negative port", func(c *Config) { c.HTTP.Port = -1 }, "http.port"},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"shared binding", func(c *Config) {
			c.Sensors.Hall = c.Sensors.Light
		}, "share a device"},
		{"shared device, distinct codes", func(c *Config) {
			c.Sensors.Hall.Device = c.Sensors.Light.Device
		}, ""},
		{"both sensors disabled", func(c *Config) {
			c.Sensors.Light.Device = ""
			c.Sensors.Hall.Device = ""
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()

	empty := ""
	thr := 0.15
	port := 0
	level := "debug"
	FlagOverrides{
		LightDevice: &empty,
		Threshold:   &thr,
		HTTPPort:    &port,
		LogLevel:    &level,
	}.Apply(&cfg)

	require.Equal(t, "", cfg.Sensors.Light.Device)
	require.Equal(t, defaultHallDevice, cfg.Sensors.Hall.Device)
	require.Equal(t, 0.15, cfg.Inhibitor.Threshold)
	require.Equal(t, 2, cfg.Inhibitor.RearmRounds)
	require.Equal(t, 0, cfg.HTTP.Port)
	require.Equal(t, "debug", cfg.Logging.Level)

	// nil config is ignored
	FlagOverrides{LogLevel: &level}.Apply(nil)
}

func TestToInhibitorConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Inhibitor.Threshold = 0.1
	cfg.Inhibitor.RearmRounds = 5

	ic := cfg.ToInhibitorConfig()
	require.Equal(t, 0.1, ic.Threshold)
	require.Equal(t, uint32(5), ic.RearmRounds)
	require.Nil(t, ic.Logger)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	require.Equal(t, "", ExpandPath(""))
	require.Equal(t, "/tmp/x.sock", ExpandPath("/tmp/x.sock"))
	require.Equal(t, home, ExpandPath("~"))
	require.Equal(t, filepath.Join(home, "tt.sock"), ExpandPath("~/tt.sock"))
	require.True(t, strings.HasPrefix(ExpandPath("~other/x"), "~"))
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"error":   LogLevelError,
		"warn":    LogLevelWarn,
		"warning": LogLevelWarn,
		"info":    LogLevelInfo,
		"debug":   LogLevelDebug,
	} {
		got, err := parseLogLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := parseLogLevel("trace")
	require.Error(t, err)
}
