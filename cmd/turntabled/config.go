package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"turntablegate/inhibitor"
)

// Config is the top-level YAML configuration for the turntabled daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume a
// well-formed config.
type Config struct {
	// Sensor input devices
	Sensors SensorsConfig `yaml:"sensors"`

	// Change detection / countdown tuning
	Inhibitor InhibitorConfig `yaml:"inhibitor"`

	// IPC configuration (sensor drivers, release scheduler, turntable-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// HTTP API and state websocket
	HTTP HTTPConfig `yaml:"http"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type SensorsConfig struct {
	Light SensorConfig `yaml:"light"` // high-rate period estimates (change detection)
	Hall  SensorConfig `yaml:"hall"`  // once-per-revolution ticks (countdown)
}

// SensorConfig selects which input events on which device carry a sensor's period.
// An empty Device disables reading that sensor from an input device (IPC only).
type SensorConfig struct {
	Device    string `yaml:"device"`
	EventType uint16 `yaml:"event_type"`
	EventCode uint16 `yaml:"event_code"`
}

type InhibitorConfig struct {
	Threshold   float64 `yaml:"threshold"`
	RearmRounds int     `yaml:"rearm_rounds"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Sensors: SensorsConfig{
			Light: SensorConfig{
				Device:    defaultLightDevice,
				EventType: defaultLightEventType,
				EventCode: defaultLightEventCode,
			},
			Hall: SensorConfig{
				Device:    defaultHallDevice,
				EventType: defaultHallEventType,
				EventCode: defaultHallEventCode,
			},
		},
		Inhibitor: InhibitorConfig{
			Threshold:   inhibitor.DefaultThreshold,
			RearmRounds: inhibitor.DefaultRearmRounds,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		HTTP: HTTPConfig{
			Port: defaultHTTPPort,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		// An empty file means defaults.
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds flag values applied on top of a loaded config.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	LightDevice *string
	HallDevice  *string

	Threshold   *float64
	RearmRounds *int

	IPCSocketPath *string
	HTTPPort      *int

	LogLevel *string
}

// Apply merges the overrides into cfg. If the pointer is non-nil, the value is
// applied (even if it is a zero value).
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.LightDevice != nil {
		cfg.Sensors.Light.Device = *o.LightDevice
	}
	if o.HallDevice != nil {
		cfg.Sensors.Hall.Device = *o.HallDevice
	}
	if o.Threshold != nil {
		cfg.Inhibitor.Threshold = *o.Threshold
	}
	if o.RearmRounds != nil {
		cfg.Inhibitor.RearmRounds = *o.RearmRounds
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Sensors
	light, hall := c.Sensors.Light, c.Sensors.Hall
	if light.Device != "" && light.Device == hall.Device &&
		light.EventType == hall.EventType && light.EventCode == hall.EventCode {
		return errors.New("sensors.light and sensors.hall share a device and must use different event_type/event_code")
	}

	// Inhibitor
	if c.Inhibitor.Threshold <= 0 || c.Inhibitor.Threshold >= 1 {
		return errors.New("inhibitor.threshold must be > 0 and < 1")
	}
	if c.Inhibitor.RearmRounds < 1 || c.Inhibitor.RearmRounds > maxRearmRounds {
		return fmt.Errorf("inhibitor.rearm_rounds must be between 1 and %d", maxRearmRounds)
	}

	// IPC / HTTP
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 (disabled) and 65535")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ToInhibitorConfig converts the file config into the gate's construction parameters.
func (c *Config) ToInhibitorConfig() inhibitor.Config {
	return inhibitor.Config{
		Threshold:   c.Inhibitor.Threshold,
		RearmRounds: uint32(c.Inhibitor.RearmRounds),
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
