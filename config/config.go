// Package config loads the runtime configuration: which serial ports
// exist, which devices live on them, the per-port timing discipline and
// the logging setup. Built-in defaults describe the production site;
// an optional YAML file overrides them. MODBUS_ROUTER_* environment
// variables override only keys the file itself sets; without a file
// the defaults are used unchanged.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// VfdConfig declares one drive on a port.
type VfdConfig struct {
	ID     uint8  `mapstructure:"id"`
	Vendor string `mapstructure:"vendor"` // frecon or megmeet
	// PollStatus reads the status register on every poll cycle.
	PollStatus bool `mapstructure:"poll_status"`
}

// JoystickConfig declares one joystick on a port.
type JoystickConfig struct {
	ID    uint8 `mapstructure:"id"`
	Thumb bool  `mapstructure:"thumb"`
}

// PortConfig declares one serial bus. A port carries either joysticks
// or drives, never both.
type PortConfig struct {
	Device          string           `mapstructure:"device"`
	BaudRate        int              `mapstructure:"baud_rate"`
	FrameSilenceMs  int              `mapstructure:"frame_silence_ms"`
	DeviceSilenceMs int              `mapstructure:"device_silence_ms"`
	TimeoutMs       int              `mapstructure:"timeout_ms"`
	Vfds            []VfdConfig      `mapstructure:"vfds"`
	Joysticks       []JoystickConfig `mapstructure:"joysticks"`
}

// FrameSilence returns the per-frame quiet period; zero disables it.
func (p PortConfig) FrameSilence() time.Duration {
	return time.Duration(p.FrameSilenceMs) * time.Millisecond
}

// DeviceSilence returns the between-devices quiet period; zero disables it.
func (p PortConfig) DeviceSilence() time.Duration {
	return time.Duration(p.DeviceSilenceMs) * time.Millisecond
}

// Timeout returns the serial response timeout; zero disables it.
func (p PortConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// LogConfig holds the two log levels and the optional file sink
// directory. Router covers the core (router, pollers, devices); Serial
// covers the serial port tasks.
type LogConfig struct {
	RouterLevel string `mapstructure:"router_level"`
	SerialLevel string `mapstructure:"serial_level"`
	Dir         string `mapstructure:"dir"`
}

// Config is the full runtime configuration.
type Config struct {
	Log   LogConfig    `mapstructure:"log"`
	Ports []PortConfig `mapstructure:"ports"`
}

// Default returns the production topology: two joystick buses and
// three drive buses.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			RouterLevel: "error",
			SerialLevel: "error",
		},
		Ports: []PortConfig{
			{
				Device: "/dev/ttyXR6", BaudRate: 115200,
				FrameSilenceMs: 1, DeviceSilenceMs: 1, TimeoutMs: 5,
				Joysticks: []JoystickConfig{{ID: 0x05}},
			},
			{
				Device: "/dev/ttyXR7", BaudRate: 115200,
				FrameSilenceMs: 1, DeviceSilenceMs: 1, TimeoutMs: 5,
				Joysticks: []JoystickConfig{{ID: 0x06}},
			},
			{
				Device: "/dev/ttyXR2", BaudRate: 115200,
				FrameSilenceMs: 1, DeviceSilenceMs: 1, TimeoutMs: 5,
				Vfds: []VfdConfig{
					{ID: 10, Vendor: "megmeet"},
					{ID: 11, Vendor: "megmeet"},
					{ID: 60, Vendor: "megmeet"},
					{ID: 61, Vendor: "megmeet"},
				},
			},
			{
				Device: "/dev/ttyXR3", BaudRate: 115200,
				FrameSilenceMs: 3, DeviceSilenceMs: 6, TimeoutMs: 6,
				Vfds: []VfdConfig{
					{ID: 12, Vendor: "frecon"},
					{ID: 20, Vendor: "frecon"},
					{ID: 21, Vendor: "frecon"},
					{ID: 26, Vendor: "frecon"},
					{ID: 27, Vendor: "frecon"},
				},
			},
			{
				Device: "/dev/ttyXR4", BaudRate: 115200,
				FrameSilenceMs: 3, DeviceSilenceMs: 6, TimeoutMs: 6,
				Vfds: []VfdConfig{
					{ID: 30, Vendor: "frecon"},
					{ID: 31, Vendor: "frecon"},
					{ID: 40, Vendor: "megmeet"},
					{ID: 43, Vendor: "frecon"},
					{ID: 50, Vendor: "frecon"},
					{ID: 51, Vendor: "megmeet"},
				},
			},
		},
	}
}

// Load reads the configuration. With an explicit path the named file
// must exist; otherwise modbus-router.yaml is searched in the working
// directory and ./configs, and its absence just means defaults. A file
// that declares ports replaces the built-in topology wholesale.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("modbus-router")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("MODBUS_ROUTER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && path == "" {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills whatever the file left out.
func applyDefaults(cfg *Config) {
	if cfg.Log.RouterLevel == "" {
		cfg.Log.RouterLevel = "error"
	}
	if cfg.Log.SerialLevel == "" {
		cfg.Log.SerialLevel = "error"
	}
	if len(cfg.Ports) == 0 {
		cfg.Ports = Default().Ports
	}
	for i := range cfg.Ports {
		if cfg.Ports[i].BaudRate == 0 {
			cfg.Ports[i].BaudRate = 115200
		}
	}
}
