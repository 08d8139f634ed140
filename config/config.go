package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go-looper/looper"
	"go-looper/measure"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

// ControlConfig is the reserved control protocol on the MIDI input.
// Channels are 0-based.
type ControlConfig struct {
	Disabled        bool   `json:"disabled,omitempty"`
	Channel         uint8  `json:"channel"`
	RecordKey       uint8  `json:"recordKey"`
	TempoController uint8  `json:"tempoController"`
	TempoOffset     uint32 `json:"tempoOffset"`
}

// MetronomeConfig is the click in slot 0
type MetronomeConfig struct {
	Channel        uint8 `json:"channel"`
	Key            uint8 `json:"key"`
	Velocity       uint8 `json:"velocity"`
	AccentVelocity uint8 `json:"accentVelocity"`
}

// Config is the main configuration structure
type Config struct {
	InputPort  string `json:"inputPort,omitempty"`
	OutputPort string `json:"outputPort,omitempty"`
	StateFile  string `json:"stateFile"`

	Tempo           uint32 `json:"tempo"`
	MeasureSize     uint32 `json:"measureSize"`
	QuantationLevel uint32 `json:"quantationLevel"`

	Control   ControlConfig   `json:"control"`
	Metronome MetronomeConfig `json:"metronome"`

	LoopSleepMillis     int  `json:"loopSleepMillis"`
	Autosave            bool `json:"autosave"`
	AutosaveDelayMillis int  `json:"autosaveDelayMillis"`
	HistoryLimit        int  `json:"historyLimit"`

	// Palette is a builtin palette name or a path to a .gpl file
	Palette string `json:"palette,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	controls := looper.DefaultControls()
	met := looper.DefaultMetronome()
	m := measure.Default()

	return &Config{
		StateFile:       "state.json",
		Tempo:           m.TempoBPM,
		MeasureSize:     m.MeasureSizeBPM,
		QuantationLevel: m.QuantationLevel,
		Control: ControlConfig{
			Channel:         controls.Channel,
			RecordKey:       controls.RecordKey,
			TempoController: controls.TempoController,
			TempoOffset:     controls.TempoOffset,
		},
		Metronome: MetronomeConfig{
			Channel:        met.Channel,
			Key:            met.Key,
			Velocity:       met.Velocity,
			AccentVelocity: met.AccentVelocity,
		},
		LoopSleepMillis:     3,
		Autosave:            false,
		AutosaveDelayMillis: 2000,
		HistoryLimit:        50,
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-looper"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Fields missing from the file keep
// their defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating its directory
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects values the looper cannot start with
func (c *Config) Validate() error {
	if err := c.Measure().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Control.Channel > 15 || c.Metronome.Channel > 15 {
		return fmt.Errorf("%w: channels are 0-15", ErrInvalidConfig)
	}
	if c.Control.RecordKey > 127 || c.Control.TempoController > 127 || c.Metronome.Key > 127 {
		return fmt.Errorf("%w: keys and controllers are 0-127", ErrInvalidConfig)
	}
	if c.LoopSleepMillis < 0 || c.AutosaveDelayMillis < 0 || c.HistoryLimit < 0 {
		return fmt.Errorf("%w: durations and limits must not be negative", ErrInvalidConfig)
	}
	if c.StateFile == "" {
		return fmt.Errorf("%w: stateFile is empty", ErrInvalidConfig)
	}
	return nil
}

// Measure is the starting tempo and grid
func (c *Config) Measure() measure.Measure {
	return measure.Measure{
		TempoBPM:        c.Tempo,
		MeasureSizeBPM:  c.MeasureSize,
		QuantationLevel: c.QuantationLevel,
	}
}

// Controls maps the control section onto the looper's
func (c *Config) Controls() looper.Controls {
	return looper.Controls{
		Enabled:         !c.Control.Disabled,
		Channel:         c.Control.Channel,
		RecordKey:       c.Control.RecordKey,
		TempoController: c.Control.TempoController,
		TempoOffset:     c.Control.TempoOffset,
	}
}

func (c *Config) MetronomeSettings() looper.Metronome {
	return looper.Metronome{
		Channel:        c.Metronome.Channel,
		Key:            c.Metronome.Key,
		Velocity:       c.Metronome.Velocity,
		AccentVelocity: c.Metronome.AccentVelocity,
	}
}

func (c *Config) LoopSleep() time.Duration {
	return time.Duration(c.LoopSleepMillis) * time.Millisecond
}

func (c *Config) AutosaveDelay() time.Duration {
	return time.Duration(c.AutosaveDelayMillis) * time.Millisecond
}

// RememberPorts records the ports last connected, for the next start
func (c *Config) RememberPorts(in, out string) {
	if in != "" {
		c.InputPort = in
	}
	if out != "" {
		c.OutputPort = out
	}
}
