package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Output selects where clicks are sent
type Output string

const (
	OutputAudio Output = "audio"
	OutputMIDI  Output = "midi"
)

// AudioConfig controls the audio device
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	BufferMs   int    `yaml:"buffer_ms"`
	SamplesDir string `yaml:"samples_dir,omitempty"`
}

// MIDIConfig controls the MIDI output and the optional foot pedal
type MIDIConfig struct {
	Port      string `yaml:"port,omitempty"` // substring match; first port if empty
	Kit       string `yaml:"kit"`
	Channel   int    `yaml:"channel"` // 1-16
	PedalPort string `yaml:"pedal_port,omitempty"`
}

// SchedulerConfig tunes the look-ahead scheduler
type SchedulerConfig struct {
	TickMs          int `yaml:"tick_ms"`
	ScheduleAheadMs int `yaml:"schedule_ahead_ms"`
}

// SwingConfig stores the last swing settings
type SwingConfig struct {
	Ratio           int     `yaml:"ratio"` // 2 or 3
	EmphasizeImpact bool    `yaml:"emphasize_impact"`
	DownswingFrames float64 `yaml:"downswing_frames"`
}

// Config is the main configuration structure
type Config struct {
	Output    Output          `yaml:"output"`
	Volume    float64         `yaml:"volume"`
	Listen    string          `yaml:"listen,omitempty"` // remote control addr, disabled if empty
	Audio     AudioConfig     `yaml:"audio"`
	MIDI      MIDIConfig      `yaml:"midi"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Swing     SwingConfig     `yaml:"swing"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputAudio,
		Volume: 0.8,
		Audio: AudioConfig{
			SampleRate: 44100,
			BufferMs:   20,
		},
		MIDI: MIDIConfig{
			Kit:     "gm",
			Channel: 10,
		},
		Scheduler: SchedulerConfig{
			TickMs:          25,
			ScheduleAheadMs: 100,
		},
		Swing: SwingConfig{
			Ratio:           3,
			DownswingFrames: 7,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-metronome"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from the default path, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Missing fields keep their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the default path
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

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects values the engine cannot run with
func (c *Config) Validate() error {
	switch c.Output {
	case OutputAudio, OutputMIDI:
	default:
		return fmt.Errorf("unknown output %q", c.Output)
	}
	if c.Swing.Ratio != 2 && c.Swing.Ratio != 3 {
		return fmt.Errorf("swing ratio must be 2 or 3, got %d", c.Swing.Ratio)
	}
	if c.Swing.DownswingFrames <= 0 {
		return fmt.Errorf("downswing frames must be positive")
	}
	if c.Scheduler.TickMs <= 0 || c.Scheduler.ScheduleAheadMs <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	if c.MIDI.Channel < 1 || c.MIDI.Channel > 16 {
		return fmt.Errorf("midi channel must be 1-16, got %d", c.MIDI.Channel)
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be 0-1, got %g", c.Volume)
	}
	return nil
}

// TickInterval returns the scheduler tick as a duration
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickMs) * time.Millisecond
}

// ScheduleAhead returns the look-ahead window as a duration
func (c *Config) ScheduleAhead() time.Duration {
	return time.Duration(c.Scheduler.ScheduleAheadMs) * time.Millisecond
}

// AudioBuffer returns the device buffer as a duration
func (c *Config) AudioBuffer() time.Duration {
	return time.Duration(c.Audio.BufferMs) * time.Millisecond
}
