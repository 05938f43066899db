// Package config holds the persistent settings of the pianoseq command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/exp/constraints"
)

const (
	DefaultSequenceFile = "sequence.txt"
	DefaultBPM          = 120.0
	DefaultMinBPM       = 20.0
	DefaultMaxBPM       = 400.0
	DefaultVelocity     = 96
	DefaultSampleRate   = 48000
)

type Config struct {
	SequenceFile string      `json:"sequence_file"`
	BPM          float64     `json:"bpm"`
	MinBPM       float64     `json:"min_bpm"`
	MaxBPM       float64     `json:"max_bpm"`
	Velocity     int         `json:"velocity"`
	Loop         bool        `json:"loop"`
	LogLevel     string      `json:"log_level"`
	Audio        AudioConfig `json:"audio"`
	MIDI         MidiConfig  `json:"midi"`
	Watch        WatchConfig `json:"watch"`
	Control      Control     `json:"control"`
}

type AudioConfig struct {
	Enabled    bool `json:"enabled"`
	SampleRate int  `json:"sample_rate"`
}

// MidiConfig selects the output port. An empty Port means the first one.
type MidiConfig struct {
	Enabled bool   `json:"enabled"`
	Port    string `json:"port"`
}

type WatchConfig struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval"` // e.g. "250ms"
	Debounce string `json:"debounce"` // e.g. "300ms"
}

// Control is the HTTP control surface. Empty Addr disables it.
type Control struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
}

func Default() *Config {
	return &Config{
		SequenceFile: DefaultSequenceFile,
		BPM:          DefaultBPM,
		MinBPM:       DefaultMinBPM,
		MaxBPM:       DefaultMaxBPM,
		Velocity:     DefaultVelocity,
		LogLevel:     "info",
		Audio:        AudioConfig{Enabled: true, SampleRate: DefaultSampleRate},
		MIDI:         MidiConfig{Enabled: true},
		Watch:        WatchConfig{Interval: "250ms", Debounce: "300ms"},
		Control:      Control{AllowedOrigins: []string{"*"}},
	}
}

// DefaultPath is config.json under the user's configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pianoseq", "config.json"), nil
}

// Load reads the config at path, or DefaultPath when path is empty. A missing
// file returns (nil, os.ErrNotExist). Fields absent from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	bt, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	c := Default()
	if err := json.Unmarshal(bt, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Normalize(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Save writes c to path, or DefaultPath when path is empty.
func Save(path string, c *Config) error {
	if c == nil {
		return errors.New("nil config")
	}
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	bt, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bt, 0o600)
}

// Normalize fills zero values with defaults and clamps tempo and velocity
// into range.
func (c *Config) Normalize() error {
	def := Default()
	if c.SequenceFile == "" {
		c.SequenceFile = def.SequenceFile
	}
	if c.MinBPM <= 0 {
		c.MinBPM = def.MinBPM
	}
	if c.MaxBPM <= 0 {
		c.MaxBPM = def.MaxBPM
	}
	if c.MinBPM > c.MaxBPM {
		return fmt.Errorf("min_bpm %v above max_bpm %v", c.MinBPM, c.MaxBPM)
	}
	if c.BPM <= 0 {
		c.BPM = def.BPM
	}
	c.BPM = Clamp(c.BPM, c.MinBPM, c.MaxBPM)
	if c.Velocity == 0 {
		c.Velocity = def.Velocity
	}
	c.Velocity = Clamp(c.Velocity, 1, 127)
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if _, err := c.WatchInterval(); err != nil {
		return err
	}
	if _, err := c.WatchDebounce(); err != nil {
		return err
	}
	return nil
}

func (c *Config) WatchInterval() (time.Duration, error) {
	return parseDuration("watch.interval", c.Watch.Interval, 250*time.Millisecond)
}

func (c *Config) WatchDebounce() (time.Duration, error) {
	return parseDuration("watch.debounce", c.Watch.Debounce, 300*time.Millisecond)
}

func parseDuration(field, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", field, s)
	}
	return d, nil
}

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
