// Package config loads the beatsblox settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/icco/beatsblox/internal/audio"
)

// Output selects the audio sink.
type Output string

const (
	OutputOto  Output = "oto"
	OutputNull Output = "null"
)

// Config is the settings file.
type Config struct {
	SampleRate int     `yaml:"sampleRate"`
	BufferSize int     `yaml:"bufferSize"`
	Output     Output  `yaml:"output"`
	BPM        float64 `yaml:"bpm"`

	SyncQuantum time.Duration `yaml:"syncQuantum"`
	SyncMaxWait time.Duration `yaml:"syncMaxWait,omitempty"`

	// Catalog is a file path or http(s) URL of the instrument catalog.
	Catalog string `yaml:"catalog,omitempty"`

	// VirtualInput names a virtual MIDI input to open. Empty opens none.
	VirtualInput string `yaml:"virtualInput,omitempty"`

	Log LogConfig `yaml:"log"`
}

// LogConfig stores logging preferences.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SampleRate:  audio.DefaultSampleRate,
		BufferSize:  audio.DefaultBufferSize,
		Output:      OutputOto,
		BPM:         audio.DefaultBPM,
		SyncQuantum: 5 * time.Millisecond,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "beatsblox"), nil
}

// Path returns the full path to config.yaml
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path, or the default location when path is
// empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sampleRate must be positive, got %d", c.SampleRate)
	case c.BufferSize <= 0:
		return fmt.Errorf("bufferSize must be positive, got %d", c.BufferSize)
	case c.BPM <= 0:
		return fmt.Errorf("bpm must be positive, got %v", c.BPM)
	case c.SyncQuantum < 0 || c.SyncMaxWait < 0:
		return errors.New("sync durations must not be negative")
	}
	switch c.Output {
	case OutputOto, OutputNull:
	default:
		return fmt.Errorf("unknown output %q", c.Output)
	}
	return nil
}

// Save writes the config to path, or the default location when path is
// empty.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Sink builds the configured audio sink.
func (c *Config) Sink() audio.Sink {
	if c.Output == OutputNull {
		return audio.NewNullSink(c.SampleRate, c.BufferSize)
	}
	return audio.NewOtoSink(c.SampleRate, c.BufferSize)
}

// EngineConfig converts the settings into an engine configuration.
func (c *Config) EngineConfig() audio.Config {
	return audio.Config{
		SampleRate:   c.SampleRate,
		BufferSize:   c.BufferSize,
		Sink:         c.Sink(),
		VirtualInput: c.VirtualInput,
		Logger:       logrus.WithField("component", "audio"),
	}
}

// ConfigureLogging applies the level and format to the standard logger.
func (c *Config) ConfigureLogging() error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	switch c.Log.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
