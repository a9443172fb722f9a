package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SampleRate != 44100 || cfg.BPM != 120 || cfg.Output != OutputOto {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
sampleRate: 48000
output: "null"
syncQuantum: 10ms
syncMaxWait: 250ms
virtualInput: Blocks
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d", cfg.SampleRate)
	}
	if cfg.BufferSize != 512 {
		t.Errorf("BufferSize = %d, want default", cfg.BufferSize)
	}
	if cfg.Output != OutputNull {
		t.Errorf("Output = %q", cfg.Output)
	}
	if cfg.SyncQuantum != 10*time.Millisecond || cfg.SyncMaxWait != 250*time.Millisecond {
		t.Errorf("sync = %v / %v", cfg.SyncQuantum, cfg.SyncMaxWait)
	}
	if cfg.VirtualInput != "Blocks" || cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "sampleRate: [1"},
		{"rate", "sampleRate: 0"},
		{"bpm", "bpm: -3"},
		{"output", "output: speakers"},
		{"quantum", "syncQuantum: -1ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.BPM = 90
	cfg.SyncMaxWait = time.Second
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.BPM != 90 || got.SyncMaxWait != time.Second {
		t.Errorf("loaded = %+v", got)
	}
}

func TestConfigureLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())
	defer logrus.SetFormatter(logrus.StandardLogger().Formatter)

	cfg := DefaultConfig()
	cfg.Log = LogConfig{Level: "warn", Format: "json"}
	if err := cfg.ConfigureLogging(); err != nil {
		t.Fatal(err)
	}
	if logrus.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v", logrus.GetLevel())
	}
	if _, ok := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter); !ok {
		t.Error("formatter is not JSON")
	}

	cfg.Log.Level = "loud"
	if err := cfg.ConfigureLogging(); err == nil {
		t.Error("bad level accepted")
	}
}
