package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/icco/beatsblox/internal/audio"
	"github.com/icco/beatsblox/internal/config"
	"github.com/icco/beatsblox/internal/music"
)

var (
	configPath string
	logLevel   string
	output     string
	catalog    string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "beatsblox",
	Short: "A multi-track music engine for block programs",
	Long: `beatsblox plays notes, clips and effects for block-based programs.

Every sprite of a program gets its own track. Clips started by different
sprites in the same moment are aligned to a shared start time, tracks can
be driven by MIDI keyboards, and any track or the master mix can be
recorded to WAV or MIDI.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/beatsblox/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "", "audio output: oto or null")
	rootCmd.PersistentFlags().StringVar(&catalog, "catalog", "", "instrument catalog file or URL")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if output != "" {
		c.Output = config.Output(output)
	}
	if catalog != "" {
		c.Catalog = catalog
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.ConfigureLogging(); err != nil {
		return err
	}
	cfg = c
	return nil
}

// newApp builds the engine and app from the loaded config. The caller closes
// both.
func newApp(ctx context.Context) (*music.App, *audio.Engine, error) {
	engine, err := audio.NewEngine(cfg.EngineConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audio: %w", err)
	}
	if err := engine.UpdateBeatsPerMinute(cfg.BPM); err != nil {
		_ = engine.Close()
		return nil, nil, err
	}
	app := music.New(engine, music.Options{
		Catalog:     cfg.Catalog,
		SyncQuantum: cfg.SyncQuantum,
		SyncMaxWait: cfg.SyncMaxWait,
		Logger:      logrus.WithField("component", "music"),
	})
	app.Start(ctx)
	return app, engine, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
