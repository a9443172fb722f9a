package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/icco/beatsblox/internal/audio"
	"github.com/icco/beatsblox/internal/script"
	"github.com/icco/beatsblox/internal/tui"
)

var virtualName string

var monitorCmd = &cobra.Command{
	Use:   "monitor [script.yaml]",
	Short: "Watch tracks, notes and effects live",
	Long: `Show a live view of every track: level meter, instrument, connected device,
effects, recording state and the notes that are sounding.

With a script the program is played while it is watched. With --virtual a
virtual MIDI input is created; connect other software to it and the notes
it sends play on the default track.

Example:
  beatsblox monitor song.yaml
  beatsblox monitor --virtual "Blocks Synth"
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVarP(&virtualName, "virtual", "n", "", "Name for a virtual MIDI input device")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	var s *script.Script
	if len(args) == 1 {
		var err error
		if s, err = script.Load(args[0]); err != nil {
			return err
		}
	}
	if virtualName != "" {
		cfg.VirtualInput = virtualName
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	hook := tui.NewLogHook(level)
	logrus.AddHook(hook)
	// the TUI owns the terminal
	logrus.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	app, engine, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer app.Close()

	if virtualName != "" {
		<-app.Devices().Ready()
		if err := app.SetInputDevice(audio.DefaultTrack, virtualName); err != nil {
			logrus.WithError(err).Warn("virtual input not connected")
		}
	}

	p := tea.NewProgram(tui.New("beatsblox", app, hook), tea.WithAltScreen())

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		<-c
		p.Send(tea.Quit())
	}()

	if s != nil {
		done := runInBackground(ctx, script.NewRunner(app, nil), s)
		go func() {
			p.Send(tui.DoneMsg{Err: <-done})
		}()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	app.StopAll()
	return nil
}
