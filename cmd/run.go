package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/icco/beatsblox/internal/script"
)

var runCmd = &cobra.Command{
	Use:   "run <script.yaml>",
	Short: "Play a block program",
	Long: `Play a block program written as YAML. Every sprite runs its command list
concurrently on its own track.

Example:
  beatsblox run song.yaml
`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	s, err := script.Load(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, engine, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer app.Close()

	log := logrus.WithField("component", "run")
	log.WithField("sprites", len(s.Sprites)).Info("starting")
	err = script.NewRunner(app, nil).Run(ctx, s)
	if err != nil && ctx.Err() == nil {
		return err
	}
	if ctx.Err() != nil {
		app.StopAll()
		log.Info("interrupted")
		return nil
	}
	log.Info("done")
	return nil
}

// runInBackground starts the script and reports its result on the returned
// channel.
func runInBackground(ctx context.Context, r *script.Runner, s *script.Script) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, s)
	}()
	return done
}
