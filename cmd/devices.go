package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/icco/beatsblox/internal/audio"
	"github.com/icco/beatsblox/internal/devices"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List input devices, instruments and effects",
	Long: `List everything a track can be connected to or loaded with: MIDI inputs,
audio inputs, instruments from the built-in set and the catalog, and the
available effects with their parameters.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	app, engine, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer engine.Close()
	defer app.Close()

	reg := app.Devices()
	<-reg.Ready()

	out := cmd.OutOrStdout()
	for _, opt := range reg.Options() {
		if opt == devices.MIDIHeader || opt == devices.AudioHeader {
			fmt.Fprintln(out, headerStyle.Render(opt))
			continue
		}
		fmt.Fprintln(out, "  "+opt)
	}

	fmt.Fprintln(out, headerStyle.Render("Instruments"))
	for _, name := range reg.Instruments() {
		fmt.Fprintln(out, "  "+name)
	}

	fmt.Fprintln(out, headerStyle.Render("Effects"))
	for _, name := range audio.EffectNames() {
		kind, err := audio.ParseEffectKind(name)
		if err != nil {
			return err
		}
		params, err := engine.AvailableEffectParameters(kind)
		if err != nil {
			return err
		}
		names := make([]string, len(params))
		for i, p := range params {
			names[i] = p.Name
		}
		fmt.Fprintf(out, "  %-18s %s\n", name, strings.Join(names, ", "))
	}
	return nil
}
