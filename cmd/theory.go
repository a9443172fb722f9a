package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/icco/beatsblox/internal/theory"
)

var noteCmd = &cobra.Command{
	Use:   "note <name|number>...",
	Short: "Convert note names to MIDI numbers",
	Long: `Convert note names such as C4, F#3 or E4bb to MIDI numbers. Numbers are
printed with their note name.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			n, err := resolveArg(arg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", arg, n, theory.NoteName(n))
		}
		return nil
	},
}

var scaleCmd = &cobra.Command{
	Use:   "scale <root> <type>",
	Short: "Print the notes of a scale",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveArg(args[0])
		if err != nil {
			return err
		}
		t, err := theory.ParseScaleType(args[1])
		if err != nil {
			return err
		}
		notes, err := theory.GenerateScale(root, t)
		if err != nil {
			return err
		}
		printNotes(cmd, notes)
		return nil
	},
}

var chordCmd = &cobra.Command{
	Use:   "chord <root> <type>",
	Short: "Print the notes of a chord",
	Long:  `Print the notes of a chord. Multi-word types are joined: chord C4 Major 7th.`,
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveArg(args[0])
		if err != nil {
			return err
		}
		t, err := theory.ParseChordType(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		notes, err := theory.GenerateChord(root, t)
		if err != nil {
			return err
		}
		printNotes(cmd, notes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(noteCmd, scaleCmd, chordCmd)
}

// resolveArg accepts a note name or a MIDI number.
func resolveArg(arg string) (int, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		return theory.ResolveValue(n)
	}
	return theory.ResolveNote(arg)
}

func printNotes(cmd *cobra.Command, notes []int) {
	names := make([]string, len(notes))
	nums := make([]string, len(notes))
	for i, n := range notes {
		names[i] = theory.NoteName(n)
		nums[i] = strconv.Itoa(n)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, " "))
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(nums, " "))
}
