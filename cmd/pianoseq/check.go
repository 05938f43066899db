package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cbegin/pianoseq-go"
	"github.com/cbegin/pianoseq-go/internal/timeline"
)

var checkBPM float64

func init() {
	checkCmd.Flags().Float64Var(&checkBPM, "bpm", 0, "tempo used for the printed times (default from config)")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check [FILE]",
	Short: "Parse a sequence file and print its timeline",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := sequencePath(args)
		text, err := readSequence(path, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		song, err := pianoseq.Parse(text)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		bpm := cfg.BPM
		if cmd.Flags().Changed("bpm") {
			bpm = checkBPM
		}
		tl, err := timeline.Build(song, bpm)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TRACK\tPITCH\tBEAT\tSTART\tEND")
		for _, n := range tl.Notes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%.3f\n", n.Track, n.Pitch, n.StartBeat, n.Start, n.End)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for _, tr := range tl.Tracks {
			fmt.Fprintf(out, "%s: %d events, %d notes, %s beats\n", tr.ID, len(tr.Starts), len(tr.Notes), tr.Length)
		}
		fmt.Fprintf(out, "%d notes, %s beats, %.2fs at %g bpm\n", len(tl.Notes), tl.Length, tl.Seconds(), tl.BPM)
		return nil
	},
}
