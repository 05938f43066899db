package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbegin/pianoseq-go/internal/midiout"
)

func init() {
	rootCmd.AddCommand(portsCmd)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI output ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer midiout.CloseDriver()
		ports, err := midiout.Ports()
		if errors.Is(err, midiout.ErrUnavailable) {
			fmt.Fprintln(cmd.OutOrStdout(), "MIDI output is not available in this build (rebuild with -tags midi_native)")
			return nil
		}
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no MIDI output ports")
			return nil
		}
		for i, name := range ports {
			fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", i, name)
		}
		return nil
	},
}
