//go:build midi_native

package midiout

import (
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

func openPort(name string) (drivers.Out, error) {
	if name == "" {
		return midi.OutPort(0)
	}
	return midi.FindOutPort(name)
}

func listPorts() ([]string, error) {
	ports := midi.GetOutPorts()
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.String())
	}
	return names, nil
}

// CloseDriver shuts the MIDI driver down. Call once at exit.
func CloseDriver() { midi.CloseDriver() }
