//go:build !midi_native

package midiout

import "gitlab.com/gomidi/midi/v2/drivers"

func openPort(string) (drivers.Out, error) { return nil, ErrUnavailable }

func listPorts() ([]string, error) { return nil, ErrUnavailable }

func CloseDriver() {}
