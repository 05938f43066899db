// Package midiout sends notes to a MIDI output port and writes timelines as
// Standard MIDI Files.
package midiout

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/pianoseq-go/internal/notation"
)

// ReleaseVelocity is the velocity carried by every note-off.
const ReleaseVelocity = 64

// ErrUnavailable is returned when the binary was built without a MIDI driver.
var ErrUnavailable = errors.New("native MIDI driver is not included in this build (build with -tags midi_native)")

type Option func(*Sink)

func WithLogger(l *log.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// WithChannel selects the MIDI channel (0-15) used for a hand.
func WithChannel(track notation.TrackID, channel uint8) Option {
	return func(s *Sink) { s.channels[track] = channel & 0x0F }
}

// WithErrorHandler is called for every failed send, after it is logged.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Sink) { s.onError = fn }
}

// Sink writes note messages through a send function. It implements
// sequencer.Sink. A failing send never stops playback; it is logged and
// reported through the error handler.
type Sink struct {
	send     func(midi.Message) error
	name     string
	channels map[notation.TrackID]uint8
	log      *log.Logger
	onError  func(error)
	failures atomic.Int64
	closer   func() error

	mu       sync.Mutex
	sounding map[noteKey]int
}

type noteKey struct {
	channel uint8
	key     uint8
}

// NewSink wraps an arbitrary send function, such as one returned by
// midi.SendTo.
func NewSink(name string, send func(midi.Message) error, opts ...Option) *Sink {
	s := &Sink{
		send:     send,
		name:     name,
		channels: map[notation.TrackID]uint8{},
		log:      log.Default(),
		sounding: map[noteKey]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the named output port, or the first one when name is
// empty.
func Open(name string, opts ...Option) (*Sink, error) {
	out, err := openPort(name)
	if err != nil {
		return nil, fmt.Errorf("open MIDI output %q: %w", name, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("open MIDI output %q: %w", out.String(), err)
	}
	s := NewSink(out.String(), send, opts...)
	s.closer = out.Close
	s.log.Info("MIDI output opened", "port", s.name)
	return s, nil
}

// Ports lists the available output port names.
func Ports() ([]string, error) { return listPorts() }

func (s *Sink) Name() string { return s.name }

func (s *Sink) channel(track notation.TrackID) uint8 { return s.channels[track] }

func (s *Sink) NoteOn(pitch notation.Pitch, track notation.TrackID, velocity int) {
	ch, key := s.channel(track), uint8(pitch)
	if velocity < 1 {
		velocity = 1
	}
	if velocity > 127 {
		velocity = 127
	}
	s.mu.Lock()
	s.sounding[noteKey{ch, key}]++
	s.mu.Unlock()
	s.write(midi.NoteOn(ch, key, uint8(velocity)))
}

func (s *Sink) NoteOff(pitch notation.Pitch, track notation.TrackID) {
	ch, key := s.channel(track), uint8(pitch)
	k := noteKey{ch, key}
	s.mu.Lock()
	if s.sounding[k] > 1 {
		s.sounding[k]--
	} else {
		delete(s.sounding, k)
	}
	s.mu.Unlock()
	s.write(midi.NoteOffVelocity(ch, key, ReleaseVelocity))
}

// Sounding reports how many notes are held on the port.
func (s *Sink) Sounding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.sounding {
		n += c
	}
	return n
}

// Failures is the number of sends that returned an error.
func (s *Sink) Failures() int64 { return s.failures.Load() }

func (s *Sink) write(msg midi.Message) {
	if err := s.send(msg); err != nil {
		s.failures.Add(1)
		s.log.Warn("MIDI send failed", "port", s.name, "msg", msg.String(), "err", err)
		if s.onError != nil {
			s.onError(err)
		}
	}
}

// Close releases any held notes and closes the port.
func (s *Sink) Close() error {
	s.mu.Lock()
	held := make([]noteKey, 0, len(s.sounding))
	for k := range s.sounding {
		held = append(held, k)
	}
	s.sounding = map[noteKey]int{}
	s.mu.Unlock()
	for _, k := range held {
		s.write(midi.NoteOffVelocity(k.channel, k.key, ReleaseVelocity))
	}
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
