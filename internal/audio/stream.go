// Package audio streams float32 samples from a SampleSource to the system
// audio device through ebiten.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource fills dst with interleaved stereo frames.
type SampleSource interface {
	Process(dst []float32)
}

// Stream adapts a SampleSource to the little-endian float32 byte stream
// ebiten reads from. An optional tap sees every block after it is rendered.
type Stream struct {
	mu     sync.Mutex
	source SampleSource
	tap    func([]float32)
	buf    []float32
	frames int64
	closed bool
}

func NewStream(source SampleSource, tap func([]float32)) *Stream {
	return &Stream{source: source, tap: tap}
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}
	s.buf = s.buf[:need]
	s.source.Process(s.buf)
	if s.tap != nil {
		s.tap(s.buf)
	}
	for i, v := range s.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	s.frames += int64(frames)
	return frames * 8, nil
}

// Frames is the number of stereo frames rendered so far.
func (s *Stream) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// sharedContext returns the process-wide audio context. ebiten allows only
// one, so every Output must use the same sample rate.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// Output plays one Stream on the audio device. The device keeps pulling
// (silence included) until Close, so notes can arrive at any time.
type Output struct {
	player *ebitaudio.Player
	stream *Stream
}

func Open(sampleRate int, source SampleSource, tap func([]float32)) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	stream := NewStream(source, tap)
	pl, err := ctx.NewPlayerF32(stream)
	if err != nil {
		return nil, fmt.Errorf("open audio output: %w", err)
	}
	pl.SetBufferSize(40 * time.Millisecond)
	pl.Play()
	return &Output{player: pl, stream: stream}, nil
}

func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return err
	}
	return o.stream.Close()
}
