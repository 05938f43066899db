package pianoseq

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cbegin/pianoseq-go/internal/midiout"
	"github.com/cbegin/pianoseq-go/internal/notation"
	intseq "github.com/cbegin/pianoseq-go/internal/sequencer"
	"github.com/cbegin/pianoseq-go/internal/timeline"
	"github.com/cbegin/pianoseq-go/internal/tone"
)

// ReleaseTail is rendered after the last beat when no explicit length is
// asked for, so the final notes can ring out.
const ReleaseTail = 1.2

// RenderSamples renders song through the piano synthesizer as interleaved
// stereo float32. A non-positive seconds renders the whole song plus
// ReleaseTail.
func RenderSamples(song *notation.Song, bpm float64, sampleRate int, seconds float64) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("render: sample rate %d must be positive", sampleRate)
	}
	engine := tone.New(sampleRate, tone.DefaultParams())
	seq, err := intseq.New(song, bpm, engine)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if seconds <= 0 {
		seconds = seq.Timeline().Seconds() + ReleaseTail
	}
	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)

	// Render up to each due beat, then dispatch it, so notes land on the
	// first frame at or after their exact start.
	frame := 0
	for frame < frames {
		next, ok := seq.NextDue()
		until := frames
		if ok {
			if at := int(math.Ceil(next.Seconds(bpm) * float64(sampleRate))); at < until {
				until = at
			}
		}
		if until > frame {
			engine.Process(out[frame*2 : until*2])
			frame = until
		}
		if !ok {
			break
		}
		if until < frames {
			seq.DispatchUntil(next)
		}
	}
	return out, nil
}

// RenderWAV renders song and writes it as a 32-bit float stereo WAV file.
func RenderWAV(w io.Writer, song *notation.Song, bpm float64, sampleRate int, seconds float64) error {
	samples, err := RenderSamples(song, bpm, sampleRate, seconds)
	if err != nil {
		return err
	}
	if _, err := w.Write(EncodeWAVFloat32LE(samples, sampleRate, 2)); err != nil {
		return fmt.Errorf("write WAV: %w", err)
	}
	return nil
}

// ExportSMF writes song at bpm as a Standard MIDI File.
func ExportSMF(w io.Writer, song *notation.Song, bpm float64, velocity int) error {
	tl, err := timeline.Build(song, bpm)
	if err != nil {
		return err
	}
	return midiout.WriteSMF(w, tl, velocity)
}

const wavHeaderSize = 44

// EncodeWAVFloat32LE wraps samples in a RIFF/WAVE container with an IEEE
// float format chunk.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	const bytesPerSample = 4
	dataSize := len(samples) * bytesPerSample
	out := make([]byte, wavHeaderSize+dataSize)
	le := binary.LittleEndian

	copy(out[0:], "RIFF")
	le.PutUint32(out[4:], uint32(wavHeaderSize-8+dataSize))
	copy(out[8:], "WAVE")

	copy(out[12:], "fmt ")
	le.PutUint32(out[16:], 16)
	le.PutUint16(out[20:], 3) // WAVE_FORMAT_IEEE_FLOAT
	le.PutUint16(out[22:], uint16(channels))
	le.PutUint32(out[24:], uint32(sampleRate))
	le.PutUint32(out[28:], uint32(sampleRate*channels*bytesPerSample))
	le.PutUint16(out[32:], uint16(channels*bytesPerSample))
	le.PutUint16(out[34:], 8*bytesPerSample)

	copy(out[36:], "data")
	le.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		le.PutUint32(out[wavHeaderSize+i*bytesPerSample:], math.Float32bits(s))
	}
	return out
}
