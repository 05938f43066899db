package pianoseq

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	intaudio "github.com/cbegin/pianoseq-go/internal/audio"
	"github.com/cbegin/pianoseq-go/internal/config"
	"github.com/cbegin/pianoseq-go/internal/notation"
	intseq "github.com/cbegin/pianoseq-go/internal/sequencer"
	"github.com/cbegin/pianoseq-go/internal/timeline"
	"github.com/cbegin/pianoseq-go/internal/tone"
)

var (
	ErrNoSong     = errors.New("no song loaded")
	ErrNotPlaying = errors.New("not playing")
	ErrNotPaused  = errors.New("not paused")
	ErrClosed     = errors.New("player closed")
)

type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
	EventWarning
	EventReloaded
)

func (k EventKind) String() string {
	switch k {
	case EventLoopCompleted:
		return "loop-completed"
	case EventPlaybackEnded:
		return "playback-ended"
	case EventWarning:
		return "warning"
	case EventReloaded:
		return "reloaded"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// PlaybackEvent is delivered on the channel returned by Watch. Err is set for
// EventWarning.
type PlaybackEvent struct {
	Kind    EventKind
	Session string
	Err     error
}

// Status is the playback snapshot plus the id of the current session.
type Status struct {
	intseq.Status
	Session string
}

type PlayerOption func(*playerConfig)

type playerConfig struct {
	bpm          float64
	minBPM       float64
	maxBPM       float64
	velocity     int
	loopPlayback bool
	sinks        []intseq.Sink
	toneRate     int
	toneParams   tone.Params
	sampleTap    func([]float32)
	logger       *log.Logger
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		bpm:        config.DefaultBPM,
		minBPM:     config.DefaultMinBPM,
		maxBPM:     config.DefaultMaxBPM,
		velocity:   intseq.DefaultVelocity,
		toneParams: tone.DefaultParams(),
		logger:     log.Default(),
	}
}

func WithTempo(bpm float64) PlayerOption {
	return func(cfg *playerConfig) { cfg.bpm = bpm }
}

// WithTempoRange bounds NudgeTempo.
func WithTempoRange(min, max float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.minBPM = min
		cfg.maxBPM = max
	}
}

func WithVelocity(v int) PlayerOption {
	return func(cfg *playerConfig) { cfg.velocity = v }
}

func WithLoopPlayback(enabled bool) PlayerOption {
	return func(cfg *playerConfig) { cfg.loopPlayback = enabled }
}

// WithSink adds an output. Sinks receive notes in the order they were added.
func WithSink(s intseq.Sink) PlayerOption {
	return func(cfg *playerConfig) { cfg.sinks = append(cfg.sinks, s) }
}

// WithToneOutput plays notes through the built-in piano synthesizer on the
// system audio device.
func WithToneOutput(sampleRate int) PlayerOption {
	return func(cfg *playerConfig) { cfg.toneRate = sampleRate }
}

func WithToneParams(params tone.Params) PlayerOption {
	return func(cfg *playerConfig) { cfg.toneParams = params }
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) { cfg.sampleTap = tap }
}

func WithLogger(l *log.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

type Player struct {
	mu        sync.Mutex
	cfg       playerConfig
	parser    *notation.Parser
	song      *notation.Song
	clock     *intseq.Clock
	sink      *intseq.MultiSink
	tone      *tone.Engine
	audio     *intaudio.Output
	session   string
	run       uint64
	closed    bool
	done      chan struct{}
	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
	log       *log.Logger
}

func NewPlayer(opts ...PlayerOption) (*Player, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if !(cfg.bpm > 0) {
		return nil, fmt.Errorf("new player: %w", timeline.ErrBadTempo)
	}
	if cfg.minBPM <= 0 || cfg.minBPM > cfg.maxBPM {
		return nil, fmt.Errorf("new player: bad tempo range [%v, %v]", cfg.minBPM, cfg.maxBPM)
	}
	cfg.velocity = config.Clamp(cfg.velocity, 1, 127)

	p := &Player{
		cfg:    cfg,
		parser: notation.NewParser(notation.DefaultParserConfig()),
		sink:   intseq.NewMultiSink(cfg.sinks...),
		log:    cfg.logger,
	}
	if cfg.toneRate > 0 {
		p.openTone(cfg.toneRate)
	}
	seq, err := p.newSequencer(&notation.Song{}, cfg.bpm)
	if err != nil {
		return nil, err
	}
	p.clock = intseq.NewClock(seq,
		intseq.WithLoop(cfg.loopPlayback),
		intseq.WithEventHandler(p.onClockEvent),
	)
	return p, nil
}

// openTone starts the synthesizer. An audio device failure is a warning:
// playback continues on the remaining sinks.
func (p *Player) openTone(sampleRate int) {
	engine := tone.New(sampleRate, p.cfg.toneParams)
	out, err := intaudio.Open(sampleRate, engine, p.cfg.sampleTap)
	if err != nil {
		p.warn(fmt.Errorf("audio output unavailable: %w", err))
		return
	}
	p.tone = engine
	p.audio = out
	p.sink.Add(engine)
	p.log.Debug("audio output opened", "sample_rate", sampleRate)
}

func (p *Player) newSequencer(song *notation.Song, bpm float64) (*intseq.Sequencer, error) {
	return intseq.NewWithOptions(song, bpm, p.sink, intseq.Options{Velocity: p.cfg.velocity})
}

// Parse reads notation text into a Song.
func Parse(text string) (*notation.Song, error) {
	return notation.Parse(text)
}

// Load parses text and installs it as the current song. On a parse error the
// previous song stays loaded and playing. On success current playback stops.
func (p *Player) Load(text string) error {
	song, err := p.parser.Parse(text)
	if err != nil {
		p.log.Warn("sequence rejected, keeping previous song", "err", err)
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	seq, err := p.newSequencer(song, p.cfg.bpm)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	wasActive := p.clock.State() == intseq.StatePlaying || p.clock.State() == intseq.StatePaused
	if err := p.clock.Replace(seq); err != nil {
		p.mu.Unlock()
		return err
	}
	p.song = song
	session := p.session
	done := p.done
	p.done = nil
	p.run = 0
	p.mu.Unlock()

	p.log.Info("sequence loaded", "tracks", len(song.Tracks), "events", song.EventCount())
	if wasActive {
		p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Session: session})
	}
	if done != nil {
		close(done)
	}
	p.sendEvent(PlaybackEvent{Kind: EventReloaded, Session: session})
	return nil
}

// Play starts the loaded song from the beginning under a new session id.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.song == nil {
		return ErrNoSong
	}
	// Signal any existing Wait() that the previous playback was replaced
	if p.done != nil {
		close(p.done)
	}
	p.done = make(chan struct{})
	p.session = uuid.NewString()
	if err := p.clock.Play(); err != nil {
		return err
	}
	p.run = p.clock.Run()
	p.log.Info("playback started", "session", p.session, "bpm", p.cfg.bpm)
	return nil
}

func (p *Player) Pause() error {
	if !p.clock.Pause() {
		return ErrNotPlaying
	}
	p.log.Debug("playback paused", "session", p.Session())
	return nil
}

func (p *Player) Resume() error {
	if !p.clock.Resume() {
		return ErrNotPaused
	}
	p.log.Debug("playback resumed", "session", p.Session())
	return nil
}

// Stop silences every sounding note. No note starts after Stop returns.
func (p *Player) Stop() error {
	p.mu.Lock()
	state := p.clock.State()
	if state != intseq.StatePlaying && state != intseq.StatePaused {
		p.mu.Unlock()
		return nil
	}
	p.clock.Stop()
	done := p.done
	p.done = nil
	p.run = 0
	session := p.session
	p.mu.Unlock()
	p.log.Info("playback stopped", "session", session)
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Session: session})
	if done != nil {
		close(done)
	}
	return nil
}

// SetTempo changes the tempo. Notes already sounding are not restarted.
func (p *Player) SetTempo(bpm float64) error {
	if !(bpm > 0) {
		return fmt.Errorf("set tempo %v: %w", bpm, timeline.ErrBadTempo)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.clock.SetTempo(bpm); err != nil {
		return err
	}
	p.cfg.bpm = bpm
	p.log.Debug("tempo changed", "bpm", bpm)
	return nil
}

// NudgeTempo adds delta to the tempo, clamped to the configured range, and
// returns the new tempo.
func (p *Player) NudgeTempo(delta float64) (float64, error) {
	p.mu.Lock()
	bpm := config.Clamp(p.cfg.bpm+delta, p.cfg.minBPM, p.cfg.maxBPM)
	p.mu.Unlock()
	return bpm, p.SetTempo(bpm)
}

// SetLoop turns whole-song looping on or off, including for the current run.
func (p *Player) SetLoop(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock.SetLoop(enabled)
	p.cfg.loopPlayback = enabled
	p.log.Debug("loop changed", "enabled", enabled)
}

func (p *Player) Loop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.loopPlayback
}

func (p *Player) Tempo() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.bpm
}

func (p *Player) Song() *notation.Song {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.song
}

func (p *Player) Timeline() *timeline.Timeline { return p.clock.Timeline() }

func (p *Player) Session() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

func (p *Player) Status() Status {
	return Status{Status: p.clock.Status(), Session: p.Session()}
}

// Wait blocks until the current playback ends. When loop playback is enabled,
// Wait blocks until Stop (use Watch for loop-counting instead).
// Wait returns immediately if no playback is active.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events. The channel is
// buffered (cap 8) and events are dropped when it is full. Only the most
// recent Watch() channel receives events.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// Close stops playback and releases the audio device. Sinks passed with
// WithSink are left to their owner.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	done := p.done
	p.done = nil
	out := p.audio
	p.audio = nil
	p.mu.Unlock()

	p.clock.Close()
	if done != nil {
		close(done)
	}
	if out != nil {
		return out.Close()
	}
	return nil
}

// Warn reports a problem with an output without stopping playback. It is
// suitable as a sink error handler.
func (p *Player) Warn(err error) { p.warn(err) }

func (p *Player) warn(err error) {
	p.log.Warn("output problem", "err", err)
	p.sendEvent(PlaybackEvent{Kind: EventWarning, Err: err})
}

// onClockEvent handles lifecycle events from the clock. Events from a run
// that was since restarted, stopped or replaced are dropped.
func (p *Player) onClockEvent(kind intseq.EventKind, run uint64) {
	p.mu.Lock()
	if run != p.run {
		p.mu.Unlock()
		p.log.Debug("dropping event from a finished run", "run", run)
		return
	}
	session := p.session
	var done chan struct{}
	if kind == intseq.EventPlaybackEnded {
		done = p.done
		p.done = nil
		p.run = 0
	}
	p.mu.Unlock()

	switch kind {
	case intseq.EventLoopCompleted:
		p.log.Debug("loop completed", "session", session)
		p.sendEvent(PlaybackEvent{Kind: EventLoopCompleted, Session: session})
	case intseq.EventPlaybackEnded:
		p.log.Info("playback ended", "session", session)
		p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Session: session})
		if done != nil {
			close(done)
		}
	}
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}
