package sequencer

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/cbegin/pianoseq-go/internal/notation"
	"github.com/cbegin/pianoseq-go/internal/timeline"
)

var ErrClosed = errors.New("sequencer: clock closed")

type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

const defaultSpinWindow = 2 * time.Millisecond

type ClockOption func(*Clock)

// WithLoop makes the clock restart the song when it ends and report
// EventLoopCompleted instead of EventPlaybackEnded.
func WithLoop(enabled bool) ClockOption {
	return func(c *Clock) { c.loop = enabled }
}

// WithSpinWindow sets how long before a due beat the clock stops sleeping
// and yields in a loop instead.
func WithSpinWindow(d time.Duration) ClockOption {
	return func(c *Clock) {
		if d >= 0 {
			c.spin = d
		}
	}
}

// WithEventHandler installs the lifecycle callback. It runs on the clock
// goroutine after the clock lock is released and receives the id of the
// playback run that produced the event (see Clock.Run).
func WithEventHandler(fn func(kind EventKind, run uint64)) ClockOption {
	return func(c *Clock) { c.onEvent = fn }
}

// Clock drives a Sequencer in real time. Every dispatch happens under the
// clock lock, so once Stop, Pause or Close return no further note-on reaches
// the sink.
type Clock struct {
	mu         sync.Mutex
	seq        *Sequencer
	state      State
	loop       bool
	spin       time.Duration
	onEvent    func(EventKind, uint64)
	runID      uint64
	anchorTime time.Time
	anchorBeat notation.Beats
	gen        uint64
	wake       chan struct{}
	wg         sync.WaitGroup
}

func NewClock(seq *Sequencer, opts ...ClockOption) *Clock {
	c := &Clock{
		seq:  seq,
		spin: defaultSpinWindow,
		wake: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Play starts the song from the beginning, restarting it if already running.
func (c *Clock) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return ErrClosed
	}
	c.interrupt()
	c.seq.Reset()
	c.runID++
	c.anchorBeat = notation.Beats{}
	c.anchorTime = time.Now()
	c.state = StatePlaying
	c.start()
	return nil
}

// Run returns the id of the latest playback run. Each Play starts a new run;
// Pause, Resume and SetTempo keep it.
func (c *Clock) Run() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Pause freezes the position and silences sounding notes. It reports whether
// the clock was playing.
func (c *Clock) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying {
		return false
	}
	pos := c.currentBeat()
	c.interrupt()
	c.anchorBeat = pos
	c.state = StatePaused
	c.seq.Silence()
	return true
}

// Resume continues from the paused position.
func (c *Clock) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return false
	}
	c.anchorTime = time.Now()
	c.state = StatePlaying
	c.start()
	return true
}

// Stop releases every sounding note, drops what was still queued and returns
// to idle.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return
	}
	c.interrupt()
	c.seq.Reset()
	c.anchorBeat = notation.Beats{}
	c.state = StateIdle
}

// SetTempo rebuilds the timeline at bpm. While playing, the clock re-anchors
// at the current beat so the position does not jump.
func (c *Clock) SetTempo(bpm float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return ErrClosed
	}
	if c.state != StatePlaying {
		return c.seq.SetTempo(bpm)
	}
	pos := c.currentBeat()
	if err := c.seq.SetTempo(bpm); err != nil {
		return err
	}
	c.interrupt()
	c.anchorBeat = pos
	c.anchorTime = time.Now()
	c.start()
	return nil
}

// Replace swaps in a new sequencer. Current playback is stopped first.
func (c *Clock) Replace(seq *Sequencer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return ErrClosed
	}
	c.interrupt()
	c.seq.Reset()
	c.seq = seq
	c.anchorBeat = notation.Beats{}
	c.state = StateIdle
	return nil
}

func (c *Clock) SetLoop(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loop = enabled
}

// Close stops playback for good and waits for the timing goroutine to exit.
// It must not be called from an event handler.
func (c *Clock) Close() {
	c.mu.Lock()
	if c.state != StateStopped {
		c.interrupt()
		c.seq.Reset()
		c.state = StateStopped
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position returns the current beat.
func (c *Clock) Position() notation.Beats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentBeat()
}

func (c *Clock) Timeline() *timeline.Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq.Timeline()
}

func (c *Clock) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos := c.currentBeat()
	return Status{
		State:    c.state,
		BPM:      c.seq.BPM(),
		Position: pos.Float64(),
		Length:   c.seq.Length().Float64(),
		Tracks:   c.seq.ProgressAt(pos),
	}
}

// currentBeat must be called with c.mu held.
func (c *Clock) currentBeat() notation.Beats {
	switch c.state {
	case StatePlaying:
		elapsed := time.Since(c.anchorTime).Seconds() * c.seq.BPM() / 60
		pos := c.anchorBeat.Add(notation.BeatsFromFloat(elapsed))
		if pos.Cmp(c.seq.Length()) > 0 {
			pos = c.seq.Length()
		}
		return notation.MaxBeats(pos, c.seq.Position())
	case StatePaused:
		return c.anchorBeat
	default:
		return c.seq.Position()
	}
}

// timeAt must be called with c.mu held.
func (c *Clock) timeAt(beat notation.Beats) time.Time {
	secs := beat.Sub(c.anchorBeat).Seconds(c.seq.BPM())
	return c.anchorTime.Add(time.Duration(secs * float64(time.Second)))
}

// interrupt retires the running goroutine, if any. Must be called with c.mu
// held.
func (c *Clock) interrupt() {
	c.gen++
	close(c.wake)
	c.wake = make(chan struct{})
}

// start must be called with c.mu held.
func (c *Clock) start() {
	c.wg.Add(1)
	go c.run(c.gen, c.wake)
}

func (c *Clock) run(gen uint64, wake <-chan struct{}) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		if c.gen != gen || c.state != StatePlaying {
			c.mu.Unlock()
			return
		}
		target, pending := c.seq.NextDue()
		if !pending {
			target = c.seq.Length()
		}
		due := c.timeAt(target)
		if time.Until(due) > 0 {
			c.mu.Unlock()
			if !waitUntil(due, c.spin, wake) {
				return
			}
			continue
		}
		c.seq.DispatchUntil(target)
		if pending {
			c.mu.Unlock()
			continue
		}

		kind := EventPlaybackEnded
		if c.loop && c.seq.Length().Sign() > 0 {
			kind = EventLoopCompleted
			c.seq.Reset()
			c.anchorBeat = notation.Beats{}
			c.anchorTime = due
		} else {
			c.gen++
			c.state = StateIdle
		}
		fn, run := c.onEvent, c.runID
		c.mu.Unlock()
		if fn != nil {
			fn(kind, run)
		}
		if kind == EventPlaybackEnded {
			return
		}
	}
}

// waitUntil sleeps until shortly before t, then yields until t. It returns
// false if wake is closed first.
func waitUntil(t time.Time, spinWin time.Duration, wake <-chan struct{}) bool {
	if d := time.Until(t) - spinWin; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-wake:
			timer.Stop()
			return false
		}
	}
	for time.Until(t) > 0 {
		select {
		case <-wake:
			return false
		default:
			runtime.Gosched()
		}
	}
	return true
}
