package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbegin/pianoseq-go"
	"github.com/cbegin/pianoseq-go/internal/control"
	"github.com/cbegin/pianoseq-go/internal/midiout"
	"github.com/cbegin/pianoseq-go/internal/timeline"
	"github.com/cbegin/pianoseq-go/internal/watch"
)

var playFlags struct {
	bpm      float64
	loop     bool
	watch    bool
	midiPort string
	noMIDI   bool
	noTone   bool
	serve    string
}

func init() {
	f := playCmd.Flags()
	f.Float64Var(&playFlags.bpm, "bpm", 0, "tempo in beats per minute (default from config, 120)")
	f.BoolVar(&playFlags.loop, "loop", false, "repeat the song until interrupted")
	f.BoolVar(&playFlags.watch, "watch", false, "reload and replay when the file changes")
	f.StringVar(&playFlags.midiPort, "midi-port", "", "MIDI output port name (default first available)")
	f.BoolVar(&playFlags.noMIDI, "no-midi", false, "do not open a MIDI output")
	f.BoolVar(&playFlags.noTone, "no-tone", false, "do not play through the built-in synthesizer")
	f.StringVar(&playFlags.serve, "serve", "", "serve the HTTP control API on this address, e.g. :8080")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play [FILE]",
	Short: "Play a sequence file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlay,
}

func applyPlayFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("bpm") {
		cfg.BPM = playFlags.bpm
	}
	if f.Changed("loop") {
		cfg.Loop = playFlags.loop
	}
	if f.Changed("watch") {
		cfg.Watch.Enabled = playFlags.watch
	}
	if f.Changed("midi-port") {
		cfg.MIDI.Port = playFlags.midiPort
	}
	if playFlags.noMIDI {
		cfg.MIDI.Enabled = false
	}
	if playFlags.noTone {
		cfg.Audio.Enabled = false
	}
	if f.Changed("serve") {
		cfg.Control.Addr = playFlags.serve
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	applyPlayFlags(cmd)
	if err := cfg.Normalize(); err != nil {
		return err
	}
	path := sequencePath(args)
	text, err := readSequence(path, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var pl *pianoseq.Player
	opts := []pianoseq.PlayerOption{
		pianoseq.WithTempo(cfg.BPM),
		pianoseq.WithTempoRange(cfg.MinBPM, cfg.MaxBPM),
		pianoseq.WithVelocity(cfg.Velocity),
		pianoseq.WithLoopPlayback(cfg.Loop),
		pianoseq.WithLogger(logger),
	}
	if cfg.MIDI.Enabled {
		sink, err := midiout.Open(cfg.MIDI.Port,
			midiout.WithLogger(logger),
			midiout.WithErrorHandler(func(err error) { pl.Warn(err) }),
		)
		if err != nil {
			logger.Warn("MIDI output unavailable", "port", cfg.MIDI.Port, "err", err)
		} else {
			defer midiout.CloseDriver()
			defer sink.Close()
			opts = append(opts, pianoseq.WithSink(sink))
			logger.Info("MIDI output opened", "port", sink.Name())
		}
	}
	if cfg.Audio.Enabled {
		opts = append(opts, pianoseq.WithToneOutput(cfg.Audio.SampleRate))
	}
	pl, err = pianoseq.NewPlayer(opts...)
	if err != nil {
		return err
	}
	defer pl.Close()

	events := pl.Watch()
	if err := pl.Load(text); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// With a watcher or control server the command runs until interrupted.
	persistent := cfg.Watch.Enabled || cfg.Control.Addr != ""
	errCh := make(chan error, 2)
	if cfg.Watch.Enabled {
		w, err := newWatcher(path, pl)
		if err != nil {
			return err
		}
		go func() { errCh <- w.Run(ctx) }()
	}
	if cfg.Control.Addr != "" {
		srv := control.New(&playerController{pl: pl, path: path},
			control.WithLogger(logger),
			control.WithAllowedOrigins(cfg.Control.AllowedOrigins...),
		)
		go func() { errCh <- srv.ListenAndServe(ctx, cfg.Control.Addr) }()
	}

	if err := pl.Play(); err != nil {
		return err
	}
	return followPlayback(ctx, cmd.ErrOrStderr(), pl, events, errCh, persistent)
}

func newWatcher(path string, pl *pianoseq.Player) (*watch.Watcher, error) {
	interval, err := cfg.WatchInterval()
	if err != nil {
		return nil, err
	}
	settle, err := cfg.WatchDebounce()
	if err != nil {
		return nil, err
	}
	return watch.New(path, func(data []byte) {
		if err := pl.Load(string(data)); err != nil {
			return
		}
		if err := pl.Play(); err != nil {
			logger.Warn("replay after reload failed", "err", err)
		}
	}, watch.WithInterval(interval), watch.WithDebounce(settle), watch.WithLogger(logger)), nil
}

// followPlayback prints the status line until playback ends or ctx is done.
func followPlayback(ctx context.Context, out io.Writer, pl *pianoseq.Player, events <-chan pianoseq.PlaybackEvent, errCh <-chan error, persistent bool) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	var line string
	show := func() {
		if cur := pl.Status().String(); cur != line {
			line = cur
			fmt.Fprintf(out, "\r\033[K%s", line)
		}
	}
	defer fmt.Fprintln(out)
	loops := 0
	for {
		select {
		case <-ctx.Done():
			return pl.Stop()
		case err := <-errCh:
			if err != nil {
				pl.Stop()
				return err
			}
		case ev := <-events:
			switch ev.Kind {
			case pianoseq.EventPlaybackEnded:
				show()
				if !persistent {
					return nil
				}
			case pianoseq.EventLoopCompleted:
				loops++
				logger.Debug("loop completed", "loops", loops)
			case pianoseq.EventWarning:
				fmt.Fprintln(out)
				line = ""
			}
		case <-ticker.C:
			show()
		}
	}
}

// playerController adapts the Player to the control API.
type playerController struct {
	pl   *pianoseq.Player
	path string
}

func (c *playerController) Play() error   { return c.pl.Play() }
func (c *playerController) Pause() error  { return c.pl.Pause() }
func (c *playerController) Resume() error { return c.pl.Resume() }
func (c *playerController) Stop() error   { return c.pl.Stop() }

func (c *playerController) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	return c.pl.Load(string(data))
}

func (c *playerController) SetTempo(bpm float64) error { return c.pl.SetTempo(bpm) }

func (c *playerController) NudgeTempo(delta float64) (float64, error) {
	return c.pl.NudgeTempo(delta)
}

func (c *playerController) SetLoop(enabled bool) { c.pl.SetLoop(enabled) }

func (c *playerController) Status() control.StatusView {
	st := c.pl.Status()
	return control.NewStatusView(st.Status, st.Session)
}

func (c *playerController) Timeline() *timeline.Timeline { return c.pl.Timeline() }

var _ control.Controller = (*playerController)(nil)
