// Package watch polls a sequence file and reports its content once edits
// have settled.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/bep/debounce"
	"github.com/charmbracelet/log"
)

type Option func(*Watcher)

func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithDebounce sets how long the file must stay unchanged before the change
// is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

type Watcher struct {
	path     string
	onChange func([]byte)
	interval time.Duration
	settle   time.Duration
	log      *log.Logger
}

type stamp struct {
	mod     time.Time
	size    int64
	present bool
}

func New(path string, onChange func([]byte), opts ...Option) *Watcher {
	w := &Watcher{
		path:     path,
		onChange: onChange,
		interval: 250 * time.Millisecond,
		settle:   300 * time.Millisecond,
		log:      log.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watcher) Path() string { return w.path }

// Run polls until ctx is done. The state of the file when Run starts is the
// baseline and is not reported.
func (w *Watcher) Run(ctx context.Context) error {
	debounced := debounce.New(w.settle)
	last := w.stat()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.log.Debug("watching sequence file", "path", w.path, "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		cur := w.stat()
		if cur == last {
			continue
		}
		last = cur
		if !cur.present {
			w.log.Warn("sequence file disappeared", "path", w.path)
			continue
		}
		debounced(func() {
			if ctx.Err() != nil {
				return
			}
			data, err := os.ReadFile(w.path)
			if err != nil {
				w.log.Warn("reading sequence file failed", "path", w.path, "err", err)
				return
			}
			w.log.Info("sequence file changed", "path", w.path, "bytes", len(data))
			w.onChange(data)
		})
	}
}

func (w *Watcher) stat() stamp {
	fi, err := os.Stat(w.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.log.Warn("stat sequence file failed", "path", w.path, "err", err)
		}
		return stamp{}
	}
	return stamp{mod: fi.ModTime(), size: fi.Size(), present: true}
}
