// Package control exposes playback over a small HTTP API.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/cbegin/pianoseq-go/internal/notation"
	"github.com/cbegin/pianoseq-go/internal/sequencer"
	"github.com/cbegin/pianoseq-go/internal/timeline"
)

// Controller is what the server drives.
type Controller interface {
	Play() error
	Pause() error
	Resume() error
	Stop() error
	Reload() error
	SetTempo(bpm float64) error
	NudgeTempo(delta float64) (float64, error)
	SetLoop(enabled bool)
	Status() StatusView
	Timeline() *timeline.Timeline
}

type TrackView struct {
	ID     string `json:"id"`
	Played int    `json:"played"`
	Total  int    `json:"total"`
}

type StatusView struct {
	State    string      `json:"state"`
	Line     string      `json:"line"`
	BPM      float64     `json:"bpm"`
	Position float64     `json:"position_beats"`
	Length   float64     `json:"length_beats"`
	Session  string      `json:"session,omitempty"`
	Tracks   []TrackView `json:"tracks"`
}

func NewStatusView(st sequencer.Status, session string) StatusView {
	v := StatusView{
		State:    st.State.String(),
		Line:     st.String(),
		BPM:      st.BPM,
		Position: st.Position,
		Length:   st.Length,
		Session:  session,
		Tracks:   make([]TrackView, 0, len(st.Tracks)),
	}
	for _, tp := range st.Tracks {
		v.Tracks = append(v.Tracks, TrackView{ID: string(tp.ID), Played: tp.Played, Total: tp.Total})
	}
	return v
}

type NoteView struct {
	Pitch int     `json:"pitch"`
	Name  string  `json:"name"`
	Track string  `json:"track"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type TimelineView struct {
	BPM     float64    `json:"bpm"`
	Seconds float64    `json:"seconds"`
	Notes   []NoteView `json:"notes"`
}

type tempoRequest struct {
	BPM   *float64 `json:"bpm"`
	Delta *float64 `json:"delta"`
}

type loopRequest struct {
	Enabled *bool `json:"enabled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

type Server struct {
	ctrl    Controller
	log     *log.Logger
	origins []string
	handler http.Handler
}

func New(ctrl Controller, opts ...Option) *Server {
	s := &Server{ctrl: ctrl, log: log.Default(), origins: []string{"*"}}
	for _, opt := range opts {
		opt(s)
	}
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/timeline", s.handleTimeline).Methods(http.MethodGet)
	router.HandleFunc("/play", s.action(ctrl.Play)).Methods(http.MethodPost)
	router.HandleFunc("/pause", s.action(ctrl.Pause)).Methods(http.MethodPost)
	router.HandleFunc("/resume", s.action(ctrl.Resume)).Methods(http.MethodPost)
	router.HandleFunc("/stop", s.action(ctrl.Stop)).Methods(http.MethodPost)
	router.HandleFunc("/reload", s.action(ctrl.Reload)).Methods(http.MethodPost)
	router.HandleFunc("/tempo", s.handleTempo).Methods(http.MethodPut)
	router.HandleFunc("/loop", s.handleLoop).Methods(http.MethodPut)
	s.handler = cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
	}).Handler(router)
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("control server listening", "addr", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	tl := s.ctrl.Timeline()
	view := TimelineView{Notes: []NoteView{}}
	if tl != nil {
		view.BPM = tl.BPM
		view.Seconds = tl.Seconds()
		for _, n := range tl.Notes {
			view.Notes = append(view.Notes, NoteView{
				Pitch: int(n.Pitch),
				Name:  n.Pitch.String(),
				Track: string(n.Track),
				Start: n.Start,
				End:   n.End,
			})
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) action(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.ctrl.Status())
	}
}

func (s *Server) handleTempo(w http.ResponseWriter, r *http.Request) {
	var req tempoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	var err error
	switch {
	case req.BPM != nil:
		err = s.ctrl.SetTempo(*req.BPM)
	case req.Delta != nil:
		_, err = s.ctrl.NudgeTempo(*req.Delta)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: `expected "bpm" or "delta"`})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleLoop(w http.ResponseWriter, r *http.Request) {
	var req loopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: `expected "enabled"`})
		return
	}
	s.ctrl.SetLoop(*req.Enabled)
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusConflict
	var pe *notation.ParseError
	switch {
	case errors.As(err, &pe):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, timeline.ErrBadTempo):
		code = http.StatusBadRequest
	}
	s.log.Warn("control request failed", "path", r.URL.Path, "status", code, "err", err)
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
