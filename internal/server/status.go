package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Status is the JSON body of GET /status
type Status struct {
	Name             string   `json:"name"`
	Phase            string   `json:"phase"`
	Round            int      `json:"round"`
	Grid             string   `json:"grid,omitempty"`
	RemainingSeconds int      `json:"remaining_seconds"`
	Clients          int      `json:"clients"`
	Players          []string `json:"players"`
	Registered       int      `json:"registered"`
	DictionaryWords  int      `json:"dictionary_words"`
	UptimeSeconds    int64    `json:"uptime_seconds"`
}

// StatusRoutes builds the HTTP status surface
func (s *Server) StatusRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Get("/status", s.handleStatus)
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Status snapshots the server for operators
func (s *Server) Status() Status {
	state := s.round.Snapshot()
	st := Status{
		Name:             s.cfg.Name,
		Phase:            state.Phase.String(),
		Round:            state.Number,
		RemainingSeconds: state.RemainingSeconds(),
		Clients:          s.sessions.Len(),
		Players:          s.sessions.Usernames(),
		Registered:       s.users.Len(),
		DictionaryWords:  s.dict.Len(),
		UptimeSeconds:    int64(time.Since(s.started) / time.Second),
	}
	if state.Playing() {
		st.Grid = state.Grid.String()
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Status())
}

func (s *Server) serveStatus(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.StatusAddr,
		Handler:           s.StatusRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Info("Status endpoint listening on %s", s.cfg.StatusAddr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
