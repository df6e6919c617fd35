// Package server exposes a running Simulation over HTTP for renderers and
// dashboards. Reads return detached copies; stepping is serialized so the
// simulation keeps a single writer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/alloc-sim/sim"
	"github.com/inference-sim/alloc-sim/store"
)

// MaxRoundsPerStep bounds a single POST /step.
const MaxRoundsPerStep = 10000

var errNotInitialized = errors.New("simulation is not initialized")

// Server serves one Simulation and, optionally, the run history.
type Server struct {
	Router *chi.Mux

	mu  sync.Mutex // guards sim
	sim *sim.Simulation
	db  *store.DB // nil disables /runs
}

// New creates a Server for s. db may be nil.
func New(s *sim.Simulation, db *store.DB) *Server {
	srv := &Server{sim: s, db: db}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLog)

	r.Get("/healthz", srv.Health)
	r.Get("/snapshot", srv.GetSnapshot)
	r.Get("/series", srv.GetSeries)
	r.Get("/summary", srv.GetSummary)
	r.Post("/step", srv.Step)

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", srv.ListRuns)
		r.Get("/{id}", srv.GetRun)
		r.Get("/{id}/series", srv.GetRunSeries)
	})

	srv.Router = r
	return srv
}

// ServeHTTP implements http.Handler so Server can be used directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Serving simulation on %s", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetSnapshot handles GET /snapshot.
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap sim.Snapshot
	s.locked(func() { snap = s.sim.Snapshot() })
	writeJSON(w, http.StatusOK, snap)
}

// GetSeries handles GET /series.
func (s *Server) GetSeries(w http.ResponseWriter, r *http.Request) {
	var ts sim.TimeSeries
	s.locked(func() { ts = s.sim.Series() })
	if ts == nil {
		ts = sim.TimeSeries{}
	}
	writeJSON(w, http.StatusOK, ts)
}

// GetSummary handles GET /summary.
func (s *Server) GetSummary(w http.ResponseWriter, r *http.Request) {
	var sum sim.Summary
	s.locked(func() { sum = s.sim.Summary() })
	writeJSON(w, http.StatusOK, sum)
}

type stepResponse struct {
	Rounds sim.TimeSeries `json:"rounds"`
	Round  int            `json:"round"`
}

// Step handles POST /step?rounds=N (default 1) and returns the new records.
func (s *Server) Step(w http.ResponseWriter, r *http.Request) {
	n := 1
	if raw := r.URL.Query().Get("rounds"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > MaxRoundsPerStep {
			writeError(w, http.StatusBadRequest, "rounds must be an integer between 1 and "+strconv.Itoa(MaxRoundsPerStep))
			return
		}
		n = v
	}

	resp, err := s.step(n)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// step runs n rounds under the lock and returns only the new records.
func (s *Server) step(n int) (stepResponse, error) {
	var resp stepResponse
	var err error
	s.locked(func() {
		if !s.sim.Initialized() {
			err = errNotInitialized
			return
		}
		before := s.sim.Round()
		ts := s.sim.Run(n)
		resp = stepResponse{Rounds: ts[before:], Round: before + n}
	})
	return resp, err
}

// locked runs fn while holding mu. The lock is released even if fn panics,
// so a recovered handler cannot wedge later requests.
func (s *Server) locked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}
	runs, err := s.db.ListRuns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}
	run, err := s.db.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunSeries handles GET /runs/{id}/series.
func (s *Server) GetRunSeries(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}
	ts, err := s.db.LoadSeries(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if ts == nil {
		ts = sim.TimeSeries{}
	}
	writeJSON(w, http.StatusOK, ts)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logrus.Warnf("encoding response: %v", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logrus.Debugf("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
