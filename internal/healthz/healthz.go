package healthz

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"sysqueryd/internal/logger"
	"sysqueryd/internal/metrics"
	"sysqueryd/internal/sampler"
	"sysqueryd/internal/watchdog"
)

var log = logger.WithComponent("healthz")

const (
	defaultHistoryLimit = 60
	maxHistoryLimit     = 1000
)

// HistoryReader lists recent load measurements, newest first.
type HistoryReader interface {
	Recent(n int) ([]sampler.Measurement, error)
}

// Server provides health, history and metrics endpoints on loopback
type Server struct {
	stats   *watchdog.Stats
	history HistoryReader
	addr    string
}

// New creates a health check server. history may be nil.
func New(stats *watchdog.Stats, history HistoryReader, port string) *Server {
	if port == "" {
		port = "9090"
	}
	return &Server{
		stats:   stats,
		history: history,
		addr:    "127.0.0.1:" + port,
	}
}

// Handler returns the mux served by Run.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := s.stats.Status()
		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.stats.Serving.Load() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ready":true}`))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"ready":false}`))
		}
	})

	mux.HandleFunc("GET /history", s.handleHistory)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	items, err := s.history.Recent(limit)
	if err != nil {
		log.Error("history read failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// Run starts the health check HTTP server
func (s *Server) Run(ctx context.Context) {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Info("health endpoint listening", "addr", s.addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("health server error", "error", err)
	}
}
