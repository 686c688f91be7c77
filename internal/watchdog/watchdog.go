package watchdog

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"sysqueryd/internal/logger"
)

var log = logger.WithComponent("watchdog")

// maxConsecutiveErrors marks the server unhealthy when this many
// connections in a row failed.
const maxConsecutiveErrors = 50

// Stats tracks serving-loop health
type Stats struct {
	Serving           atomic.Bool
	Connections       atomic.Int64
	Responses         atomic.Int64
	NotFound          atomic.Int64
	ConnErrors        atomic.Int64
	ConsecutiveErrors atomic.Int64
	LoadSamples       atomic.Int64
	LastConnAt        atomic.Int64 // unix timestamp
	LastLoadAt        atomic.Int64 // unix timestamp
	Uptime            time.Time
}

// NewStats creates a new stats tracker
func NewStats() *Stats {
	return &Stats{Uptime: time.Now()}
}

// ConnectionDone records the outcome of one served connection.
func (s *Stats) ConnectionDone(status int, err error) {
	s.Connections.Add(1)
	s.LastConnAt.Store(time.Now().Unix())
	if err != nil {
		s.ConnErrors.Add(1)
		s.ConsecutiveErrors.Add(1)
		return
	}
	s.ConsecutiveErrors.Store(0)
	s.Responses.Add(1)
	if status == 404 {
		s.NotFound.Add(1)
	}
}

// LoadSampled records a completed /load measurement.
func (s *Stats) LoadSampled() {
	s.LoadSamples.Add(1)
	s.LastLoadAt.Store(time.Now().Unix())
}

// HealthStatus represents the server's health
type HealthStatus struct {
	Healthy        bool    `json:"healthy"`
	Serving        bool    `json:"serving"`
	Uptime         string  `json:"uptime"`
	Connections    int64   `json:"connections"`
	Responses      int64   `json:"responses"`
	NotFound       int64   `json:"notFound"`
	ConnErrors     int64   `json:"connErrors"`
	LoadSamples    int64   `json:"loadSamples"`
	LastConnection string  `json:"lastConnection,omitempty"`
	LastLoad       string  `json:"lastLoad,omitempty"`
	MemoryAllocMB  float64 `json:"memoryAllocMB"`
	NumGoroutines  int     `json:"numGoroutines"`
}

// Status returns current health status
func (s *Stats) Status() HealthStatus {
	var lastConn, lastLoad string
	if ts := s.LastConnAt.Load(); ts > 0 {
		lastConn = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	if ts := s.LastLoadAt.Load(); ts > 0 {
		lastLoad = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return HealthStatus{
		Healthy:        s.isHealthy(),
		Serving:        s.Serving.Load(),
		Uptime:         time.Since(s.Uptime).Round(time.Second).String(),
		Connections:    s.Connections.Load(),
		Responses:      s.Responses.Load(),
		NotFound:       s.NotFound.Load(),
		ConnErrors:     s.ConnErrors.Load(),
		LoadSamples:    s.LoadSamples.Load(),
		LastConnection: lastConn,
		LastLoad:       lastLoad,
		MemoryAllocMB:  float64(memStats.Alloc) / 1024 / 1024,
		NumGoroutines:  runtime.NumGoroutine(),
	}
}

func (s *Stats) isHealthy() bool {
	if !s.Serving.Load() {
		return false
	}
	return s.ConsecutiveErrors.Load() < maxConsecutiveErrors
}

// Run logs the health status every interval until ctx is done.
func Run(ctx context.Context, stats *Stats, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := stats.Status()
			if !status.Healthy {
				log.Warn("server health degraded",
					"uptime", status.Uptime,
					"serving", status.Serving,
					"conn_errors", status.ConnErrors,
					"memory_mb", status.MemoryAllocMB,
					"goroutines", status.NumGoroutines,
				)
			} else {
				log.Debug("health check ok",
					"uptime", status.Uptime,
					"connections", status.Connections,
					"load_samples", status.LoadSamples,
					"memory_mb", status.MemoryAllocMB,
				)
			}
		}
	}
}
