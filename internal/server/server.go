package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sysqueryd/internal/config"
	"sysqueryd/internal/endpoint"
	"sysqueryd/internal/errcode"
	"sysqueryd/internal/logger"
	"sysqueryd/internal/metrics"
	"sysqueryd/internal/util"
	"sysqueryd/internal/watchdog"
	"sysqueryd/internal/wire"
)

var log = logger.WithComponent("server")

// ListenConfig describes the query port socket.
type ListenConfig struct {
	Port      int
	Backlog   int
	ReuseAddr bool
	ReusePort bool
}

func (c ListenConfig) backlog() int {
	if c.Backlog <= 0 {
		return 1
	}
	return c.Backlog
}

// ListenConfigFrom maps the server section of the config.
func ListenConfigFrom(cfg config.ServerConfig) ListenConfig {
	return ListenConfig{
		Port:      cfg.Port,
		Backlog:   cfg.Backlog,
		ReuseAddr: cfg.ReuseAddr,
		ReusePort: cfg.ReusePort,
	}
}

// Dispatcher turns a request token into a response. endpoint.Dispatcher
// implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, token string) wire.Response
}

// Server owns the listening socket and serves one connection at a time:
// accept, single read, dispatch, single write, close.
type Server struct {
	ln    net.Listener
	disp  Dispatcher
	cfg   config.ServerConfig
	stats *watchdog.Stats
}

func New(ln net.Listener, d Dispatcher, cfg config.ServerConfig, stats *watchdog.Stats) *Server {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 256
	}
	if stats == nil {
		stats = watchdog.NewStats()
	}
	return &Server{ln: ln, disp: d, cfg: cfg, stats: stats}
}

func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve runs the accept loop until ctx is cancelled, which also closes the
// listener. Per-connection failures are logged and never end the loop.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.ln.Close() })
	defer stop()

	s.stats.Serving.Store(true)
	defer s.stats.Serving.Store(false)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()

	log.Info("serving", "addr", s.ln.Addr().String(), "backlog", s.cfg.Backlog)

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Info("listener closed, stopping")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return errcode.New(errcode.Accept, err)
			}
			metrics.ConnectionErrors.WithLabelValues("accept").Inc()
			wait := bo.NextBackOff()
			log.Warn("accept failed", "error", err, "retry_in", wait.String())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
		s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	id := util.NewID("conn")
	remote := conn.RemoteAddr().String()
	metrics.Connections.Inc()

	status, err := s.exchange(ctx, conn, id, remote)

	if cerr := conn.Close(); cerr != nil {
		metrics.ConnectionErrors.WithLabelValues("close").Inc()
		log.Error("close failed", "conn", id, "remote", remote, "error", cerr)
		if err == nil {
			err = errcode.New(errcode.Close, cerr)
		}
	}
	s.stats.ConnectionDone(status, err)
}

// exchange performs the single read and single write of one connection.
func (s *Server) exchange(ctx context.Context, conn net.Conn, id, remote string) (int, error) {
	start := time.Now()

	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(start.Add(s.cfg.ReadTimeout))
	}
	buf := make([]byte, s.cfg.ReadBufferSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		metrics.ConnectionErrors.WithLabelValues("receive").Inc()
		log.Warn("receive failed", "conn", id, "remote", remote, "error", err)
		return 0, errcode.New(errcode.Receive, err)
	}

	var resp wire.Response
	token, err := wire.ParseRequestLine(buf[:n])
	if err != nil {
		log.Debug("empty request", "conn", id, "remote", remote)
		metrics.Requests.WithLabelValues("unknown", "404").Inc()
		resp = wire.NotFound()
	} else {
		resp = s.disp.Dispatch(ctx, token)
	}
	if token == endpoint.Load && resp.Status == 200 {
		s.stats.LoadSampled()
	}

	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if _, err := conn.Write(resp.Bytes()); err != nil {
		metrics.ConnectionErrors.WithLabelValues("send").Inc()
		log.Warn("send failed", "conn", id, "remote", remote, "error", err)
		return resp.Status, errcode.New(errcode.Send, err)
	}

	log.Info("request served",
		"conn", id,
		"remote", remote,
		"request", token,
		"status", resp.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp.Status, nil
}
