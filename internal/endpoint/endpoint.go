package endpoint

import (
	"context"
	"sort"
	"time"

	"sysqueryd/internal/config"
	"sysqueryd/internal/executor"
	"sysqueryd/internal/logger"
	"sysqueryd/internal/metrics"
	"sysqueryd/internal/sampler"
	"sysqueryd/internal/wire"
)

var log = logger.WithComponent("endpoint")

// Request tokens served on the query port.
const (
	Hostname = "GET /hostname"
	CPUName  = "GET /cpu-name"
	Load     = "GET /load"
)

// Handler produces the body for one endpoint.
type Handler interface {
	Handle(ctx context.Context) (string, error)
	Name() string
}

// Dispatcher maps request tokens to handlers by exact, case-sensitive match.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher creates an empty dispatcher. Register handlers before use.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for a request token such as "GET /load".
func (d *Dispatcher) Register(token string, handler Handler) {
	d.handlers[token] = handler
	log.Debug("registered endpoint", "token", token, "handler", handler.Name())
}

// HasHandler returns true if a handler is registered for the token.
func (d *Dispatcher) HasHandler(token string) bool {
	_, ok := d.handlers[token]
	return ok
}

// Registered returns the registered tokens in sorted order.
func (d *Dispatcher) Registered() []string {
	tokens := make([]string, 0, len(d.handlers))
	for k := range d.handlers {
		tokens = append(tokens, k)
	}
	sort.Strings(tokens)
	return tokens
}

// Dispatch always yields a response: 200 with the handler's body, 404 for an
// unknown token, 500 when the handler fails.
func (d *Dispatcher) Dispatch(ctx context.Context, token string) wire.Response {
	handler, ok := d.handlers[token]
	if !ok {
		metrics.Requests.WithLabelValues("unknown", "404").Inc()
		return wire.NotFound()
	}

	start := time.Now()
	body, err := handler.Handle(ctx)
	if err != nil {
		log.Error("endpoint failed",
			"handler", handler.Name(),
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		metrics.Requests.WithLabelValues(handler.Name(), "500").Inc()
		return wire.InternalError()
	}

	metrics.Requests.WithLabelValues(handler.Name(), "200").Inc()
	return wire.OK(body)
}

// Standard registers the three query endpoints.
func Standard(cfg config.Config, r executor.Runner, s *sampler.Sampler, rec Recorder) *Dispatcher {
	d := NewDispatcher()
	ttl := cfg.Endpoints.StaticCacheTTL
	d.Register(Hostname, Cached(NewCommandHandler("hostname", r, cfg.Commands.Hostname), ttl))
	d.Register(CPUName, Cached(NewCommandHandler("cpu-name", r, cfg.Commands.CPUName), ttl))
	d.Register(Load, NewLoadHandler(s, cfg.Sampler.Interval, rec))
	return d
}
