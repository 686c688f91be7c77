package endpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sysqueryd/internal/executor"
	"sysqueryd/internal/metrics"
	"sysqueryd/internal/sampler"
)

// ---------------------------------------------------------------------------
// CommandHandler serves /hostname and /cpu-name
// ---------------------------------------------------------------------------

// CommandHandler answers with the trimmed first line of a shell command.
type CommandHandler struct {
	name    string
	runner  executor.Runner
	command string
}

func NewCommandHandler(name string, r executor.Runner, command string) *CommandHandler {
	return &CommandHandler{name: name, runner: r, command: command}
}

func (h *CommandHandler) Name() string { return h.name }

func (h *CommandHandler) Handle(ctx context.Context) (string, error) {
	out, err := h.runner.Run(ctx, h.command)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ---------------------------------------------------------------------------
// LoadHandler serves /load
// ---------------------------------------------------------------------------

// Recorder persists measurements. history.Store implements it.
type Recorder interface {
	Record(m sampler.Measurement) error
}

type LoadHandler struct {
	sampler  *sampler.Sampler
	interval time.Duration
	recorder Recorder
}

// NewLoadHandler samples over interval. recorder may be nil.
func NewLoadHandler(s *sampler.Sampler, interval time.Duration, recorder Recorder) *LoadHandler {
	return &LoadHandler{sampler: s, interval: interval, recorder: recorder}
}

func (h *LoadHandler) Name() string { return "load" }

func (h *LoadHandler) Handle(ctx context.Context) (string, error) {
	m, err := h.sampler.Sample(ctx, h.interval)
	if err != nil {
		return "", err
	}

	metrics.LoadPercent.Set(m.Percent)
	if h.recorder != nil {
		if err := h.recorder.Record(m); err != nil {
			log.Warn("recording load measurement failed", "error", err)
		}
	}

	return FormatLoad(m.Percent), nil
}

// FormatLoad renders a percentage with two decimals and a trailing "%".
func FormatLoad(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}
