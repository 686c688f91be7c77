package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sysqueryd/internal/config"
	"sysqueryd/internal/executor"
	"sysqueryd/internal/logger"
)

var log = logger.WithComponent("sampler")

// Measurement is one load computation over a sampling window.
type Measurement struct {
	Percent  float64       `json:"percent"`
	Interval time.Duration `json:"interval"`
	TakenAt  time.Time     `json:"taken_at"`
	// Indeterminate is set when no ticks elapsed; Percent is then 0.
	Indeterminate bool `json:"indeterminate,omitempty"`
}

// Sampler takes two snapshots Interval apart and reports the load between them.
type Sampler struct {
	source Source
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(src Source) *Sampler {
	return &Sampler{source: src, sleep: sleepCtx}
}

// NewSource builds the snapshot source named by kind (config.SourceCommand
// or config.SourceNative).
func NewSource(kind string, runner executor.Runner, statCommand string) (Source, error) {
	switch kind {
	case config.SourceCommand, "":
		return CommandSource{Runner: runner, Command: statCommand}, nil
	case config.SourceNative:
		return NativeSource{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownSource, kind)
	}
}

// Sample blocks for interval between the two snapshots. The calling
// goroutine, and so the whole serving loop, is suspended for that window.
func (s *Sampler) Sample(ctx context.Context, interval time.Duration) (Measurement, error) {
	prev, err := s.source.Snapshot(ctx)
	if err != nil {
		return Measurement{}, fmt.Errorf("first snapshot: %w", err)
	}

	if err := s.sleep(ctx, interval); err != nil {
		return Measurement{}, err
	}

	cur, err := s.source.Snapshot(ctx)
	if err != nil {
		return Measurement{}, fmt.Errorf("second snapshot: %w", err)
	}

	m := Measurement{Interval: interval, TakenAt: time.Now().UTC()}
	pct, err := Load(prev, cur)
	switch {
	case errors.Is(err, ErrIndeterminate):
		log.Warn("cpu counters did not advance", "interval", interval.String())
		m.Indeterminate = true
	case err != nil:
		return Measurement{}, err
	}
	m.Percent = pct
	return m, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
