package sampler

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"

	"sysqueryd/internal/executor"
)

// Source produces one CPU Snapshot per call.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// CommandSource reads the aggregate CPU line through an external command
// (by default `head -n 1 /proc/stat`) and parses it.
type CommandSource struct {
	Runner  executor.Runner
	Command string
}

func (s CommandSource) Snapshot(ctx context.Context) (Snapshot, error) {
	line, err := s.Runner.Run(ctx, s.Command)
	if err != nil {
		return Snapshot{}, err
	}
	return ParseSnapshot(line)
}

// userHZ is the kernel's USER_HZ; gopsutil reports ticks divided by it.
const userHZ = 100

// NativeSource reads the counters in-process via gopsutil.
type NativeSource struct {
	// Times defaults to cpu.TimesWithContext. Replaced in tests.
	Times func(ctx context.Context, percpu bool) ([]cpu.TimesStat, error)
}

func (s NativeSource) Snapshot(ctx context.Context) (Snapshot, error) {
	times := s.Times
	if times == nil {
		times = cpu.TimesWithContext
	}
	stats, err := times(ctx, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("cpu times: %w", err)
	}
	if len(stats) == 0 {
		return Snapshot{}, parseErr(fmt.Errorf("%w: no aggregate cpu entry", ErrParse))
	}
	return FromTimesStat(stats[0]), nil
}

// FromTimesStat converts gopsutil seconds back to kernel ticks.
func FromTimesStat(t cpu.TimesStat) Snapshot {
	ticks := func(sec float64) uint64 {
		if sec <= 0 {
			return 0
		}
		return uint64(sec*userHZ + 0.5)
	}
	return Snapshot{
		User:    ticks(t.User),
		Nice:    ticks(t.Nice),
		System:  ticks(t.System),
		Idle:    ticks(t.Idle),
		IOWait:  ticks(t.Iowait),
		IRQ:     ticks(t.Irq),
		SoftIRQ: ticks(t.Softirq),
		Steal:   ticks(t.Steal),
	}
}

var errUnknownSource = errors.New("unknown snapshot source")
