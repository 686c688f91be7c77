package sampler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sysqueryd/internal/errcode"
)

// Positions of the tick counters in a Snapshot, matching the column order of
// the aggregate "cpu" line in /proc/stat.
const (
	User = iota
	Nice
	System
	Idle
	IOWait
	IRQ
	SoftIRQ
	Steal

	NumCounters
)

var (
	ErrParse         = errors.New("malformed cpu statistics")
	ErrIndeterminate = errors.New("no cpu ticks elapsed between snapshots")
)

// Snapshot holds the aggregate CPU tick counters at one instant.
type Snapshot [NumCounters]uint64

// IdleTicks is idle + iowait.
func (s Snapshot) IdleTicks() uint64 {
	return s[Idle] + s[IOWait]
}

// NonIdleTicks is user + nice + system + irq + softirq + steal.
func (s Snapshot) NonIdleTicks() uint64 {
	return s[User] + s[Nice] + s[System] + s[IRQ] + s[SoftIRQ] + s[Steal]
}

func (s Snapshot) TotalTicks() uint64 {
	return s.IdleTicks() + s.NonIdleTicks()
}

// ParseSnapshot reads the first eight counters of an aggregate CPU line such
// as "cpu  4705 356 584 3699 23 23 0 0 0 0". A leading non-numeric
// identifier token is skipped; columns past steal are ignored.
func ParseSnapshot(line string) (Snapshot, error) {
	var snap Snapshot

	fields := strings.Fields(line)
	if len(fields) > 0 && !isDigits(fields[0]) {
		fields = fields[1:]
	}
	if len(fields) < NumCounters {
		return snap, parseErr(fmt.Errorf("%w: want %d counters, got %d", ErrParse, NumCounters, len(fields)))
	}
	for i := 0; i < NumCounters; i++ {
		v, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return snap, parseErr(fmt.Errorf("%w: counter %d: %v", ErrParse, i, err))
		}
		snap[i] = v
	}
	return snap, nil
}

// Load computes (dTotal - dIdle) / dTotal * 100 between two snapshots.
// Deltas are signed so counter resets show up as out-of-range values rather
// than wrapping. When no ticks elapsed the result is 0 with ErrIndeterminate.
func Load(prev, cur Snapshot) (float64, error) {
	totalDelta := int64(cur.TotalTicks() - prev.TotalTicks())
	idleDelta := int64(cur.IdleTicks() - prev.IdleTicks())

	if totalDelta == 0 {
		return 0, ErrIndeterminate
	}

	return float64(totalDelta-idleDelta) / float64(totalDelta) * 100, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func parseErr(err error) error {
	return errcode.New(errcode.MalformedStat, err)
}
