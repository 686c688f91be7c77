package sampler

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysqueryd/internal/config"
	"sysqueryd/internal/errcode"
)

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot("cpu  4705 356 584 3699 23 23 0 0 0 0\n")
	require.NoError(t, err)
	assert.Equal(t, Snapshot{4705, 356, 584, 3699, 23, 23, 0, 0}, snap)

	// identifier already stripped
	snap, err = ParseSnapshot("1 2 3 4 5 6 7 8")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), snap[Steal])
}

func TestParseSnapshotErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"cpu",
		"cpu 1 2 3 4 5 6 7",
		"cpu 1 2 3 x 5 6 7 8",
		"cpu 1 2 3 -4 5 6 7 8",
	} {
		_, err := ParseSnapshot(line)
		require.Error(t, err, "line %q", line)
		assert.ErrorIs(t, err, ErrParse)
		assert.Equal(t, errcode.MalformedStat, errcode.CodeOf(err, errcode.OK))
	}
}

func TestSnapshotSums(t *testing.T) {
	s := Snapshot{1, 2, 3, 40, 5, 6, 7, 8}
	assert.Equal(t, uint64(45), s.IdleTicks())
	assert.Equal(t, uint64(27), s.NonIdleTicks())
	assert.Equal(t, uint64(72), s.TotalTicks())
}

func TestLoad(t *testing.T) {
	prev := Snapshot{100, 0, 100, 800, 0, 0, 0, 0}

	t.Run("identical snapshots", func(t *testing.T) {
		pct, err := Load(prev, prev)
		assert.ErrorIs(t, err, ErrIndeterminate)
		assert.Zero(t, pct)
		assert.False(t, math.IsNaN(pct))
	})

	t.Run("idle only", func(t *testing.T) {
		cur := prev
		cur[Idle] += 500
		pct, err := Load(prev, cur)
		require.NoError(t, err)
		assert.Zero(t, pct)
	})

	t.Run("busy only", func(t *testing.T) {
		cur := prev
		cur[User] += 300
		pct, err := Load(prev, cur)
		require.NoError(t, err)
		assert.InDelta(t, 100.0, pct, 1e-9)
	})

	t.Run("quarter load with iowait counted idle", func(t *testing.T) {
		cur := prev
		cur[System] += 25
		cur[Idle] += 50
		cur[IOWait] += 25
		pct, err := Load(prev, cur)
		require.NoError(t, err)
		assert.InDelta(t, 25.0, pct, 1e-9)
	})

	t.Run("counter reset surfaces out of range", func(t *testing.T) {
		cur := prev
		cur[Idle] = 0
		cur[User] += 100
		pct, err := Load(prev, cur)
		require.NoError(t, err)
		assert.True(t, pct < 0 || pct > 100, "got %v", pct)
	})
}

type seqSource struct {
	snaps []Snapshot
	err   error
	calls int
}

func (s *seqSource) Snapshot(context.Context) (Snapshot, error) {
	if s.err != nil {
		return Snapshot{}, s.err
	}
	snap := s.snaps[s.calls]
	s.calls++
	return snap, nil
}

func newTestSampler(src Source) (*Sampler, *[]time.Duration) {
	var slept []time.Duration
	s := New(src)
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func TestSample(t *testing.T) {
	src := &seqSource{snaps: []Snapshot{
		{100, 0, 100, 800, 0, 0, 0, 0},
		{150, 0, 150, 900, 0, 0, 0, 0},
	}}
	s, slept := newTestSampler(src)

	m, err := s.Sample(context.Background(), time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, m.Percent, 1e-9)
	assert.False(t, m.Indeterminate)
	assert.Equal(t, time.Second, m.Interval)
	assert.Equal(t, []time.Duration{time.Second}, *slept)
	assert.Equal(t, 2, src.calls)
}

func TestSampleIndeterminate(t *testing.T) {
	same := Snapshot{1, 1, 1, 1, 1, 1, 1, 1}
	s, _ := newTestSampler(&seqSource{snaps: []Snapshot{same, same}})

	m, err := s.Sample(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, m.Indeterminate)
	assert.Zero(t, m.Percent)
}

func TestSampleSourceError(t *testing.T) {
	boom := errors.New("boom")
	s, slept := newTestSampler(&seqSource{err: boom})

	_, err := s.Sample(context.Background(), time.Second)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, *slept)
}

func TestSampleCancelledDuringSleep(t *testing.T) {
	s := New(&seqSource{snaps: make([]Snapshot, 2)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Sample(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeRunner struct {
	lines []string
	cmds  []string
}

func (f *fakeRunner) Run(_ context.Context, command string) (string, error) {
	f.cmds = append(f.cmds, command)
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func TestCommandSource(t *testing.T) {
	r := &fakeRunner{lines: []string{
		"cpu  10 0 10 80 0 0 0 0 0 0\n",
		"cpu  40 0 40 120 0 0 0 0 0 0\n",
	}}
	src, err := NewSource(config.SourceCommand, r, "head -n 1 /proc/stat")
	require.NoError(t, err)

	s, _ := newTestSampler(src)
	m, err := s.Sample(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, m.Percent, 1e-9)
	assert.Equal(t, []string{"head -n 1 /proc/stat", "head -n 1 /proc/stat"}, r.cmds)
}

func TestCommandSourceMalformed(t *testing.T) {
	r := &fakeRunner{lines: []string{"", ""}}
	src := CommandSource{Runner: r, Command: "cat /missing"}
	_, err := src.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrParse)
}

func TestNativeSource(t *testing.T) {
	src := NativeSource{Times: func(context.Context, bool) ([]cpu.TimesStat, error) {
		return []cpu.TimesStat{{
			CPU: "cpu-total", User: 47.05, Nice: 3.56, System: 5.84, Idle: 36.99,
			Iowait: 0.23, Irq: 0.23, Softirq: 0, Steal: 0, Guest: 9,
		}}, nil
	}}
	snap, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Snapshot{4705, 356, 584, 3699, 23, 23, 0, 0}, snap)

	empty := NativeSource{Times: func(context.Context, bool) ([]cpu.TimesStat, error) { return nil, nil }}
	_, err = empty.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrParse)
}

func TestNewSourceUnknown(t *testing.T) {
	_, err := NewSource("psychic", nil, "")
	assert.Error(t, err)

	src, err := NewSource(config.SourceNative, nil, "")
	require.NoError(t, err)
	assert.IsType(t, NativeSource{}, src)
}
