package registers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/diagnostic-updater/pkg/diagnostic"
	"github.com/diagnostic-updater/pkg/metrics"
	"github.com/diagnostic-updater/pkg/monitor"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// recorder 记录所有发布的批次
type recorder struct {
	mu      sync.Mutex
	batches []*diagnostic.Batch
	ch      chan *diagnostic.Batch
	err     error
	closed  bool
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan *diagnostic.Batch, 128)}
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Publish(_ context.Context, b *diagnostic.Batch) error {
	r.mu.Lock()
	r.batches = append(r.batches, b)
	err := r.err
	r.mu.Unlock()
	r.ch <- b
	return err
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) drain() {
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

func (r *recorder) next(t *testing.T) *diagnostic.Batch {
	t.Helper()
	select {
	case b := <-r.ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a published batch")
		return nil
	}
}

func (r *recorder) assertNone(t *testing.T) {
	t.Helper()
	select {
	case b := <-r.ch:
		t.Fatalf("unexpected batch %v", b.Names())
	case <-time.After(50 * time.Millisecond):
	}
}

type fixture struct {
	u     *Updater
	rec   *recorder
	clock *clockwork.FakeClock
	logs  *observer.ObservedLogs
	reg   *prometheus.Registry
	m     *monitor.UpdaterMetrics
}

func newFixture(t *testing.T, mutate func(o *Options)) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	m := monitor.NewUpdaterMetrics(metrics.NewMetricFactoryFromRegistry(reg))
	f := &fixture{
		rec:   newRecorder(),
		clock: clockwork.NewFakeClockAt(t0),
		logs:  logs,
		reg:   reg,
		m:     m,
	}
	opts := Options{
		Period:     time.Second,
		HardwareID: "hw-1",
		Clock:      f.clock,
		Publisher:  f.rec,
		Logger:     zap.New(core),
		Metrics:    m,
	}
	if mutate != nil {
		mutate(&opts)
	}
	u, err := New(opts)
	require.NoError(t, err)
	f.u = u
	return f
}

func (f *fixture) waitRescheduled(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
}

func levelTask(level diagnostic.Level, msg string) TaskFunc {
	return func(stat *diagnostic.StatusReport) { stat.Summary(level, msg) }
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Period: 0, Publisher: newRecorder()})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = New(Options{Period: time.Second})
	assert.ErrorIs(t, err, ErrNoPublishers)
}

func TestAddPublishesStartupStatus(t *testing.T) {
	f := newFixture(t, nil)
	called := false
	f.u.Add("battery", func(*diagnostic.StatusReport) { called = true })

	b := f.rec.next(t)
	require.Len(t, b.Statuses, 1)
	st := b.Statuses[0]
	assert.Equal(t, "battery", st.Name)
	assert.Equal(t, diagnostic.LevelOK, st.Level)
	assert.Equal(t, StartupMessage, st.Message)
	assert.Equal(t, "hw-1", b.HardwareID)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, t0, b.Timestamp)
	assert.False(t, called, "placeholder must not run the task")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.RegisteredTasks))
}

func TestForceUpdateReportsEveryRegisteredTask(t *testing.T) {
	f := newFixture(t, nil)
	f.u.Add("a", levelTask(diagnostic.LevelOK, "a1"))
	f.u.Add("b", levelTask(diagnostic.LevelWarn, "b"))
	f.u.Add("a", levelTask(diagnostic.LevelOK, "a2"))
	f.u.AddTask(diagnostic.NewFunctionTask("c", func(stat *diagnostic.StatusReport) {
		stat.Summary(diagnostic.LevelError, "c")
		stat.Add("k", "v")
	}))
	require.True(t, f.u.RemoveByName("a"))
	f.rec.drain()

	require.NoError(t, f.u.ForceUpdate(context.Background()))
	b := f.rec.next(t)

	assert.Equal(t, []string{"b", "a", "c"}, b.Names())
	assert.Equal(t, "a2", b.Statuses[1].Message)
	assert.Equal(t, []diagnostic.KeyValue{{Key: "k", Value: "v"}}, b.Statuses[2].Values)
	assert.Equal(t, diagnostic.LevelError, b.MaxLevel())
	assert.Equal(t, 3.0, testutil.ToFloat64(f.m.RegisteredTasks))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Cycles.WithLabelValues("forced")))
}

func TestPeriodicCycleReschedules(t *testing.T) {
	f := newFixture(t, nil)
	runs := 0
	f.u.Add("tick", func(*diagnostic.StatusReport) { runs++ })
	f.rec.drain()

	require.NoError(t, f.u.Start(context.Background()))
	assert.Equal(t, t0.Add(time.Second), f.u.NextDeadline())
	assert.ErrorIs(t, f.u.Start(context.Background()), ErrAlreadyStarted)

	f.clock.Advance(999 * time.Millisecond)
	f.rec.assertNone(t)

	f.clock.Advance(time.Millisecond)
	b := f.rec.next(t)
	assert.Equal(t, []string{"tick"}, b.Names())

	f.waitRescheduled(t)
	assert.Equal(t, t0.Add(2*time.Second), f.u.NextDeadline())

	f.clock.Advance(time.Second)
	f.rec.next(t)
	f.waitRescheduled(t)
	assert.Equal(t, 2, runs)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.m.Cycles.WithLabelValues("periodic")))
}

func TestSetPeriodResetsPhase(t *testing.T) {
	f := newFixture(t, nil)
	f.u.Add("a", noop)
	f.rec.drain()
	require.NoError(t, f.u.Start(context.Background()))

	f.clock.Advance(300 * time.Millisecond)
	require.NoError(t, f.u.SetPeriod(2*time.Second))
	assert.Equal(t, 2*time.Second, f.u.Period())
	assert.Equal(t, t0.Add(2300*time.Millisecond), f.u.NextDeadline())

	// 原定的 t0+1s 不再触发
	f.clock.Advance(1700 * time.Millisecond)
	f.rec.assertNone(t)

	f.clock.Advance(300 * time.Millisecond)
	f.rec.next(t)
	f.waitRescheduled(t)
	assert.Equal(t, t0.Add(4300*time.Millisecond), f.u.NextDeadline())
}

func TestSetPeriodValidation(t *testing.T) {
	f := newFixture(t, nil)
	assert.ErrorIs(t, f.u.SetPeriod(0), ErrInvalidPeriod)
	assert.ErrorIs(t, f.u.SetPeriodSeconds(-1), ErrInvalidPeriod)
	require.NoError(t, f.u.SetPeriodSeconds(0.5))
	assert.Equal(t, 500*time.Millisecond, f.u.Period())
	assert.True(t, f.u.NextDeadline().IsZero(), "no deadline before Start")
}

func TestForceUpdateKeepsDeadline(t *testing.T) {
	f := newFixture(t, nil)
	f.u.Add("a", noop)
	f.rec.drain()
	require.NoError(t, f.u.Start(context.Background()))
	deadline := f.u.NextDeadline()

	f.clock.Advance(400 * time.Millisecond)
	require.NoError(t, f.u.ForceUpdate(context.Background()))
	f.rec.next(t)
	f.rec.assertNone(t)
	assert.Equal(t, deadline, f.u.NextDeadline())

	f.clock.Advance(600 * time.Millisecond)
	b := f.rec.next(t)
	assert.Equal(t, t0.Add(time.Second), b.Timestamp)
}

func TestBroadcastDoesNotRunTasks(t *testing.T) {
	f := newFixture(t, nil)
	calls := 0
	for _, name := range []string{"A", "B", "C"} {
		f.u.Add(name, func(*diagnostic.StatusReport) { calls++ })
	}
	f.rec.drain()

	require.NoError(t, f.u.Broadcast(context.Background(), diagnostic.LevelError, "shutting down"))
	b := f.rec.next(t)

	assert.Equal(t, []string{"A", "B", "C"}, b.Names())
	for _, st := range b.Statuses {
		assert.Equal(t, diagnostic.LevelError, st.Level)
		assert.Equal(t, "shutting down", st.Message)
	}
	assert.Zero(t, calls)
}

func TestSetHardwareIDfAppearsInNextBatch(t *testing.T) {
	f := newFixture(t, nil)
	f.u.Add("a", noop)
	f.rec.drain()

	f.u.SetHardwareIDf("%s-%04d", "robot", 7)
	assert.Equal(t, "robot-0007", f.u.HardwareID())

	require.NoError(t, f.u.ForceUpdate(context.Background()))
	b := f.rec.next(t)
	assert.Equal(t, "robot-0007", b.HardwareID)
	assert.Equal(t, "robot-0007", b.Statuses[0].HardwareID)
}

func TestMissingHardwareIDWarnsOnce(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.HardwareID = "" })
	f.u.Add("a", noop)
	require.NoError(t, f.u.ForceUpdate(context.Background()))
	require.NoError(t, f.u.ForceUpdate(context.Background()))
	require.NoError(t, f.u.Broadcast(context.Background(), diagnostic.LevelOK, "x"))

	warned := f.logs.FilterMessageSnippet("hardware id not set")
	assert.Equal(t, 1, warned.Len())
	assert.Equal(t, zapcore.WarnLevel, warned.All()[0].Level)
	assert.Equal(t, "", f.rec.next(t).HardwareID)
}

func TestPanickingTaskIsIsolated(t *testing.T) {
	f := newFixture(t, nil)
	f.u.Add("bad", func(stat *diagnostic.StatusReport) {
		stat.Add("partial", "1")
		panic("boom")
	})
	f.u.Add("good", levelTask(diagnostic.LevelWarn, "fine-ish"))
	f.rec.drain()

	require.NoError(t, f.u.ForceUpdate(context.Background()))
	b := f.rec.next(t)

	require.Len(t, b.Statuses, 2)
	assert.Equal(t, diagnostic.LevelError, b.Statuses[0].Level)
	assert.Equal(t, "task panicked: boom", b.Statuses[0].Message)
	assert.Empty(t, b.Statuses[0].Values)
	assert.Equal(t, "fine-ish", b.Statuses[1].Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.TaskFailures.WithLabelValues("bad")))
	assert.Equal(t, 1, f.logs.FilterMessage("diagnostic task panicked").Len())
}

func TestNodeNamePrefixAndVerbose(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.NodeName = "base"
		o.Verbose = true
	})
	f.u.Add("battery", levelTask(diagnostic.LevelWarn, "low battery"))
	f.u.Add("motor", levelTask(diagnostic.LevelOK, ""))
	assert.Equal(t, "base: battery", f.rec.next(t).Statuses[0].Name)
	f.rec.drain()

	require.NoError(t, f.u.ForceUpdate(context.Background()))
	b := f.rec.next(t)
	assert.Equal(t, []string{"base: battery", "base: motor"}, b.Names())

	verbose := f.logs.FilterMessage("non-OK diagnostic status").All()
	require.Len(t, verbose, 1)
	assert.Equal(t, "base: battery", verbose[0].ContextMap()["name"])
}

func TestTaskMayRegisterAnotherTask(t *testing.T) {
	f := newFixture(t, nil)
	added := false
	f.u.Add("spawner", func(*diagnostic.StatusReport) {
		if !added {
			added = true
			f.u.Add("late", noop)
		}
	})
	f.rec.drain()

	require.NoError(t, f.u.ForceUpdate(context.Background()))
	// 新任务的占位状态先于本周期批次发布
	assert.Equal(t, []string{"late"}, f.rec.next(t).Names())
	assert.Equal(t, []string{"spawner"}, f.rec.next(t).Names())

	require.NoError(t, f.u.ForceUpdate(context.Background()))
	assert.Equal(t, []string{"spawner", "late"}, f.rec.next(t).Names())
}

func TestPublishErrorIsReturned(t *testing.T) {
	f := newFixture(t, nil)
	f.rec.err = errors.New("sink down")
	f.u.Add("a", noop)
	assert.Equal(t, 1, f.logs.FilterMessage("publish startup status failed").Len())

	err := f.u.ForceUpdate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
}

func TestShutdown(t *testing.T) {
	f := newFixture(t, nil)
	assert.ErrorIs(t, f.u.Shutdown(context.Background()), ErrNotStarted)

	f.u.Add("a", noop)
	f.rec.drain()
	require.NoError(t, f.u.Start(context.Background()))
	require.NoError(t, f.u.Shutdown(context.Background()))
	assert.True(t, f.rec.closed)

	f.clock.Advance(5 * time.Second)
	f.rec.assertNone(t)

	assert.ErrorIs(t, f.u.ForceUpdate(context.Background()), ErrStopped)
	assert.ErrorIs(t, f.u.Broadcast(context.Background(), diagnostic.LevelError, "x"), ErrStopped)
	assert.ErrorIs(t, f.u.Start(context.Background()), ErrStopped)
	assert.ErrorIs(t, f.u.Shutdown(context.Background()), ErrNotStarted)

	f.u.Add("after", noop)
	f.rec.assertNone(t)
	assert.Equal(t, []string{"a", "after"}, f.u.Names())
}
