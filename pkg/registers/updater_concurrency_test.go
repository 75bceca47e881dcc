package registers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnostic-updater/pkg/diagnostic"
	"github.com/diagnostic-updater/pkg/publish"
)

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// gatedPublisher 第一次 Publish 阻塞直到 gate 关闭，之后转发给 next
type gatedPublisher struct {
	next    publish.Publisher
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (g *gatedPublisher) Name() string { return "gated" }

func (g *gatedPublisher) Publish(ctx context.Context, b *diagnostic.Batch) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.gate
	}
	return g.next.Publish(ctx, b)
}

func TestStartupStatusNeverOverwritesCycleResult(t *testing.T) {
	memory := publish.NewMemoryPublisher()
	gated := &gatedPublisher{next: memory, gate: make(chan struct{}), entered: make(chan struct{})}
	u, err := New(Options{Period: time.Minute, HardwareID: "hw-1", Publisher: gated})
	require.NoError(t, err)

	ran := make(chan struct{})
	var ranOnce sync.Once
	added := make(chan struct{})
	go func() {
		defer close(added)
		u.Add("motor", func(stat *diagnostic.StatusReport) {
			ranOnce.Do(func() { close(ran) })
			stat.Summary(diagnostic.LevelError, "stalled")
		})
	}()
	// 占位状态正在发布时，强制更新已经运行了任务
	waitClosed(t, gated.entered, "startup publish")
	forced := make(chan error, 1)
	go func() { forced <- u.ForceUpdate(context.Background()) }()
	waitClosed(t, ran, "task run")

	close(gated.gate)
	waitClosed(t, added, "Add")
	require.NoError(t, <-forced)

	latest := memory.Latest()
	require.Len(t, latest, 1)
	assert.Equal(t, "motor", latest[0].Name)
	assert.Equal(t, diagnostic.LevelError, latest[0].Level)
	assert.Equal(t, "stalled", latest[0].Message)
	assert.Equal(t, diagnostic.LevelError, memory.Level())
}

func TestStartupStatusSupersededByPublishedCycle(t *testing.T) {
	f := newFixture(t, nil)
	f.u.Add("motor", levelTask(diagnostic.LevelError, "stalled"))
	assert.True(t, f.rec.next(t).Partial)

	require.NoError(t, f.u.ForceUpdate(context.Background()))
	assert.False(t, f.rec.next(t).Partial)

	// 钩子晚于已发布的周期到达：不再发布占位状态
	f.u.onAdded(f.u.Snapshot()[0])
	f.rec.assertNone(t)
	assert.Equal(t, 1, f.logs.FilterMessage("startup status superseded by a published cycle").Len())
}

func TestRemovedTaskLeavesHealthAfterNextCycle(t *testing.T) {
	memory := publish.NewMemoryPublisher()
	u, err := New(Options{Period: time.Minute, HardwareID: "hw-1", Publisher: memory})
	require.NoError(t, err)
	u.Add("bad", levelTask(diagnostic.LevelError, "broken"))
	u.Add("good", levelTask(diagnostic.LevelOK, ""))

	require.NoError(t, u.ForceUpdate(context.Background()))
	assert.Equal(t, diagnostic.LevelError, memory.Level())

	require.True(t, u.RemoveByName("bad"))
	require.NoError(t, u.ForceUpdate(context.Background()))
	assert.Equal(t, diagnostic.LevelOK, memory.Level())
	latest := memory.Latest()
	require.Len(t, latest, 1)
	assert.Equal(t, "good", latest[0].Name)
}

// tickingPublisher 按发布顺序记录批次，并为每次发布分配全局递增序号
type tickingPublisher struct {
	ticks   *atomic.Uint64
	mu      sync.Mutex
	records []tickedBatch
}

type tickedBatch struct {
	tick  uint64
	batch *diagnostic.Batch
}

func (p *tickingPublisher) Name() string { return "ticking" }

func (p *tickingPublisher) Publish(_ context.Context, b *diagnostic.Batch) error {
	tick := p.ticks.Add(1)
	p.mu.Lock()
	p.records = append(p.records, tickedBatch{tick: tick, batch: b})
	p.mu.Unlock()
	return nil
}

// 多个 goroutine 同时注册、删除、强制更新与修改周期，定时周期使用真实时钟。
// 每个完整批次只包含在其发布之前已注册的任务；在上一个完整批次开始发布之前
// 已删除的任务不会出现在之后的批次中。
func TestConcurrentRegistryAndCycles(t *testing.T) {
	var ticks atomic.Uint64
	pub := &tickingPublisher{ticks: &ticks}
	u, err := New(Options{Period: 2 * time.Millisecond, HardwareID: "hw-1", Publisher: pub})
	require.NoError(t, err)
	u.Add("anchor", noop)
	require.NoError(t, u.Start(context.Background()))

	var lifeMu sync.Mutex
	added := make(map[string]uint64)
	removed := make(map[string]uint64)

	const workers, rounds = 8, 60
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				name := fmt.Sprintf("w%d-%d", w, i)
				lifeMu.Lock()
				added[name] = ticks.Add(1)
				lifeMu.Unlock()
				u.Add(name, levelTask(diagnostic.LevelOK, name))

				if i%3 == 0 {
					assert.NoError(t, u.ForceUpdate(context.Background()))
				}
				if i%7 == 0 {
					assert.NoError(t, u.SetPeriod(time.Duration(1+i%4)*time.Millisecond))
				}
				if i%11 == 0 {
					assert.NoError(t, u.Broadcast(context.Background(), diagnostic.LevelWarn, "churn"))
				}

				assert.True(t, u.RemoveByName(name))
				lifeMu.Lock()
				removed[name] = ticks.Add(1)
				lifeMu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.NoError(t, u.ForceUpdate(context.Background()))
	require.NoError(t, u.Shutdown(context.Background()))
	assert.Equal(t, []string{"anchor"}, u.Names())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	lifeMu.Lock()
	defer lifeMu.Unlock()

	var prevFull uint64
	var lastFull *diagnostic.Batch
	for _, r := range pub.records {
		for _, name := range r.batch.Names() {
			if name == "anchor" {
				continue
			}
			at, ok := added[name]
			if !assert.True(t, ok, "unknown name %q", name) {
				continue
			}
			assert.Less(t, at, r.tick, "%q published before it was added", name)
			if gone, ok := removed[name]; ok && !r.batch.Partial && prevFull != 0 {
				assert.Greater(t, gone, prevFull, "%q removed before the snapshot of batch %s", name, r.batch.ID)
			}
		}
		if !r.batch.Partial {
			prevFull = r.tick
			lastFull = r.batch
		}
	}
	require.NotNil(t, lastFull)
	assert.Equal(t, []string{"anchor"}, lastFull.Names())
}
