package registers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/diagnostic-updater/pkg/diagnostic"
	"github.com/diagnostic-updater/pkg/monitor"
	"github.com/diagnostic-updater/pkg/publish"
)

var (
	ErrInvalidPeriod  = errors.New("period must be positive")
	ErrNoPublishers   = errors.New("no publisher configured")
	ErrNotStarted     = errors.New("updater not started")
	ErrAlreadyStarted = errors.New("updater already started")
	ErrStopped        = errors.New("updater stopped")
)

// StartupMessage 新任务注册后、首次运行前发布的占位消息
const StartupMessage = "Node starting up"

const (
	triggerPeriodic  = "periodic"
	triggerForced    = "forced"
	triggerBroadcast = "broadcast"
)

// Options 更新器构造参数
type Options struct {
	Period     time.Duration
	HardwareID string
	// NodeName 非空时发布名称为 "<NodeName>: <任务名>"
	NodeName string
	// Verbose 为 true 时每个非OK状态额外输出一条 warn 日志
	Verbose   bool
	Clock     clockwork.Clock
	Publisher publish.Publisher
	Logger    *zap.Logger
	Metrics   *monitor.UpdaterMetrics
}

// Updater 持有任务注册表与定时器；每个周期按注册顺序运行全部任务并发布一个批次。
// 周期、强制更新与广播通过 cycleMu 串行化，任务在调用方 goroutine 上顺序执行。
// 所有批次（含占位状态）经 pubMu 依次交给发布端；已被某个已发布快照覆盖的条目不再发布占位状态。
// 任务回调内不得调用本实例的 ForceUpdate/Broadcast（会死锁），调用 Add/RemoveByName 是安全的。
type Updater struct {
	*TaskRegistry

	clock     clockwork.Clock
	publisher publish.Publisher
	logger    *zap.Logger
	metrics   *monitor.UpdaterMetrics
	nodeName  string
	verbose   bool

	cycleMu sync.Mutex

	pubMu       sync.Mutex
	reportedSeq uint64 // 已发布的完整批次所对应的最大快照序号（pubMu 保护）

	mu       sync.Mutex
	period   time.Duration
	deadline time.Time
	timer    clockwork.Timer
	gen      uint64 // 每次重新调度递增，丢弃与重置竞争的过期触发
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	stopped  bool
	hwid     string
	warned   bool
}

// New 创建更新器（尚未启动定时器）
func New(opts Options) (*Updater, error) {
	if opts.Period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if opts.Publisher == nil {
		return nil, ErrNoPublishers
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	u := &Updater{
		clock:     opts.Clock,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		nodeName:  opts.NodeName,
		verbose:   opts.Verbose,
		period:    opts.Period,
		hwid:      opts.HardwareID,
		ctx:       context.Background(),
	}
	u.TaskRegistry = NewTaskRegistry(u.onAdded)
	return u, nil
}

// Start 启动定时更新，首次周期在 now+period 执行
func (u *Updater) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stopped {
		return ErrStopped
	}
	if u.started {
		return ErrAlreadyStarted
	}
	u.ctx, u.cancel = context.WithCancel(ctx)
	u.started = true
	u.scheduleLocked()

	u.logger.Info("diagnostic updater started",
		zap.Duration("period", u.period),
		zap.Int("registered_tasks", u.Len()))
	return nil
}

// Shutdown 停止定时器，等待进行中的周期结束，并关闭实现了 io.Closer 的发布端
func (u *Updater) Shutdown(ctx context.Context) error {
	u.mu.Lock()
	if !u.started {
		u.mu.Unlock()
		return ErrNotStarted
	}
	u.started = false
	u.stopped = true
	u.gen++
	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
	u.cancel()
	u.mu.Unlock()

	done := make(chan struct{})
	go func() {
		u.cycleMu.Lock()
		defer u.cycleMu.Unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("wait for running cycle: %w", ctx.Err())
	}

	u.logger.Info("diagnostic updater stopped")
	if c, ok := u.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}

// Period 当前周期
func (u *Updater) Period() time.Duration {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.period
}

// NextDeadline 下一次定时周期的时间；未启动时为零值
func (u *Updater) NextDeadline() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.deadline
}

// SetPeriod 修改周期：取消待触发的定时器，并在 now+d 重新调度
func (u *Updater) SetPeriod(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidPeriod
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.period = d
	if u.started {
		u.scheduleLocked()
	}
	u.logger.Debug("update period changed", zap.Duration("period", d))
	return nil
}

// SetPeriodSeconds 以秒为单位设置周期
func (u *Updater) SetPeriodSeconds(seconds float64) error {
	return u.SetPeriod(time.Duration(seconds * float64(time.Second)))
}

// SetHardwareID 设置硬件ID，下一个批次生效
func (u *Updater) SetHardwareID(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hwid = id
}

// SetHardwareIDf 格式化后设置硬件ID
func (u *Updater) SetHardwareIDf(format string, args ...any) {
	u.SetHardwareID(fmt.Sprintf(format, args...))
}

// HardwareID 当前硬件ID
func (u *Updater) HardwareID() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hwid
}

// RemoveByName 删除第一个同名任务
func (u *Updater) RemoveByName(name string) bool {
	ok := u.TaskRegistry.RemoveByName(name)
	if ok {
		u.observeRegistered()
	}
	return ok
}

// ForceUpdate 立即执行一次更新周期，不影响定时周期的相位
func (u *Updater) ForceUpdate(ctx context.Context) error {
	if u.isStopped() {
		return ErrStopped
	}
	return u.runUpdateCycle(ctx, triggerForced)
}

// Broadcast 不调用任何任务回调，为每个已注册任务名发布一条相同级别与消息的状态
func (u *Updater) Broadcast(ctx context.Context, level diagnostic.Level, msg string) error {
	if u.isStopped() {
		return ErrStopped
	}

	u.cycleMu.Lock()
	defer u.cycleMu.Unlock()

	entries, seq := u.SnapshotSeq()
	statuses := make([]diagnostic.StatusReport, 0, len(entries))
	for _, e := range entries {
		statuses = append(statuses, diagnostic.StatusReport{Name: e.Name, Level: level, Message: msg})
	}
	u.observeCycle(triggerBroadcast)
	return u.publishSnapshot(ctx, statuses, seq)
}

func (u *Updater) isStopped() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stopped
}

// scheduleLocked 取消旧定时器并在 now+period 安装新定时器（调用方持有 u.mu）
func (u *Updater) scheduleLocked() {
	if u.timer != nil {
		u.timer.Stop()
	}
	u.gen++
	gen := u.gen
	u.deadline = u.clock.Now().Add(u.period)
	u.timer = u.clock.AfterFunc(u.period, func() { u.tick(gen) })
}

func (u *Updater) tick(gen uint64) {
	u.mu.Lock()
	if !u.started || gen != u.gen {
		u.mu.Unlock()
		return
	}
	ctx := u.ctx
	u.mu.Unlock()

	if err := u.runUpdateCycle(ctx, triggerPeriodic); err != nil {
		u.logger.Warn("periodic diagnostic publish failed", zap.Error(err))
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.started && gen == u.gen {
		u.scheduleLocked()
	}
}

// runUpdateCycle 快照 -> 顺序运行任务 -> 打包发布
func (u *Updater) runUpdateCycle(ctx context.Context, trigger string) error {
	u.cycleMu.Lock()
	defer u.cycleMu.Unlock()

	start := u.clock.Now()
	entries, seq := u.SnapshotSeq()
	statuses := make([]diagnostic.StatusReport, 0, len(entries))
	for _, e := range entries {
		st := u.runTask(e)
		statuses = append(statuses, st.Clone())
	}

	if u.verbose {
		for _, st := range statuses {
			if st.Level != diagnostic.LevelOK {
				u.logger.Warn("non-OK diagnostic status",
					zap.String("name", u.publishedName(st.Name)),
					zap.Stringer("level", st.Level),
					zap.String("message", st.Message))
			}
		}
	}

	err := u.publishSnapshot(ctx, statuses, seq)
	u.observeCycle(trigger)
	if u.metrics != nil {
		u.metrics.CycleDuration.Observe(u.clock.Since(start).Seconds())
	}
	return err
}

// runTask 执行单个任务；任务 panic 时转换为 ERROR 状态，不中断本周期
func (u *Updater) runTask(e TaskEntry) (st *diagnostic.StatusReport) {
	st = diagnostic.NewStatusReport(e.Name)
	defer func() {
		if r := recover(); r != nil {
			st = diagnostic.NewStatusReport(e.Name)
			st.Summaryf(diagnostic.LevelError, "task panicked: %v", r)
			u.logger.Error("diagnostic task panicked", zap.String("task", e.Name), zap.Any("panic", r))
			if u.metrics != nil {
				u.metrics.TaskFailures.WithLabelValues(e.Name).Inc()
			}
		}
	}()
	e.Fn(st)
	return st
}

// onAdded 注册表钩子：在首次真实运行之前发布单条占位状态
func (u *Updater) onAdded(e TaskEntry) {
	u.observeRegistered()

	u.mu.Lock()
	ctx, stopped := u.ctx, u.stopped
	u.mu.Unlock()
	if stopped {
		return
	}

	u.pubMu.Lock()
	defer u.pubMu.Unlock()
	if e.seq <= u.reportedSeq {
		// 已有包含该条目的批次发布，占位状态会覆盖真实结果
		u.logger.Debug("startup status superseded by a published cycle", zap.String("task", e.Name))
		return
	}

	st := diagnostic.StatusReport{Name: e.Name, Level: diagnostic.LevelOK, Message: StartupMessage}
	if err := u.publishLocked(ctx, []diagnostic.StatusReport{st}, true); err != nil {
		u.logger.Warn("publish startup status failed", zap.String("task", e.Name), zap.Error(err))
	}
}

// publishSnapshot 发布覆盖快照 seq 的完整批次
func (u *Updater) publishSnapshot(ctx context.Context, statuses []diagnostic.StatusReport, seq uint64) error {
	u.pubMu.Lock()
	defer u.pubMu.Unlock()
	if seq > u.reportedSeq {
		u.reportedSeq = seq
	}
	return u.publishLocked(ctx, statuses, false)
}

// publishLocked 打包批次（时间戳、硬件ID、节点前缀）并交给发布端（调用方持有 pubMu）
func (u *Updater) publishLocked(ctx context.Context, statuses []diagnostic.StatusReport, partial bool) error {
	hwid := u.stampHardwareID()

	batch := &diagnostic.Batch{
		ID:         uuid.NewString(),
		Timestamp:  u.clock.Now(),
		HardwareID: hwid,
		Partial:    partial,
		Statuses:   statuses,
	}
	for i := range batch.Statuses {
		batch.Statuses[i].Name = u.publishedName(batch.Statuses[i].Name)
		batch.Statuses[i].HardwareID = hwid
	}

	if err := u.publisher.Publish(ctx, batch); err != nil {
		return fmt.Errorf("publish batch %s: %w", batch.ID, err)
	}
	return nil
}

// stampHardwareID 返回当前硬件ID；为空时仅首次告警
func (u *Updater) stampHardwareID() string {
	u.mu.Lock()
	hwid := u.hwid
	warn := hwid == "" && !u.warned
	if warn {
		u.warned = true
	}
	u.mu.Unlock()

	if warn {
		u.logger.Warn("hardware id not set, publishing with empty hardware_id; call SetHardwareID")
	}
	return hwid
}

func (u *Updater) publishedName(name string) string {
	if u.nodeName == "" {
		return name
	}
	return u.nodeName + ": " + name
}

func (u *Updater) observeCycle(trigger string) {
	if u.metrics != nil {
		u.metrics.Cycles.WithLabelValues(trigger).Inc()
	}
}

func (u *Updater) observeRegistered() {
	if u.metrics != nil {
		u.metrics.RegisteredTasks.Set(float64(u.Len()))
	}
}
