// Package collector 基于 gopsutil 的内置诊断任务：CPU 负载、内存、磁盘，以及主机标识。
package collector

import (
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/diagnostic-updater/pkg/config"
	"github.com/diagnostic-updater/pkg/diagnostic"
)

// CPULoadTask 按逻辑核归一化的 1 分钟负载与告警/错误阈值比较，同时附带 CPU 使用率
type CPULoadTask struct {
	cfg config.CPUTaskConfig

	loadAvg func() (*load.AvgStat, error)
	counts  func(logical bool) (int, error)
	times   func(percpu bool) ([]cpu.TimesStat, error)

	mu        sync.Mutex
	lastTotal float64 // 上一次采样的总 CPU 时间，用于计算使用率
	lastIdle  float64
}

// NewCPULoadTask 创建 CPU 负载任务
func NewCPULoadTask(cfg config.CPUTaskConfig) *CPULoadTask {
	return &CPULoadTask{
		cfg:     cfg,
		loadAvg: load.Avg,
		counts:  cpu.Counts,
		times:   cpu.Times,
	}
}

func (t *CPULoadTask) Name() string { return "cpu" }

func (t *CPULoadTask) Run(stat *diagnostic.StatusReport) {
	avg, err := t.loadAvg()
	if err != nil {
		stat.Summaryf(diagnostic.LevelError, "load average unavailable: %v", err)
		return
	}
	cores, err := t.counts(true)
	if err != nil || cores <= 0 {
		cores = 1
	}
	perCore := avg.Load1 / float64(cores)

	stat.Addf("load1", "%.2f", avg.Load1)
	stat.Addf("load5", "%.2f", avg.Load5)
	stat.Addf("load15", "%.2f", avg.Load15)
	stat.Addf("logical_cores", "%d", cores)
	stat.Addf("load1_per_core", "%.2f", perCore)
	if pct, ok := t.usagePercent(); ok {
		stat.Addf("usage_percent", "%.1f", pct)
	}

	switch {
	case perCore >= t.cfg.ErrorLoad:
		stat.Summaryf(diagnostic.LevelError, "CPU load too high (%.2f per core)", perCore)
	case perCore >= t.cfg.WarnLoad:
		stat.Summaryf(diagnostic.LevelWarn, "CPU load high (%.2f per core)", perCore)
	default:
		stat.Summary(diagnostic.LevelOK, "CPU load normal")
	}
}

// usagePercent 两次采样之间的 CPU 使用率；首次采样只记录不计算
func (t *CPULoadTask) usagePercent() (float64, bool) {
	ts, err := t.times(false)
	if err != nil || len(ts) == 0 {
		return 0, false
	}
	c := ts[0]
	total := c.User + c.Nice + c.System + c.Idle + c.Iowait + c.Irq + c.Softirq + c.Steal
	idle := c.Idle + c.Iowait

	t.mu.Lock()
	defer t.mu.Unlock()
	lastTotal, lastIdle := t.lastTotal, t.lastIdle
	t.lastTotal, t.lastIdle = total, idle

	deltaTotal := total - lastTotal
	if lastTotal == 0 || deltaTotal <= 0 {
		return 0, false
	}
	return (1 - (idle-lastIdle)/deltaTotal) * 100, true
}
