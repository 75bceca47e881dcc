package collector

import (
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/diagnostic-updater/pkg/config"
	"github.com/diagnostic-updater/pkg/diagnostic"
)

// MemoryTask 物理内存使用率
type MemoryTask struct {
	cfg     config.MemoryTaskConfig
	virtual func() (*mem.VirtualMemoryStat, error)
}

func NewMemoryTask(cfg config.MemoryTaskConfig) *MemoryTask {
	return &MemoryTask{cfg: cfg, virtual: mem.VirtualMemory}
}

func (t *MemoryTask) Name() string { return "memory" }

func (t *MemoryTask) Run(stat *diagnostic.StatusReport) {
	vm, err := t.virtual()
	if err != nil {
		stat.Summaryf(diagnostic.LevelError, "memory stats unavailable: %v", err)
		return
	}

	stat.Add("total", humanize.IBytes(vm.Total))
	stat.Add("used", humanize.IBytes(vm.Used))
	stat.Add("available", humanize.IBytes(vm.Available))
	stat.Addf("used_percent", "%.1f", vm.UsedPercent)

	level := thresholdLevel(vm.UsedPercent, t.cfg.WarnPercent, t.cfg.ErrorPercent)
	switch level {
	case diagnostic.LevelOK:
		stat.Summary(level, "memory usage normal")
	default:
		stat.Summaryf(level, "memory usage %.1f%%", vm.UsedPercent)
	}
}

// thresholdLevel 百分比阈值判定（>= error 为 ERROR，>= warn 为 WARN）
func thresholdLevel(value, warn, errLimit float64) diagnostic.Level {
	switch {
	case value >= errLimit:
		return diagnostic.LevelError
	case value >= warn:
		return diagnostic.LevelWarn
	default:
		return diagnostic.LevelOK
	}
}
