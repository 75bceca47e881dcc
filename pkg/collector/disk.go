package collector

import (
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/diagnostic-updater/pkg/config"
	"github.com/diagnostic-updater/pkg/diagnostic"
)

// DiskTask 每个挂载点的使用率，多个挂载点的结果按级别合并
type DiskTask struct {
	cfg   config.DiskTaskConfig
	usage func(path string) (*disk.UsageStat, error)
}

func NewDiskTask(cfg config.DiskTaskConfig) *DiskTask {
	return &DiskTask{cfg: cfg, usage: disk.Usage}
}

func (t *DiskTask) Name() string { return "disk" }

func (t *DiskTask) Run(stat *diagnostic.StatusReport) {
	summary := diagnostic.StatusReport{Level: diagnostic.LevelOK}

	for _, path := range t.cfg.Paths {
		u, err := t.usage(path)
		if err != nil {
			summary.MergeSummaryf(diagnostic.LevelError, "%s: %v", path, err)
			continue
		}
		stat.Addf(path+" used_percent", "%.1f", u.UsedPercent)
		stat.Add(path+" free", humanize.IBytes(u.Free))

		if level := thresholdLevel(u.UsedPercent, t.cfg.WarnPercent, t.cfg.ErrorPercent); level != diagnostic.LevelOK {
			summary.MergeSummaryf(level, "%s %.1f%% used", path, u.UsedPercent)
		}
	}

	if summary.Level == diagnostic.LevelOK {
		summary.Message = "disk usage normal"
	}
	stat.CopySummary(&summary)
}
