package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/diagnostic-updater/pkg/metrics"
)

// -------------------------- 更新器指标结构体 --------------------------
type UpdaterMetrics struct {
	Cycles          *prometheus.CounterVec // 更新周期数（按触发来源）
	CycleDuration   prometheus.Histogram   // 单次周期耗时
	TaskFailures    *prometheus.CounterVec // 任务失败数（panic 隔离）
	RegisteredTasks prometheus.Gauge       // 当前注册任务数
}

// -------------------------- 发布端指标结构体 --------------------------
type PublisherMetrics struct {
	Errors  *prometheus.CounterVec // 各发布端错误数（累计）
	Batches prometheus.Counter     // 已发布批次数（累计）
	Level   *prometheus.GaugeVec   // 各状态最新级别
	Info    *prometheus.GaugeVec   // 硬件ID信息
}

// NewUpdaterMetrics 通过指标工厂创建更新器指标
func NewUpdaterMetrics(f *metrics.MetricFactory) *UpdaterMetrics {
	return &UpdaterMetrics{
		Cycles:          f.NewUpdateCyclesTotal(),
		CycleDuration:   f.NewUpdateCycleDurationSeconds(),
		TaskFailures:    f.NewTaskFailuresTotal(),
		RegisteredTasks: f.NewRegisteredTasks(),
	}
}

// NewPublisherMetrics 通过指标工厂创建发布端指标
func NewPublisherMetrics(f *metrics.MetricFactory) *PublisherMetrics {
	return &PublisherMetrics{
		Errors:  f.NewPublishErrorsTotal(),
		Batches: f.NewBatchesPublishedTotal(),
		Level:   f.NewStatusLevel(),
		Info:    f.NewStatusInfo(),
	}
}
