package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NewUpdateCyclesTotal 创建「更新周期总数」指标
// 指标类型：Counter
// 标签说明：
// trigger: 触发来源（periodic 定时、forced 强制、broadcast 广播）
func (f *MetricFactory) NewUpdateCyclesTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagnostic_update_cycles_total",
			Help: "Total number of update cycles by trigger",
		},
		[]string{"trigger"},
	)
}

// NewUpdateCycleDurationSeconds 创建「单次更新周期耗时」指标（运行全部任务 + 发布）
func (f *MetricFactory) NewUpdateCycleDurationSeconds() prometheus.Histogram {
	return promauto.With(f.reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diagnostic_update_cycle_duration_seconds",
			Help:    "Duration of one update cycle",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms ~ 2s
		},
	)
}

// NewTaskFailuresTotal 创建「任务失败总数」指标（任务 panic 被隔离后计数）
func (f *MetricFactory) NewTaskFailuresTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagnostic_task_failures_total",
			Help: "Total number of diagnostic task failures",
		},
		[]string{"task"},
	)
}

// NewRegisteredTasks 当前已注册任务数
func (f *MetricFactory) NewRegisteredTasks() prometheus.Gauge {
	return promauto.With(f.reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "diagnostic_registered_tasks",
			Help: "Number of registered diagnostic tasks",
		},
	)
}
