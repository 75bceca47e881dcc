package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewPublishErrorsTotal 创建「发布错误总数」指标
// 指标类型：Counter
// 标签说明：
// publisher: 发布端名称（如 "log"、"redis"、"mqtt"），用于区分不同发布端
func (m *MetricFactory) NewPublishErrorsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "diagnostic_publish_errors_total",
		Help: "Total publish errors per publisher",
	}, []string{"publisher"})
	m.reg.MustRegister(c)
	return c
}

// NewBatchesPublishedTotal 已发布批次总数
func (m *MetricFactory) NewBatchesPublishedTotal() prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "diagnostic_batches_published_total",
		Help: "Total number of published diagnostic batches",
	})
	m.reg.MustRegister(c)
	return c
}

// NewStatusLevel 创建「状态级别」指标
// 指标类型：Gauge，值为 0=OK 1=WARN 2=ERROR 3=STALE
// 标签说明：
// name: 状态名称（含节点前缀）
func (m *MetricFactory) NewStatusLevel() *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "diagnostic_status_level",
		Help: "Latest diagnostic level per status name (0=OK,1=WARN,2=ERROR,3=STALE)",
	}, []string{"name"})
	m.reg.MustRegister(g)
	return g
}

// NewStatusInfo 状态元信息（硬件ID），值恒为 1
func (m *MetricFactory) NewStatusInfo() *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "diagnostic_info",
		Help: "Diagnostic updater information (hardware id)",
	}, []string{"hardware_id"})
	m.reg.MustRegister(g)
	return g
}
