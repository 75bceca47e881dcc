package publish

import (
	"context"
	"sync"
	"time"

	"github.com/diagnostic-updater/pkg/diagnostic"
	"github.com/diagnostic-updater/pkg/monitor"
)

// MetricsPublisher 把每个状态的级别导出为 Prometheus gauge。
// 完整批次之后，不在批次内的名称对应的时间序列被删除。
type MetricsPublisher struct {
	metrics *monitor.PublisherMetrics

	mu    sync.Mutex
	known map[string]time.Time
}

func NewMetricsPublisher(m *monitor.PublisherMetrics) *MetricsPublisher {
	return &MetricsPublisher{metrics: m, known: make(map[string]time.Time)}
}

func (p *MetricsPublisher) Name() string { return "metrics" }

func (p *MetricsPublisher) Publish(_ context.Context, batch *diagnostic.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !batch.Partial {
		seen := make(map[string]struct{}, len(batch.Statuses))
		for _, st := range batch.Statuses {
			seen[st.Name] = struct{}{}
		}
		for name := range p.known {
			if _, ok := seen[name]; !ok {
				p.metrics.Level.DeleteLabelValues(name)
				delete(p.known, name)
			}
		}
	}

	for _, st := range batch.Statuses {
		if at, ok := p.known[st.Name]; ok && batch.Partial && batch.Timestamp.Before(at) {
			continue
		}
		p.known[st.Name] = batch.Timestamp
		p.metrics.Level.WithLabelValues(st.Name).Set(float64(st.Level))
	}
	if batch.HardwareID != "" {
		p.metrics.Info.Reset()
		p.metrics.Info.WithLabelValues(batch.HardwareID).Set(1)
	}
	p.metrics.Batches.Inc()
	return nil
}
