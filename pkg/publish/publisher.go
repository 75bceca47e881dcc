// Package publish 提供诊断批次的发布端实现（日志、内存、文件、Redis、MQTT、Prometheus）
// 以及把一个批次投递到多个发布端的 Fanout。
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/diagnostic-updater/pkg/diagnostic"
	"github.com/diagnostic-updater/pkg/monitor"
)

var (
	// ErrPublishTimeout 发布端在超时时间内未确认
	ErrPublishTimeout = errors.New("publish timed out")
	// ErrClosed 发布端已关闭
	ErrClosed = errors.New("publisher closed")
)

// Publisher 发布端接口：接收带时间戳的批次，失败返回 error（由调用方记录，不中断更新器）
type Publisher interface {
	Name() string
	Publish(ctx context.Context, batch *diagnostic.Batch) error
}

// Fanout 依次投递到所有发布端；单个发布端失败不影响其它发布端，错误通过 multierr 合并返回
type Fanout struct {
	mu      sync.RWMutex
	sinks   []Publisher
	metrics *monitor.PublisherMetrics
}

// NewFanout 创建 Fanout，metrics 可为 nil
func NewFanout(m *monitor.PublisherMetrics, sinks ...Publisher) *Fanout {
	return &Fanout{sinks: sinks, metrics: m}
}

func (f *Fanout) Name() string { return "fanout" }

// Add 追加发布端
func (f *Fanout) Add(p Publisher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, p)
}

// Len 发布端数量
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

// Names 发布端名称列表
func (f *Fanout) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.sinks))
	for _, p := range f.sinks {
		names = append(names, p.Name())
	}
	return names
}

// Publish 投递到全部发布端
func (f *Fanout) Publish(ctx context.Context, batch *diagnostic.Batch) error {
	f.mu.RLock()
	sinks := make([]Publisher, len(f.sinks))
	copy(sinks, f.sinks)
	f.mu.RUnlock()

	var err error
	for _, p := range sinks {
		if pErr := p.Publish(ctx, batch); pErr != nil {
			if f.metrics != nil {
				f.metrics.Errors.WithLabelValues(p.Name()).Inc()
			}
			err = multierr.Append(err, fmt.Errorf("%s: %w", p.Name(), pErr))
		}
	}
	return err
}

// Close 关闭所有实现了 io.Closer 的发布端
func (f *Fanout) Close() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var err error
	for _, p := range f.sinks {
		if c, ok := p.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
