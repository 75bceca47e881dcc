package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Registers 接口隔离 Prometheus 的默认实现，便于单测 mock，业务代码不直接依赖 *prometheus.Registry。
type Registers interface {
	prometheus.Registerer
	Register(collector prometheus.Collector) error
}

// promRegistry Prometheus 实现，内部包裹了官方的 *prometheus.Registry
type promRegistry struct {
	registry *prometheus.Registry
}

// NewPromRegistry 创建 Prometheus 指标注册器
func NewPromRegistry(registry *prometheus.Registry) Registers {
	return &promRegistry{registry: registry}
}

// MustRegister 实现 prometheus.Registerer；重复注册同一指标时忽略，其它错误 panic
func (p *promRegistry) MustRegister(collectors ...prometheus.Collector) {
	for _, c := range collectors {
		if err := p.Register(c); err != nil {
			panic(err)
		}
	}
}

// Unregister 实现 prometheus.Registerer
func (p *promRegistry) Unregister(collector prometheus.Collector) bool {
	return p.registry.Unregister(collector)
}

// Register 实现自定义 Registers 接口
func (p *promRegistry) Register(collector prometheus.Collector) error {
	err := p.registry.Register(collector)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) && are.ExistingCollector == collector {
		return nil
	}
	return err
}
