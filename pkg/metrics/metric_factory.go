package metrics

import "github.com/prometheus/client_golang/prometheus"

// MetricFactory 指标工厂，用于统一创建指标（counter/gauge/histogram）。
type MetricFactory struct {
	reg Registers
}

// NewMetricFactory 创建指标工厂
func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

// NewMetricFactoryFromRegistry 直接基于 *prometheus.Registry 创建工厂（测试中常用）
func NewMetricFactoryFromRegistry(registry *prometheus.Registry) *MetricFactory {
	return NewMetricFactory(NewPromRegistry(registry))
}
