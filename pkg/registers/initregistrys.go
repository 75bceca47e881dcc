package registers

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/diagnostic-updater/pkg/collector"
	"github.com/diagnostic-updater/pkg/config"
	"github.com/diagnostic-updater/pkg/diagnostic"
	"github.com/diagnostic-updater/pkg/metrics"
	"github.com/diagnostic-updater/pkg/monitor"
	"github.com/diagnostic-updater/pkg/publish"
)

// ErrNoTasks 配置中没有启用任何内置任务
var ErrNoTasks = errors.New("no diagnostic tasks enabled; check the tasks config")

var hostIdentity = collector.HostIdentity

// Module 内置任务注册项：开关 + 名称 + 构造函数
type Module struct {
	Enabled bool
	Name    string
	NewFunc func() diagnostic.Task
}

// InitUpdater 根据配置组装更新器（未启动）
// 返回值
// updater  *Updater                  已注册内置任务、已设置硬件ID的更新器，调用 Start 开始定时发布
// memory   *publish.MemoryPublisher  最新状态缓存，供 HTTP /diagnostics 与 /health 使用
// error                              发布端创建失败或没有启用任何任务时返回
func InitUpdater(cfg *config.Config, promReg *prometheus.Registry, log *zap.Logger) (*Updater, *publish.MemoryPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(promReg))

	fanout, memory, err := BuildPublishers(cfg.Publish, monitor.NewPublisherMetrics(factory), log)
	if err != nil {
		return nil, nil, err
	}

	u, err := New(Options{
		Period:    cfg.Updater.Period,
		NodeName:  cfg.Updater.NodeName,
		Verbose:   cfg.Updater.Verbose,
		Publisher: fanout,
		Logger:    log.Named("updater"),
		Metrics:   monitor.NewUpdaterMetrics(factory),
	})
	if err != nil {
		_ = fanout.Close()
		return nil, nil, err
	}

	if err := applyHardwareID(u, cfg.Updater); err != nil {
		_ = fanout.Close()
		return nil, nil, err
	}

	if _, err := RegisterTasks(u, cfg.Tasks, log); err != nil {
		_ = fanout.Close()
		return nil, nil, err
	}

	return u, memory, nil
}

func applyHardwareID(u *Updater, cfg config.UpdaterConfig) error {
	switch {
	case cfg.HardwareID != "":
		u.SetHardwareID(cfg.HardwareID)
	case cfg.HardwareIDFromHost:
		hostname, hostID, err := hostIdentity()
		if err != nil {
			return fmt.Errorf("derive hardware id: %w", err)
		}
		u.SetHardwareIDf("%s-%s", hostname, hostID)
	}
	return nil
}

// BuildPublishers 按配置创建发布端；内存发布端始终启用
func BuildPublishers(cfg config.PublishConfig, m *monitor.PublisherMetrics, log *zap.Logger) (*publish.Fanout, *publish.MemoryPublisher, error) {
	memory := publish.NewMemoryPublisher()
	fanout := publish.NewFanout(m, memory)

	if cfg.Log.Enable {
		fanout.Add(publish.NewLogPublisher(log.Named("publish")))
	}
	if cfg.Metrics.Enable {
		fanout.Add(publish.NewMetricsPublisher(m))
	}
	if cfg.File.Enable {
		fp, err := publish.NewFilePublisher(cfg.File.Path)
		if err != nil {
			_ = fanout.Close()
			return nil, nil, err
		}
		fanout.Add(fp)
	}
	if cfg.Redis.Enable {
		fanout.Add(publish.NewRedisPublisher(cfg.Redis))
	}
	if cfg.MQTT.Enable {
		mp, err := publish.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			_ = fanout.Close()
			return nil, nil, err
		}
		fanout.Add(mp)
	}

	log.Debug("publishers enabled", zap.Strings("publishers", fanout.Names()))
	return fanout, memory, nil
}

// RegisterTasks 内置任务注册统一入口（新增任务只需在 modules 列表添加一条）
// tasks.combine 为 true 时合并为单个组合任务 "system"
func RegisterTasks(u *Updater, cfg config.TasksConfig, log *zap.Logger) ([]diagnostic.Task, error) {
	modules := []Module{
		{
			Enabled: cfg.CPU.Enable,
			Name:    "cpu",
			NewFunc: func() diagnostic.Task { return collector.NewCPULoadTask(cfg.CPU) },
		},
		{
			Enabled: cfg.Memory.Enable,
			Name:    "memory",
			NewFunc: func() diagnostic.Task { return collector.NewMemoryTask(cfg.Memory) },
		},
		{
			Enabled: cfg.Disk.Enable,
			Name:    "disk",
			NewFunc: func() diagnostic.Task { return collector.NewDiskTask(cfg.Disk) },
		},
	}

	var enabled []diagnostic.Task
	for _, m := range modules {
		if m.Enabled {
			enabled = append(enabled, m.NewFunc())
			log.Debug("diagnostic task enabled", zap.String("name", m.Name))
		} else {
			log.Debug("diagnostic task disabled", zap.String("name", m.Name))
		}
	}
	if len(enabled) == 0 {
		return nil, ErrNoTasks
	}

	registered := enabled
	if cfg.Combine {
		registered = []diagnostic.Task{collector.NewSystemTask(enabled...)}
	}
	for _, t := range registered {
		u.AddTask(t)
	}

	log.Info("diagnostic tasks registered", zap.Strings("tasks", u.Names()))
	return registered, nil
}
