package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	minUpdatePeriod = 10 * time.Millisecond
	maxUpdatePeriod = 3600 * time.Second
)

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	// 	校验Addr格式(必须是 ":port" 或 "ip:port")
	if h.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	// 	用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

// Validate 更新器配置校验
func (u *UpdaterConfig) Validate() error {
	if err := valid.Struct(u); err != nil {
		return err
	}
	if u.Period < minUpdatePeriod || u.Period > maxUpdatePeriod {
		return fmt.Errorf("updater.period must be between %s and %s, got %s", minUpdatePeriod, maxUpdatePeriod, u.Period)
	}
	// 固定硬件ID与主机推导二选一
	if u.HardwareID != "" && u.HardwareIDFromHost {
		return errors.New("updater.hardware_id and updater.hardware_id_from_host are mutually exclusive")
	}
	if strings.ContainsAny(u.NodeName, "\r\n") {
		return fmt.Errorf("updater.node_name must be a single line, got %q", u.NodeName)
	}
	return nil
}

// Validate 发布端配置校验（至少启用一个，否则诊断结果无处可去）
func (p *PublishConfig) Validate() error {
	if err := valid.Struct(p); err != nil {
		return err
	}
	if !p.Log.Enable && !p.File.Enable && !p.Redis.Enable && !p.MQTT.Enable && !p.Metrics.Enable {
		return errors.New("at least one publisher must be enabled (log/file/redis/mqtt/metrics)")
	}
	if p.MQTT.Enable && !strings.Contains(p.MQTT.Broker, "://") {
		return fmt.Errorf("publish.mqtt.broker must include a scheme (tcp://, ssl://, ws://), got %q", p.MQTT.Broker)
	}
	return nil
}

// Validate 任务配置校验
// 磁盘路径不能为空字符串、不能重复；未启用时不参与校验
func (t *TasksConfig) Validate() error {
	if err := valid.Struct(t); err != nil {
		return err
	}
	if !t.Disk.Enable {
		return nil
	}
	if len(t.Disk.Paths) == 0 {
		return errors.New("tasks.disk.paths cannot be empty when disk task is enabled")
	}
	seen := map[string]bool{}
	for _, p := range t.Disk.Paths {
		if strings.TrimSpace(p) == "" {
			return errors.New("tasks.disk.paths cannot contain empty string")
		}
		if seen[p] {
			return fmt.Errorf("tasks.disk.paths contains duplicate path: %s", p)
		}
		seen[p] = true
	}
	return nil
}
