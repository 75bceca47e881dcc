package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
)

// Validate 日志配置校验：tag 校验之后再确认级别能被 zap 解析、目录可写
func (l *ZapLogConfig) Validate() error {
	if err := valid.Struct(l); err != nil {
		return fmt.Errorf("日志配置字段非法: %w", err)
	}

	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("log.level %q: %w", l.Level, err)
	}

	dir, err := filepath.Abs(l.Path)
	if err != nil {
		return fmt.Errorf("log.path %q: %w", l.Path, err)
	}
	if err := writableDir(dir); err != nil {
		return fmt.Errorf("log.path %q not writable: %w", l.Path, err)
	}
	return nil
}

// writableDir 目录不存在时创建，并写入一个临时文件探测权限
func writableDir(dir string) error {
	if st, err := os.Stat(dir); err == nil && !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
