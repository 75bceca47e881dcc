package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/diagnostic-updater/pkg/config"
	"github.com/diagnostic-updater/pkg/goid"
)

type Logger = zap.Logger

var (
	baseLogger    *zap.Logger
	defaultFields = struct {
		Component string
	}{}
	loggerInitOnce    sync.Once
	loggerInitialized bool
	mu                sync.RWMutex
)

// ParseLevel 解析日志级别（兼容缩写）
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "dbg", "debug":
		return zapcore.DebugLevel
	case "war", "warn":
		return zapcore.WarnLevel
	case "err", "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger 初始化全局日志并返回底层 *zap.Logger（只初始化一次）
func InitLogger(cfg *config.ZapLogConfig) (*zap.Logger, error) {
	if err := Init(*cfg); err != nil {
		return nil, err
	}
	return GetLogger(), nil
}

// retentionOptions 旧日志清理策略：max_backup > 0 时按文件个数保留，否则按 max_age 天数保留
// （rotatelogs 不允许同时设置两者）
func retentionOptions(cfg config.ZapLogConfig) []rotatelogs.Option {
	if cfg.MaxBackup > 0 {
		return []rotatelogs.Option{rotatelogs.WithRotationCount(uint(cfg.MaxBackup))}
	}
	maxAge := time.Duration(cfg.MaxAge) * 24 * time.Hour
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return []rotatelogs.Option{rotatelogs.WithMaxAge(maxAge)}
}

// Init 初始化全局日志：控制台彩色输出 + 按天滚动的文件输出
func Init(cfg config.ZapLogConfig) error {
	var err error
	loggerInitOnce.Do(func() {
		level := ParseLevel(cfg.Level)

		if err = os.MkdirAll(cfg.Path, 0755); err != nil {
			return
		}

		rotationSize := int64(cfg.MaxSize) * 1024 * 1024
		if rotationSize <= 0 {
			rotationSize = 100 * 1024 * 1024
		}

		opts := append(retentionOptions(cfg),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithRotationSize(rotationSize),
		)
		writer, wErr := rotatelogs.New(filepath.Join(cfg.Path, "diagnostic-%Y%m%d.log"), opts...)
		if wErr != nil {
			err = wErr
			return
		}

		// 控制台彩色时间
		customTimeEncoderConsole := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(fmt.Sprintf("\033[34m%s\033[0m", t.Format("2006-01-02 15:04:05.000 -07:00")))
		}

		// 文件日志纯文本时间
		customTimeEncoderFile := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("2006-01-02 15:04:05.000 -07:00"))
		}

		coloredLevelEncoder := func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			var levelStr string
			switch level {
			case zapcore.DebugLevel:
				levelStr = "\033[36mDEBUG\033[0m"
			case zapcore.InfoLevel:
				levelStr = "\033[32mINFO \033[0m"
			case zapcore.WarnLevel:
				levelStr = "\033[33mWARN \033[0m"
			case zapcore.ErrorLevel:
				levelStr = "\033[31mERROR\033[0m"
			default:
				levelStr = "\033[35m" + level.CapitalString() + "\033[0m"
			}
			enc.AppendString(levelStr)
		}

		consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
		consoleEncoderCfg.ConsoleSeparator = " "
		consoleEncoderCfg.EncodeLevel = coloredLevelEncoder
		consoleEncoderCfg.EncodeTime = customTimeEncoderConsole

		// Caller 两级路径
		consoleEncoderCfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
			rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
			enc.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
		}

		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.TimeKey = "timestamp"
		fileCfg.EncodeTime = customTimeEncoderFile
		fileCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

		var fileEncoder zapcore.Encoder
		if cfg.Format == "console" {
			fileEncoder = zapcore.NewConsoleEncoder(fileCfg)
		} else {
			fileEncoder = zapcore.NewJSONEncoder(fileCfg)
		}

		core := zapcore.NewTee(
			zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderCfg), zapcore.AddSync(os.Stdout), level),
			zapcore.NewCore(fileEncoder, zapcore.AddSync(writer), level),
		)

		mu.Lock()
		baseLogger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
		loggerInitialized = true
		mu.Unlock()
	})
	return err
}

// SetDefaultComponent 设置默认 component 字段（主程序相关日志自动使用）
func SetDefaultComponent(component string) {
	mu.Lock()
	defer mu.Unlock()
	defaultFields.Component = component
}

// GetDefaultComponent 获取默认 component 字段
func GetDefaultComponent() string {
	mu.RLock()
	defer mu.RUnlock()
	return defaultFields.Component
}

func getDefaultFields() []zapcore.Field {
	return []zapcore.Field{
		zap.String("component", GetDefaultComponent()),
		zap.String("goid", strconv.FormatUint(goid.GetGID(), 10)),
	}
}

func log(level zapcore.Level, msg string, fields ...zapcore.Field) {
	l := GetLogger().WithOptions(zap.AddCallerSkip(2))
	if ce := l.Check(level, msg); ce != nil {
		ce.Write(append(getDefaultFields(), fields...)...)
	}
}

func Debug(msg string, fields ...zapcore.Field) { log(zap.DebugLevel, msg, fields...) }
func Info(msg string, fields ...zapcore.Field)  { log(zap.InfoLevel, msg, fields...) }
func Warn(msg string, fields ...zapcore.Field)  { log(zap.WarnLevel, msg, fields...) }
func Error(msg string, fields ...zapcore.Field) { log(zap.ErrorLevel, msg, fields...) }

// Named 返回带 component 字段的子日志器（注入到 Updater / 发布端）
func Named(component string) *zap.Logger {
	return GetLogger().Named(component).With(zap.String("component", component))
}

// Sync 刷盘
func Sync() error {
	if !IsInitialized() {
		return nil
	}
	return GetLogger().Sync()
}

// IsInitialized 是否已初始化
func IsInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return loggerInitialized
}

// GetLogger 返回全局实例；未初始化时 panic（必须先调用 Init）
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !loggerInitialized {
		panic("logger not initialized: call logger.Init() first")
	}
	return baseLogger
}
