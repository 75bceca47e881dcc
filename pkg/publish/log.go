package publish

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/diagnostic-updater/pkg/diagnostic"
)

// LogPublisher 每个状态输出一条结构化日志
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher 创建日志发布端，logger 为 nil 时不输出
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Name() string { return "log" }

func (p *LogPublisher) Publish(_ context.Context, batch *diagnostic.Batch) error {
	for i := range batch.Statuses {
		st := &batch.Statuses[i]
		ce := p.logger.Check(levelFor(st.Level), "diagnostic status")
		if ce == nil {
			continue
		}
		fields := []zap.Field{
			zap.String("batch", batch.ID),
			zap.String("name", st.Name),
			zap.Stringer("level", st.Level),
			zap.String("message", st.Message),
			zap.String("hardware_id", batch.HardwareID),
		}
		if len(st.Values) > 0 {
			fields = append(fields, zap.Any("values", st.Values))
		}
		ce.Write(fields...)
	}
	return nil
}

func levelFor(l diagnostic.Level) zapcore.Level {
	switch l {
	case diagnostic.LevelOK:
		return zapcore.DebugLevel
	case diagnostic.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
