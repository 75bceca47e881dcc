package registers

import (
	"context"
	"time"

	"github.com/diagnostic-updater/pkg/diagnostic"
)

// DiagnosticUpdater 诊断更新器对外接口（HTTP 服务与命令行只依赖此接口）
type DiagnosticUpdater interface {
	// 注册任务
	Add(name string, fn TaskFunc)
	AddTask(task diagnostic.Task)
	// 删除第一个同名任务
	RemoveByName(name string) bool
	Names() []string

	// 立即执行一次更新周期
	ForceUpdate(ctx context.Context) error
	// 不执行任务回调，向所有任务名广播同一状态
	Broadcast(ctx context.Context, level diagnostic.Level, msg string) error

	// 修改周期并重置相位
	SetPeriod(d time.Duration) error
	Period() time.Duration
	NextDeadline() time.Time

	SetHardwareID(id string)
	HardwareID() string

	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

var _ DiagnosticUpdater = (*Updater)(nil)
