package collector

import "github.com/diagnostic-updater/pkg/diagnostic"

// SystemTaskName 组合任务名称
const SystemTaskName = "system"

// NewSystemTask 把多个探测任务合并为一个组合任务
func NewSystemTask(tasks ...diagnostic.Task) *diagnostic.CompositeTask {
	return diagnostic.NewCompositeTask(SystemTaskName, tasks...)
}
