package diagnostic

// Task 诊断任务接口：名称 + 填充状态报告
type Task interface {
	Name() string
	Run(stat *StatusReport)
}

// FunctionTask 基于普通函数的诊断任务
type FunctionTask struct {
	name string
	fn   func(stat *StatusReport)
}

// NewFunctionTask 创建函数任务
func NewFunctionTask(name string, fn func(stat *StatusReport)) *FunctionTask {
	return &FunctionTask{name: name, fn: fn}
}

// Name 返回任务名称
func (t *FunctionTask) Name() string { return t.name }

// Run 执行函数
func (t *FunctionTask) Run(stat *StatusReport) { t.fn(stat) }

// CompositeTask 组合任务：依次运行子任务，并把各子任务的汇总合并为一个。
// 子任务需在注册到 Updater 之前添加完毕，运行期间不支持并发修改。
type CompositeTask struct {
	name  string
	tasks []Task
}

// NewCompositeTask 创建组合任务
func NewCompositeTask(name string, tasks ...Task) *CompositeTask {
	return &CompositeTask{name: name, tasks: tasks}
}

// Name 返回任务名称
func (c *CompositeTask) Name() string { return c.name }

// AddTask 添加子任务
func (c *CompositeTask) AddTask(t Task) {
	c.tasks = append(c.tasks, t)
}

// Len 子任务数量
func (c *CompositeTask) Len() int { return len(c.tasks) }

// Run 运行所有子任务并合并汇总。
// 每个子任务都从调用方传入的原始汇总开始，键值则累积在同一份报告上。
func (c *CompositeTask) Run(stat *StatusReport) {
	original := StatusReport{Level: stat.Level, Message: stat.Message}
	combined := StatusReport{Level: LevelOK}

	for _, t := range c.tasks {
		stat.CopySummary(&original)
		t.Run(stat)
		combined.MergeSummary(stat.Level, stat.Message)
	}

	stat.CopySummary(&combined)
}
