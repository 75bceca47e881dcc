package registers

import (
	"sync"

	"github.com/diagnostic-updater/pkg/diagnostic"
)

// TaskFunc 任务回调：向传入的报告写入级别、消息与键值
type TaskFunc func(stat *diagnostic.StatusReport)

// TaskEntry 注册表中的一项（名称允许重复）
type TaskEntry struct {
	Name string
	Fn   TaskFunc
	// seq 注册序号，单调递增，快照序号 >= seq 表示该快照包含（或晚于）此条目
	seq uint64
}

// TaskRegistry 线程安全的有序任务表。
// onAdded 钩子在释放锁之后调用，传入新条目的拷贝，钩子内可以安全地再次调用注册表方法。
type TaskRegistry struct {
	mu      sync.Mutex
	tasks   []TaskEntry
	seq     uint64
	onAdded func(TaskEntry)
}

// NewTaskRegistry 创建注册表，onAdded 可为 nil
func NewTaskRegistry(onAdded func(TaskEntry)) *TaskRegistry {
	return &TaskRegistry{
		tasks:   make([]TaskEntry, 0),
		onAdded: onAdded,
	}
}

// Add 追加任务（不去重）
func (r *TaskRegistry) Add(name string, fn TaskFunc) {
	r.mu.Lock()
	r.seq++
	entry := TaskEntry{Name: name, Fn: fn, seq: r.seq}
	r.tasks = append(r.tasks, entry)
	r.mu.Unlock()

	if r.onAdded != nil {
		r.onAdded(entry)
	}
}

// AddTask 注册实现了 diagnostic.Task 的任务
func (r *TaskRegistry) AddTask(task diagnostic.Task) {
	r.Add(task.Name(), task.Run)
}

// RemoveByName 删除第一个同名任务；不存在时返回 false
func (r *TaskRegistry) RemoveByName(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.tasks {
		if t.Name == name {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot 返回当前任务列表的拷贝（供更新周期遍历）
func (r *TaskRegistry) Snapshot() []TaskEntry {
	entries, _ := r.SnapshotSeq()
	return entries
}

// SnapshotSeq 返回任务列表拷贝以及快照时的注册序号
func (r *TaskRegistry) SnapshotSeq() ([]TaskEntry, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make([]TaskEntry, len(r.tasks))
	copy(copied, r.tasks)
	return copied, r.seq
}

// Names 当前任务名称（按注册顺序）
func (r *TaskRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tasks))
	for _, t := range r.tasks {
		names = append(names, t.Name)
	}
	return names
}

// Len 当前任务数
func (r *TaskRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
