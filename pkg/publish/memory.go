package publish

import (
	"context"
	"sync"
	"time"

	"github.com/diagnostic-updater/pkg/diagnostic"
)

// MemoryPublisher 在内存中保留最近一个批次以及每个名称的最新状态，供 HTTP 查询。
// 完整批次替换整个状态表（已删除的任务随之消失）；部分批次按名称合并，
// 且早于已保存状态的条目被忽略。
type MemoryPublisher struct {
	mu     sync.RWMutex
	last   *diagnostic.Batch
	latest map[string]stampedStatus
	order  []string
	count  uint64
}

type stampedStatus struct {
	status diagnostic.StatusReport
	at     time.Time
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{latest: make(map[string]stampedStatus)}
}

func (p *MemoryPublisher) Name() string { return "memory" }

func (p *MemoryPublisher) Publish(_ context.Context, batch *diagnostic.Batch) error {
	cp := cloneBatch(batch)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++

	if !cp.Partial {
		p.last = cp
		p.latest = make(map[string]stampedStatus, len(cp.Statuses))
		p.order = p.order[:0]
		for _, st := range cp.Statuses {
			p.put(st, cp.Timestamp)
		}
		return nil
	}

	fresh := cp.Statuses[:0]
	for _, st := range cp.Statuses {
		if prev, ok := p.latest[st.Name]; ok && cp.Timestamp.Before(prev.at) {
			continue
		}
		p.put(st, cp.Timestamp)
		fresh = append(fresh, st)
	}
	if p.last == nil || (p.last.Partial && len(fresh) > 0) {
		cp.Statuses = fresh
		p.last = cp
	}
	return nil
}

func (p *MemoryPublisher) put(st diagnostic.StatusReport, at time.Time) {
	if _, ok := p.latest[st.Name]; !ok {
		p.order = append(p.order, st.Name)
	}
	p.latest[st.Name] = stampedStatus{status: st, at: at}
}

// Last 最近一次完整批次（拷贝）；尚无完整批次时返回最近的占位批次
func (p *MemoryPublisher) Last() (*diagnostic.Batch, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil, false
	}
	return cloneBatch(p.last), true
}

// Latest 每个名称最新的状态，按首次出现的顺序返回
func (p *MemoryPublisher) Latest() []diagnostic.StatusReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]diagnostic.StatusReport, 0, len(p.order))
	for _, name := range p.order {
		st := p.latest[name].status
		out = append(out, st.Clone())
	}
	return out
}

// Level 最新状态中的最高级别；尚无数据时返回 OK
func (p *MemoryPublisher) Level() diagnostic.Level {
	p.mu.RLock()
	defer p.mu.RUnlock()
	highest := diagnostic.LevelOK
	for _, st := range p.latest {
		if st.status.Level > highest {
			highest = st.status.Level
		}
	}
	return highest
}

// Count 已接收批次数
func (p *MemoryPublisher) Count() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.count
}

func cloneBatch(b *diagnostic.Batch) *diagnostic.Batch {
	cp := *b
	cp.Statuses = make([]diagnostic.StatusReport, len(b.Statuses))
	for i := range b.Statuses {
		cp.Statuses[i] = b.Statuses[i].Clone()
	}
	return &cp
}
