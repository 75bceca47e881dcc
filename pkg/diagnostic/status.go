// Package diagnostic 定义诊断状态报告（StatusReport）、批次（Batch）以及任务（Task）抽象，
// 包含组合任务（CompositeTask）的汇总合并算法。
package diagnostic

import (
	"fmt"
	"time"
)

// Level 诊断级别（数值与对外协议保持一致：0=OK,1=WARN,2=ERROR,3=STALE）
type Level uint8

const (
	LevelOK Level = iota
	LevelWarn
	LevelError
	LevelStale
)

// summaryDelimiter 合并多个非OK消息时使用的分隔符
const summaryDelimiter = "; "

// String 返回级别名称
func (l Level) String() string {
	switch l {
	case LevelOK:
		return "OK"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelStale:
		return "STALE"
	default:
		return fmt.Sprintf("LEVEL(%d)", uint8(l))
	}
}

// KeyValue 状态附带的有序键值对
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// StatusReport 单个任务一次运行产生的状态报告。
// 任务运行期间可变；被收集进 Batch 之后视为只读。
type StatusReport struct {
	Name       string     `json:"name"`
	Level      Level      `json:"level"`
	Message    string     `json:"message"`
	HardwareID string     `json:"hardware_id"`
	Values     []KeyValue `json:"values,omitempty"`
}

// NewStatusReport 创建以 name 为名称、级别 OK、消息为空的报告
func NewStatusReport(name string) *StatusReport {
	return &StatusReport{Name: name, Level: LevelOK}
}

// Summary 设置级别与消息
func (s *StatusReport) Summary(level Level, message string) {
	s.Level = level
	s.Message = message
}

// Summaryf 格式化消息后设置级别与消息
func (s *StatusReport) Summaryf(level Level, format string, args ...any) {
	s.Summary(level, fmt.Sprintf(format, args...))
}

// CopySummary 复制另一份报告的级别与消息（不复制键值）
func (s *StatusReport) CopySummary(src *StatusReport) {
	s.Summary(src.Level, src.Message)
}

// ClearSummary 级别重置为 OK，清空消息
func (s *StatusReport) ClearSummary() {
	s.Summary(LevelOK, "")
}

// MergeSummary 将 (level, message) 合并进当前汇总：
//   - 级别取最大值
//   - 双方均非OK时追加消息（"; " 分隔）
//   - 当前为OK而新级别更高时替换消息
//   - OK 级别的输入不会改变消息
func (s *StatusReport) MergeSummary(level Level, message string) {
	switch {
	case level > LevelOK && s.Level > LevelOK:
		if s.Message != "" {
			s.Message += summaryDelimiter
		}
		s.Message += message
	case level > s.Level:
		s.Message = message
	}
	if level > s.Level {
		s.Level = level
	}
}

// MergeSummaryf 格式化后合并
func (s *StatusReport) MergeSummaryf(level Level, format string, args ...any) {
	s.MergeSummary(level, fmt.Sprintf(format, args...))
}

// Add 追加键值
func (s *StatusReport) Add(key, value string) {
	s.Values = append(s.Values, KeyValue{Key: key, Value: value})
}

// Addf 格式化后追加键值
func (s *StatusReport) Addf(key, format string, args ...any) {
	s.Add(key, fmt.Sprintf(format, args...))
}

// Value 查找第一个 key 对应的值
func (s *StatusReport) Value(key string) (string, bool) {
	for _, kv := range s.Values {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Clone 深拷贝，批次内保存的是拷贝，避免任务后续修改影响已发布数据
func (s *StatusReport) Clone() StatusReport {
	c := *s
	if s.Values != nil {
		c.Values = make([]KeyValue, len(s.Values))
		copy(c.Values, s.Values)
	}
	return c
}

// Batch 一次发布的状态集合（按任务注册顺序排列）。
// Partial 为 false 时批次覆盖发布时刻注册表中的全部任务（更新周期、广播）；
// 为 true 时只包含部分任务（注册时的占位状态），接收端应合并而不是替换。
type Batch struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	HardwareID string         `json:"hardware_id"`
	Partial    bool           `json:"partial,omitempty"`
	Statuses   []StatusReport `json:"statuses"`
}

// MaxLevel 批次内最高级别，空批次返回 OK
func (b *Batch) MaxLevel() Level {
	highest := LevelOK
	for _, st := range b.Statuses {
		if st.Level > highest {
			highest = st.Level
		}
	}
	return highest
}

// Names 批次内状态名称列表
func (b *Batch) Names() []string {
	names := make([]string, 0, len(b.Statuses))
	for _, st := range b.Statuses {
		names = append(names, st.Name)
	}
	return names
}
