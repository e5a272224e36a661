package sliding

import (
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/pgpool/pkg/config"
)

// WindowConfig 滑动窗口配置
type WindowConfig struct {
	// 窗口长度
	Size time.Duration `mapstructure:"size" json:"size" yaml:"size" validate:"gt=0"`
	// 桶数量，桶宽度 = Size / Buckets
	Buckets int `mapstructure:"buckets" json:"buckets" yaml:"buckets" validate:"gt=0"`
}

// DefaultWindowConfig 默认配置
func DefaultWindowConfig() *WindowConfig {
	return &WindowConfig{
		Size:    60 * time.Second,
		Buckets: 60,
	}
}

type bucket struct {
	start   time.Time
	count   int64
	failed  int64
	total   time.Duration
	min     time.Duration
	max     time.Duration
	byLabel map[string]int64
}

// Window 最近一段时间内的调用统计
// 桶在写入或读取时按时间惰性轮转，不需要后台协程
type Window struct {
	size    time.Duration
	width   time.Duration
	now     func() time.Time
	mu      sync.Mutex
	buckets []bucket
}

// NewWindow 创建滑动窗口
func NewWindow(cfg *WindowConfig) (*Window, error) {
	merged, err := config.MergeConfig(DefaultWindowConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge window config: %w", err)
	}
	if err := config.NewValidator().Validate(merged); err != nil {
		return nil, err
	}

	width := merged.Size / time.Duration(merged.Buckets)
	if width <= 0 {
		return nil, fmt.Errorf("window size %v too small for %d buckets", merged.Size, merged.Buckets)
	}
	return &Window{
		size:    merged.Size,
		width:   width,
		now:     time.Now,
		buckets: make([]bucket, merged.Buckets),
	}, nil
}

// SetClock 替换时间源
func (w *Window) SetClock(now func() time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
}

// Record 记录一次调用，label 为结果分类（例如 ok、exhausted、failed）
// ok 之外的 label 都计入失败
func (w *Window) Record(latency time.Duration, label string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b := w.current(w.now())
	b.count++
	b.total += latency
	if label != "ok" {
		b.failed++
	}
	if b.count == 1 || latency < b.min {
		b.min = latency
	}
	if latency > b.max {
		b.max = latency
	}
	if b.byLabel == nil {
		b.byLabel = make(map[string]int64)
	}
	b.byLabel[label]++
}

// current 返回 now 所在的桶，过期的桶被清空复用
func (w *Window) current(now time.Time) *bucket {
	start := now.Truncate(w.width)
	idx := int(start.UnixNano()/int64(w.width)) % len(w.buckets)
	b := &w.buckets[idx]
	if !b.start.Equal(start) {
		*b = bucket{start: start}
	}
	return b
}

// Stats 窗口统计结果
type Stats struct {
	Count       int64            `json:"count"`
	Failed      int64            `json:"failed"`
	PerSecond   float64          `json:"per_second"`
	AvgLatency  time.Duration    `json:"avg_latency"`
	MinLatency  time.Duration    `json:"min_latency"`
	MaxLatency  time.Duration    `json:"max_latency"`
	SuccessRate float64          `json:"success_rate"`
	ByLabel     map[string]int64 `json:"by_label"`
}

// Stats 汇总窗口内仍有效的桶
func (w *Window) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	oldest := now.Truncate(w.width).Add(-w.size + w.width)

	s := Stats{ByLabel: make(map[string]int64)}
	var total time.Duration
	for i := range w.buckets {
		b := &w.buckets[i]
		if b.count == 0 || b.start.Before(oldest) || b.start.After(now) {
			continue
		}
		if s.Count == 0 || b.min < s.MinLatency {
			s.MinLatency = b.min
		}
		if b.max > s.MaxLatency {
			s.MaxLatency = b.max
		}
		s.Count += b.count
		s.Failed += b.failed
		total += b.total
		for label, n := range b.byLabel {
			s.ByLabel[label] += n
		}
	}

	s.PerSecond = float64(s.Count) / w.size.Seconds()
	if s.Count > 0 {
		s.AvgLatency = total / time.Duration(s.Count)
		s.SuccessRate = float64(s.Count-s.Failed) / float64(s.Count) * 100
	}
	return s
}
