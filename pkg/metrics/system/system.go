package system

import (
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats 进程资源快照
type Stats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryBytes   uint64  `json:"memory_bytes"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
}

// Collector 采集当前进程的 CPU、内存与协程数
// 每次 Collect 时实时读取，不缓存
type Collector struct {
	proc *process.Process

	cpu        *prometheus.Desc
	memory     *prometheus.Desc
	memPercent *prometheus.Desc
	goroutines *prometheus.Desc
}

// New 创建进程资源采集器
func New(namespace string) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	fq := func(name string) string {
		return prometheus.BuildFQName(namespace, "process", name)
	}
	return &Collector{
		proc:       proc,
		cpu:        prometheus.NewDesc(fq("cpu_percent"), "进程 CPU 使用率（0-100 × 核数）", nil, nil),
		memory:     prometheus.NewDesc(fq("rss_bytes"), "进程常驻内存字节数", nil, nil),
		memPercent: prometheus.NewDesc(fq("memory_percent"), "进程常驻内存占物理内存的百分比", nil, nil),
		goroutines: prometheus.NewDesc(fq("goroutines"), "当前协程数", nil, nil),
	}, nil
}

// Snapshot 读取一次资源使用情况，单项读取失败时该项为零值
func (c *Collector) Snapshot() Stats {
	s := Stats{Goroutines: runtime.NumGoroutine()}

	if pct, err := c.proc.CPUPercent(); err == nil {
		s.CPUPercent = pct
	}
	if info, err := c.proc.MemoryInfo(); err == nil {
		s.MemoryBytes = info.RSS
		if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
			s.MemoryPercent = float64(info.RSS) / float64(vm.Total) * 100
		}
	}
	return s
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpu
	ch <- c.memory
	ch <- c.memPercent
	ch <- c.goroutines
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.cpu, prometheus.GaugeValue, s.CPUPercent)
	ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(s.MemoryBytes))
	ch <- prometheus.MustNewConstMetric(c.memPercent, prometheus.GaugeValue, s.MemoryPercent)
	ch <- prometheus.MustNewConstMetric(c.goroutines, prometheus.GaugeValue, float64(s.Goroutines))
}
