package observability

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// ResourceUsage is a point-in-time view of the process.
type ResourceUsage struct {
	RSSBytes   uint64
	CPUPercent float64
	Threads    int32
	OpenFDs    int32
	Goroutines int
}

// ResourceMonitor samples the current process.
type ResourceMonitor struct {
	proc *process.Process
}

// NewResourceMonitor attaches to the current process. Sampling degrades to
// runtime-only figures when the process cannot be inspected.
func NewResourceMonitor() *ResourceMonitor {
	proc, _ := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	return &ResourceMonitor{proc: proc}
}

// Snapshot samples resource usage.
func (m *ResourceMonitor) Snapshot() ResourceUsage {
	u := ResourceUsage{Goroutines: runtime.NumGoroutine()}
	if m.proc == nil {
		return u
	}
	if mem, err := m.proc.MemoryInfo(); err == nil {
		u.RSSBytes = mem.RSS
	}
	if pct, err := m.proc.CPUPercent(); err == nil {
		u.CPUPercent = pct
	}
	u.Threads, _ = m.proc.NumThreads()
	u.OpenFDs, _ = m.proc.NumFDs()
	return u
}

// Fields renders u for logging.
func (u ResourceUsage) Fields() []zap.Field {
	return []zap.Field{
		zap.Uint64("rss_bytes", u.RSSBytes),
		zap.Float64("cpu_percent", u.CPUPercent),
		zap.Int32("threads", u.Threads),
		zap.Int32("open_fds", u.OpenFDs),
		zap.Int("goroutines", u.Goroutines),
	}
}
