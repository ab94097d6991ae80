package services

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
)

// ResourceStats is a point-in-time view of process and host resource usage.
type ResourceStats struct {
	MemoryUsedMB    uint64  `json:"memory_used_mb"`
	MemoryPercent   float64 `json:"memory_percent"`
	CPUPercent      float64 `json:"cpu_percent"`
	GoroutineCount  int     `json:"goroutine_count"`
	HeapAllocatedMB uint64  `json:"heap_allocated_mb"`
}

// ResourceMonitor samples host and runtime stats for long-running batch jobs.
type ResourceMonitor struct {
	logger logging.Logger
}

// NewResourceMonitor creates a resource monitor.
func NewResourceMonitor(logger logging.Logger) *ResourceMonitor {
	return &ResourceMonitor{logger: logger.WithComponent("resource_monitor")}
}

// Snapshot samples current resource usage. Sampling failures degrade to
// zero values rather than failing the caller.
func (m *ResourceMonitor) Snapshot() ResourceStats {
	var stats ResourceStats

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsedMB = vm.Used / 1024 / 1024
		stats.MemoryPercent = vm.UsedPercent
	} else {
		m.logger.WithError(err).Debug("memory sampling failed")
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	} else if err != nil {
		m.logger.WithError(err).Debug("cpu sampling failed")
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.HeapAllocatedMB = ms.HeapAlloc / 1024 / 1024
	stats.GoroutineCount = runtime.NumGoroutine()
	return stats
}

// LogStats samples and logs current resource usage under the given phase tag.
func (m *ResourceMonitor) LogStats(phase string) {
	stats := m.Snapshot()
	m.logger.WithFields(map[string]interface{}{
		"phase":             phase,
		"memory_used_mb":    stats.MemoryUsedMB,
		"memory_percent":    stats.MemoryPercent,
		"cpu_percent":       stats.CPUPercent,
		"goroutine_count":   stats.GoroutineCount,
		"heap_allocated_mb": stats.HeapAllocatedMB,
	}).Info("resource stats")
}
