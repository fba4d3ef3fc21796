package tools

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Metrics is a snapshot of server resource usage.
type Metrics struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsedGB  float64
	MemoryTotalGB float64
	DiskPercent   float64
	DiskFreeGB    float64
}

// MetricThresholds are the alert limits, in percent.
type MetricThresholds struct {
	CPU  float64
	Mem  float64
	Disk float64
}

// CollectMetrics samples CPU, memory and root-disk usage and evaluates the
// thresholds. Alerts is empty when everything is under limit.
func CollectMetrics(t MetricThresholds) (Metrics, []string, error) {
	var m Metrics

	cpuPcts, err := cpu.Percent(0, false)
	if err != nil {
		return m, nil, fmt.Errorf("metrics: reading cpu: %w", err)
	}
	if len(cpuPcts) > 0 {
		m.CPUPercent = round2(cpuPcts[0])
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return m, nil, fmt.Errorf("metrics: reading memory: %w", err)
	}
	m.MemoryPercent = round2(vm.UsedPercent)
	m.MemoryUsedGB = round2(float64(vm.Used) / (1 << 30))
	m.MemoryTotalGB = round2(float64(vm.Total) / (1 << 30))

	du, err := disk.Usage("/")
	if err != nil {
		return m, nil, fmt.Errorf("metrics: reading disk: %w", err)
	}
	m.DiskPercent = round2(du.UsedPercent)
	m.DiskFreeGB = round2(float64(du.Free) / (1 << 30))

	return m, EvaluateMetrics(m, t), nil
}

// EvaluateMetrics returns alert lines for metrics over their thresholds.
// Split from collection so the threshold logic is testable without sampling.
func EvaluateMetrics(m Metrics, t MetricThresholds) []string {
	var alerts []string
	if m.CPUPercent > t.CPU {
		alerts = append(alerts, fmt.Sprintf("CPU Alto: %.1f%% (Umbral: %.0f%%)", m.CPUPercent, t.CPU))
	}
	if m.MemoryPercent > t.Mem {
		alerts = append(alerts, fmt.Sprintf("Memoria Alta: %.1f%% (Umbral: %.0f%%)", m.MemoryPercent, t.Mem))
	}
	if m.DiskPercent > t.Disk {
		alerts = append(alerts, fmt.Sprintf("Disco Casi Lleno: %.1f%%", m.DiskPercent))
	}
	return alerts
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
