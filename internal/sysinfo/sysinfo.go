package sysinfo

import (
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"

	"github.com/o4o-platform/signage-agent/internal/models"
)

// Collector samples host CPU and memory usage for heartbeat payloads.
type Collector struct {
	Logger zerolog.Logger
}

// NewCollector creates a host stats collector.
func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{Logger: logger}
}

// Collect returns a snapshot of host stats, or nil if sampling fails. A nil
// snapshot degrades the heartbeat's system field, never the beat itself.
func (c *Collector) Collect() *models.SystemStats {
	cpuPercentages, err := cpu.Percent(0, false)
	if err != nil || len(cpuPercentages) == 0 {
		c.Logger.Warn().Err(err).Msg("Failed to sample CPU usage")
		return nil
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		c.Logger.Warn().Err(err).Msg("Failed to sample memory usage")
		return nil
	}

	return &models.SystemStats{
		CPUPercent:    cpuPercentages[0],
		MemoryPercent: vm.UsedPercent,
		MemoryUsedMB:  vm.Used / (1024 * 1024),
	}
}
