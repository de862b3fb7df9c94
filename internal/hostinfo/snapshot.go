package hostinfo

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/metorial/runhistory/internal/models"
)

// Collect captures the facts about the machine a batch runs on.
func Collect() (*models.HostSnapshot, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("get hostname: %w", err)
	}

	info, err := host.Info()
	if err != nil {
		return nil, fmt.Errorf("get host info: %w", err)
	}

	cpuCores, err := cpu.Counts(true)
	if err != nil {
		return nil, fmt.Errorf("get cpu cores: %w", err)
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("get memory info: %w", err)
	}

	return &models.HostSnapshot{
		Hostname:         hostname,
		Platform:         info.Platform,
		PlatformVersion:  info.PlatformVersion,
		KernelVersion:    info.KernelVersion,
		CPUCores:         int32(cpuCores),
		TotalMemoryBytes: int64(memInfo.Total),
		CapturedAt:       time.Now(),
	}, nil
}

// CollectOrMinimal never fails: when the full snapshot is unavailable it
// falls back to the hostname alone.
func CollectOrMinimal() *models.HostSnapshot {
	snapshot, err := Collect()
	if err == nil {
		return snapshot
	}

	hostname, _ := os.Hostname()
	return &models.HostSnapshot{
		Hostname:   hostname,
		CapturedAt: time.Now(),
	}
}

// Describe renders a one-line summary such as
// "build-01 (ubuntu 22.04, 8 cores, 15.5 GB)".
func Describe(s *models.HostSnapshot) string {
	if s == nil {
		return "unknown host"
	}
	if s.Platform == "" {
		return s.Hostname
	}

	platform := s.Platform
	if s.PlatformVersion != "" {
		platform += " " + s.PlatformVersion
	}

	return fmt.Sprintf("%s (%s, %d cores, %s)", s.Hostname, platform, s.CPUCores, FormatBytes(s.TotalMemoryBytes))
}

func FormatBytes(n int64) string {
	bytes := float64(n)
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := 0
	for bytes >= 1024 && i < len(units)-1 {
		bytes /= 1024
		i++
	}

	return fmt.Sprintf("%.1f %s", bytes, units[i])
}
