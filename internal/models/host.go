package models

import "time"

type HostSnapshot struct {
	Hostname         string    `json:"hostname"`
	Platform         string    `json:"platform"`
	PlatformVersion  string    `json:"platform_version"`
	KernelVersion    string    `json:"kernel_version"`
	CPUCores         int32     `json:"cpu_cores"`
	TotalMemoryBytes int64     `json:"total_memory_bytes"`
	CapturedAt       time.Time `json:"captured_at"`
}
