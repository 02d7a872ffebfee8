// Package systeminfo gathers the host header written at the top of
// machine-readable reports.
package systeminfo

import (
	"fmt"
	"runtime"

	"filetally/config"
	"filetally/logger"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

type SystemInfo struct {
	Hostname        string `json:"hostname,omitempty"`
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	LogicalCPUs     int    `json:"logical_cpus,omitempty"`
	PhysicalCPUs    int    `json:"physical_cpus,omitempty"`
	TotalMemory     uint64 `json:"total_memory,omitempty"`
}

// GetSystemInfo returns the host header, or nil when collection is disabled.
// Individual probes that fail leave their fields empty.
func GetSystemInfo(cfg *config.Config) (*SystemInfo, error) {
	if cfg == nil || !cfg.CollectSystemInfo {
		return nil, nil
	}
	sysInfo := &SystemInfo{OS: runtime.GOOS, Arch: runtime.GOARCH}

	if err := gatherHost(sysInfo); err != nil {
		logger.Warnf("Failed to gather host information: %v", err)
	}
	if err := gatherCPUs(sysInfo); err != nil {
		logger.Warnf("Failed to gather CPU counts: %v", err)
	}
	if vm, err := mem.VirtualMemory(); err != nil {
		logger.Warnf("Failed to gather memory size: %v", err)
	} else {
		sysInfo.TotalMemory = vm.Total
	}
	return sysInfo, nil
}

func gatherHost(sysInfo *SystemInfo) error {
	info, err := host.Info()
	if err != nil {
		return fmt.Errorf("failed to get host info: %w", err)
	}
	sysInfo.Hostname = info.Hostname
	sysInfo.Platform = info.Platform
	sysInfo.PlatformVersion = info.PlatformVersion
	sysInfo.KernelVersion = info.KernelVersion
	if info.KernelArch != "" {
		sysInfo.Arch = info.KernelArch
	}
	return nil
}

func gatherCPUs(sysInfo *SystemInfo) error {
	logical, err := cpu.Counts(true)
	if err != nil {
		return fmt.Errorf("failed to count logical CPUs: %w", err)
	}
	sysInfo.LogicalCPUs = logical
	if physical, err := cpu.Counts(false); err == nil {
		sysInfo.PhysicalCPUs = physical
	}
	return nil
}
