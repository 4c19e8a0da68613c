// Package systeminfo describes the examiner host that produced a report.
package systeminfo

import (
	"context"
	"fmt"
	"os/user"
	"runtime"
	"time"

	"javaidx/logger"

	"github.com/shirou/gopsutil/v4/host"
	gnet "github.com/shirou/gopsutil/v4/net"
)

type SystemInfo struct {
	Hostname          string          `json:"hostname"`
	OS                string          `json:"os"`
	Platform          string          `json:"platform,omitempty"`
	PlatformVersion   string          `json:"platform_version,omitempty"`
	KernelVersion     string          `json:"kernel_version,omitempty"`
	Arch              string          `json:"arch"`
	BootTime          string          `json:"boot_time,omitempty"`
	Examiner          string          `json:"examiner,omitempty"`
	NetworkInterfaces []InterfaceInfo `json:"network_interfaces,omitempty"`
}

type InterfaceInfo struct {
	Name      string   `json:"name"`
	MAC       string   `json:"mac,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

// GetSystemInfo gathers what it can. Individual failures are logged and
// leave the corresponding fields empty.
func GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	sysInfo := &SystemInfo{OS: runtime.GOOS, Arch: runtime.GOARCH}

	if err := gatherHost(ctx, sysInfo); err != nil {
		logger.Warnf("Failed to gather host information: %v", err)
	}
	if err := gatherNetworkInterfaces(ctx, sysInfo); err != nil {
		logger.Warnf("Failed to gather network interfaces: %v", err)
	}
	if u, err := user.Current(); err == nil {
		sysInfo.Examiner = u.Username
	}

	return sysInfo, nil
}

func gatherHost(ctx context.Context, sysInfo *SystemInfo) error {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get host info: %w", err)
	}
	sysInfo.Hostname = info.Hostname
	if info.OS != "" {
		sysInfo.OS = info.OS
	}
	sysInfo.Platform = info.Platform
	sysInfo.PlatformVersion = info.PlatformVersion
	sysInfo.KernelVersion = info.KernelVersion
	if info.KernelArch != "" {
		sysInfo.Arch = info.KernelArch
	}
	if info.BootTime > 0 {
		sysInfo.BootTime = time.Unix(int64(info.BootTime), 0).UTC().Format(time.RFC3339)
	}
	return nil
}

func gatherNetworkInterfaces(ctx context.Context, sysInfo *SystemInfo) error {
	ifaces, err := gnet.InterfacesWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get network interfaces: %w", err)
	}
	for _, iface := range ifaces {
		info := InterfaceInfo{Name: iface.Name, MAC: iface.HardwareAddr}
		for _, addr := range iface.Addrs {
			info.Addresses = append(info.Addresses, addr.Addr)
		}
		sysInfo.NetworkInterfaces = append(sysInfo.NetworkInterfaces, info)
	}
	return nil
}
