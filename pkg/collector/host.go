package collector

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/host"
)

var hostInfo = host.Info

// HostIdentity 返回主机名与主机唯一ID，用于生成硬件ID
func HostIdentity() (hostname, hostID string, err error) {
	info, err := hostInfo()
	if err != nil {
		return "", "", fmt.Errorf("get host info: %w", err)
	}
	return info.Hostname, info.HostID, nil
}
