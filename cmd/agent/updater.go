package agent

import (
	"github.com/spf13/cobra"
)

func initUpdaterFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	p := "updater."

	f.Duration(p+"period", defaultCfg.Updater.Period, "-> Publish period (更新周期)")
	f.String(p+"hardware_id", defaultCfg.Updater.HardwareID, "-> Hardware id stamped on every status (硬件ID)")
	f.Bool(p+"hardware_id_from_host", defaultCfg.Updater.HardwareIDFromHost, "-> Use hostname-hostid as hardware id (使用主机标识)")
	f.String(p+"node_name", defaultCfg.Updater.NodeName, "-> Node name prefix for status names (节点名称前缀)")
	f.Bool(p+"verbose", defaultCfg.Updater.Verbose, "-> Log every non-OK status (记录非OK状态)")
}

func initTaskFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	p := "tasks."

	f.Bool(p+"combine", defaultCfg.Tasks.Combine, "-> Merge built-in tasks into one 'system' status | 合并为单个状态")

	f.Bool(p+"cpu.enable", defaultCfg.Tasks.CPU.Enable, "-> Enable CPU load task | 启用CPU负载任务")
	f.Float64(p+"cpu.warn_load", defaultCfg.Tasks.CPU.WarnLoad, "-> Per-core load1 WARN threshold | 每核负载告警阈值")
	f.Float64(p+"cpu.error_load", defaultCfg.Tasks.CPU.ErrorLoad, "-> Per-core load1 ERROR threshold | 每核负载错误阈值")

	f.Bool(p+"memory.enable", defaultCfg.Tasks.Memory.Enable, "-> Enable memory usage task | 启用内存任务")
	f.Float64(p+"memory.warn_percent", defaultCfg.Tasks.Memory.WarnPercent, "-> Memory WARN percent | 内存告警百分比")
	f.Float64(p+"memory.error_percent", defaultCfg.Tasks.Memory.ErrorPercent, "-> Memory ERROR percent | 内存错误百分比")

	f.Bool(p+"disk.enable", defaultCfg.Tasks.Disk.Enable, "-> Enable disk usage task | 启用磁盘任务")
	f.StringSlice(p+"disk.paths", defaultCfg.Tasks.Disk.Paths, "-> Mount points to check | 检查的挂载点")
	f.Float64(p+"disk.warn_percent", defaultCfg.Tasks.Disk.WarnPercent, "-> Disk WARN percent | 磁盘告警百分比")
	f.Float64(p+"disk.error_percent", defaultCfg.Tasks.Disk.ErrorPercent, "-> Disk ERROR percent | 磁盘错误百分比")
}
