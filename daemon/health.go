package daemon

import (
	"time"

	"github.com/shirou/gopsutil/v4/mem"

	"helmsman/internal/fleet"
)

// Health reports the daemon's own condition: uptime, catalog totals, and
// process-host memory pressure.
type Health struct {
	startedAt time.Time
}

func NewHealth() *Health {
	return &Health{startedAt: time.Now()}
}

// Snapshot is the payload of the status command.
type Snapshot struct {
	UptimeSeconds  uint64         `json:"uptime_seconds"`
	Hosts          int            `json:"hosts"`
	HostsByStatus  map[string]int `json:"hosts_by_status"`
	MemoryUsedPct  float64        `json:"memory_used_percent"`
	MemoryTotalMB  uint64         `json:"memory_total_mb"`
	DeploysRunning int            `json:"deploys_running"`
}

func (h *Health) Snapshot(registry *fleet.Registry) Snapshot {
	hosts := registry.List()
	snap := Snapshot{
		UptimeSeconds: uint64(time.Since(h.startedAt).Seconds()),
		Hosts:         len(hosts),
		HostsByStatus: make(map[string]int),
	}
	for _, host := range hosts {
		snap.HostsByStatus[string(host.Status)]++
		if host.Deploy == fleet.DeployRunning {
			snap.DeploysRunning++
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryUsedPct = vm.UsedPercent
		snap.MemoryTotalMB = vm.Total / (1024 * 1024)
	}
	return snap
}
