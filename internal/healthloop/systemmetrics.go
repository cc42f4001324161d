package healthloop

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostSystemMetrics implements SystemMetrics over gopsutil, the same
// library internal/vram's MemorySampler uses, so the metrics writer's
// system.* points and the VRAM orchestrator's own memory reads describe
// the same host consistently.
type HostSystemMetrics struct{}

func (HostSystemMetrics) Sample(ctx context.Context) (map[string]float64, error) {
	out := make(map[string]float64, 3)

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out["system.mem_used_pct"] = vm.UsedPercent
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		out["system.cpu_used_pct"] = pct[0]
	}

	return out, nil
}
