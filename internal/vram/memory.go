package vram

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/mem"
)

// MemorySampler reads host memory pressure. The orchestrator does not
// consult nvidia-smi (unified-memory DGX-class systems, spec.md §4.2):
// it samples total/used/available via gopsutil (a portable equivalent
// of `free -b`) and Linux PSI directly from /proc/pressure/memory.
type MemorySampler interface {
	Sample(ctx context.Context) (MemorySample, error)
}

// hostSampler is the production MemorySampler.
type hostSampler struct {
	psiPath string
}

// NewHostSampler builds a MemorySampler reading live host state.
func NewHostSampler() MemorySampler {
	return &hostSampler{psiPath: "/proc/pressure/memory"}
}

func (h *hostSampler) Sample(ctx context.Context) (MemorySample, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemorySample{}, err
	}
	s := MemorySample{
		TotalGB:     bytesToGB(vm.Total),
		UsedGB:      bytesToGB(vm.Used),
		AvailableGB: bytesToGB(vm.Available),
		UsagePct:    vm.UsedPercent,
	}
	some, full, err := h.readPSI()
	if err != nil {
		// PSI is Linux-only and may be unavailable (non-Linux host,
		// permission denied, cgroup not mounted); degrade gracefully.
		slog.Debug("PSI unavailable", "error", err)
	} else {
		s.PSISomeAvg10 = some
		s.PSIFullAvg10 = full
	}
	return s, nil
}

func bytesToGB(b uint64) float64 {
	return float64(b) / (1024 * 1024 * 1024)
}

// readPSI parses /proc/pressure/memory's "some"/"full" lines for the
// avg10 field, e.g. "some avg10=0.00 avg60=0.00 avg300=0.00 total=0".
func (h *hostSampler) readPSI() (some, full float64, err error) {
	raw, err := os.ReadFile(h.psiPath)
	if err != nil {
		return 0, 0, err
	}
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		kind := fields[0]
		for _, f := range fields[1:] {
			if !strings.HasPrefix(f, "avg10=") {
				continue
			}
			val, perr := strconv.ParseFloat(strings.TrimPrefix(f, "avg10="), 64)
			if perr != nil {
				continue
			}
			switch kind {
			case "some":
				some = val
			case "full":
				full = val
			}
		}
	}
	return some, full, nil
}

// FlushBufferCache attempts `echo 1 > /proc/sys/vm/drop_caches` before
// admitting a large model. If permissions disallow it, logs and
// proceeds (spec.md §4.2: "otherwise it logs and proceeds").
func FlushBufferCache() {
	f, err := os.OpenFile("/proc/sys/vm/drop_caches", os.O_WRONLY, 0)
	if err != nil {
		slog.Debug("buffer cache flush unavailable, proceeding without it", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString("1"); err != nil {
		slog.Debug("buffer cache flush failed, proceeding without it", "error", err)
	}
}
