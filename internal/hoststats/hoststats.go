// Package hoststats měří stav brány (CPU, RAM, disk) pomocí gopsutil.
// Výsledek jde do Prometheus gauge v sensor-ingestoru a do heartbeat zprávy system-monitoru.
package hoststats

import (
	"context"
	"log/slog"
	"strings"
	"time"

	// Knihovna gopsutil pro čtení systémových statistik (CPU, RAM, Disk, Procesy).
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"templine/internal/metrics"
)

const (
	mb = 1024.0 * 1024.0
	gb = 1024.0 * mb
)

// DefaultApps jsou klíčová slova v názvech procesů, jejichž RAM sčítáme.
var DefaultApps = []string{
	"sensor-ingestor",
	"system-monitor",
	"log-collector",
	"mosquitto",
	"postgres",
	"valkey",
}

// Stats je jeden "snímek" stavu systému.
type Stats struct {
	// CPULoad: Průměrné vytížení procesoru v procentech (0-100).
	CPULoad float64 `json:"cpu_percent"`

	// Reálně využitá paměť aplikacemi (bez diskové cache)
	RAMUsedMB  float64 `json:"ram_used_mb"`
	RAMTotalMB float64 `json:"ram_total_mb"`

	// AppRAMUsedMB: Součet RSS procesů našeho stacku.
	AppRAMUsedMB float64 `json:"app_ram_used_mb"`

	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskTotalGB float64 `json:"disk_total_gb"`
}

// Collector sbírá statistiky. Nulová hodnota je použitelná.
type Collector struct {
	// CPUInterval je okno, přes které se počítá vytížení CPU. Výchozí 1s.
	CPUInterval time.Duration
	// Apps přepisuje DefaultApps.
	Apps []string
	// DiskPath je měřený oddíl, výchozí "/".
	DiskPath string
}

// Collect změří aktuální stav. Chyba jednoho měření nezastaví ostatní,
// jen se zaloguje a hodnota zůstane nulová.
func (c Collector) Collect(ctx context.Context, logger *slog.Logger) Stats {
	var stats Stats

	interval := c.CPUInterval
	if interval <= 0 {
		interval = time.Second
	}
	// percpu=false: chceme průměr přes všechna jádra dohromady.
	percentages, err := cpu.PercentWithContext(ctx, interval, false)
	if err == nil && len(percentages) > 0 {
		stats.CPULoad = percentages[0]
	} else {
		logger.Error("Chyba při čtení CPU statistik", "error", err)
	}

	vMem, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		// Linux používá volnou RAM jako cache. "Obsazená" paměť je proto Total - Available, ne Used.
		stats.RAMUsedMB = float64(vMem.Total-vMem.Available) / mb
		stats.RAMTotalMB = float64(vMem.Total) / mb
	} else {
		logger.Error("Chyba při čtení RAM statistik", "error", err)
	}

	stats.AppRAMUsedMB = float64(c.appMemory(ctx)) / mb

	path := c.DiskPath
	if path == "" {
		path = "/"
	}
	dStat, err := disk.UsageWithContext(ctx, path)
	if err == nil {
		stats.DiskUsedGB = float64(dStat.Used) / gb
		stats.DiskTotalGB = float64(dStat.Total) / gb
	} else {
		logger.Error("Chyba při čtení statistik disku", "error", err, "path", path)
	}

	return stats
}

// appMemory sečte RSS (skutečnou fyzickou RAM) procesů, jejichž název odpovídá Apps.
func (c Collector) appMemory(ctx context.Context) uint64 {
	apps := c.Apps
	if apps == nil {
		apps = DefaultApps
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0
	}

	var sum uint64
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Proces mohl skončit během iterace.
			continue
		}
		if !matchesAny(name, apps) {
			continue
		}
		if memInfo, err := p.MemoryInfoWithContext(ctx); err == nil {
			sum += memInfo.RSS
		}
	}
	return sum
}

func matchesAny(name string, targets []string) bool {
	for _, target := range targets {
		if strings.Contains(name, target) {
			return true
		}
	}
	return false
}

// Record zapíše snímek do Prometheus gauge.
func Record(m *metrics.Metrics, s Stats) {
	m.HostCPUPercent.Set(s.CPULoad)
	m.HostRAMUsedMB.Set(s.RAMUsedMB)
	m.HostDiskUsedGB.Set(s.DiskUsedGB)
	m.HostAppRAMUsedMB.Set(s.AppRAMUsedMB)
}

// Run měří každých interval a výsledek předá do fn. První měření proběhne hned.
// Končí se zrušením ctx.
func (c Collector) Run(ctx context.Context, interval time.Duration, logger *slog.Logger, fn func(Stats)) {
	fn(c.Collect(ctx, logger))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(c.Collect(ctx, logger))
		}
	}
}
