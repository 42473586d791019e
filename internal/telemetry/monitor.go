package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"templine/internal/metrics"
)

const (
	DefaultStaleThreshold = 5 * time.Minute
	DefaultStaleInterval  = 2 * time.Minute
)

// MonitorConfig nastavuje hlídání zatuchlých uzlů.
type MonitorConfig struct {
	// Threshold: uzel je stale, pokud od posledních dat uběhlo VÍC než Threshold.
	Threshold time.Duration

	// Interval: jak často se registr prochází.
	Interval time.Duration

	// Now je zdroj času. V testech se podstrčí pevné hodiny, v produkci nil (= time.Now).
	Now func() time.Time
}

// StaleNode je jeden zatuchlý uzel v reportu.
type StaleNode struct {
	NodeID       string        `json:"node_id"`
	LastUpdateAt time.Time     `json:"last_update_at"`
	Age          time.Duration `json:"age"`
}

// Report je výsledek jednoho průchodu monitoru.
type Report struct {
	At      time.Time   `json:"at"`
	Checked int         `json:"checked"`
	Stale   []StaleNode `json:"stale"`
}

// IsStale vrací true, pokud je uzel v reportu veden jako zatuchlý.
func (r Report) IsStale(nodeID string) bool {
	for _, s := range r.Stale {
		if s.NodeID == nodeID {
			return true
		}
	}
	return false
}

// Monitor periodicky prochází registr a označuje uzly bez čerstvých dat.
//
// Status uzlu NEMĚNÍ. Kdyby ho přepisoval na "stale", další datová zpráva by ho
// hned vrátila na "ok" a oba kontexty by se o pole přetahovaly. Místo toho
// nastavuje jen informativní příznak NodeState.Stale přes Registry.MarkStale.
type Monitor struct {
	registry  *Registry
	threshold time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu   sync.Mutex
	last Report
}

// NewMonitor vytvoří monitor. Nulové hodnoty v cfg se nahradí defaulty.
func NewMonitor(registry *Registry, cfg MonitorConfig, logger *slog.Logger, m *metrics.Metrics) *Monitor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultStaleThreshold
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultStaleInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Monitor{
		registry:  registry,
		threshold: cfg.Threshold,
		interval:  cfg.Interval,
		now:       cfg.Now,
		logger:    logger,
		metrics:   m,
	}
}

// Scan provede jeden průchod registrem k času now a vrátí report.
func (m *Monitor) Scan(now time.Time) Report {
	snap := m.registry.Snapshot()
	report := Report{At: now, Stale: []StaleNode{}}

	for _, n := range snap.Nodes {
		// Uzel, který ještě neposlal data, nemá s čím porovnávat.
		if n.LastUpdateAt == nil {
			continue
		}
		report.Checked++

		age := now.Sub(*n.LastUpdateAt)
		stale := age > m.threshold

		if stale != n.Stale && m.registry.MarkStale(n.NodeID, *n.LastUpdateAt, stale) {
			if stale {
				m.logger.Warn("Uzel neposílá data", "node", n.NodeID, "age", age.Round(time.Second).String())
			} else {
				m.logger.Info("Uzel znovu posílá data", "node", n.NodeID)
			}
		}

		if stale {
			report.Stale = append(report.Stale, StaleNode{
				NodeID:       n.NodeID,
				LastUpdateAt: *n.LastUpdateAt,
				Age:          age,
			})
		}
	}

	m.metrics.KnownNodes.Set(float64(len(snap.Nodes)))
	m.metrics.StaleNodes.Set(float64(len(report.Stale)))

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()

	return report
}

// LastReport vrací výsledek posledního průchodu.
func (m *Monitor) LastReport() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run spouští smyčku na pozadí. Skončí při zrušení ctx.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Staleness monitor běží", "interval", m.interval.String(), "threshold", m.threshold.String())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := m.Scan(m.now())
			m.logger.Debug("Staleness scan hotový", "checked", report.Checked, "stale", len(report.Stale))
		}
	}
}
