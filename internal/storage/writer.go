package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"templine/internal/metrics"
	"templine/internal/telemetry"
)

const (
	DefaultQueueSize    = 256
	DefaultWriteTimeout = 5 * time.Second

	// Minimální rozestup varování o plné frontě, ať při výpadku DB nezaplavíme logy.
	dropLogCooldown = 10 * time.Second
)

// AsyncWriter odděluje ingest smyčku od zápisu do DB.
// Store jen vloží měření do fronty (nikdy neblokuje), zápis dělá goroutina v Run.
//
//	MQTT callback -> Pipeline -> AsyncWriter.Store -> [fronta] -> Run -> Saver.Save
//
// Zápis je "best effort": plná fronta nebo chyba DB se zaloguje a započítá, bez retry.
type AsyncWriter struct {
	saver   Saver
	queue   chan telemetry.Reading
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	dropLogMu sync.Mutex
	dropLogAt time.Time
}

// NewAsyncWriter vytvoří zapisovač s frontou o velikosti queueSize.
func NewAsyncWriter(saver Saver, queueSize int, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *AsyncWriter {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &AsyncWriter{
		saver:   saver,
		queue:   make(chan telemetry.Reading, queueSize),
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// Store zařadí měření k zápisu. Implementuje telemetry.Sink.
func (w *AsyncWriter) Store(reading telemetry.Reading) {
	select {
	case w.queue <- reading:
		w.metrics.StoreQueueDepth.Set(float64(len(w.queue)))
	default:
		w.metrics.PersistenceErrors.WithLabelValues("queue_full").Inc()
		if w.shouldLogDrop() {
			w.logger.Warn("Fronta zápisu je plná, měření zahozeno", "node", reading.NodeID, "capacity", cap(w.queue))
		}
	}
}

// Depth vrací počet měření čekajících na zápis.
func (w *AsyncWriter) Depth() int {
	return len(w.queue)
}

// Run zapisuje měření z fronty, dokud není zrušen ctx.
// Po zrušení ještě doplní, co ve frontě zbylo, a skončí.
func (w *AsyncWriter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case reading := <-w.queue:
			w.write(reading)
		}
	}
}

func (w *AsyncWriter) drain() {
	for {
		select {
		case reading := <-w.queue:
			w.write(reading)
		default:
			return
		}
	}
}

func (w *AsyncWriter) write(reading telemetry.Reading) {
	w.metrics.StoreQueueDepth.Set(float64(len(w.queue)))

	// Vlastní context s timeoutem, aby DB operace nevisela věčně.
	// Nezávisí na ctx z Run, jinak by se při shutdownu nic nedopsalo.
	saveCtx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.saver.Save(saveCtx, reading); err != nil {
		op := "insert"
		var pe *PersistenceError
		if errors.As(err, &pe) {
			op = pe.Op
		}
		w.metrics.PersistenceErrors.WithLabelValues(op).Inc()
		w.logger.Error("Chyba při ukládání dat", "node", reading.NodeID, "error", err)
		return
	}

	w.metrics.ReadingsStored.Inc()
	w.logger.Debug("Data uložena", "node", reading.NodeID, "temp", reading.Value)
}

func (w *AsyncWriter) shouldLogDrop() bool {
	w.dropLogMu.Lock()
	defer w.dropLogMu.Unlock()

	if w.dropLogAt.IsZero() || time.Since(w.dropLogAt) >= dropLogCooldown {
		w.dropLogAt = time.Now()
		return true
	}
	return false
}
