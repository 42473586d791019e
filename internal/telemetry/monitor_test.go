package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"templine/internal/metrics"
)

func newTestMonitor(r *Registry, m *metrics.Metrics) *Monitor {
	return NewMonitor(r, MonitorConfig{Threshold: 5 * time.Minute, Interval: time.Minute}, discardLogger(), m)
}

func TestMonitor_StaleAfterThreshold(t *testing.T) {
	now := t0.Add(time.Hour)
	r := NewRegistry()
	r.UpsertReading("old", reading("old", 20, now), now.Add(-6*time.Minute))
	r.UpsertReading("recent", reading("recent", 20, now), now.Add(-4*time.Minute))

	mon := newTestMonitor(r, metrics.New())
	report := mon.Scan(now)

	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Stale, 1)
	assert.Equal(t, "old", report.Stale[0].NodeID)
	assert.Equal(t, 6*time.Minute, report.Stale[0].Age)
	assert.True(t, report.IsStale("old"))
	assert.False(t, report.IsStale("recent"))
}

func TestMonitor_ExactlyAtThresholdIsFresh(t *testing.T) {
	now := t0.Add(time.Hour)
	r := NewRegistry()
	r.UpsertReading("edge", reading("edge", 20, now), now.Add(-5*time.Minute))

	report := newTestMonitor(r, metrics.New()).Scan(now)
	assert.Empty(t, report.Stale)
}

func TestMonitor_DoesNotChangeStatus(t *testing.T) {
	now := t0.Add(time.Hour)
	r := NewRegistry()
	r.UpsertReading("ok-node", reading("ok-node", 20, now), now.Add(-10*time.Minute))
	r.UpsertReading("err-node", reading("err-node", 20, now), now.Add(-10*time.Minute))
	r.SetStatus("err-node", StatusError, "offline", now.Add(-9*time.Minute))

	newTestMonitor(r, metrics.New()).Scan(now)

	okNode, _ := r.Node("ok-node")
	errNode, _ := r.Node("err-node")
	assert.Equal(t, StatusOK, okNode.Status)
	assert.True(t, okNode.Stale)
	assert.Equal(t, StatusError, errNode.Status)
	assert.True(t, errNode.Stale)
}

func TestMonitor_FreshDataClearsStaleFlag(t *testing.T) {
	now := t0.Add(time.Hour)
	r := NewRegistry()
	r.UpsertReading("n1", reading("n1", 20, now), now.Add(-10*time.Minute))

	mon := newTestMonitor(r, metrics.New())
	mon.Scan(now)
	n, _ := r.Node("n1")
	require.True(t, n.Stale)

	r.UpsertReading("n1", reading("n1", 21, now), now)
	n, _ = r.Node("n1")
	assert.False(t, n.Stale)

	report := mon.Scan(now.Add(time.Minute))
	assert.Empty(t, report.Stale)
}

func TestMonitor_SkipsNodesWithoutData(t *testing.T) {
	r := NewRegistry()
	r.SetStatus("status-only", StatusOK, "online", t0)

	report := newTestMonitor(r, metrics.New()).Scan(t0.Add(time.Hour))
	assert.Equal(t, 0, report.Checked)
	assert.Empty(t, report.Stale)

	n, _ := r.Node("status-only")
	assert.False(t, n.Stale)
}

func TestMonitor_UpdatesGaugesAndLastReport(t *testing.T) {
	now := t0.Add(time.Hour)
	r := NewRegistry()
	r.UpsertReading("a", reading("a", 20, now), now.Add(-time.Hour))
	r.UpsertReading("b", reading("b", 20, now), now.Add(-time.Hour))
	r.UpsertReading("c", reading("c", 20, now), now)

	m := metrics.New()
	mon := newTestMonitor(r, m)
	report := mon.Scan(now)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.KnownNodes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StaleNodes))
	assert.Equal(t, report, mon.LastReport())
}

func TestMonitor_Defaults(t *testing.T) {
	mon := NewMonitor(NewRegistry(), MonitorConfig{}, discardLogger(), metrics.New())

	assert.Equal(t, DefaultStaleThreshold, mon.threshold)
	assert.Equal(t, DefaultStaleInterval, mon.interval)
	assert.NotNil(t, mon.now)
}

func TestMonitor_RunUsesInjectedClockAndStopsOnCancel(t *testing.T) {
	r := NewRegistry()
	r.UpsertReading("n1", reading("n1", 20, t0), t0)

	// Hodiny ukazují o hodinu dál, takže první tik musí najít zatuchlý uzel.
	clock := func() time.Time { return t0.Add(time.Hour) }
	mon := NewMonitor(r, MonitorConfig{Threshold: time.Minute, Interval: 5 * time.Millisecond, Now: clock}, discardLogger(), metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		n, _ := r.Node("n1")
		return n.Stale
	}, time.Second, 5*time.Millisecond)

	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}
