package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)

func reading(node string, value float64, at time.Time) Reading {
	return Reading{NodeID: node, DeviceID: "AA:BB", Value: value, ObservedAt: at}
}

func TestRegistry_UpsertCreatesNode(t *testing.T) {
	r := NewRegistry()
	r.UpsertReading("n1", reading("n1", 21.5, t0), t0)

	n, ok := r.Node("n1")
	require.True(t, ok)
	require.NotNil(t, n.LastReading)
	require.NotNil(t, n.LastUpdateAt)

	assert.Equal(t, 21.5, n.LastReading.Value)
	assert.Equal(t, t0, *n.LastUpdateAt)
	assert.Equal(t, StatusOK, n.Status)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_UpsertIsIdempotent(t *testing.T) {
	once := NewRegistry()
	twice := NewRegistry()
	rd := reading("n1", 22.0, t0)

	once.UpsertReading("n1", rd, t0.Add(time.Second))
	twice.UpsertReading("n1", rd, t0)
	twice.UpsertReading("n1", rd, t0.Add(time.Second))

	assert.Equal(t, once.Snapshot(), twice.Snapshot())
}

func TestRegistry_LastWriteWins(t *testing.T) {
	r := NewRegistry()
	r.UpsertReading("n1", reading("n1", 20, t0), t0)
	// Pozdě doručená starší zpráva se přijme tak, jak je.
	r.UpsertReading("n1", reading("n1", 19, t0.Add(-time.Minute)), t0.Add(time.Second))

	n, _ := r.Node("n1")
	assert.Equal(t, 19.0, n.LastReading.Value)
	assert.Equal(t, t0.Add(time.Second), *n.LastUpdateAt)
}

func TestRegistry_SetStatusKeepsReading(t *testing.T) {
	r := NewRegistry()
	r.UpsertReading("n1", reading("n1", 20, t0), t0)
	r.SetStatus("n1", StatusError, "offline", t0.Add(time.Minute))

	n, _ := r.Node("n1")
	assert.Equal(t, StatusError, n.Status)
	assert.Equal(t, "offline", n.StatusDetail)
	assert.Equal(t, 20.0, n.LastReading.Value)
	assert.Equal(t, t0, *n.LastUpdateAt)
	assert.Equal(t, t0.Add(time.Minute), *n.StatusAt)
}

func TestRegistry_SetStatusCreatesNodeWithoutReading(t *testing.T) {
	r := NewRegistry()
	r.SetStatus("fresh", StatusOK, "online", t0)

	n, ok := r.Node("fresh")
	require.True(t, ok)
	assert.Nil(t, n.LastReading)
	assert.Nil(t, n.LastUpdateAt)
	assert.Equal(t, StatusOK, n.Status)
}

func TestRegistry_GatewayStatus(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, "unknown", r.Snapshot().Gateway.Status)

	r.SetGatewayStatus("online", t0)

	snap := r.Snapshot()
	assert.Equal(t, "online", snap.Gateway.Status)
	assert.Equal(t, t0, *snap.Gateway.UpdatedAt)
	assert.Empty(t, snap.Nodes)
}

func TestRegistry_SnapshotIsDeepCopy(t *testing.T) {
	r := NewRegistry()
	r.UpsertReading("n1", reading("n1", 20, t0), t0)
	r.SetGatewayStatus("online", t0)

	snap := r.Snapshot()
	snap.Nodes[0].LastReading.Value = 999
	*snap.Nodes[0].LastUpdateAt = t0.Add(time.Hour)
	snap.Nodes[0].Status = StatusError
	*snap.Gateway.UpdatedAt = t0.Add(time.Hour)

	n, _ := r.Node("n1")
	assert.Equal(t, 20.0, n.LastReading.Value)
	assert.Equal(t, t0, *n.LastUpdateAt)
	assert.Equal(t, StatusOK, n.Status)
	assert.Equal(t, t0, *r.Snapshot().Gateway.UpdatedAt)
}

func TestRegistry_SnapshotSortedByNode(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		r.SetStatus(id, StatusUnknown, "", t0)
	}

	snap := r.Snapshot()
	require.Len(t, snap.Nodes, 3)
	assert.Equal(t, "a", snap.Nodes[0].NodeID)
	assert.Equal(t, "b", snap.Nodes[1].NodeID)
	assert.Equal(t, "c", snap.Nodes[2].NodeID)
}

func TestRegistry_MarkStaleRequiresUnchangedUpdate(t *testing.T) {
	r := NewRegistry()
	r.UpsertReading("n1", reading("n1", 20, t0), t0)

	assert.True(t, r.MarkStale("n1", t0, true))
	n, _ := r.Node("n1")
	assert.True(t, n.Stale)
	assert.Equal(t, StatusOK, n.Status, "stale flag must not touch status")

	// Mezitím přišla nová data -> příznak od monitoru se nepoužije.
	r.UpsertReading("n1", reading("n1", 21, t0.Add(time.Minute)), t0.Add(time.Minute))
	assert.False(t, r.MarkStale("n1", t0, true))

	n, _ = r.Node("n1")
	assert.False(t, n.Stale)
}

func TestRegistry_MarkStaleUnknownNode(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.MarkStale("ghost", t0, true))

	r.SetStatus("no-data", StatusOK, "", t0)
	assert.False(t, r.MarkStale("no-data", t0, true))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			node := fmt.Sprintf("n%d", i%4)
			for j := 0; j < 200; j++ {
				r.UpsertReading(node, reading(node, float64(j), t0), t0.Add(time.Duration(j)*time.Second))
				r.SetStatus(node, StatusOK, "online", t0)
				_ = r.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, r.Len())
}
