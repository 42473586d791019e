package telemetry

import (
	"sort"
	"sync"
	"time"
)

// Registry je živý pohled na stav všech uzlů a brány (v paměti).
// Historii drží jen úložiště, registr si pamatuje pouze poslední měření.
//
// Uzly vznikají líně při první zprávě a nikdy se nemažou. Allow-list neexistuje:
// jakýkoliv nodeID z topicu se prostě stane novým záznamem.
type Registry struct {
	// mu chrání nodes i gateway. Každá operace je jedna kritická sekce,
	// transakce přes více operací nepotřebujeme.
	mu      sync.RWMutex
	nodes   map[string]*NodeState
	gateway GatewayState
}

// NewRegistry vytvoří prázdný registr.
func NewRegistry() *Registry {
	return &Registry{
		nodes:   make(map[string]*NodeState),
		gateway: GatewayState{Status: string(StatusUnknown)},
	}
}

// node vrací záznam uzlu, případně ho založí. Volat jen se zamčeným mu.
func (r *Registry) node(nodeID string) *NodeState {
	n, ok := r.nodes[nodeID]
	if !ok {
		n = &NodeState{NodeID: nodeID, Status: StatusUnknown}
		r.nodes[nodeID] = n
	}
	return n
}

// UpsertReading uloží nové měření uzlu a nastaví stav na ok.
// Při souběhu vyhrává poslední zápis, nic se neslučuje.
func (r *Registry) UpsertReading(nodeID string, reading Reading, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.node(nodeID)
	rd := reading
	ts := now
	n.LastReading = &rd
	n.LastUpdateAt = &ts
	n.Status = StatusOK
	n.StatusAt = &ts
	n.StatusDetail = ""
	n.Stale = false
}

// SetStatus změní jen stav uzlu. LastReading ani LastUpdateAt se nemění.
func (r *Registry) SetStatus(nodeID string, status Status, detail string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.node(nodeID)
	ts := now
	n.Status = status
	n.StatusAt = &ts
	n.StatusDetail = detail
}

// SetGatewayStatus přepíše stav brány.
func (r *Registry) SetGatewayStatus(status string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := now
	r.gateway = GatewayState{Status: status, UpdatedAt: &ts}
}

// MarkStale nastaví informativní příznak Stale.
// Zápis proběhne jen tehdy, pokud se LastUpdateAt od monitorova čtení nezměnilo.
// Jinak mezitím přišla čerstvá data a příznak by byl neplatný.
func (r *Registry) MarkStale(nodeID string, observedUpdateAt time.Time, stale bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[nodeID]
	if !ok || n.LastUpdateAt == nil || !n.LastUpdateAt.Equal(observedUpdateAt) {
		return false
	}
	n.Stale = stale
	return true
}

// Node vrací kopii stavu jednoho uzlu.
func (r *Registry) Node(nodeID string) (NodeState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[nodeID]
	if !ok {
		return NodeState{}, false
	}
	return copyNode(n), true
}

// Len vrací počet známých uzlů.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Snapshot vrací hlubokou kopii celého registru seřazenou podle nodeID.
// Volající může s výsledkem dělat cokoliv, do registru se to nepropíše.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]NodeState, 0, len(r.nodes))
	for _, n := range r.nodes {
		nodes = append(nodes, copyNode(n))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].NodeID < nodes[j].NodeID })

	gw := r.gateway
	if gw.UpdatedAt != nil {
		ts := *gw.UpdatedAt
		gw.UpdatedAt = &ts
	}
	return Snapshot{Gateway: gw, Nodes: nodes}
}

func copyNode(n *NodeState) NodeState {
	c := *n
	if n.LastReading != nil {
		rd := *n.LastReading
		c.LastReading = &rd
	}
	if n.LastUpdateAt != nil {
		ts := *n.LastUpdateAt
		c.LastUpdateAt = &ts
	}
	if n.StatusAt != nil {
		ts := *n.StatusAt
		c.StatusAt = &ts
	}
	return c
}
