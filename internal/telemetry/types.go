// Package telemetry obsahuje jádro zpracování teplotní telemetrie:
// klasifikaci MQTT topiců, validaci a normalizaci payloadů, registr stavu uzlů
// a hlídání "zatuchlých" (stale) uzlů.
//
// Balíček nedělá žádné síťové IO. Transport (MQTT), úložiště (Postgres/Valkey)
// i HTTP API jsou volající nebo kolaborantí přes úzká rozhraní.
package telemetry

import "time"

// Reading je kanonické (normalizované) měření teploty jednoho uzlu.
// Tuto strukturu ukládáme do DB a vracíme přes API.
type Reading struct {
	// NodeID: identifikátor uzlu z topicu (sensors/<NodeID>/data).
	NodeID string `json:"node_id"`

	// DeviceID: identifikátor, který posílá samotný senzor v payloadu (typicky MAC adresa).
	DeviceID string `json:"mac"`

	// Value: naměřená teplota ve °C. Vždy konečné číslo (žádné NaN/Inf).
	Value float64 `json:"temperature"`

	// ObservedAt: čas zachycení zprávy. Vždy UTC, zaokrouhleno na mikrosekundy (přesnost timestamptz).
	ObservedAt time.Time `json:"timestamp"`
}

// Status je stav uzlu, jak ho vidí registr.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusStale   Status = "stale"
)

// NodeState drží poslední známý stav jednoho uzlu.
type NodeState struct {
	NodeID string `json:"node_id"`

	// LastReading a LastUpdateAt jsou nil, dokud uzel neposlal první validní data.
	// Pointer místo nulové hodnoty: 0 °C je platná teplota, ne "nic".
	LastReading  *Reading   `json:"last_reading"`
	LastUpdateAt *time.Time `json:"last_update_at"`

	Status Status `json:"status"`

	// StatusAt je čas poslední změny Status (data i status zprávy).
	StatusAt *time.Time `json:"status_at"`

	// StatusDetail je surový text posledního status hlášení (např. "offline").
	StatusDetail string `json:"status_detail,omitempty"`

	// Stale je odvozený, čistě informativní příznak nastavovaný monitorem.
	// Status se kvůli němu nemění.
	Stale bool `json:"stale"`
}

// GatewayState je stav brány (singleton).
type GatewayState struct {
	Status    string     `json:"status"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Snapshot je neměnná kopie celého registru pro čtení (API, monitor).
type Snapshot struct {
	Gateway GatewayState `json:"gateway"`
	Nodes   []NodeState  `json:"nodes"`
}

// EventKind určuje, o jaký typ zprávy jde podle topicu.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindNodeData
	KindNodeStatus
	KindGatewayStatus
)

func (k EventKind) String() string {
	switch k {
	case KindNodeData:
		return "node_data"
	case KindNodeStatus:
		return "node_status"
	case KindGatewayStatus:
		return "gateway_status"
	default:
		return "unknown"
	}
}

// TopicEvent je přechodná struktura: vznikne klasifikací a hned se zpracuje.
type TopicEvent struct {
	Kind    EventKind
	NodeID  string // prázdné pro gateway a unknown
	Payload []byte
}
