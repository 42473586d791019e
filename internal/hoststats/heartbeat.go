package hoststats

import (
	"encoding/json"
	"time"
)

// Topic, na který brána hlásí svůj stav.
const GatewayStatusTopic = "sensors/gateway/status"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Heartbeat je payload stavové zprávy brány.
// Ingestor z něj čte jen pole "status", zbytek je informativní.
type Heartbeat struct {
	Status string    `json:"status"`
	At     time.Time `json:"timestamp"`
	Stats
}

// HeartbeatPayload vrací JSON heartbeat zprávy.
func HeartbeatPayload(status string, at time.Time, s Stats) ([]byte, error) {
	return json.Marshal(Heartbeat{Status: status, At: at.UTC(), Stats: s})
}

// OfflinePayload je poslední vůle (LWT): broker ji pošle, když brána zmizí bez rozloučení.
func OfflinePayload() []byte {
	return []byte(`{"status":"` + StatusOffline + `"}`)
}
