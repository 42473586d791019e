package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
)

// decodeStatus vytáhne text stavu z payloadu status zprávy.
// Podporuje JSON string ("online"), JSON objekt s polem "status" a prostý text (online).
func decodeStatus(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(trimmed, &obj); err == nil && obj.Status != "" {
		return strings.TrimSpace(obj.Status)
	}

	return string(trimmed)
}

// parseStatus mapuje volný text ze senzoru na stav registru.
func parseStatus(text string) Status {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "ok", "online", "up", "connected":
		return StatusOK
	case "error", "fault", "failed", "offline", "down":
		return StatusError
	case "stale":
		return StatusStale
	default:
		return StatusUnknown
	}
}
