package telemetry

import "strings"

const (
	topicRoot     = "sensors"
	topicGateway  = "gateway"
	segmentData   = "data"
	segmentStatus = "status"
)

// Classify rozebere topic na typ události.
// Podporované tvary:
//
//	sensors/gateway/status -> KindGatewayStatus
//	sensors/<id>/data      -> KindNodeData
//	sensors/<id>/status    -> KindNodeStatus
//
// Cokoliv jiného je KindUnknown. Funkce nemá vedlejší efekty a nikdy nepanikaří.
func Classify(topic string, payload []byte) TopicEvent {
	unknown := TopicEvent{Kind: KindUnknown, Payload: payload}

	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != topicRoot || parts[1] == "" {
		return unknown
	}

	// Gateway má přednost: "sensors/gateway/status" není status uzlu jménem "gateway".
	if parts[1] == topicGateway && parts[2] == segmentStatus {
		return TopicEvent{Kind: KindGatewayStatus, Payload: payload}
	}

	switch parts[2] {
	case segmentData:
		return TopicEvent{Kind: KindNodeData, NodeID: parts[1], Payload: payload}
	case segmentStatus:
		return TopicEvent{Kind: KindNodeStatus, NodeID: parts[1], Payload: payload}
	default:
		return unknown
	}
}
