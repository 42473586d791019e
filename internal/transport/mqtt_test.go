package transport

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"templine/internal/metrics"
	"templine/internal/telemetry"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type call struct {
	topic   string
	payload string
	at      time.Time
}

type recordingHandler struct {
	calls []call
	err   error
}

func (r *recordingHandler) HandleMessage(topic string, payload []byte, receivedAt time.Time) error {
	r.calls = append(r.calls, call{topic: topic, payload: string(payload), at: receivedAt})
	return r.err
}

var t0 = time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)

func TestHandler_ForwardsMessageWithClock(t *testing.T) {
	h := &recordingHandler{}
	handler := Handler(h, func() time.Time { return t0 })

	handler(nil, fakeMessage{topic: "sensors/n1/data", payload: []byte(`{"temp":21}`)})

	require.Len(t, h.calls, 1)
	assert.Equal(t, call{topic: "sensors/n1/data", payload: `{"temp":21}`, at: t0}, h.calls[0])
}

func TestHandler_SwallowsProcessingErrors(t *testing.T) {
	h := &recordingHandler{err: telemetry.ErrUnknownTopic}
	handler := Handler(h, nil)

	assert.NotPanics(t, func() {
		handler(nil, fakeMessage{topic: "other/topic", payload: []byte("x")})
	})
	require.Len(t, h.calls, 1)
	assert.False(t, h.calls[0].at.IsZero())
}

type nopSink struct{}

func (nopSink) Store(telemetry.Reading) {}

func TestHandler_DrivesPipeline(t *testing.T) {
	registry := telemetry.NewRegistry()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	pipeline := telemetry.NewPipeline(registry, telemetry.NewValidator(telemetry.DefaultHighThreshold), nopSink{}, logger, metrics.New())
	handler := Handler(pipeline, func() time.Time { return t0 })

	handler(nil, fakeMessage{topic: "sensors/SensorNode_1/data", payload: []byte(`{"mac":"AA:BB","temp":23.5}`)})
	handler(nil, fakeMessage{topic: "sensors/gateway/status", payload: []byte(`"online"`)})

	node, ok := registry.Node("SensorNode_1")
	require.True(t, ok)
	require.NotNil(t, node.LastReading)
	assert.Equal(t, 23.5, node.LastReading.Value)
	assert.Equal(t, "online", registry.Snapshot().Gateway.Status)
}

func TestNewClientOptions(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	opts := NewClientOptions("tcp://localhost:1883", "test-client", logger)

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "localhost:1883", opts.Servers[0].Host)
	assert.Equal(t, "test-client", opts.ClientID)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.Order)
	assert.NotNil(t, opts.OnConnectionLost)
}
