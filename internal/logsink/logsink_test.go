package logsink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceFromTopic(t *testing.T) {
	cases := []struct {
		topic   string
		service string
		ok      bool
	}{
		{"logs/sensor-ingestor", "sensor-ingestor", true},
		{"logs/system-monitor/info", "system-monitor", true},
		{"logs", "", false},
		{"logs/", "", false},
		{"logs/..", "", false},
	}
	for _, tc := range cases {
		service, err := ServiceFromTopic(tc.topic)
		if tc.ok {
			require.NoError(t, err, tc.topic)
			assert.Equal(t, tc.service, service)
		} else {
			assert.True(t, errors.Is(err, ErrBadTopic), tc.topic)
		}
	}
}

func TestSink_AppendsLinesPerService(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	sink, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, sink.HandleMessage("logs/sensor-ingestor", []byte(`{"msg":"a"}`)))
	require.NoError(t, sink.HandleMessage("logs/sensor-ingestor", []byte("{\"msg\":\"b\"}\n")))
	require.NoError(t, sink.HandleMessage("logs/system-monitor", []byte(`{"msg":"c"}`)))

	data, err := os.ReadFile(filepath.Join(dir, "sensor-ingestor.log"))
	require.NoError(t, err)
	assert.Equal(t, "{\"msg\":\"a\"}\n{\"msg\":\"b\"}\n", string(data))

	data, err = os.ReadFile(sink.Path("system-monitor"))
	require.NoError(t, err)
	assert.Equal(t, "{\"msg\":\"c\"}\n", string(data))
}

func TestSink_BadTopicWritesNothing(t *testing.T) {
	dir := t.TempDir()
	sink, err := New(dir)
	require.NoError(t, err)

	err = sink.HandleMessage("logs", []byte("x"))
	assert.True(t, errors.Is(err, ErrBadTopic))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
