// Package mqttlog posílá logy služeb do MQTT, kde je sbírá log-collector.
package mqttlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher je podmnožina mqtt.Client, kterou writer potřebuje.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Writer implementuje rozhraní io.Writer.
// Vše, co se do něj zapíše, se odešle do MQTT na topic logs/<služba>.
type Writer struct {
	publisher Publisher
	topic     string
}

// NewWriter vytvoří novou instanci writeru pro danou službu.
func NewWriter(publisher Publisher, serviceName string) *Writer {
	return &Writer{
		publisher: publisher,
		topic:     Topic(serviceName),
	}
}

// Topic vrací topic, na který služba publikuje logy.
func Topic(serviceName string) string {
	return fmt.Sprintf("logs/%s", serviceName)
}

// Write je metoda vyžadovaná rozhraním io.Writer.
// slog ji zavolá pokaždé, když chce něco zalogovat.
func (w *Writer) Write(p []byte) (int, error) {
	// Payload musíme zkopírovat, protože 'p' se může změnit.
	// Koncový \n nepotřebujeme, collector si ho přidá sám.
	payload := make([]byte, len(p))
	copy(payload, p)
	if n := len(payload); n > 0 && payload[n-1] == '\n' {
		payload = payload[:n-1]
	}

	// Token.Wait() NEVOLÁME, aby logování nezpomalovalo aplikaci (fire-and-forget).
	w.publisher.Publish(w.topic, 0, false, payload)

	return len(p), nil
}

// ParseLevel převede LOG_LEVEL na slog.Level. Neznámá hodnota = info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger vytvoří JSON logger, který píše na stdout a do všech dalších writerů.
func NewLogger(level string, extra ...io.Writer) *slog.Logger {
	writers := append([]io.Writer{os.Stdout}, extra...)
	return newLogger(level, io.MultiWriter(writers...))
}

func newLogger(level string, out io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(level)}))
}
