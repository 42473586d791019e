// Log Collector sbírá logy všech služeb z MQTT (logs/<služba>) a ukládá je do souborů.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"templine/internal/config"
	"templine/internal/logsink"
	"templine/internal/mqttlog"
	"templine/internal/transport"
)

const serviceName = "log-collector"

func main() {
	cfg, err := config.LoadConfig(serviceName)
	if err != nil {
		slog.Error("Chybná konfigurace", "error", err)
		os.Exit(1)
	}

	// Vlastní logy jen na stdout. Kdyby šly do MQTT, collector by sbíral sám sebe.
	logger := mqttlog.NewLogger(cfg.LogLevel)
	logger.Info("Startuji Log Collector", "dir", cfg.LogDir, "topic", cfg.LogTopic)

	sink, err := logsink.New(cfg.LogDir)
	if err != nil {
		logger.Error("Nelze připravit adresář pro logy", "error", err)
		os.Exit(1)
	}

	// Tato funkce se spustí pro KAŽDOU přijatou logovací zprávu z jakékoliv služby.
	onMessage := func(_ mqtt.Client, msg mqtt.Message) {
		if err := sink.HandleMessage(msg.Topic(), msg.Payload()); err != nil {
			logger.Warn("Log nelze uložit", "topic", msg.Topic(), "error", err)
		}
	}

	opts := transport.NewClientOptions(cfg.MQTTBroker, cfg.MQTTClientID, logger)
	opts.SetOnConnectHandler(transport.ResubscribeOnConnect(cfg.LogTopic, onMessage, logger))
	client := mqtt.NewClient(opts)

	if err := transport.Connect(client); err != nil {
		logger.Error("MQTT Connection failed", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(250)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Ukončuji Log Collector")
}
