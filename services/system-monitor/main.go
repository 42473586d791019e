// System Monitor hlásí stav brány: každý interval pošle heartbeat se statistikami hostitele
// na sensors/gateway/status. Při pádu za něj broker pošle "offline" (Last Will).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"templine/internal/config"
	"templine/internal/hoststats"
	"templine/internal/mqttlog"
	"templine/internal/transport"
)

const serviceName = "system-monitor"

// Jak dlouho čekáme na odeslání heartbeatu.
const publishTimeout = 5 * time.Second

func main() {
	// 1. Načtení Konfigurace
	cfg, err := config.LoadConfig(serviceName)
	if err != nil {
		slog.Error("Chybná konfigurace", "error", err)
		os.Exit(1)
	}
	stdoutLogger := mqttlog.NewLogger(cfg.LogLevel)

	// 2. Konfigurace MQTT Klienta
	// Retained zprávy: nový odběratel hned ví, jestli brána žije.
	opts := transport.NewClientOptions(cfg.MQTTBroker, cfg.MQTTClientID, stdoutLogger)
	opts.SetBinaryWill(hoststats.GatewayStatusTopic, hoststats.OfflinePayload(), 1, true)
	client := mqtt.NewClient(opts)

	// Připojení k brokeru (blokující operace s Tokenem)
	if err := transport.Connect(client); err != nil {
		stdoutLogger.Error("Selhalo připojení k MQTT", "error", err)
		os.Exit(1) // Bez MQTT nemá smysl běžet
	}

	logger := mqttlog.NewLogger(cfg.LogLevel, mqttlog.NewWriter(client, serviceName))
	slog.SetDefault(logger)
	logger.Info("Startuji System Monitor", "interval", cfg.MonitorInterval)

	// 3. Handling systémových signálů (Graceful Shutdown)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publish := func(status string, stats hoststats.Stats) {
		payload, err := hoststats.HeartbeatPayload(status, time.Now(), stats)
		if err != nil {
			logger.Error("Chyba při serializaci heartbeatu", "error", err)
			return
		}
		token := client.Publish(hoststats.GatewayStatusTopic, 1, true, payload)
		if !token.WaitTimeout(publishTimeout) {
			logger.Error("Heartbeat se nepodařilo odeslat včas", "timeout", publishTimeout)
			return
		}
		if err := token.Error(); err != nil {
			logger.Error("Heartbeat se nepodařilo odeslat", "error", err)
			return
		}
		logger.Debug("Heartbeat odeslán", "topic", hoststats.GatewayStatusTopic, "cpu", stats.CPULoad)
	}

	// 4. Hlavní smyčka. První měření proběhne hned, nechceme čekat celý interval.
	hoststats.Collector{}.Run(ctx, cfg.MonitorInterval, logger, func(s hoststats.Stats) {
		publish(hoststats.StatusOnline, s)
	})

	// Slušné rozloučení: LWT se při čistém odpojení neposílá, offline pošleme sami.
	logger.Info("Přijat signál ukončení, vypínám...")
	token := client.Publish(hoststats.GatewayStatusTopic, 1, true, hoststats.OfflinePayload())
	token.WaitTimeout(publishTimeout)
	client.Disconnect(250)
}
