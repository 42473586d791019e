// Sensor Ingestor poslouchá teplotní telemetrii z MQTT, drží živý stav uzlů,
// ukládá měření do TimescaleDB/Valkey a vystavuje je přes HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"templine/internal/api"
	"templine/internal/config"
	"templine/internal/hoststats"
	"templine/internal/metrics"
	"templine/internal/mqttlog"
	"templine/internal/storage"
	"templine/internal/telemetry"
	"templine/internal/transport"
)

const serviceName = "sensor-ingestor"

func main() {
	// 1. Načtení Konfigurace
	cfg, err := config.LoadConfig(serviceName)
	if err != nil {
		slog.Error("Chybná konfigurace", "error", err)
		os.Exit(1)
	}

	// MQTT Client musí být inicializován DŘÍVE než Logger, pokud chceme logovat do MQTT.
	// Události samotného spojení proto logujeme jen na stdout.
	stdoutLogger := mqttlog.NewLogger(cfg.LogLevel)

	// Handler zpráv vznikne až s pipeline (potřebuje logger). OnConnect se volá až po Connect().
	var onMessage mqtt.MessageHandler
	opts := transport.NewClientOptions(cfg.MQTTBroker, cfg.MQTTClientID, stdoutLogger)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		transport.ResubscribeOnConnect(cfg.InputTopic, onMessage, stdoutLogger)(c)
	})
	client := mqtt.NewClient(opts)

	// --- SETUP LOGGERU ---
	// MultiWriter: Píše do obou (Stdout + MQTT)
	logger := mqttlog.NewLogger(cfg.LogLevel, mqttlog.NewWriter(client, serviceName))
	slog.SetDefault(logger)

	// 2. Úložiště
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		// Bez DB nemá smysl pokračovat -> Crash. Docker kontejner se restartuje a zkusí to znovu.
		logger.Error("Kritická chyba: Nelze se připojit k úložišti", "store", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// 3. Jádro (Wiring)
	m := metrics.New()
	registry := telemetry.NewRegistry()
	writer := storage.NewAsyncWriter(store, cfg.StoreQueueSize, cfg.StoreTimeout, logger, m)
	pipeline := telemetry.NewPipeline(registry, telemetry.NewValidator(cfg.HighTempThreshold), writer, logger, m)
	monitor := telemetry.NewMonitor(registry, telemetry.MonitorConfig{
		Threshold: cfg.StaleThreshold,
		Interval:  cfg.StaleInterval,
	}, logger, m)
	onMessage = transport.Handler(pipeline, time.Now)

	// 4. Goroutiny na pozadí. Writer musí po zrušení ctx dopsat frontu, proto WaitGroup.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		writer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		hoststats.Collector{}.Run(ctx, cfg.MonitorInterval, logger, func(s hoststats.Stats) {
			hoststats.Record(m, s)
		})
	}()

	// 5. HTTP API (+ /health, /metrics)
	handler := api.NewAPIHandler(store, registry, m.Handler(), logger)
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("HTTP server běží", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server spadl", "error", err)
		}
	}()

	// 6. Připojení k MQTT. Subscribe proběhne v OnConnect handleru (i po reconnectu).
	if err := transport.Connect(client); err != nil {
		logger.Error("Fatal MQTT Error", "error", err)
		os.Exit(1)
	}
	logger.Info("Připojeno k MQTT", "broker", cfg.MQTTBroker, "topic", cfg.InputTopic)

	// 7. Graceful Shutdown (Čekání na signál ukončení)
	// Blokujeme hlavní vlákno, dokud nepřijde SIGINT (Ctrl+C) nebo SIGTERM (Docker stop).
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Ukončuji službu...")

	// Nejdřív zastavíme příjem zpráv, pak necháme writer dopsat frontu.
	client.Disconnect(250)
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server se neukončil čistě", "error", err)
	}
}

// openStore vybere úložiště podle STORE. Vrací i funkci pro uzavření spojení.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		return storage.NewMemoryStore(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	repo, err := storage.NewRepository(connectCtx, cfg.PostgresURL, cfg.ValkeyAddr)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo.Close, nil
}
