package telemetry

import (
	"log/slog"
	"time"

	"templine/internal/metrics"
)

// Sink je perzistence z pohledu pipeline: "ulož a nečekej".
// Implementace nesmí blokovat (viz storage.AsyncWriter). Chyby zápisu si řeší sama.
type Sink interface {
	Store(reading Reading)
}

// Pipeline skládá klasifikaci, validaci, registr a perzistenci dohromady.
// Jediný vstupní bod je HandleMessage, který volá transportní adaptér.
type Pipeline struct {
	registry  *Registry
	validator *Validator
	sink      Sink
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewPipeline je konstruktor (Dependency Injection).
func NewPipeline(registry *Registry, validator *Validator, sink Sink, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		registry:  registry,
		validator: validator,
		sink:      sink,
		logger:    logger,
		metrics:   m,
	}
}

// HandleMessage zpracuje jednu zprávu (topic, payload) přijatou v čase receivedAt.
//
// Vrací ErrUnknownTopic, *DecodeError nebo *ValidationError pro zahozené zprávy.
// Chyba se už zalogovala, volající ji může jen započítat. Žádná chyba není fatální.
func (p *Pipeline) HandleMessage(topic string, payload []byte, receivedAt time.Time) error {
	event := Classify(topic, payload)
	p.metrics.MessagesReceived.WithLabelValues(event.Kind.String()).Inc()

	switch event.Kind {
	case KindGatewayStatus:
		status := decodeStatus(event.Payload)
		p.registry.SetGatewayStatus(status, receivedAt)
		p.logger.Info("Stav brány", "status", status)
		return nil

	case KindNodeStatus:
		detail := decodeStatus(event.Payload)
		status := parseStatus(detail)
		p.registry.SetStatus(event.NodeID, status, detail, receivedAt)
		p.logger.Info("Stav uzlu", "node", event.NodeID, "status", status, "detail", detail)
		return nil

	case KindNodeData:
		return p.handleData(event, receivedAt)

	default:
		p.drop(ErrUnknownTopic, "Neznámý topic, zahazuji", "topic", topic)
		return ErrUnknownTopic
	}
}

func (p *Pipeline) handleData(event TopicEvent, receivedAt time.Time) error {
	result, err := p.validator.Validate(event.NodeID, event.Payload, receivedAt)
	if err != nil {
		p.drop(err, "Zpráva odmítnuta", "node", event.NodeID, "payload", string(event.Payload), "důvod", err)
		return err
	}

	if result.Fault {
		// Senzor hlásí poruchu: jen stav, žádné měření, nic do DB.
		p.registry.SetStatus(event.NodeID, StatusError, result.FaultDetail, receivedAt)
		p.logger.Warn("Senzor hlásí chybu", "node", event.NodeID, "detail", result.FaultDetail)
		return nil
	}

	reading := result.Reading
	if result.High {
		p.metrics.HighTemperature.Inc()
		p.logger.Warn("Vysoká teplota", "node", event.NodeID, "temp", reading.Value)
	}

	p.registry.UpsertReading(event.NodeID, reading, receivedAt)

	// Fire-and-forget. Pokud zápis selže, registr zůstává (živý pohled), DB dožene příští měření.
	p.sink.Store(reading)

	p.logger.Debug("Měření zpracováno", "node", event.NodeID, "mac", reading.DeviceID, "temp", reading.Value)
	return nil
}

func (p *Pipeline) drop(err error, msg string, args ...any) {
	p.metrics.MessagesDropped.WithLabelValues(DropReason(err)).Inc()
	p.logger.Warn(msg, args...)
}
