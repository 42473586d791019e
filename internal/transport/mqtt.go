// Package transport propojuje MQTT klienta (paho) se zpracováním zpráv.
package transport

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler zpracuje jednu přijatou zprávu. Implementuje ho telemetry.Pipeline.
type MessageHandler interface {
	HandleMessage(topic string, payload []byte, receivedAt time.Time) error
}

// Jak dlouho čekáme na potvrzení subscribe od brokera.
const subscribeTimeout = 10 * time.Second

// NewClientOptions vrací nastavení klienta s automatickým reconnectem a logováním výpadků.
func NewClientOptions(broker, clientID string, logger *slog.Logger) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOrderMatters(true) // callbacky chodí sériově, v pořadí doručení

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("Spojení s MQTT ztraceno", "broker", broker, "error", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Warn("Připojuji se znovu k MQTT", "broker", broker)
	})
	return opts
}

// Handler převede paho callback na volání MessageHandleru.
// Chyby zpracování už zalogovala pipeline, tady je jen zahodíme.
func Handler(h MessageHandler, now func() time.Time) mqtt.MessageHandler {
	if now == nil {
		now = time.Now
	}
	return func(_ mqtt.Client, msg mqtt.Message) {
		_ = h.HandleMessage(msg.Topic(), msg.Payload(), now())
	}
}

// Subscribe přihlásí odběr a počká na potvrzení brokera.
func Subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, handler)
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe %s: vypršel čas", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// ResubscribeOnConnect obnoví odběr po každém (re)connectu.
// Při clean session si broker odběry nepamatuje.
func ResubscribeOnConnect(topic string, handler mqtt.MessageHandler, logger *slog.Logger) mqtt.OnConnectHandler {
	return func(client mqtt.Client) {
		if err := Subscribe(client, topic, handler); err != nil {
			logger.Error("Subscribe selhal", "topic", topic, "error", err)
			return
		}
		logger.Info("Poslouchám na topicu", "topic", topic)
	}
}

// Connect připojí klienta a počká na výsledek.
func Connect(client mqtt.Client) error {
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("připojení k MQTT: %w", token.Error())
	}
	return nil
}
