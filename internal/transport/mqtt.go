// Package transport wraps github.com/eclipse/paho.mqtt.golang behind a
// small unidirectional interface: Events() yields raw (topic, payload)
// messages, Publish sends one. This replaces the original Python
// service's mutable on_message callback slot with a channel, per Design
// Notes §9 ("callbacks replaced by channels/streams").
package transport

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/mt-monitoring/alarmd/internal/config"
)

// RawMessage is one undecoded message off the wire.
type RawMessage struct {
	Topic     string
	Payload   []byte
	Timestamp time.Time
}

// Transport owns the MQTT client connection and the subscriber→Ingress
// handoff channel.
type Transport struct {
	client mqtt.Client
	events chan RawMessage
	cfg    config.TransportConfig
	log    *logrus.Entry
}

// New constructs a Transport from configuration. It does not connect;
// call Connect to do so.
func New(cfg config.TransportConfig, log *logrus.Entry) *Transport {
	t := &Transport{
		cfg:    cfg,
		log:    log,
		events: make(chan RawMessage, 1024),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(t.onConnect)
	opts.SetConnectionLostHandler(t.onConnectionLost)
	opts.SetDefaultPublishHandler(t.onMessage)

	t.client = mqtt.NewClient(opts)
	return t
}

// Connect dials the broker and subscribes to cfg.SubscribeTopic
// (default "sensors/+/data"). Per spec §5, the transport callback must
// not block on the store — onMessage only enqueues into Events().
func (t *Transport) Connect() error {
	if token := t.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to broker: %w", token.Error())
	}

	token := t.client.Subscribe(t.cfg.SubscribeTopic, 1, t.onMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", t.cfg.SubscribeTopic, token.Error())
	}
	return nil
}

// Events returns the channel of raw messages. The Ingress Decoder
// consumes this.
func (t *Transport) Events() <-chan RawMessage {
	return t.events
}

// Publish sends payload on topic, per spec §6's alarm-publish contract.
// Failures are transient-transport per spec §7; the caller logs and does
// not roll back any state transition.
func (t *Transport) Publish(topic string, payload []byte) error {
	token := t.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker, draining up to 250ms for in-flight
// acks the way the eclipse/paho client recommends.
func (t *Transport) Close() {
	t.client.Disconnect(250)
}

func (t *Transport) onMessage(_ mqtt.Client, msg mqtt.Message) {
	select {
	case t.events <- RawMessage{Topic: msg.Topic(), Payload: msg.Payload(), Timestamp: time.Now()}:
	default:
		t.log.WithField("topic", msg.Topic()).Warn("transport event buffer full, dropping message")
	}
}

func (t *Transport) onConnect(_ mqtt.Client) {
	t.log.WithField("broker", t.cfg.Broker).Info("connected to transport broker")
}

func (t *Transport) onConnectionLost(_ mqtt.Client, err error) {
	t.log.WithError(err).Warn("transport connection lost, reconnect will be attempted")
}
