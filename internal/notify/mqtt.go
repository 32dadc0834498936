package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/unklstewy/aprs-notify/pkg/config"
)

// mqttClient is the part of mqtt.Client the notifier uses.
type mqttClient interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPayload is the JSON document published for each notification.
type MQTTPayload struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// MQTT publishes notifications to a broker topic, e.g. for a home
// automation dashboard.
type MQTT struct {
	client   mqttClient
	topic    string
	qos      byte
	retained bool
	timeout  time.Duration
	now      func() time.Time
}

// NewMQTT creates an MQTT notifier from configuration. The broker is not
// contacted until Init.
func NewMQTT(cfg config.MQTTConfig) *MQTT {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(false)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	return newMQTT(mqtt.NewClient(opts), cfg)
}

func newMQTT(client mqttClient, cfg config.MQTTConfig) *MQTT {
	return &MQTT{
		client:   client,
		topic:    cfg.Topic,
		qos:      cfg.QoS,
		retained: cfg.Retained,
		timeout:  10 * time.Second,
		now:      time.Now,
	}
}

// Init connects to the broker.
func (m *MQTT) Init(ctx context.Context) error {
	if err := waitToken(ctx, m.client.Connect(), m.timeout); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Notify publishes one notification as JSON.
func (m *MQTT) Notify(ctx context.Context, title, message string) error {
	payload, err := json.Marshal(MQTTPayload{
		Title:   title,
		Message: message,
		SentAt:  m.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("mqtt payload: %w", err)
	}

	if err := waitToken(ctx, m.client.Publish(m.topic, m.qos, m.retained, payload), m.timeout); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker, giving in-flight messages 250ms.
func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}

// waitToken waits for a paho token, the context or the timeout, whichever is first.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %v", timeout)
	}
}
