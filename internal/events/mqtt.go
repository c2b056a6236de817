package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// MQTTConfig holds the broker settings for the publisher.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// MQTTPublisher publishes events as JSON to <prefix>/<collection>/<type>.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// NewMQTTPublisher connects to the broker and returns a publisher.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return newMQTTPublisher(client, cfg.TopicPrefix, cfg.QoS), nil
}

func newMQTTPublisher(client mqtt.Client, prefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		qos:    qos,
	}
}

// Topic returns the topic an event is published on.
func (p *MQTTPublisher) Topic(event Event) string {
	parts := []string{event.Collection, string(event.Type)}
	if p.prefix != "" {
		parts = append([]string{p.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

// Publish sends the event and waits for the broker to acknowledge it or ctx to end.
func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	token := p.client.Publish(p.Topic(event), p.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker, allowing in-flight work 250ms to finish.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
