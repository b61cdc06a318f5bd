package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"surfsup-server/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DatasetRefresh is published by whoever owns the climate store after reloading it.
type DatasetRefresh struct {
	Source      string    `json:"source"`
	MaxDate     string    `json:"max_date,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

type Subscriber struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	handler func(refresh DatasetRefresh) error
}

// SetMessageHandler sets the handler called for each valid refresh notification.
// Set it before Connect so messages queued by the broker are not dropped.
func (s *Subscriber) SetMessageHandler(handler func(refresh DatasetRefresh) error) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

func NewSubscriber(cfg config.Config, logger *slog.Logger) (*Subscriber, error) {
	if strings.TrimSpace(cfg.MQTTBroker) == "" {
		return nil, errors.New("mqtt: broker is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Subscriber{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// A clean session loses subscriptions on reconnect, so resubscribe every time.
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		go func() {
			if err := s.subscribe(); err != nil {
				logger.Error("mqtt subscribe failed", "topic", cfg.MQTTTopic, "error", err)
			}
		}()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	return s, nil
}

// Connect establishes the connection to the broker. Subscribing to the refresh topic
// happens in the on-connect callback.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("subscriber stopped")
		default:
		}
	}
}

func (s *Subscriber) subscribe() error {
	if !s.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := s.cfg.MQTTTopic
	qos := byte(1) // At least once delivery

	messageHandler := func(client mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	}

	token := s.client.Subscribe(topic, qos, messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var refresh DatasetRefresh
	if err := json.Unmarshal(payload, &refresh); err != nil {
		s.logger.Warn("failed to parse refresh message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	if err := validateRefresh(refresh); err != nil {
		s.logger.Warn("invalid refresh message",
			"topic", topic,
			"source", refresh.Source,
			"error", err,
		)
		return
	}

	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()
	if handler == nil {
		return
	}

	if err := handler(refresh); err != nil {
		s.logger.Error("message handler failed",
			"topic", topic,
			"source", refresh.Source,
			"error", err,
		)
		return
	}
	s.logger.Info("dataset refresh processed",
		"source", refresh.Source,
		"max_date", refresh.MaxDate,
		"refreshed_at", refresh.RefreshedAt,
	)
}

func validateRefresh(r DatasetRefresh) error {
	if strings.TrimSpace(r.Source) == "" {
		return fmt.Errorf("source is required")
	}
	if r.RefreshedAt.IsZero() {
		return fmt.Errorf("refreshed_at is required")
	}
	if r.MaxDate != "" {
		if _, err := time.Parse("2006-01-02", r.MaxDate); err != nil {
			return fmt.Errorf("max_date %q is not YYYY-MM-DD", r.MaxDate)
		}
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Status is "connected" or "disconnected", for health reporting.
func (s *Subscriber) Status() string {
	if s.IsConnected() {
		return "connected"
	}
	return "disconnected"
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.MQTTTopic)
		token.WaitTimeout(2 * time.Second)
	}

	// Disconnect without holding s.mu to avoid lock contention/deadlocks.
	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
