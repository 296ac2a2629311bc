package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/shaunagostinho/vedirect-dash/internal/logging"
	"github.com/shaunagostinho/vedirect-dash/internal/metrics"
	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

var (
	ErrNotConnected   = errors.New("publish: not connected")
	ErrPublishTimeout = errors.New("publish: timed out")
)

// Config holds MQTT publisher configuration.
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Broker is the broker URI (e.g., tcp://localhost:1883).
	Broker   string `yaml:"broker" json:"broker" validate:"required_if=Enabled true"`
	ClientID string `yaml:"client_id" json:"clientId"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`

	// TopicPrefix is the first topic level; records go to <prefix>/<device>/<class>.
	TopicPrefix string `yaml:"topic_prefix" json:"topicPrefix"`
	QOS         int    `yaml:"qos" json:"qos" validate:"min=0,max=2"`
	Retain      bool   `yaml:"retain" json:"retain"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connectTimeout"`
}

// DefaultConfig returns a default MQTT configuration.
func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		ClientID:       fmt.Sprintf("vedirect-dash-%d", time.Now().Unix()),
		TopicPrefix:    "vedirect",
		ConnectTimeout: 10 * time.Second,
	}
}

// Message is the JSON payload of every publish.
type Message struct {
	Device  string           `json:"device"`
	Class   string           `json:"class"`
	Stamp   int64            `json:"stamp"` // unix ms
	Summary vedirect.Summary `json:"summary"`
	Record  vedirect.Record  `json:"record"`
}

// Publisher sends decoded records to an MQTT broker.
type Publisher struct {
	cfg    Config
	client mqtt.Client
	log    *zap.Logger
}

// Connect dials the broker and returns a publisher that reconnects on its own.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "vedirect"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	log := logging.Component("mqtt").With(zap.String("broker", cfg.Broker))

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("publish: connect %s: %w", cfg.Broker, err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return newPublisher(cfg, client, log), nil
}

func newPublisher(cfg Config, client mqtt.Client, log *zap.Logger) *Publisher {
	return &Publisher{cfg: cfg, client: client, log: log}
}

// Publish sends rec as JSON to <prefix>/<device>/<class>.
func (p *Publisher) Publish(device string, rec vedirect.Record) error {
	if !p.client.IsConnected() {
		metrics.IncPublish(metrics.StatusFailed)
		return ErrNotConnected
	}

	payload, err := Payload(device, rec, time.Now())
	if err != nil {
		metrics.IncPublish(metrics.StatusFailed)
		return err
	}

	topic := Topic(p.cfg.TopicPrefix, device, rec.Class())
	token := p.client.Publish(topic, byte(p.cfg.QOS), p.cfg.Retain, payload)
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		metrics.IncPublish(metrics.StatusFailed)
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		metrics.IncPublish(metrics.StatusFailed)
		return fmt.Errorf("publish: %s: %w", topic, err)
	}
	metrics.IncPublish(metrics.StatusSuccess)
	return nil
}

// Close disconnects, allowing in-flight messages 250ms to complete.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// Topic builds <prefix>/<device>/<class>. MQTT wildcards and separators in
// the device name are replaced.
func Topic(prefix, device string, class vedirect.DeviceClass) string {
	device = topicEscaper.Replace(device)
	return strings.Join([]string{prefix, device, class.String()}, "/")
}

var topicEscaper = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")

// Payload encodes rec as a Message.
func Payload(device string, rec vedirect.Record, at time.Time) ([]byte, error) {
	msg := Message{
		Device:  device,
		Class:   rec.Class().String(),
		Stamp:   at.UnixMilli(),
		Summary: vedirect.Summarize(rec),
		Record:  rec,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("publish: encode %s: %w", device, err)
	}
	return data, nil
}
