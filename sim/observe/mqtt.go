package observe

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dtnsim/dtnsim/sim/trace"
)

// DefaultTopicPrefix is the default MQTT topic prefix for feed records.
const DefaultTopicPrefix = "dtnsim"

const publishTimeout = 10 * time.Second

// PublishClient is the subset of paho.Client the publisher needs.
type PublishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// MQTTConfig holds the broker settings of a Publisher.
type MQTTConfig struct {
	// Broker is the MQTT broker URL (e.g., "tcp://localhost:1883").
	Broker string
	// ClientID defaults to "dtnsim-" followed by RunID.
	ClientID string
	// TopicPrefix defaults to DefaultTopicPrefix.
	TopicPrefix string
	// RunID separates concurrent runs on one broker.
	RunID string
	QoS   byte
}

// Publisher streams feed records to an MQTT broker. Each record is
// msgpack-encoded and published to "{prefix}/{runID}/{kind}".
type Publisher struct {
	client PublishClient
	cfg    MQTTConfig
	sent   int
	err    error
}

// NewPublisher wraps an already connected client.
func NewPublisher(client PublishClient, cfg MQTTConfig) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	return &Publisher{client: client, cfg: cfg}
}

// DialMQTT connects to cfg.Broker and returns a Publisher on the connection.
func DialMQTT(cfg MQTTConfig) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("broker URL is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "dtnsim-" + cfg.RunID
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetOrderMatters(true).
		SetKeepAlive(60 * time.Second)
	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return nil, errors.New("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	logrus.Infof("Publishing feed to %s under %s/%s", cfg.Broker, publisherPrefix(cfg), cfg.RunID)
	return NewPublisher(client, cfg), nil
}

func publisherPrefix(cfg MQTTConfig) string {
	if cfg.TopicPrefix == "" {
		return DefaultTopicPrefix
	}
	return cfg.TopicPrefix
}

// Topic returns the topic a record of kind k is published to.
func (p *Publisher) Topic(k trace.Kind) string {
	return p.cfg.TopicPrefix + "/" + p.cfg.RunID + "/" + string(k)
}

// Emit publishes one record. The first failure is kept and returned by
// Close; later records are discarded.
func (p *Publisher) Emit(rec trace.Record) {
	if p.err != nil {
		return
	}
	payload, err := msgpack.Marshal(&rec)
	if err != nil {
		p.fail(fmt.Errorf("encoding record %d: %w", p.sent, err))
		return
	}
	token := p.client.Publish(p.Topic(rec.Kind), p.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.fail(fmt.Errorf("publishing record %d: timeout", p.sent))
		return
	}
	if err := token.Error(); err != nil {
		p.fail(fmt.Errorf("publishing record %d: %w", p.sent, err))
		return
	}
	p.sent++
}

func (p *Publisher) fail(err error) {
	logrus.Warnf("MQTT feed stopped: %v", err)
	p.err = err
}

// Sent returns the number of records published.
func (p *Publisher) Sent() int { return p.sent }

// Close disconnects from the broker and reports the first publish failure.
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return p.err
}
