// Package notify publishes failed work units to Kafka so that alerting can
// be handled outside the harvest run.
package notify

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/logger"
)

// Event describes one failed work unit
type Event struct {
	RunID      string       `json:"run_id"`
	AccountID  string       `json:"account_id"`
	Report     string       `json:"report"`
	RequestID  string       `json:"request_id,omitempty"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Errors     []EventError `json:"errors,omitempty"`
	Attempts   int          `json:"attempts"`
	Structural bool         `json:"structural"`
	Time       time.Time    `json:"time"`
}

// EventError is one sub-error of a failed request
type EventError struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Publisher sends failure events
type Publisher interface {
	Publish(ctx context.Context, events []Event) error
	Close() error
}

// Nop discards events
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, []Event) error { return nil }

// Close implements Publisher
func (Nop) Close() error { return nil }

// KafkaPublisher sends one message per event, keyed by account
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaConfig returns the producer configuration used for events
func NewKafkaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Compression = sarama.CompressionLZ4
	config.ClientID = "adharvest"
	return config
}

// NewKafkaPublisher connects a sync producer to brokers
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaConfig())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create kafka producer").
			WithDetail("brokers", brokers)
	}
	return NewKafkaPublisherFromProducer(producer, topic), nil
}

// NewKafkaPublisherFromProducer wraps an existing producer
func NewKafkaPublisherFromProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger.With(zap.String("component", "kafka_notifier")),
	}
}

// Publish sends events in a single round trip
func (p *KafkaPublisher) Publish(_ context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(events))
	for _, ev := range events {
		payload, err := gojson.Marshal(ev)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode failure event")
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(ev.AccountID),
			Value: sarama.ByteEncoder(payload),
			Headers: []sarama.RecordHeader{
				{Key: []byte("run_id"), Value: []byte(ev.RunID)},
				{Key: []byte("report"), Value: []byte(ev.Report)},
			},
		})
	}

	if err := p.producer.SendMessages(msgs); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to publish failure events").
			WithDetail("topic", p.topic)
	}

	p.logger.Info("failure events published", zap.String("topic", p.topic), zap.Int("count", len(msgs)))
	return nil
}

// Close closes the producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
