package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CloudEvent is the CloudEvents v1.0 envelope used on every topic.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         *string     `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data,omitempty"`
}

const (
	cloudEventSpecVersion     = "1.0"
	cloudEventDataContentType = "application/json"
)

// Producer publishes CloudEvents to Kafka via a sarama SyncProducer.
type Producer struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
	source   string
}

// NewProducer creates a Kafka producer. source identifies this service in
// the CloudEvents envelope, e.g. "/auth-service".
func NewProducer(brokers []string, logger *zap.Logger, source string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &Producer{producer: producer, logger: logger, source: source}, nil
}

// Publish wraps payload in a CloudEvent and sends it to topic. subject, when
// non-empty, becomes the partition key so events for one entity stay ordered.
func (p *Producer) Publish(ctx context.Context, topic, eventType, subject string, payload interface{}) error {
	event := CloudEvent{
		SpecVersion:     cloudEventSpecVersion,
		ID:              uuid.NewString(),
		Source:          p.source,
		Type:            eventType,
		DataContentType: cloudEventDataContentType,
		Time:            time.Now().UTC(),
		Data:            payload,
	}
	if subject != "" {
		event.Subject = &subject
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal CloudEvent: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(eventJSON),
	}
	if subject != "" {
		msg.Key = sarama.StringEncoder(subject)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("Failed to send CloudEvent to Kafka",
			zap.Error(err),
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.String("event_id", event.ID),
		)
		return fmt.Errorf("failed to send CloudEvent to Kafka: %w", err)
	}

	p.logger.Debug("CloudEvent sent to Kafka",
		zap.String("topic", topic),
		zap.String("event_type", eventType),
		zap.String("event_id", event.ID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka producer", zap.Error(err))
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
