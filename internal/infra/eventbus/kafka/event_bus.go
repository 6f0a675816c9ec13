// Package kafka provides a Kafka-based implementation of the event bus used to
// distribute scraping progress to downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"

	"github.com/regscan/enforcement-ingest/internal/domain/events"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/internal/infra/eventbus/kafka/tracing"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"

	"go.opentelemetry.io/otel/trace"
)

// BrokerMetrics defines metrics operations needed to monitor Kafka message
// handling.
type BrokerMetrics interface {
	IncMessagePublished(ctx context.Context, topic string)
	IncPublishError(ctx context.Context, topic string)
}

// Config contains settings for connecting to and interacting with Kafka
// brokers. It defines the topics and client identifier needed for routing.
type Config struct {
	// Brokers is a list of Kafka broker addresses to connect to.
	Brokers []string

	// SessionLifecycleTopic carries session created/completed/failed/stopped
	// events.
	SessionLifecycleTopic string
	// RecordProgressTopic carries per-record and per-batch progress events.
	RecordProgressTopic string
	// ErrorsTopic carries scrape error events.
	ErrorsTopic string

	// ClientID uniquely identifies this client to the Kafka cluster.
	ClientID string
}

var _ events.EventBus = (*EventBus)(nil)

// EventBus implements the publish side of the event bus contract on Kafka.
// Progress events are fire-and-forget from the engine's perspective; delivery
// is at-least-once and consumers dedupe on monotonic counters.
type EventBus struct {
	producer sarama.SyncProducer

	// Maps domain event types to Kafka topic names.
	topics map[events.EventType]string

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics BrokerMetrics
}

// NewEventBusFromConfig creates a Kafka event bus from the provided
// configuration.
func NewEventBusFromConfig(
	cfg *Config,
	log *logger.Logger,
	metrics BrokerMetrics,
	tracer trace.Tracer,
) (*EventBus, error) {
	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Partitioner = sarama.NewHashPartitioner
	producerConfig.ClientID = cfg.ClientID
	producerConfig.Version = sarama.V3_6_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, producerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return NewEventBus(producer, cfg, log, metrics, tracer)
}

// NewEventBus creates an event bus over an existing producer. Used directly by
// tests that supply a mock producer.
func NewEventBus(
	producer sarama.SyncProducer,
	cfg *Config,
	log *logger.Logger,
	metrics BrokerMetrics,
	tracer trace.Tracer,
) (*EventBus, error) {
	// Map domain events to their corresponding Kafka topics to enable
	// type-safe event routing.
	topicsMap := map[events.EventType]string{
		scraping.EventTypeSessionCreated:   cfg.SessionLifecycleTopic,
		scraping.EventTypeSessionCompleted: cfg.SessionLifecycleTopic,
		scraping.EventTypeSessionFailed:    cfg.SessionLifecycleTopic,
		scraping.EventTypeSessionStopped:   cfg.SessionLifecycleTopic,
		scraping.EventTypeRecordProcessed:  cfg.RecordProgressTopic,
		scraping.EventTypeBatchCompleted:   cfg.RecordProgressTopic,
		scraping.EventTypeScrapeError:      cfg.ErrorsTopic,
	}

	return &EventBus{
		producer: producer,
		topics:   topicsMap,
		logger:   log,
		tracer:   tracer,
		metrics:  metrics,
	}, nil
}

// envelopeWire is the serialized message shape on every topic.
type envelopeWire struct {
	Type      events.EventType `json:"type"`
	Timestamp int64            `json:"timestamp"`
	Payload   any              `json:"payload"`
}

// Publish sends a domain event to the Kafka topic mapped to its type. The
// session ID key keeps one session's events ordered within a partition.
func (k *EventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	topic, ok := k.topics[event.Type]
	if !ok {
		return fmt.Errorf("unknown event type '%s', no topic mapped", event.Type)
	}

	ctx, span := tracing.StartProducerSpan(ctx, topic, k.tracer)
	defer span.End()

	var pParams events.PublishParams
	for _, opt := range opts {
		opt(&pParams)
	}
	if pParams.Key != "" {
		event.Key = pParams.Key
		span.SetAttributes(attribute.String("event.key", event.Key))
	}

	msgBytes, err := json.Marshal(envelopeWire{
		Type:      event.Type,
		Timestamp: event.Timestamp.UnixNano(),
		Payload:   event.Payload,
	})
	if err != nil {
		span.RecordError(err)
		if k.metrics != nil {
			k.metrics.IncPublishError(ctx, topic)
		}
		return fmt.Errorf("failed to serialize payload for event %s: %w", event.Type, err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.Key), // Used for partition routing
		Value: sarama.ByteEncoder(msgBytes),
	}
	for key, value := range pParams.Headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, sarama.RecordHeader{
			Key:   []byte(key),
			Value: []byte(value),
		})
	}

	tracing.InjectTraceContext(ctx, kafkaMsg)

	partition, offset, sendErr := k.producer.SendMessage(kafkaMsg)
	if sendErr != nil {
		span.RecordError(sendErr)
		if k.metrics != nil {
			k.metrics.IncPublishError(ctx, topic)
		}
		return fmt.Errorf("failed to send message to kafka topic %s: %w", topic, sendErr)
	}

	if k.metrics != nil {
		k.metrics.IncMessagePublished(ctx, topic)
	}
	k.logger.Debug(ctx, "published message to Kafka",
		"topic", topic,
		"partition", partition,
		"offset", offset,
		"event_type", event.Type,
		"key", event.Key,
	)

	return nil
}

// Close shuts down the producer.
func (k *EventBus) Close() error { return k.producer.Close() }
