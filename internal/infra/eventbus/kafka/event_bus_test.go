package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/events"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

func testConfig() *Config {
	return &Config{
		Brokers:               []string{"localhost:9092"},
		SessionLifecycleTopic: "scraping-sessions",
		RecordProgressTopic:   "scraping-progress",
		ErrorsTopic:           "scraping-errors",
		ClientID:              "test-client",
	}
}

func newTestBus(t *testing.T, producer sarama.SyncProducer) *EventBus {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelDebug, "test", nil)
	bus, err := NewEventBus(producer, testConfig(), log, nil, noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)
	return bus
}

func sessionSnapshot() scraping.Snapshot {
	session := scraping.NewSession(
		enforcement.AgencyHSE,
		enforcement.TypeCase,
		scraping.NewPageCursor(1, 10, enforcement.HSEDatabaseConvictions, ""),
		"tester",
	)
	return session.Snapshot()
}

func TestEventBusPublishRoutesByEventType(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "scraping-sessions", msg.Topic)

		raw, err := msg.Value.Encode()
		require.NoError(t, err)
		var wire envelopeWire
		require.NoError(t, json.Unmarshal(raw, &wire))
		assert.Equal(t, scraping.EventTypeSessionCreated, wire.Type)
		return nil
	})
	bus := newTestBus(t, producer)

	event := scraping.NewSessionCreatedEvent(sessionSnapshot())
	err := bus.Publish(context.Background(), events.EventEnvelope{
		Type:      event.EventType(),
		Timestamp: time.Now(),
		Payload:   event,
	})
	require.NoError(t, err)
}

func TestEventBusPublishUsesSessionKey(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "scraping-progress", msg.Topic)
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "session-123", string(key))
		return nil
	})
	bus := newTestBus(t, producer)

	snapshot := sessionSnapshot()
	event := scraping.NewRecordProcessedEvent(snapshot, scraping.OutcomeCreated, scraping.ItemSummary{NaturalKey: "HSE-1"})
	err := bus.Publish(context.Background(), events.EventEnvelope{
		Type:      event.EventType(),
		Timestamp: time.Now(),
		Payload:   event,
	}, events.WithKey("session-123"))
	require.NoError(t, err)
}

func TestEventBusPublishUnknownEventType(t *testing.T) {
	bus := newTestBus(t, mocks.NewSyncProducer(t, nil))

	err := bus.Publish(context.Background(), events.EventEnvelope{Type: events.EventType("Mystery")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no topic mapped")
}

func TestEventBusPublishProducerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errors.New("broker unavailable"))
	bus := newTestBus(t, producer)

	event := scraping.NewScrapeErrorEvent(sessionSnapshot().SessionID, enforcement.AgencyHSE, "list", "503")
	err := bus.Publish(context.Background(), events.EventEnvelope{
		Type:      event.EventType(),
		Timestamp: time.Now(),
		Payload:   event,
	})
	require.Error(t, err)
}

// MockEventBus is a manual mock implementation of events.EventBus.
type MockEventBus struct {
	publishFunc func(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error
}

func (m *MockEventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	return m.publishFunc(ctx, event, opts...)
}

func (m *MockEventBus) Close() error { return nil }

func TestDomainEventPublisherWrapsEvent(t *testing.T) {
	snapshot := sessionSnapshot()
	event := scraping.NewSessionCompletedEvent(snapshot)

	bus := &MockEventBus{
		publishFunc: func(_ context.Context, evt events.EventEnvelope, opts ...events.PublishOption) error {
			assert.Equal(t, event.EventType(), evt.Type)
			assert.Equal(t, event.OccurredAt(), evt.Timestamp)
			assert.Equal(t, event, evt.Payload)

			var params events.PublishParams
			for _, opt := range opts {
				opt(&params)
			}
			assert.Equal(t, snapshot.SessionID.String(), params.Key)
			return nil
		},
	}

	publisher := NewDomainEventPublisher(bus)
	err := publisher.PublishDomainEvent(context.Background(), event,
		events.WithKey(snapshot.SessionID.String()))
	require.NoError(t, err)
}

func TestDomainEventPublisherPropagatesError(t *testing.T) {
	bus := &MockEventBus{
		publishFunc: func(context.Context, events.EventEnvelope, ...events.PublishOption) error {
			return errors.New("publish failed")
		},
	}

	publisher := NewDomainEventPublisher(bus)
	err := publisher.PublishDomainEvent(context.Background(),
		scraping.NewSessionCompletedEvent(sessionSnapshot()))
	require.Error(t, err)
}
