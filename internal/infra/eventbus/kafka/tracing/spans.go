package tracing

import (
	"context"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// StartProducerSpan creates a new span for producing messages
func StartProducerSpan(ctx context.Context, topic string, tracer trace.Tracer) (context.Context, trace.Span) {
	return tracer.Start(ctx, "kafka.produce",
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(topic),
			semconv.MessagingOperationPublish,
		),
	)
}

// InjectTraceContext adds the current trace context to Kafka message headers
func InjectTraceContext(ctx context.Context, msg *sarama.ProducerMessage) {
	carrier := &MessageCarrier{Headers: msg.Headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	msg.Headers = carrier.Headers
}
