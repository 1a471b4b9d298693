package tracing

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const TraceparentHeader = "traceparent"

// Traceparent renders the W3C traceparent of the span in ctx, or "" when
// ctx carries no sampled span.
func Traceparent(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier[TraceparentHeader]
}

// KafkaHeaders converts string headers into kafka headers, appending the
// traceparent when present.
func KafkaHeaders(headers map[string]string, traceparent string) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers)+1)
	for k, v := range headers {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	if traceparent != "" {
		out = append(out, kafka.Header{Key: TraceparentHeader, Value: []byte(traceparent)})
	}
	return out
}
