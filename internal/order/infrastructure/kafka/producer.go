package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer publishes order lifecycle events relayed from the outbox. Messages
// are keyed by order id so every event for one order lands on the same
// partition in commit order.
type Writer struct {
	log *slog.Logger
	w   *kafka.Writer
}

func NewWriter(log *slog.Logger, brokers []string) *Writer {
	return &Writer{
		log: log,
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           10 * time.Second,
		},
	}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if err := w.w.WriteMessages(ctx, msgs...); err != nil {
		w.log.Warn("kafka write failed", "messages", len(msgs), "err", err)
		return err
	}
	return nil
}

func (w *Writer) Close() error {
	return w.w.Close()
}
