package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/signature"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/pkg/logging"
)

// WebhookProcessor applies gateway events to orders. Process reports what
// went wrong so callers can log it, but the HTTP layer acknowledges every
// delivery regardless.
type WebhookProcessor struct {
	log          *slog.Logger
	eventsSecret string
	orders       OrderPayments
	dedupe       Deduper
	failures     FailureLog
	tracer       trace.Tracer
	now          func() time.Time
}

func NewWebhookProcessor(log *slog.Logger, eventsSecret string, orders OrderPayments, dedupe Deduper, failures FailureLog) *WebhookProcessor {
	return &WebhookProcessor{
		log:          log,
		eventsSecret: eventsSecret,
		orders:       orders,
		dedupe:       dedupe,
		failures:     failures,
		tracer:       otel.Tracer("payment-webhook"),
		now:          time.Now,
	}
}

func (p *WebhookProcessor) Process(ctx context.Context, body []byte, checksumHeader, timestampHeader string) error {
	ctx, span := p.tracer.Start(ctx, "ProcessWebhook")
	defer span.End()

	ev, err := domain.ParseWebhookEvent(body)
	if err != nil {
		p.fail(ctx, span, domain.WebhookEvent{}, body, err)
		return err
	}
	txn := ev.Data.Transaction
	span.SetAttributes(
		attribute.String("webhook.event", ev.Event),
		attribute.String("payment.reference", txn.Reference),
		attribute.String("payment.transaction_id", txn.ID),
		attribute.String("payment.status", string(txn.Status)),
	)

	if err := p.verify(ev, checksumHeader, timestampHeader); err != nil {
		logging.Security(p.log).Error("webhook checksum rejected",
			"reference", txn.Reference, "transaction_id", txn.ID, "status", txn.Status, "err", err)
		p.fail(ctx, span, ev, body, err)
		return err
	}

	if ev.Event != domain.EventTransactionUpdated {
		p.log.Info("ignoring webhook event", "event", ev.Event)
		return nil
	}

	key := ""
	if p.dedupe != nil {
		key = p.dedupe.Key("webhook", txn.ID, string(txn.Status))
		first, err := p.dedupe.Claim(ctx, key)
		switch {
		case err != nil:
			// the database transaction remains authoritative
			p.log.Warn("webhook dedupe unavailable", "key", key, "err", err)
			key = ""
		case !first:
			p.log.Info("duplicate webhook delivery", "reference", txn.Reference, "transaction_id", txn.ID, "status", txn.Status)
			return nil
		}
	}

	if err := p.apply(ctx, txn); err != nil {
		if key != "" {
			if rerr := p.dedupe.Release(ctx, key); rerr != nil {
				p.log.Warn("failed to release webhook claim", "key", key, "err", rerr)
			}
		}
		p.fail(ctx, span, ev, body, err)
		return err
	}
	return nil
}

func (p *WebhookProcessor) verify(ev domain.WebhookEvent, checksumHeader, timestampHeader string) error {
	got := checksumHeader
	if got == "" {
		got = ev.Signature.Checksum
	}
	if got == "" {
		return fmt.Errorf("%w: no checksum supplied", domain.ErrInvalidChecksum)
	}
	ts := timestampHeader
	if ts == "" {
		ts = ev.Timestamp.String()
	}
	values, err := ev.SignedValues()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidChecksum, err)
	}
	if !signature.VerifyChecksum(got, values, ts, p.eventsSecret) {
		return domain.ErrInvalidChecksum
	}
	return nil
}

func (p *WebhookProcessor) apply(ctx context.Context, txn domain.Transaction) error {
	log := p.log.With("reference", txn.Reference, "transaction_id", txn.ID, "status", txn.Status)

	if txn.Reference == "" {
		return fmt.Errorf("%w: transaction has no reference", domain.ErrValidation)
	}

	switch {
	case txn.Status == domain.TransactionApproved:
		st, err := p.orders.MarkPaid(ctx, Approval{
			Reference:     txn.Reference,
			TransactionID: txn.ID,
			AmountInCents: txn.AmountInCents,
			Currency:      txn.Currency,
		})
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		if !st.Applied {
			log.Info("order already paid, approval ignored", "order_id", st.OrderID)
			return nil
		}
		if st.OrderTotal != txn.AmountInCents {
			logging.Security(p.log).Error("approved amount differs from order total",
				"reference", txn.Reference, "transaction_id", txn.ID, "order_id", st.OrderID,
				"order_total", st.OrderTotal, "approved_amount", txn.AmountInCents)
		}
		log.Info("order marked paid", "order_id", st.OrderID)

	case txn.Status.Failed():
		changed, err := p.orders.MarkFailed(ctx, txn.Reference, txn.ID)
		if err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		log.Info("payment failure applied", "changed", changed)

	default:
		log.Info("ignoring non-terminal transaction status")
	}
	return nil
}

func (p *WebhookProcessor) fail(ctx context.Context, span trace.Span, ev domain.WebhookEvent, body []byte, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	txn := ev.Data.Transaction
	p.log.Error("webhook processing failed",
		"event", ev.Event, "reference", txn.Reference, "transaction_id", txn.ID, "status", txn.Status, "err", err)

	if p.failures == nil {
		return
	}
	// the delivery context may already be cancelled by the time we record
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	rerr := p.failures.Record(rctx, WebhookFailure{
		Reference:     txn.Reference,
		TransactionID: txn.ID,
		Event:         ev.Event,
		Status:        string(txn.Status),
		Payload:       body,
		Err:           err.Error(),
		ReceivedAt:    p.now().UTC(),
	})
	if rerr != nil {
		p.log.Error("failed to record webhook failure", "err", errors.Join(err, rerr))
	}
}
