package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/domain"
)

// OrderRepository is the transactional writer. Every method that changes an
// order commits the order, its stock effects, commissions and outbox event
// together or not at all.
type OrderRepository interface {
	// Create inserts the order and its items. Deferred payment methods only
	// verify stock; the others decrement it.
	Create(ctx context.Context, o domain.Order) error
	MarkPaid(ctx context.Context, p Payment) (domain.Order, bool, error)
	MarkFailed(ctx context.Context, reference, transactionID string) (domain.Order, bool, error)
	Refund(ctx context.Context, id uuid.UUID, partial bool) (domain.Order, error)
	Advance(ctx context.Context, id uuid.UUID, to domain.Status) (domain.Order, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
}

// Payment is an approved gateway payment to settle against an order.
type Payment struct {
	Reference             string
	TransactionID         string
	AmountInCents         int64
	Currency              string
	PlatformCommissionPct decimal.Decimal
}
