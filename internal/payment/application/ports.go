package application

import (
	"context"
	"time"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

// Gateway is the narrow surface of the payment provider this pipeline uses.
type Gateway interface {
	AcceptanceTokens(ctx context.Context) (domain.AcceptanceTokens, error)
	GetTransaction(ctx context.Context, id string) (domain.Transaction, error)
	CreateTransaction(ctx context.Context, req domain.CreateTransaction) (domain.Transaction, error)
	TokenizeCard(ctx context.Context, card domain.Card) (domain.CardToken, error)
}

// IntentStore holds prepared intents until they are confirmed or expire.
// Get must fail with domain.ErrNotFoundOrExpired for unknown or expired
// references, and Put must not overwrite a live entry.
type IntentStore interface {
	Put(ctx context.Context, p domain.PendingIntent) error
	Get(ctx context.Context, reference string) (domain.PendingIntent, error)
	Delete(ctx context.Context, reference string) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// OrderPlacer pre-creates the pending order a gateway payment will settle,
// so the webhook always finds a row to update.
type OrderPlacer interface {
	PlacePending(ctx context.Context, o PendingOrder) error
}

// OrderPayments applies terminal gateway states to orders. It is the only
// writer of payment state.
type OrderPayments interface {
	MarkPaid(ctx context.Context, a Approval) (Settlement, error)
	MarkFailed(ctx context.Context, reference, transactionID string) (bool, error)
}

// FailureLog durably records webhook deliveries that could not be applied.
type FailureLog interface {
	Record(ctx context.Context, f WebhookFailure) error
}

type Deduper interface {
	Key(parts ...string) string
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Approval struct {
	Reference     string
	TransactionID string
	AmountInCents int64
	Currency      string
}

// Settlement reports what MarkPaid did. Applied is false when the order was
// already paid.
type Settlement struct {
	OrderID    string
	Applied    bool
	OrderTotal int64
}

type WebhookFailure struct {
	Reference     string
	TransactionID string
	Event         string
	Status        string
	Payload       []byte
	Err           string
	ReceivedAt    time.Time
}
