package application

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGateway struct {
	mu        sync.Mutex
	tokens    domain.AcceptanceTokens
	tokensErr error
	txs       map[string]domain.Transaction
	txErr     error
	created   []domain.CreateTransaction
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		tokens: domain.AcceptanceTokens{AcceptanceToken: "acc-token", AcceptancePermalink: "https://example.com/terms"},
		txs:    map[string]domain.Transaction{},
	}
}

func (g *fakeGateway) AcceptanceTokens(context.Context) (domain.AcceptanceTokens, error) {
	return g.tokens, g.tokensErr
}

func (g *fakeGateway) GetTransaction(_ context.Context, id string) (domain.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.txErr != nil {
		return domain.Transaction{}, g.txErr
	}
	tx, ok := g.txs[id]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return tx, nil
}

func (g *fakeGateway) CreateTransaction(_ context.Context, req domain.CreateTransaction) (domain.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	return domain.Transaction{ID: "tx-new", Status: domain.TransactionPending, Reference: req.Reference, AmountInCents: req.AmountInCents, Currency: req.Currency}, nil
}

func (g *fakeGateway) TokenizeCard(context.Context, domain.Card) (domain.CardToken, error) {
	return domain.CardToken{ID: "tok_1"}, nil
}

type fakePlacer struct {
	placed []PendingOrder
	err    error
}

func (p *fakePlacer) PlacePending(_ context.Context, o PendingOrder) error {
	if p.err != nil {
		return p.err
	}
	p.placed = append(p.placed, o)
	return nil
}

// fakeOrders mimics the repository's idempotent state machine.
type fakeOrders struct {
	mu      sync.Mutex
	status  map[string]string
	totals  map[string]int64
	paid    int
	failed  int
	paidErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{status: map[string]string{}, totals: map[string]int64{}}
}

func (o *fakeOrders) MarkPaid(_ context.Context, a Approval) (Settlement, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.paidErr != nil {
		return Settlement{}, o.paidErr
	}
	if o.status[a.Reference] == "paid" {
		return Settlement{OrderID: a.Reference, Applied: false, OrderTotal: o.totals[a.Reference]}, nil
	}
	o.status[a.Reference] = "paid"
	o.paid++
	return Settlement{OrderID: a.Reference, Applied: true, OrderTotal: o.totals[a.Reference]}, nil
}

func (o *fakeOrders) MarkFailed(_ context.Context, reference, _ string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.status[reference] {
	case "paid", "failed":
		return false, nil
	}
	o.status[reference] = "failed"
	o.failed++
	return true, nil
}

type fakeDeduper struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newFakeDeduper() *fakeDeduper { return &fakeDeduper{keys: map[string]bool{}} }

func (d *fakeDeduper) Key(parts ...string) string {
	k := "idem"
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (d *fakeDeduper) Claim(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.keys[key] {
		return false, nil
	}
	d.keys[key] = true
	return true, nil
}

func (d *fakeDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

type fakeFailures struct {
	mu      sync.Mutex
	records []WebhookFailure
}

func (f *fakeFailures) Record(_ context.Context, r WebhookFailure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}
