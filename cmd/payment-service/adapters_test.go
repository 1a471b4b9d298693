package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderapp "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/application"
	orderdomain "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/domain"
	payapp "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/application"
	paydomain "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/infrastructure/memory"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/signature"
)

type memOrders struct {
	created []orderdomain.Order
}

func (m *memOrders) Create(_ context.Context, o orderdomain.Order) error {
	m.created = append(m.created, o)
	return nil
}

func (m *memOrders) MarkPaid(_ context.Context, p orderapp.Payment) (orderdomain.Order, bool, error) {
	for i := range m.created {
		if m.created[i].OrderNumber == p.Reference {
			applied := m.created[i].MarkPaid(p.TransactionID, time.Now())
			return m.created[i], applied, nil
		}
	}
	return orderdomain.Order{}, false, orderdomain.ErrOrderNotFound
}

func (m *memOrders) MarkFailed(context.Context, string, string) (orderdomain.Order, bool, error) {
	return orderdomain.Order{}, true, nil
}

func (m *memOrders) Refund(context.Context, uuid.UUID, bool) (orderdomain.Order, error) {
	return orderdomain.Order{}, nil
}

func (m *memOrders) Advance(context.Context, uuid.UUID, orderdomain.Status) (orderdomain.Order, error) {
	return orderdomain.Order{}, nil
}

func (m *memOrders) Get(context.Context, uuid.UUID) (orderdomain.Order, error) {
	return orderdomain.Order{}, nil
}

func (m *memOrders) GetByNumber(context.Context, string) (orderdomain.Order, error) {
	return orderdomain.Order{}, nil
}

func newOrders() (*orderapp.Service, *memOrders) {
	repo := &memOrders{}
	return orderapp.NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, decimal.NewFromInt(5)), repo
}

func pending(price string, qty int, amount int64) payapp.PendingOrder {
	return payapp.PendingOrder{
		Reference:     "MST-1-ABCDEF01",
		CustomerEmail: "buyer@example.com",
		Items:         []payapp.CartItem{{ProductID: uuid.NewString(), Title: "Camiseta", Quantity: qty, UnitPrice: decimal.RequireFromString(price)}},
		AmountInCents: amount,
		Currency:      "COP",
		PaymentMethod: "CARD",
		ShippingAddress: &paydomain.ShippingAddress{
			AddressLine1: "Calle 10 # 43-12",
			City:         "Medellín",
			Country:      "CO",
		},
	}
}

func TestOrderPlacer_CreatesPendingGatewayOrder(t *testing.T) {
	svc, repo := newOrders()

	require.NoError(t, orderPlacer{orders: svc}.PlacePending(context.Background(), pending("150000", 2, 30000000)))

	require.Len(t, repo.created, 1)
	o := repo.created[0]
	assert.Equal(t, "MST-1-ABCDEF01", o.OrderNumber)
	assert.Equal(t, orderdomain.MethodGateway, o.PaymentMethod)
	assert.Equal(t, int64(30000000), o.Total)
	assert.Equal(t, int64(15000000), o.Items[0].UnitPrice)
	require.NotNil(t, o.ShippingAddress)
	assert.Equal(t, "Medellín", o.ShippingAddress.City)
}

type stubGateway struct{}

func (stubGateway) AcceptanceTokens(context.Context) (paydomain.AcceptanceTokens, error) {
	return paydomain.AcceptanceTokens{AcceptanceToken: "acc"}, nil
}

func (stubGateway) GetTransaction(context.Context, string) (paydomain.Transaction, error) {
	return paydomain.Transaction{}, paydomain.ErrTransactionNotFound
}

func (stubGateway) CreateTransaction(context.Context, paydomain.CreateTransaction) (paydomain.Transaction, error) {
	return paydomain.Transaction{}, nil
}

func (stubGateway) TokenizeCard(context.Context, paydomain.Card) (paydomain.CardToken, error) {
	return paydomain.CardToken{}, nil
}

// Sub-cent unit prices round per line: 33.335 x 3 is charged 10001 and the
// pending order must total the same.
func TestPrepare_SubCentPricesPlaceMatchingOrder(t *testing.T) {
	orders, repo := newOrders()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	payments := payapp.NewService(log, stubGateway{}, memory.NewIntentStore(), signature.NewEngine("secret"), payapp.Options{
		Currency:        "COP",
		ReferencePrefix: "MST",
		IntentTTL:       time.Minute,
	}).WithOrderPlacer(orderPlacer{orders: orders})

	out, err := payments.Prepare(context.Background(), payapp.PrepareRequest{
		Items:    []payapp.CartItem{{ProductID: uuid.NewString(), Title: "Medias", Quantity: 3, UnitPrice: decimal.RequireFromString("33.335")}},
		Customer: payapp.Customer{Email: "buyer@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10001), out.AmountInCents)

	require.Len(t, repo.created, 1)
	o := repo.created[0]
	assert.Equal(t, out.Reference, o.OrderNumber)
	assert.Equal(t, int64(10001), o.Total)
	assert.Equal(t, int64(10001), o.Items[0].LineTotal)
	assert.Equal(t, int64(3334), o.Items[0].UnitPrice)
}

func TestOrderPlacer_RejectsChargedAmountDrift(t *testing.T) {
	svc, repo := newOrders()

	err := orderPlacer{orders: svc}.PlacePending(context.Background(), pending("10.005", 2, 1999))
	assert.ErrorIs(t, err, orderdomain.ErrInvalidOrder)
	assert.Empty(t, repo.created)
}

func TestOrderPayments_MarkPaid(t *testing.T) {
	svc, _ := newOrders()
	require.NoError(t, orderPlacer{orders: svc}.PlacePending(context.Background(), pending("150000", 1, 15000000)))

	p := orderPayments{orders: svc}
	st, err := p.MarkPaid(context.Background(), payapp.Approval{Reference: "MST-1-ABCDEF01", TransactionID: "tx-1", AmountInCents: 15000000, Currency: "COP"})
	require.NoError(t, err)
	assert.True(t, st.Applied)
	assert.Equal(t, int64(15000000), st.OrderTotal)
	assert.NotEmpty(t, st.OrderID)

	st, err = p.MarkPaid(context.Background(), payapp.Approval{Reference: "MST-1-ABCDEF01", TransactionID: "tx-1", AmountInCents: 15000000, Currency: "COP"})
	require.NoError(t, err)
	assert.False(t, st.Applied)

	_, err = p.MarkPaid(context.Background(), payapp.Approval{Reference: "MST-unknown"})
	assert.ErrorIs(t, err, orderdomain.ErrOrderNotFound)
}
