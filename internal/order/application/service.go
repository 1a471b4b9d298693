package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/domain"
)

type Service struct {
	log         *slog.Logger
	repo        OrderRepository
	platformPct decimal.Decimal
	tracer      trace.Tracer
	now         func() time.Time
}

func NewService(log *slog.Logger, repo OrderRepository, platformPct decimal.Decimal) *Service {
	return &Service{
		log:         log,
		repo:        repo,
		platformPct: platformPct,
		tracer:      otel.Tracer("order-service"),
		now:         time.Now,
	}
}

type ItemInput struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	// LineTotal, when set, is the charged line amount and is kept as is.
	LineTotal int64 `json:"-"`
}

type PlaceOrderInput struct {
	OrderNumber     string               `json:"orderNumber,omitempty"`
	UserID          string               `json:"userId,omitempty"`
	CustomerEmail   string               `json:"customerEmail"`
	Items           []ItemInput          `json:"items"`
	Discount        int64                `json:"discount"`
	ShippingCost    int64                `json:"shippingCost"`
	Tax             int64                `json:"tax"`
	Currency        string               `json:"currency"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod"`
	ShippingAddress *domain.Address      `json:"shippingAddress,omitempty"`
	BillingAddress  *domain.Address      `json:"billingAddress,omitempty"`
	// ExpectedTotal, when set, must equal the derived total.
	ExpectedTotal int64 `json:"-"`
}

// PlaceOrder creates an order through the transactional writer. Orders paid
// through the gateway start pending and keep their stock until approval.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "PlaceOrder")
	defer span.End()

	number := in.OrderNumber
	if number == "" {
		number = s.orderNumber()
	}
	items := make([]domain.Item, 0, len(in.Items))
	for _, it := range in.Items {
		item := domain.NewItem(it.ProductID, it.VariantID, it.Title, it.Quantity, it.UnitPrice)
		if it.LineTotal != 0 {
			item = domain.NewPricedItem(it.ProductID, it.VariantID, it.Title, it.Quantity, it.UnitPrice, it.LineTotal)
		}
		items = append(items, item)
	}

	o, err := domain.NewOrder(domain.Draft{
		OrderNumber:     number,
		UserID:          in.UserID,
		CustomerEmail:   in.CustomerEmail,
		Items:           items,
		Discount:        in.Discount,
		ShippingCost:    in.ShippingCost,
		Tax:             in.Tax,
		Currency:        in.Currency,
		PaymentMethod:   in.PaymentMethod,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
	}, s.now().UTC())
	if err != nil {
		return domain.Order{}, err
	}
	if in.ExpectedTotal != 0 && in.ExpectedTotal != o.Total {
		return domain.Order{}, fmt.Errorf("%w: total %d does not match charged amount %d", domain.ErrInvalidOrder, o.Total, in.ExpectedTotal)
	}
	span.SetAttributes(attribute.String("order.number", o.OrderNumber), attribute.String("order.payment_method", string(o.PaymentMethod)))

	if err := s.repo.Create(ctx, o); err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order placed", "order_id", o.ID, "order_number", o.OrderNumber, "payment_method", o.PaymentMethod, "total", o.Total)
	return o, nil
}

// MarkPaid settles an approved payment. The bool is false when the order
// was already paid and nothing changed.
func (s *Service) MarkPaid(ctx context.Context, reference, transactionID string, amountInCents int64, currency string) (domain.Order, bool, error) {
	ctx, span := s.tracer.Start(ctx, "MarkPaid")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", reference), attribute.String("payment.transaction_id", transactionID))

	o, applied, err := s.repo.MarkPaid(ctx, Payment{
		Reference:             reference,
		TransactionID:         transactionID,
		AmountInCents:         amountInCents,
		Currency:              currency,
		PlatformCommissionPct: s.platformPct,
	})
	if err != nil {
		return domain.Order{}, false, err
	}
	span.SetAttributes(attribute.Bool("order.applied", applied))
	return o, applied, nil
}

func (s *Service) MarkFailed(ctx context.Context, reference, transactionID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "MarkFailed")
	defer span.End()

	_, changed, err := s.repo.MarkFailed(ctx, reference, transactionID)
	return changed, err
}

func (s *Service) Refund(ctx context.Context, id uuid.UUID, partial bool) (domain.Order, error) {
	o, err := s.repo.Refund(ctx, id, partial)
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order refunded", "order_id", o.ID, "payment_status", o.PaymentStatus)
	return o, nil
}

func (s *Service) Advance(ctx context.Context, id uuid.UUID, to domain.Status) (domain.Order, error) {
	return s.repo.Advance(ctx, id, to)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	return s.repo.GetByNumber(ctx, orderNumber)
}

func (s *Service) orderNumber() string {
	id := uuid.New()
	return fmt.Sprintf("ORD-%d-%X", s.now().UnixMilli(), id[:4])
}
