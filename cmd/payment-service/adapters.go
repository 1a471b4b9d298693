package main

import (
	"context"

	orderapp "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/application"
	orderdomain "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/domain"
	payapp "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/application"
	paydomain "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

// orderPlacer pre-creates the pending gateway order for a prepared payment.
// Line totals are the charged per-line amounts, so the order total equals
// the amount the customer is charged.
type orderPlacer struct {
	orders *orderapp.Service
}

func (p orderPlacer) PlacePending(ctx context.Context, o payapp.PendingOrder) error {
	items := make([]orderapp.ItemInput, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderapp.ItemInput{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.Shift(2).Round(0).IntPart(),
			LineTotal: payapp.LineInCents(it),
		})
	}
	_, err := p.orders.PlaceOrder(ctx, orderapp.PlaceOrderInput{
		OrderNumber:     o.Reference,
		UserID:          o.UserID,
		CustomerEmail:   o.CustomerEmail,
		Items:           items,
		Currency:        o.Currency,
		PaymentMethod:   orderdomain.MethodGateway,
		ShippingAddress: address(o.ShippingAddress),
		ExpectedTotal:   o.AmountInCents,
	})
	return err
}

func address(a *paydomain.ShippingAddress) *orderdomain.Address {
	if a == nil {
		return nil
	}
	return &orderdomain.Address{
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		Country:      a.Country,
		Region:       a.Region,
		City:         a.City,
		Name:         a.Name,
		PhoneNumber:  a.PhoneNumber,
		PostalCode:   a.PostalCode,
	}
}

// orderPayments lets the webhook processor settle orders.
type orderPayments struct {
	orders *orderapp.Service
}

func (p orderPayments) MarkPaid(ctx context.Context, a payapp.Approval) (payapp.Settlement, error) {
	o, applied, err := p.orders.MarkPaid(ctx, a.Reference, a.TransactionID, a.AmountInCents, a.Currency)
	if err != nil {
		return payapp.Settlement{}, err
	}
	return payapp.Settlement{OrderID: o.ID.String(), Applied: applied, OrderTotal: o.Total}, nil
}

func (p orderPayments) MarkFailed(ctx context.Context, reference, transactionID string) (bool, error) {
	return p.orders.MarkFailed(ctx, reference, transactionID)
}
