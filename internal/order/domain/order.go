package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrIllegalTransition    = errors.New("illegal order state transition")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPaid              PaymentStatus = "paid"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

type PaymentMethod string

const (
	MethodGateway        PaymentMethod = "gateway"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	MethodBankTransfer   PaymentMethod = "bank_transfer"
)

// Deferred reports whether stock waits for the gateway to approve payment.
func (m PaymentMethod) Deferred() bool {
	return m != MethodCashOnDelivery && m != MethodBankTransfer
}

type Address struct {
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	Country      string `json:"country,omitempty"`
	Region       string `json:"region,omitempty"`
	City         string `json:"city,omitempty"`
	Name         string `json:"name,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
}

// Order amounts are minor currency units.
type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          string
	CustomerEmail   string
	Items           []Item
	Subtotal        int64
	Discount        int64
	ShippingCost    int64
	Tax             int64
	Total           int64
	Currency        string
	Status          Status
	PaymentStatus   PaymentStatus
	PaymentMethod   PaymentMethod
	PaymentID       string
	ShippingAddress *Address
	BillingAddress  *Address
	TrackingNumber  string
	TrackingURL     string
	PaidAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item prices are snapshotted when the order is placed and never
// recomputed from the live catalog. UnitPrice is whole minor units; when the
// catalog price has sub-unit precision LineTotal is the exact line rounded
// once, so it may differ from UnitPrice*Quantity by less than Quantity.
type Item struct {
	ID        uuid.UUID
	ProductID string
	VariantID string
	Title     string
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

func NewItem(productID, variantID, title string, quantity int, unitPrice int64) Item {
	return NewPricedItem(productID, variantID, title, quantity, unitPrice, unitPrice*int64(quantity))
}

// NewPricedItem keeps a line total that was already charged.
func NewPricedItem(productID, variantID, title string, quantity int, unitPrice, lineTotal int64) Item {
	return Item{
		ID:        uuid.New(),
		ProductID: productID,
		VariantID: variantID,
		Title:     title,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: lineTotal,
	}
}

// consistent reports whether the line total is the unit price times the
// quantity, up to the rounding of a sub-unit unit price.
func (it Item) consistent() bool {
	diff := it.LineTotal - it.UnitPrice*int64(it.Quantity)
	if diff < 0 {
		diff = -diff
	}
	return it.LineTotal >= 0 && diff < int64(it.Quantity)
}

type Draft struct {
	OrderNumber     string
	UserID          string
	CustomerEmail   string
	Items           []Item
	Discount        int64
	ShippingCost    int64
	Tax             int64
	Currency        string
	PaymentMethod   PaymentMethod
	ShippingAddress *Address
	BillingAddress  *Address
}

// NewOrder validates a draft and derives the monetary breakdown:
// total = subtotal - discount + shipping + tax.
func NewOrder(d Draft, now time.Time) (Order, error) {
	if d.OrderNumber == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrInvalidOrder)
	}
	if len(d.Items) == 0 {
		return Order{}, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	var subtotal int64
	for i, it := range d.Items {
		if it.ProductID == "" || it.Quantity <= 0 || it.UnitPrice < 0 || !it.consistent() {
			return Order{}, fmt.Errorf("%w: item %d", ErrInvalidOrder, i)
		}
		subtotal += it.LineTotal
	}
	if d.Discount < 0 || d.ShippingCost < 0 || d.Tax < 0 {
		return Order{}, fmt.Errorf("%w: negative adjustment", ErrInvalidOrder)
	}
	total := subtotal - d.Discount + d.ShippingCost + d.Tax
	if total <= 0 {
		return Order{}, fmt.Errorf("%w: total must be positive", ErrInvalidOrder)
	}
	method := d.PaymentMethod
	if method == "" {
		method = MethodGateway
	}

	return Order{
		ID:              uuid.New(),
		OrderNumber:     d.OrderNumber,
		UserID:          d.UserID,
		CustomerEmail:   d.CustomerEmail,
		Items:           d.Items,
		Subtotal:        subtotal,
		Discount:        d.Discount,
		ShippingCost:    d.ShippingCost,
		Tax:             d.Tax,
		Total:           total,
		Currency:        d.Currency,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   method,
		ShippingAddress: d.ShippingAddress,
		BillingAddress:  d.BillingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
