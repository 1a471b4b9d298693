package application

import (
	"github.com/shopspring/decimal"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

type CartItem struct {
	ProductID string          `json:"productId,omitempty"`
	VariantID string          `json:"variantId,omitempty"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type Customer struct {
	Email       string `json:"email"`
	FullName    string `json:"fullName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	UserID      string `json:"userId,omitempty"`
}

type PrepareRequest struct {
	Items           []CartItem              `json:"items"`
	Customer        Customer                `json:"customer"`
	ShippingAddress *domain.ShippingAddress `json:"shippingAddress,omitempty"`
	PaymentType     string                  `json:"paymentType,omitempty"`
}

// PreparedPayment is returned to the browser. It carries nothing secret.
type PreparedPayment struct {
	Reference        string                  `json:"reference"`
	AmountInCents    int64                   `json:"amountInCents"`
	Currency         string                  `json:"currency"`
	Signature        string                  `json:"signature"`
	ExpirationTime   string                  `json:"expirationTime,omitempty"`
	AcceptanceTokens domain.AcceptanceTokens `json:"acceptanceTokens"`
	RedirectURL      string                  `json:"redirectUrl"`
	CustomerEmail    string                  `json:"customerEmail"`
	ShippingAddress  *domain.ShippingAddress `json:"shippingAddress,omitempty"`
	PaymentType      string                  `json:"paymentType,omitempty"`
	ExpiresAt        string                  `json:"expiresAt"`
}

type PendingOrder struct {
	Reference       string
	UserID          string
	CustomerEmail   string
	Items           []CartItem
	AmountInCents   int64
	Currency        string
	PaymentMethod   string
	ShippingAddress *domain.ShippingAddress
}

type ConfirmRequest struct {
	Reference     string `json:"reference"`
	TransactionID string `json:"transactionId"`
	AmountInCents int64  `json:"amountInCents"`
	Currency      string `json:"currency"`
	Signature     string `json:"signature"`
}

type ConfirmResult struct {
	Reference     string                   `json:"reference"`
	TransactionID string                   `json:"transactionId"`
	Status        domain.TransactionStatus `json:"status"`
	StatusMessage string                   `json:"statusMessage,omitempty"`
	AmountInCents int64                    `json:"amountInCents"`
	Currency      string                   `json:"currency"`
}

// TransactionRequest asks the server to create a gateway transaction for a
// prepared reference. Amount and signature are never taken from the client.
type TransactionRequest struct {
	Reference          string                  `json:"reference"`
	AcceptanceToken    string                  `json:"acceptanceToken"`
	AcceptPersonalAuth string                  `json:"acceptPersonalAuth,omitempty"`
	PaymentMethod      map[string]any          `json:"paymentMethod"`
	ShippingAddress    *domain.ShippingAddress `json:"shippingAddress,omitempty"`
}
