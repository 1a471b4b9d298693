package domain

import "time"

type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "PENDING"
	TransactionApproved TransactionStatus = "APPROVED"
	TransactionDeclined TransactionStatus = "DECLINED"
	TransactionVoided   TransactionStatus = "VOIDED"
	TransactionError    TransactionStatus = "ERROR"
)

// Failed reports the terminal statuses that mark an order payment failed.
func (s TransactionStatus) Failed() bool {
	return s == TransactionDeclined || s == TransactionVoided || s == TransactionError
}

// Transaction is the gateway's authoritative record of a payment attempt.
type Transaction struct {
	ID                string            `json:"id"`
	Status            TransactionStatus `json:"status"`
	StatusMessage     string            `json:"status_message,omitempty"`
	Reference         string            `json:"reference"`
	AmountInCents     int64             `json:"amount_in_cents"`
	Currency          string            `json:"currency"`
	PaymentMethodType string            `json:"payment_method_type,omitempty"`
	CustomerEmail     string            `json:"customer_email,omitempty"`
	RedirectURL       string            `json:"redirect_url,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// AcceptanceTokens are the legally required consent tokens the customer
// accepts before paying.
type AcceptanceTokens struct {
	AcceptanceToken       string `json:"acceptance_token"`
	AcceptancePermalink   string `json:"acceptance_permalink"`
	PersonalDataToken     string `json:"personal_data_auth_token"`
	PersonalDataPermalink string `json:"personal_data_auth_permalink"`
}

type ShippingAddress struct {
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	Country      string `json:"country,omitempty"`
	Region       string `json:"region,omitempty"`
	City         string `json:"city,omitempty"`
	Name         string `json:"name,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
}

func (a ShippingAddress) Empty() bool {
	return a == ShippingAddress{}
}

// CreateTransaction is what the server submits to the gateway; amount and
// signature always come from the prepared intent.
type CreateTransaction struct {
	AcceptanceToken    string           `json:"acceptance_token"`
	AcceptPersonalAuth string           `json:"accept_personal_auth,omitempty"`
	AmountInCents      int64            `json:"amount_in_cents"`
	Currency           string           `json:"currency"`
	Signature          string           `json:"signature"`
	CustomerEmail      string           `json:"customer_email"`
	Reference          string           `json:"reference"`
	RedirectURL        string           `json:"redirect_url,omitempty"`
	PaymentMethod      map[string]any   `json:"payment_method"`
	ShippingAddress    *ShippingAddress `json:"shipping_address,omitempty"`
}

type Card struct {
	Number     string `json:"number"`
	CVC        string `json:"cvc"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CardHolder string `json:"card_holder"`
}

type CardToken struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	LastFour  string `json:"last_four"`
	ExpMonth  string `json:"exp_month"`
	ExpYear   string `json:"exp_year"`
	ExpiresAt string `json:"expires_at,omitempty"`
}
