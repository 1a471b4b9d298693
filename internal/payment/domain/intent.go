package domain

import "time"

// PendingIntent is the server's short-lived promise to accept a confirmation
// for exactly this reference and amount.
type PendingIntent struct {
	Reference     string    `json:"reference"`
	AmountInCents int64     `json:"amount_in_cents"`
	Currency      string    `json:"currency"`
	CustomerEmail string    `json:"customer_email"`
	Expiration    string    `json:"expiration,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func NewPendingIntent(reference string, amountInCents int64, currency, email string, now time.Time, ttl time.Duration) PendingIntent {
	return PendingIntent{
		Reference:     reference,
		AmountInCents: amountInCents,
		Currency:      currency,
		CustomerEmail: email,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
}

func (p PendingIntent) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
