package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TeamMember struct {
	ID         string
	Percentage decimal.Decimal
	Active     bool
}

// Commission snapshots the member's percentage at creation; later changes
// to the member never touch existing rows.
type Commission struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	TeamMemberID string
	Percentage   decimal.Decimal
	Amount       int64
	CreatedAt    time.Time
}

type PlatformCommission struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	Percentage decimal.Decimal
	Base       int64
	Amount     int64
	CreatedAt  time.Time
}

var hundred = decimal.NewFromInt(100)

// CommissionAmount is base * pct / 100 rounded half-up to a whole minor unit.
func CommissionAmount(base int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(base).Mul(pct).Div(hundred).Round(0).IntPart()
}

func NewPlatformCommission(o Order, pct decimal.Decimal, now time.Time) PlatformCommission {
	return PlatformCommission{
		ID:         uuid.New(),
		OrderID:    o.ID,
		Percentage: pct,
		Base:       o.Total,
		Amount:     CommissionAmount(o.Total, pct),
		CreatedAt:  now,
	}
}

// FanOut computes one commission per active member with a positive
// percentage. The base is the order total.
func FanOut(o Order, members []TeamMember, now time.Time) []Commission {
	var out []Commission
	for _, m := range members {
		if !m.Active || !m.Percentage.IsPositive() {
			continue
		}
		out = append(out, Commission{
			ID:           uuid.New(),
			OrderID:      o.ID,
			TeamMemberID: m.ID,
			Percentage:   m.Percentage,
			Amount:       CommissionAmount(o.Total, m.Percentage),
			CreatedAt:    now,
		})
	}
	return out
}
