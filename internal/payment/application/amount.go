package application

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

// AmountInCents rounds each line to whole minor units before summing, so the
// total never depends on floating point.
func AmountInCents(items []CartItem) (int64, error) {
	var total int64
	for _, it := range items {
		total += LineInCents(it)
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: cart total must be positive", domain.ErrInvalidAmount)
	}
	return total, nil
}

func LineInCents(it CartItem) int64 {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Shift(2).Round(0).IntPart()
}
