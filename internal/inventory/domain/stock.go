package domain

import (
	"errors"
	"sort"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Policy decides what happens when a tracked item cannot cover a line.
type Policy int

const (
	// Strict rejects the whole unit of work.
	Strict Policy = iota
	// AllowOversell lets the counter go negative. Used when the customer has
	// already been charged and refusing the order is no longer an option.
	AllowOversell
)

// Line is the demand an order places on one product or variant.
type Line struct {
	ProductID string
	VariantID string
	Quantity  int
}

// Level is the stock state of a product or variant row.
type Level struct {
	Quantity        int
	TrackQuantity   bool
	ContinueSelling bool
}

// Admits reports whether qty can be sold from this level without
// overselling a tracked item.
func (l Level) Admits(qty int) bool {
	if !l.TrackQuantity || l.ContinueSelling {
		return true
	}
	return l.Quantity >= qty
}

// Consolidate merges lines for the same item and sorts them, so concurrent
// transactions always lock rows in the same order.
func Consolidate(lines []Line) []Line {
	type key struct{ product, variant string }
	idx := make(map[key]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		k := key{l.ProductID, l.VariantID}
		if i, ok := idx[k]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[k] = len(out)
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].VariantID < out[j].VariantID
	})
	return out
}
