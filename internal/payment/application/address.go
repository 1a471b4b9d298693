package application

import (
	"strings"
	"unicode"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

// Minimum lengths the gateway accepts for shipping address fields.
const (
	minAddressLine = 4
	minCity        = 4
	minRegion      = 4
	minName        = 4
	minPhone       = 10
	minPostalCode  = 5
	countryLen     = 2
)

// NormalizeAddress trims every field and drops the ones the gateway would
// reject. The address is optional to the gateway, so short fields are
// omitted rather than failing the payment. Returns nil when nothing remains.
func NormalizeAddress(a *domain.ShippingAddress) *domain.ShippingAddress {
	if a == nil {
		return nil
	}
	out := domain.ShippingAddress{
		AddressLine1: atLeast(a.AddressLine1, minAddressLine),
		AddressLine2: atLeast(a.AddressLine2, minAddressLine),
		City:         atLeast(a.City, minCity),
		Region:       atLeast(a.Region, minRegion),
		Name:         atLeast(a.Name, minName),
		PhoneNumber:  atLeast(digits(a.PhoneNumber), minPhone),
		PostalCode:   atLeast(a.PostalCode, minPostalCode),
	}
	if c := strings.ToUpper(strings.TrimSpace(a.Country)); len(c) == countryLen {
		out.Country = c
	}
	if out.Empty() {
		return nil
	}
	return &out
}

func atLeast(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) < n {
		return ""
	}
	return s
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
