// Package money holds the currency set accepted by the marketplace and
// amount formatting shared by the CLI and notifications.
package money

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 code accepted for listings and offers.
type Currency string

const (
	COP Currency = "COP"
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)

// Currencies is the set of accepted currencies.
var Currencies = []Currency{COP, USD, EUR, GBP}

// IsValid checks if a currency is accepted.
func (c Currency) IsValid() bool {
	for _, v := range Currencies {
		if c == v {
			return true
		}
	}
	return false
}

// Format renders a whole-unit amount with thousands separators, e.g. "COP 300,000,000".
func Format(amount int64, c Currency) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s %s%s", c, sign, withCommas(amount))
}

func withCommas(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)

	return strings.Join(parts, ",")
}
