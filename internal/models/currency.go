// Package models defines data structures for Folio
package models

import "strings"

// Currency is a closed enum of currencies the snapshot pipeline understands.
type Currency string

const (
	CurrencyPLN Currency = "PLN"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// SupportedCurrencies lists every currency a snapshot row carries values for.
// The order is fixed and determines serialization order in API responses.
var SupportedCurrencies = []Currency{CurrencyPLN, CurrencyUSD, CurrencyEUR}

// DefaultCurrency is the reporting currency used when a caller does not specify one.
const DefaultCurrency = CurrencyPLN

// ParseCurrency normalizes a currency code and reports whether it is supported.
func ParseCurrency(s string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, sc := range SupportedCurrencies {
		if c == sc {
			return c, true
		}
	}
	return "", false
}

// CurrencyPair identifies a conversion direction between two currencies.
type CurrencyPair struct {
	From Currency `json:"from"`
	To   Currency `json:"to"`
}

// Key returns the concatenated pair code (e.g. "USDPLN") used as a storage key.
func (p CurrencyPair) Key() string {
	return string(p.From) + string(p.To)
}

// Inverse returns the pair with direction reversed.
func (p CurrencyPair) Inverse() CurrencyPair {
	return CurrencyPair{From: p.To, To: p.From}
}

func (p CurrencyPair) String() string {
	return string(p.From) + "/" + string(p.To)
}
