// Package money provides a Money value object for currency-denominated
// amounts. Amounts are always stored as integers in the smallest currency
// unit (cents for USD), which keeps ledger arithmetic exact.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Amount represents a monetary amount as an integer in the smallest currency unit.
type Amount = int64

// DefaultCurrency is used when a caller does not specify a currency code.
const DefaultCurrency = "USD"

var (
	// ErrInvalidCurrencyCode is returned when a currency code is not a valid
	// ISO 4217 code (3 uppercase letters).
	ErrInvalidCurrencyCode = errors.New("invalid currency code")
	// ErrExcessDecimalPlaces is returned when an amount carries more decimal
	// places than the currency supports.
	ErrExcessDecimalPlaces = errors.New("amount has more decimal places than allowed by the currency")
	// ErrNegativeAmount is returned when a negative amount is supplied where
	// only non-negative values make sense.
	ErrNegativeAmount = errors.New("amount must not be negative")
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// decimalsFor returns the number of decimal places for a currency. Every
// currency routed through the payout core today uses 2; zero-decimal
// currencies (JPY-style) are listed explicitly.
func decimalsFor(code string) int32 {
	switch code {
	case "JPY", "KRW", "VND":
		return 0
	default:
		return 2
	}
}

// Money represents a monetary value in a specific currency.
// Invariants:
//   - Amount is stored in the smallest currency unit.
//   - Currency code is a valid ISO 4217 code.
//   - Arithmetic requires matching currencies.
type Money struct {
	amount   Amount
	currency string
}

// New creates Money from a main-unit amount (e.g. dollars). The conversion to
// the smallest unit goes through decimal arithmetic so float artifacts such as
// 29.99*100 = 2998.9999... cannot corrupt the stored amount.
func New(amount float64, currencyCode string) (Money, error) {
	if currencyCode == "" {
		currencyCode = DefaultCurrency
	}
	if !currencyCodeRe.MatchString(currencyCode) {
		return Money{}, ErrInvalidCurrencyCode
	}

	decimals := decimalsFor(currencyCode)
	d := decimal.NewFromFloat(amount)
	cents := d.Shift(decimals)
	if !cents.IsInteger() {
		return Money{}, fmt.Errorf("%w: %s %s", ErrExcessDecimalPlaces, d, currencyCode)
	}
	return Money{amount: cents.IntPart(), currency: currencyCode}, nil
}

// NewFromSmallestUnit creates Money directly from the smallest currency unit.
func NewFromSmallestUnit(amount int64, currencyCode string) (Money, error) {
	if currencyCode == "" {
		currencyCode = DefaultCurrency
	}
	if !currencyCodeRe.MatchString(currencyCode) {
		return Money{}, ErrInvalidCurrencyCode
	}
	return Money{amount: amount, currency: currencyCode}, nil
}

// Amount returns the amount in the smallest currency unit.
func (m Money) Amount() Amount {
	return m.amount
}

// AmountDecimal returns the amount in main units as a decimal.
func (m Money) AmountDecimal() decimal.Decimal {
	return decimal.New(m.amount, 0).Shift(-decimalsFor(m.currency))
}

// Currency returns the ISO 4217 currency code.
func (m Money) Currency() string {
	return m.currency
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.amount > 0
}

// IsSameCurrency reports whether two Money values share a currency.
func (m Money) IsSameCurrency(other Money) bool {
	return m.currency == other.currency
}

// Add returns the sum of two Money values.
// Returns an error if the currencies do not match.
func (m Money) Add(other Money) (Money, error) {
	if !m.IsSameCurrency(other) {
		return Money{}, ErrInvalidCurrencyCode
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// Sub returns the difference of two Money values.
// Returns an error if the currencies do not match.
func (m Money) Sub(other Money) (Money, error) {
	if !m.IsSameCurrency(other) {
		return Money{}, ErrInvalidCurrencyCode
	}
	return Money{amount: m.amount - other.amount, currency: m.currency}, nil
}

// String renders the amount in main units with its currency code.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.AmountDecimal().StringFixed(decimalsFor(m.currency)), m.currency)
}

// MarshalJSON emits the amount in smallest units alongside its currency.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}{m.amount, m.currency})
}
