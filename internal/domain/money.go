package domain

import (
	"errors"
	"fmt"
)

// Money is an immutable amount in the smallest unit of an ISO 4217 currency.
// Integer minor units keep valuation sums exact; nothing in the ledger ever
// does floating point currency math.
type Money struct {
	amount   int64
	currency string
}

var (
	ErrNegativeMoney     = errors.New("money amount cannot be negative")
	ErrInvalidCurrency   = errors.New("invalid currency code")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrInvalidMultiplier = errors.New("multiplier must not be negative")
)

// NewMoney builds a Money from minor units and a three-letter currency code.
func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, ErrNegativeMoney
	}
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	return Money{amount: amount, currency: currency}, nil
}

// Amount returns the value in minor units.
func (m Money) Amount() int64 { return m.amount }

// Currency returns the ISO 4217 code.
func (m Money) Currency() string { return m.currency }

// Add returns the sum of two amounts in the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// Multiply scales the amount by a unit count, used for line valuations.
func (m Money) Multiply(qty int) (Money, error) {
	if qty < 0 {
		return Money{}, ErrInvalidMultiplier
	}
	return Money{amount: m.amount * int64(qty), currency: m.currency}, nil
}

// Equals reports whether amount and currency both match.
func (m Money) Equals(other Money) bool {
	return m.amount == other.amount && m.currency == other.currency
}

// String renders the amount in major units for log lines.
func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.amount/100, m.amount%100, m.currency)
}
