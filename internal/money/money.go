package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrCurrencyMismatch is returned when arithmetic is attempted between two
// amounts of different currencies.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Money is an exact monetary amount: an integer count of minor units
// (cents, yen, ...) tagged with a 3-letter currency code.
type Money struct {
	Amount   int64  `db:"amount" json:"-"`
	Currency string `db:"currency" json:"-"`
}

// New creates a Money value in the given currency.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Amount: 0, Currency: currency}
}

// Add returns m + other, or ErrCurrencyMismatch if the currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("add %s to %s: %w", other.Currency, m.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub returns m - other, or ErrCurrencyMismatch if the currencies differ.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("subtract %s from %s: %w", other.Currency, m.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// MulInt scales the amount by an integer factor. The factor may be negative,
// which is how credits and discounts are expressed.
func (m Money) MulInt(factor int64) Money {
	return Money{Amount: m.Amount * factor, Currency: m.Currency}
}

// Neg returns the amount with its sign flipped.
func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}

// wireMoney is the boundary form: the amount travels as a string so no
// consumer is tempted to read it as a float.
type wireMoney struct {
	Currency         string `json:"currency"`
	AmountMinorUnits string `json:"amount_minor_units"`
}

// MarshalJSON encodes the amount as {currency, amount_minor_units string}.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMoney{
		Currency:         m.Currency,
		AmountMinorUnits: strconv.FormatInt(m.Amount, 10),
	})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (m *Money) UnmarshalJSON(data []byte) error {
	var w wireMoney
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	amount, err := strconv.ParseInt(w.AmountMinorUnits, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid minor unit amount %q: %w", w.AmountMinorUnits, err)
	}
	m.Amount = amount
	m.Currency = w.Currency
	return nil
}

// Accumulator sums Money values without forcing a currency up front. It
// starts unset; the first amount added fixes the currency, and every later
// amount must match it. This lets an order whose first line is in EUR total
// correctly even when the catalog default is NZD.
type Accumulator struct {
	set bool
	sum Money
}

// Add folds an amount into the running sum. The first call fixes the
// accumulator's currency; subsequent calls fail with ErrCurrencyMismatch
// when the currency differs.
func (a *Accumulator) Add(m Money) error {
	if !a.set {
		a.sum = m
		a.set = true
		return nil
	}
	sum, err := a.sum.Add(m)
	if err != nil {
		return err
	}
	a.sum = sum
	return nil
}

// Value returns the accumulated sum, or a zero amount in fallbackCurrency
// when nothing was added.
func (a *Accumulator) Value(fallbackCurrency string) Money {
	if !a.set {
		return Zero(fallbackCurrency)
	}
	return a.sum
}

// IsSet reports whether at least one amount has been added.
func (a *Accumulator) IsSet() bool {
	return a.set
}
