package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cart-service/internal/money"
)

var (
	// ErrUnsupportedCurrency is returned for any currency code outside the
	// configured catalog.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrInvalidAmount is returned when a decimal string cannot be parsed.
	ErrInvalidAmount = errors.New("invalid decimal amount")
)

// defaultSubunitDigits applies to currencies without an explicit override.
const defaultSubunitDigits = 2

// Catalog is the set of currencies the service accepts, with a default
// currency and per-currency minor unit precision.
type Catalog struct {
	defaultCode string
	digits      map[string]int
}

// NewCatalog builds a catalog from the supported codes, the default code and
// per-currency subunit digit overrides (e.g. {"JPY": 0}). The default must be
// one of the supported codes.
func NewCatalog(supported []string, defaultCode string, digitOverrides map[string]int) (*Catalog, error) {
	if len(supported) == 0 {
		return nil, errors.New("currency catalog requires at least one currency")
	}

	digits := make(map[string]int, len(supported))
	for _, code := range supported {
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(code) != 3 {
			return nil, fmt.Errorf("invalid currency code %q", code)
		}
		digits[code] = defaultSubunitDigits
	}

	for code, d := range digitOverrides {
		code = strings.ToUpper(strings.TrimSpace(code))
		if _, ok := digits[code]; !ok {
			return nil, fmt.Errorf("digit override for %s: %w", code, ErrUnsupportedCurrency)
		}
		if d < 0 || d > 8 {
			return nil, fmt.Errorf("invalid subunit digits %d for %s", d, code)
		}
		digits[code] = d
	}

	defaultCode = strings.ToUpper(strings.TrimSpace(defaultCode))
	if _, ok := digits[defaultCode]; !ok {
		return nil, fmt.Errorf("default currency %s: %w", defaultCode, ErrUnsupportedCurrency)
	}

	return &Catalog{defaultCode: defaultCode, digits: digits}, nil
}

// DefaultCurrency returns the catalog's default currency code.
func (c *Catalog) DefaultCurrency() string {
	return c.defaultCode
}

// Supports reports whether the code is in the catalog.
func (c *Catalog) Supports(code string) bool {
	_, ok := c.digits[strings.ToUpper(code)]
	return ok
}

// SubunitDigits returns the minor unit precision for a currency.
func (c *Catalog) SubunitDigits(code string) (int, error) {
	d, ok := c.digits[strings.ToUpper(code)]
	if !ok {
		return 0, fmt.Errorf("%s: %w", code, ErrUnsupportedCurrency)
	}
	return d, nil
}

// ParseDecimal converts a human decimal string ("19.99") into minor units,
// rounding half away from zero at the currency's precision.
func (c *Catalog) ParseDecimal(code, value string) (money.Money, error) {
	code = strings.ToUpper(code)
	d, ok := c.digits[code]
	if !ok {
		return money.Money{}, fmt.Errorf("%s: %w", code, ErrUnsupportedCurrency)
	}

	dec, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return money.Money{}, fmt.Errorf("%q: %w", value, ErrInvalidAmount)
	}

	minor := dec.Round(int32(d)).Shift(int32(d))
	return money.New(minor.IntPart(), code), nil
}

// FormatDecimal renders an amount as a decimal string zero-padded to the
// currency's subunit digits. Inverse of ParseDecimal for canonical inputs.
func (c *Catalog) FormatDecimal(m money.Money) (string, error) {
	d, ok := c.digits[strings.ToUpper(m.Currency)]
	if !ok {
		return "", fmt.Errorf("%s: %w", m.Currency, ErrUnsupportedCurrency)
	}
	return decimal.New(m.Amount, -int32(d)).StringFixed(int32(d)), nil
}

// Zero returns a zero amount in the catalog's default currency.
func (c *Catalog) Zero() money.Money {
	return money.Zero(c.defaultCode)
}
