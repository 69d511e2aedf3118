package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-service/internal/money"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := NewCatalog([]string{"NZD", "USD", "JPY"}, "NZD", map[string]int{"JPY": 0})
	require.NoError(t, err)
	return catalog
}

func TestNewCatalogRejectsForeignDefault(t *testing.T) {
	_, err := NewCatalog([]string{"NZD"}, "USD", nil)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestNewCatalogRejectsForeignOverride(t *testing.T) {
	_, err := NewCatalog([]string{"NZD"}, "NZD", map[string]int{"JPY": 0})
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestSubunitDigits(t *testing.T) {
	catalog := newTestCatalog(t)

	d, err := catalog.SubunitDigits("NZD")
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	d, err = catalog.SubunitDigits("JPY")
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	_, err = catalog.SubunitDigits("GBP")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestParseDecimalRounding(t *testing.T) {
	catalog := newTestCatalog(t)

	// Sub-precision digits round half away from zero.
	a, err := catalog.ParseDecimal("NZD", "2.002")
	require.NoError(t, err)
	b, err := catalog.ParseDecimal("NZD", "2.00")
	require.NoError(t, err)
	assert.Equal(t, b, a)
	assert.Equal(t, int64(200), a.Amount)

	c, err := catalog.ParseDecimal("NZD", "2.005")
	require.NoError(t, err)
	assert.Equal(t, int64(201), c.Amount)

	// Zero-digit currencies round to whole minor units.
	y, err := catalog.ParseDecimal("JPY", "0.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1), y.Amount)

	neg, err := catalog.ParseDecimal("NZD", "-0.005")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), neg.Amount)
}

func TestParseDecimalUnsupportedCurrency(t *testing.T) {
	catalog := newTestCatalog(t)

	_, err := catalog.ParseDecimal("GBP", "1.00")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestParseDecimalInvalidInput(t *testing.T) {
	catalog := newTestCatalog(t)

	_, err := catalog.ParseDecimal("NZD", "not-a-number")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFormatDecimal(t *testing.T) {
	catalog := newTestCatalog(t)

	s, err := catalog.FormatDecimal(money.New(200, "NZD"))
	require.NoError(t, err)
	assert.Equal(t, "2.00", s)

	s, err = catalog.FormatDecimal(money.New(5, "JPY"))
	require.NoError(t, err)
	assert.Equal(t, "5", s)

	s, err = catalog.FormatDecimal(money.New(-1500, "NZD"))
	require.NoError(t, err)
	assert.Equal(t, "-15.00", s)
}

func TestRoundTrip(t *testing.T) {
	catalog := newTestCatalog(t)

	for _, input := range []string{"0.00", "2.00", "19.99", "-15.00", "1000.50"} {
		m, err := catalog.ParseDecimal("NZD", input)
		require.NoError(t, err)
		out, err := catalog.FormatDecimal(m)
		require.NoError(t, err)
		assert.Equal(t, input, out)
	}
}

func TestZeroUsesDefaultCurrency(t *testing.T) {
	catalog := newTestCatalog(t)
	assert.Equal(t, money.Zero("NZD"), catalog.Zero())
}
