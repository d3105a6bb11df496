package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrencyConverter_ToBase(t *testing.T) {
	provider := NewStaticRateProvider(map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("36.50"),
	})
	converter := NewCurrencyConverter(provider, "THB")
	ctx := context.Background()

	// Base currency passes through untouched.
	got, err := converter.ToBase(ctx, decimal.RequireFromString("99.99"), "THB")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("99.99")))

	got, err = converter.ToBase(ctx, decimal.RequireFromString("10.00"), "USD")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("365.00")))

	_, err = converter.ToBase(ctx, decimal.NewFromInt(1), "XYZ")
	assert.Error(t, err)
}

func TestFlatTaxCalculator(t *testing.T) {
	calc := FlatTaxCalculator{Rate: decimal.RequireFromString("0.07")}
	tax := calc.Tax(decimal.RequireFromString("123.45"), "any address")
	assert.True(t, tax.Equal(decimal.RequireFromString("8.64")), "tax %s", tax)
}
