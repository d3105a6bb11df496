package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// RateProvider supplies exchange rates relative to the marketplace base
// currency: one unit of the keyed currency equals Rates[code] units of the
// base. The fetching service itself lives outside this module; checkout only
// consumes the mapping.
type RateProvider interface {
	Rates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// TaxCalculator returns the tax amount for an order given its subtotal and
// the shipping address text. Treated as opaque input by checkout.
type TaxCalculator interface {
	Tax(subtotal decimal.Decimal, shippingAddress string) decimal.Decimal
}

// StaticRateProvider serves a fixed rate table, used as the default wiring
// and in tests.
type StaticRateProvider struct {
	table map[string]decimal.Decimal
}

// NewStaticRateProvider copies the given table into a provider.
func NewStaticRateProvider(table map[string]decimal.Decimal) *StaticRateProvider {
	copied := make(map[string]decimal.Decimal, len(table))
	for code, rate := range table {
		copied[code] = rate
	}
	return &StaticRateProvider{table: copied}
}

// Rates returns the configured table.
func (p *StaticRateProvider) Rates(ctx context.Context) (map[string]decimal.Decimal, error) {
	return p.table, nil
}

// FlatTaxCalculator applies a single rate to every subtotal regardless of
// address.
type FlatTaxCalculator struct {
	Rate decimal.Decimal
}

// Tax returns subtotal * rate rounded to two decimal places.
func (c FlatTaxCalculator) Tax(subtotal decimal.Decimal, shippingAddress string) decimal.Decimal {
	return subtotal.Mul(c.Rate).Round(2)
}

// CurrencyConverter converts line amounts into the base currency using a
// RateProvider mapping.
type CurrencyConverter struct {
	provider RateProvider
	base     string
}

// NewCurrencyConverter builds a converter around the given provider.
func NewCurrencyConverter(provider RateProvider, baseCurrency string) *CurrencyConverter {
	return &CurrencyConverter{provider: provider, base: baseCurrency}
}

// BaseCurrency returns the currency every order total is expressed in.
func (c *CurrencyConverter) BaseCurrency() string {
	return c.base
}

// ToBase converts amount from the given currency into the base currency.
// Amounts already in the base currency pass through without a rate lookup.
func (c *CurrencyConverter) ToBase(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	if currency == c.base || currency == "" {
		return amount, nil
	}

	rates, err := c.provider.Rates(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch rates: %w", err)
	}

	rate, ok := rates[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for currency %q", currency)
	}
	return amount.Mul(rate).Round(2), nil
}
