// Package currency normalizes expense amounts into a company's base
// currency. Rates come from a pluggable RateSource; the bundled static table
// mirrors the ops-maintained seed rates.
package currency

import (
	"context"
	"math"

	"expensio/pkg/platform/sentinel"
)

// RateSource yields a conversion factor for a currency pair. Implementations
// return sentinel.ErrNotFound for pairs they do not know.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

// Converter converts amounts between currency codes.
type Converter struct {
	source RateSource
}

func NewConverter(source RateSource) *Converter {
	return &Converter{source: source}
}

// Convert converts amount from one currency code to another, rounding the
// result to 2 decimal places. Same-currency conversion returns the amount
// unchanged. Unknown pairs fall back to a parity factor of 1 rather than
// failing; callers must not assume accuracy for unlisted pairs.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) float64 {
	if from == to {
		return amount
	}
	rate, err := c.source.Rate(ctx, from, to)
	if err != nil {
		rate = 1
	}
	return round2(amount * rate)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// StaticSource serves rates from an in-memory from→to table.
type StaticSource struct {
	rates map[string]map[string]float64
}

// NewStaticSource wraps an explicit rate table.
func NewStaticSource(rates map[string]map[string]float64) *StaticSource {
	return &StaticSource{rates: rates}
}

// DefaultRates is the seed table used when no external rate source is wired.
func DefaultRates() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"USD": {"EUR": 0.85, "INR": 83, "GBP": 0.73},
		"EUR": {"USD": 1.18, "INR": 87, "GBP": 0.86},
		"INR": {"USD": 0.012, "EUR": 0.011, "GBP": 0.0096},
		"GBP": {"USD": 1.37, "EUR": 1.16, "INR": 100},
	}
}

func (s *StaticSource) Rate(_ context.Context, from, to string) (float64, error) {
	if rate, ok := s.rates[from][to]; ok {
		return rate, nil
	}
	return 0, sentinel.ErrNotFound
}
