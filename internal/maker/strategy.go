package maker

import (
	"math"

	"github.com/shopspring/decimal"
)

// SizingStrategy supplies the targeting-factor spec §4.7 step 2 treats as
// a constant. It is grounded on the teacher's strategy.Strategy interface
// and sma_cross.go's ring-buffer shape, generalized from a buy/sell
// signal generator to a single scalar the Maker folds into its sizing
// formulas every round.
type SizingStrategy interface {
	// TargetingFactor returns this round's targeting-factor given the
	// round's base/quote conversion rate (the 4h VWAP from step 1b).
	TargetingFactor(rate decimal.Decimal) float64
}

// StaticStrategy always returns a fixed factor, matching spec.md's
// literal "targeting-factor" constant.
type StaticStrategy struct {
	Factor float64
}

// TargetingFactor implements SizingStrategy.
func (s StaticStrategy) TargetingFactor(decimal.Decimal) float64 {
	return s.Factor
}

// volAdjustGain controls how much of a pull toward 0.5 one unit of
// relative volatility applies; a pull of 1.0 or more fully overrides the
// base factor with 0.5.
const volAdjustGain = 4.0

// VolatilityTargetingStrategy narrows the targeting-factor toward 0.5 as
// realized short-window volatility of the base/quote rate rises, and lets
// it widen back toward the configured base as volatility subsides. It is
// a stateful ring buffer over recent rate samples, built the way the
// teacher's SMACrossStrategy is built.
type VolatilityTargetingStrategy struct {
	base   float64
	window int

	samples []float64
	head    int
	count   int
}

// NewVolatilityTargetingStrategy builds a strategy defaulting to base
// when fewer than two samples have been observed, tracking volatility
// over the last window samples.
func NewVolatilityTargetingStrategy(base float64, window int) *VolatilityTargetingStrategy {
	if window < 2 {
		window = 2
	}
	return &VolatilityTargetingStrategy{
		base:    base,
		window:  window,
		samples: make([]float64, window),
	}
}

// TargetingFactor implements SizingStrategy.
func (s *VolatilityTargetingStrategy) TargetingFactor(rate decimal.Decimal) float64 {
	v, _ := rate.Float64()
	s.samples[s.head] = v
	s.head = (s.head + 1) % s.window
	if s.count < s.window {
		s.count++
	}
	if s.count < 2 {
		return s.base
	}

	var mean float64
	for i := 0; i < s.count; i++ {
		mean += s.samples[i]
	}
	mean /= float64(s.count)
	if mean == 0 {
		return s.base
	}

	var variance float64
	for i := 0; i < s.count; i++ {
		d := s.samples[i] - mean
		variance += d * d
	}
	variance /= float64(s.count)
	relVol := math.Sqrt(variance) / mean

	pull := relVol * volAdjustGain
	if pull > 1 {
		pull = 1
	}
	return s.base + (0.5-s.base)*pull
}
