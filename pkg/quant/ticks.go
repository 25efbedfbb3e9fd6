// Package quant holds the fixed-point price representation the rest of
// spotmaker is built on. A price is never a float once it enters the
// ladder pipeline; it is always a PriceTick.
package quant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"spotmaker/pkg/safe"
)

// PriceTick is a price expressed as an integer in units of 10^-decimals of
// the quote currency. Two ticks from the same market are always directly
// comparable; ticks from different markets are only comparable if they
// share a decimals value.
type PriceTick int64

// ParsePriceTick converts a decimal price string (as the exchange sends it)
// into a PriceTick with the given number of decimal places. It truncates,
// never rounds, so that the integer ordering of parsed ticks never reverses
// the numeric ordering of the original decimal strings (spec §4.3).
func ParsePriceTick(s string, decimals int) (PriceTick, error) {
	v, err := parseFixedPoint(s, decimals)
	if err != nil {
		return 0, err
	}
	return PriceTick(v), nil
}

// Decimal renders a PriceTick back into a decimal string with the given
// number of places, the inverse of ParsePriceTick.
func (p PriceTick) Decimal(decimals int) string {
	if decimals <= 0 {
		return strconv.FormatInt(int64(p), 10)
	}

	neg := p < 0
	v := int64(p)
	if neg {
		v = -v
	}

	scale := int64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}

	intPart := v / scale
	fracPart := v % scale

	s := fmt.Sprintf("%d.%0*d", intPart, decimals, fracPart)
	if neg {
		s = "-" + s
	}
	return s
}

// Float64 converts a PriceTick back to a float64, for call sites that
// only need it for an approximate calculation (e.g. a paper-trading fill
// cost) and not for anything compared or persisted as a tick.
func (p PriceTick) Float64(decimals int) float64 {
	scale := 1.0
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	return float64(p) / scale
}

// parseFixedPoint parses a string representation of a decimal into an
// integer scaled by 10^decimals, truncating any extra precision.
// Grounded on internal/infra/bitget/fixed_point_parser.go.
func parseFixedPoint(s string, decimals int) (int64, error) {
	if s == "" {
		return 0, nil
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, errors.New("quant: invalid decimal format, multiple dots")
	}

	integerPart := parts[0]
	fractionalPart := ""
	if len(parts) == 2 {
		fractionalPart = parts[1]
	}

	sign := int64(1)
	if strings.HasPrefix(integerPart, "-") {
		sign = -1
		integerPart = integerPart[1:]
	}

	intVal, err := strconv.ParseInt(integerPart, 10, 64)
	if err != nil {
		if integerPart == "" {
			intVal = 0
		} else {
			return 0, err
		}
	}

	if len(fractionalPart) > decimals {
		fractionalPart = fractionalPart[:decimals]
	} else {
		fractionalPart = fractionalPart + strings.Repeat("0", decimals-len(fractionalPart))
	}

	var fracVal int64
	if decimals > 0 {
		fracVal, err = strconv.ParseInt(fractionalPart, 10, 64)
		if err != nil {
			return 0, err
		}
	}

	multiplier := int64(1)
	for i := 0; i < decimals; i++ {
		multiplier *= 10
	}

	return sign * safe.SafeAdd(safe.SafeMul(intVal, multiplier), fracVal), nil
}
