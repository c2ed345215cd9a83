package decimal

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// MinorUnits is the number of fraction digits of SAR (halalas).
const MinorUnits int32 = 2

// RoundingMode selects how a value is brought to a fixed number of places.
// The zero value is RoundHalfUp.
type RoundingMode int

const (
	// RoundHalfUp rounds ties away from zero (0.005 -> 0.01)
	RoundHalfUp RoundingMode = iota
	// RoundHalfEven rounds ties to the nearest even digit
	RoundHalfEven
	// RoundDown truncates toward zero
	RoundDown
)

func (m RoundingMode) String() string {
	switch m {
	case RoundHalfUp:
		return "half-up"
	case RoundHalfEven:
		return "half-even"
	case RoundDown:
		return "down"
	default:
		return fmt.Sprintf("RoundingMode(%d)", int(m))
	}
}

// ParseRoundingMode is the inverse of RoundingMode.String.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "half-up", "halfup":
		return RoundHalfUp, nil
	case "half-even", "halfeven", "bankers":
		return RoundHalfEven, nil
	case "down", "truncate":
		return RoundDown, nil
	}
	return RoundHalfUp, fmt.Errorf("unknown rounding mode %q", s)
}

// Round rounds d to places using mode. The mode is always passed in by the
// caller; nothing in this package keeps a default between calls.
func Round(d decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	switch mode {
	case RoundHalfEven:
		return d.RoundBank(places)
	case RoundDown:
		return d.RoundDown(places)
	default:
		return d.Round(places)
	}
}

// FromInt creates decimal from int
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// FromString parses decimal from string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// MustFromString parses decimal from string, panics on error
func MustFromString(s string) decimal.Decimal {
	d, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// IsNonNegative returns true if decimal is >= zero
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}

// Fixed formats d with exactly places fraction digits, rounding with mode.
func Fixed(d decimal.Decimal, places int32, mode RoundingMode) string {
	return Round(d, places, mode).StringFixed(places)
}

// Exact formats d at its full precision, padding to at least minPlaces
// fraction digits. Trailing zeros beyond minPlaces are dropped.
func Exact(d decimal.Decimal, minPlaces int32) string {
	s := d.String()
	frac := 0
	if i := strings.IndexByte(s, '.'); i >= 0 {
		frac = len(s) - i - 1
	}
	if int32(frac) < minPlaces {
		return d.StringFixed(minPlaces)
	}
	return s
}

// Percent renders a fractional rate (0.15) as a percentage with two
// fraction digits ("15.00").
func Percent(rate decimal.Decimal) string {
	return rate.Shift(2).StringFixed(2)
}
