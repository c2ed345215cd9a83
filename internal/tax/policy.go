package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	money "github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/decimal"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
)

// Precision controls when monetary figures are rounded.
type Precision int

const (
	// PrecisionStrict rounds every figure to halalas before it is used again.
	PrecisionStrict Precision = iota
	// PrecisionExtended keeps full precision and rounds nothing. Output is
	// not compliant and must be acknowledged by the caller.
	PrecisionExtended
)

func (p Precision) String() string {
	if p == PrecisionExtended {
		return "extended"
	}
	return "strict"
}

// Aggregation controls how document totals are derived from lines.
type Aggregation int

const (
	// LineLevel sums the already rounded line figures.
	LineLevel Aggregation = iota
	// DocumentLevel rounds once per (rate, category) group over unrounded
	// line figures. Totals can differ from LineLevel by accumulated error.
	DocumentLevel
)

func (a Aggregation) String() string {
	if a == DocumentLevel {
		return "document-level"
	}
	return "line-level"
}

// Policy is passed into every calculation. The zero value is the default:
// strict precision, line-level aggregation, half-up rounding.
type Policy struct {
	Precision               Precision
	Aggregation             Aggregation
	Rounding                money.RoundingMode
	AcknowledgeNonCompliant bool
}

// DefaultPolicy returns the compliant policy.
func DefaultPolicy() Policy {
	return Policy{}
}

// Validate rejects policies that need an acknowledgement they did not get.
func (p Policy) Validate() error {
	if p.Precision == PrecisionExtended && !p.AcknowledgeNonCompliant {
		return model.NewValidationError("policy.precision", p.Precision.String(), "precision_acknowledgement",
			"extended precision produces non-compliant amounts and must be acknowledged explicitly")
	}
	switch p.Precision {
	case PrecisionStrict, PrecisionExtended:
	default:
		return model.NewValidationError("policy.precision", int(p.Precision), "precision", "unknown precision mode")
	}
	switch p.Aggregation {
	case LineLevel, DocumentLevel:
	default:
		return model.NewValidationError("policy.aggregation", int(p.Aggregation), "aggregation", "unknown aggregation mode")
	}
	return nil
}

func (p Policy) String() string {
	return fmt.Sprintf("%s/%s/%s", p.Precision, p.Aggregation, p.Rounding)
}

// Round applies the policy to an intermediate figure.
func (p Policy) Round(d decimal.Decimal) decimal.Decimal {
	if p.Precision == PrecisionExtended {
		return d
	}
	return money.Round(d, money.MinorUnits, p.Rounding)
}

// Format renders an amount at the presentation boundary.
func (p Policy) Format(d decimal.Decimal) string {
	if p.Precision == PrecisionExtended {
		return money.Exact(d, money.MinorUnits)
	}
	return money.Fixed(d, money.MinorUnits, p.Rounding)
}
