// Package tax computes line, subtotal and document VAT figures.
//
// All arithmetic is done in shopspring decimals and every rounding step takes
// its mode from the Policy passed by the caller.
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
)

// MsgZeroRateCategory is the rule text for zero-rate lines without a category.
const MsgZeroRateCategory = "zero-tax items must specify a VAT category code (E, Z or O)"

// SupportedRates lists the VAT rates accepted by the engine.
var SupportedRates = []decimal.Decimal{
	decimal.Zero,
	decimal.RequireFromString("0.05"),
	decimal.RequireFromString("0.15"),
}

// IsSupportedRate reports whether rate is one of SupportedRates.
func IsSupportedRate(rate decimal.Decimal) bool {
	for _, r := range SupportedRates {
		if rate.Equal(r) {
			return true
		}
	}
	return false
}

// Category is the resolved VAT category of a line or subtotal.
type Category struct {
	Code       string
	Reason     string
	ReasonCode string
}

// Line holds the computed figures of one line item.
type Line struct {
	Index         int
	ID            string
	Name          string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	Rate          decimal.Decimal
	Category      Category
	LineExtension decimal.Decimal
	TaxAmount     decimal.Decimal
}

// RoundingAmount is the tax-inclusive line amount.
func (l Line) RoundingAmount() decimal.Decimal {
	return l.LineExtension.Add(l.TaxAmount)
}

// Subtotal is one (rate, category) group.
type Subtotal struct {
	TaxableAmount decimal.Decimal
	TaxAmount     decimal.Decimal
	Rate          decimal.Decimal
	Category      Category
}

// TaxTotal is the document tax with its breakdown in first-seen order.
type TaxTotal struct {
	TaxAmount decimal.Decimal
	Subtotals []Subtotal
}

// MonetaryTotal mirrors cac:LegalMonetaryTotal.
type MonetaryTotal struct {
	LineExtensionAmount decimal.Decimal
	TaxExclusiveAmount  decimal.Decimal
	TaxInclusiveAmount  decimal.Decimal
	PayableAmount       decimal.Decimal
}

// Result is the output of Calculate.
type Result struct {
	Policy        Policy
	Lines         []Line
	TaxTotal      TaxTotal
	MonetaryTotal MonetaryTotal
}

// Calculate computes line, subtotal and document figures under policy.
// Inputs violating engine rules are rejected before any arithmetic.
func Calculate(items []model.LineItem, policy Policy) (*Result, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := checkItems(items); err != nil {
		return nil, err
	}

	res := &Result{Policy: policy, Lines: make([]Line, len(items))}

	type group struct {
		sub      Subtotal
		exact    decimal.Decimal
		lineTax  decimal.Decimal
		lineBase decimal.Decimal
	}
	var groups []*group
	byKey := map[string]*group{}

	for i, item := range items {
		cat := resolveCategory(item)
		exact := item.TaxExclusiveUnitPrice.Mul(item.Quantity)
		ext := policy.Round(exact)
		lineTax := policy.Round(ext.Mul(item.VATRate))

		res.Lines[i] = Line{
			Index:         i,
			ID:            item.ID,
			Name:          item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.TaxExclusiveUnitPrice,
			Rate:          item.VATRate,
			Category:      cat,
			LineExtension: ext,
			TaxAmount:     lineTax,
		}

		key := item.VATRate.String() + "|" + cat.Code
		g, ok := byKey[key]
		if !ok {
			g = &group{sub: Subtotal{Rate: item.VATRate, Category: cat}}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.exact = g.exact.Add(exact)
		g.lineBase = g.lineBase.Add(ext)
		g.lineTax = g.lineTax.Add(lineTax)
	}

	var taxAmount, lineExtension decimal.Decimal
	for _, g := range groups {
		if policy.Aggregation == DocumentLevel {
			g.sub.TaxableAmount = policy.Round(g.exact)
			g.sub.TaxAmount = policy.Round(g.exact.Mul(g.sub.Rate))
		} else {
			g.sub.TaxableAmount = g.lineBase
			g.sub.TaxAmount = g.lineTax
		}
		taxAmount = taxAmount.Add(g.sub.TaxAmount)
		lineExtension = lineExtension.Add(g.sub.TaxableAmount)
		res.TaxTotal.Subtotals = append(res.TaxTotal.Subtotals, g.sub)
	}

	res.TaxTotal.TaxAmount = taxAmount
	inclusive := lineExtension.Add(taxAmount)
	res.MonetaryTotal = MonetaryTotal{
		LineExtensionAmount: lineExtension,
		TaxExclusiveAmount:  lineExtension,
		TaxInclusiveAmount:  inclusive,
		PayableAmount:       inclusive,
	}
	return res, nil
}

// Format renders d with the result's policy.
func (r *Result) Format(d decimal.Decimal) string {
	return r.Policy.Format(d)
}

func checkItems(items []model.LineItem) error {
	var errs model.ValidationErrors
	if len(items) == 0 {
		errs.Add(model.NewValidationError("line_items", nil, "required", "at least one line item is required"))
	}
	for i, item := range items {
		if !IsSupportedRate(item.VATRate) {
			errs.Add(model.NewItemValidationError("line_items", i, "vat_rate", item.VATRate.String(), "vat_rate",
				"VAT rate must be one of 0, 0.05 or 0.15"))
			continue
		}
		if item.VATRate.IsZero() && (item.VATCategory == nil || item.VATCategory.Code == "") {
			errs.Add(model.NewItemValidationError("line_items", i, "vat_category", nil, "zero_rate_category",
				MsgZeroRateCategory))
		}
	}
	return errs.Err()
}

func resolveCategory(item model.LineItem) Category {
	if item.VATCategory != nil && item.VATCategory.Code != "" {
		return Category{
			Code:       item.VATCategory.Code,
			Reason:     item.VATCategory.Reason,
			ReasonCode: item.VATCategory.ReasonCode,
		}
	}
	return Category{Code: model.CategoryStandard}
}
