// Package invoice validates raw invoice input, runs the tax engine and
// assembles the UBL document tree of a simplified tax invoice.
package invoice

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/doctree"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/tax"
)

// Invoice is a built, immutable invoice. It is the unit that gets hashed,
// encoded into a QR payload and signed.
type Invoice struct {
	props  model.InvoiceProps
	result *tax.Result
	root   *doctree.Node
}

// Build validates props, computes taxes under policy and assembles the
// document tree. Validation failures are returned as model.ValidationErrors.
func Build(props model.InvoiceProps, policy tax.Policy) (*Invoice, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	props = props.Clone()
	normalize(&props)
	if err := Validate(props); err != nil {
		return nil, err
	}

	result, err := tax.Calculate(props.LineItems, policy)
	if err != nil {
		return nil, fmt.Errorf("calculate taxes: %w", err)
	}

	return &Invoice{
		props:  props,
		result: result,
		root:   assemble(&props, result),
	}, nil
}

// Props returns a copy of the input the invoice was built from.
func (inv *Invoice) Props() model.InvoiceProps {
	return inv.props.Clone()
}

func (inv *Invoice) Policy() tax.Policy {
	return inv.result.Policy
}

// Lines returns the computed line figures.
func (inv *Invoice) Lines() []tax.Line {
	return append([]tax.Line(nil), inv.result.Lines...)
}

func (inv *Invoice) TaxTotal() tax.TaxTotal {
	tt := inv.result.TaxTotal
	tt.Subtotals = append([]tax.Subtotal(nil), tt.Subtotals...)
	return tt
}

func (inv *Invoice) MonetaryTotal() tax.MonetaryTotal {
	return inv.result.MonetaryTotal
}

// Format renders an amount the way it appears in the document.
func (inv *Invoice) Format(d decimal.Decimal) string {
	return inv.result.Format(d)
}

// Root is the read-only document tree.
func (inv *Invoice) Root() *doctree.Node {
	return inv.root
}

// Query returns the subtrees at the slash-delimited path below the Invoice
// root, in document order.
func (inv *Invoice) Query(path string) []*doctree.Node {
	return inv.root.Query(path)
}

// Value returns the text of the first node at path.
func (inv *Invoice) Value(path string) string {
	return inv.root.Value(path)
}

// Document renders a fresh etree document. Callers may modify it freely.
func (inv *Invoice) Document() *etree.Document {
	return doctree.Document(inv.root)
}

// XML returns the compact unsigned invoice XML.
func (inv *Invoice) XML() ([]byte, error) {
	return doctree.Marshal(inv.root)
}

// IssueTimestamp joins issue date and time as YYYY-MM-DDTHH:MM:SSZ.
func (inv *Invoice) IssueTimestamp() string {
	ts, err := time.Parse(dateLayout+" "+timeLayout, inv.props.IssueDate+" "+inv.props.IssueTime)
	if err != nil {
		return inv.props.IssueDate + "T" + inv.props.IssueTime + "Z"
	}
	return ts.Format("2006-01-02T15:04:05") + "Z"
}
