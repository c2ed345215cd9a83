package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Party is the seller or buyer as read back from an invoice document
type Party struct {
	Name      string `json:"name"`
	VATNumber string `json:"vat_number,omitempty"`
	CRN       string `json:"crn,omitempty"`
	City      string `json:"city,omitempty"`
}

// InvoiceSummary is the read-side view of an issued invoice document
type InvoiceSummary struct {
	SerialNumber     string          `json:"serial_number"`
	UUID             string          `json:"uuid"`
	IssueDate        string          `json:"issue_date"`
	IssueTime        string          `json:"issue_time"`
	InvoiceCode      InvoiceCode     `json:"invoice_code"`
	InvoiceType      string          `json:"invoice_type"`
	Currency         string          `json:"currency"`
	DeviceID         string          `json:"device_id,omitempty"`
	Counter          int64           `json:"counter"`
	PreviousHash     string          `json:"previous_hash"`
	BillingReference string          `json:"billing_reference,omitempty"`
	PaymentMethod    PaymentMethod   `json:"payment_method,omitempty"`
	Seller           Party           `json:"seller"`
	Buyer            *Party          `json:"buyer,omitempty"`
	LineCount        int             `json:"line_count"`
	LineExtension    decimal.Decimal `json:"line_extension"`
	TaxExclusive     decimal.Decimal `json:"tax_exclusive"`
	TaxInclusive     decimal.Decimal `json:"tax_inclusive"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	Payable          decimal.Decimal `json:"payable"`
	QR               string          `json:"qr,omitempty"`
	Signed           bool            `json:"signed"`
}

// IssuedAt combines the issue date and time. The zero time is returned
// when either is malformed.
func (s *InvoiceSummary) IssuedAt() time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s.IssueDate+" "+s.IssueTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Kind names the document type for display
func (s *InvoiceSummary) Kind() string {
	kind := "tax invoice"
	switch s.InvoiceCode {
	case CodeDebitNote:
		kind = "debit note"
	case CodeCreditNote:
		kind = "credit note"
	}
	if len(s.InvoiceType) >= 2 && s.InvoiceType[:2] == "02" {
		return "simplified " + kind
	}
	return kind
}
