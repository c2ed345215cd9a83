package model

import (
	"github.com/shopspring/decimal"
)

// InvoiceCode is the UN/CEFACT 1001 document type code
type InvoiceCode string

const (
	CodeTaxInvoice InvoiceCode = "388"
	CodeDebitNote  InvoiceCode = "383"
	CodeCreditNote InvoiceCode = "381"
)

// IsNote reports whether the code is a debit or credit note, which must
// reference the invoice it amends.
func (c InvoiceCode) IsNote() bool {
	return c == CodeDebitNote || c == CodeCreditNote
}

// Invoice subtype names rendered in InvoiceTypeCode/@name.
// Positions: 1-2 kind (01 standard, 02 simplified), then third-party,
// nominal, exports, summary and self-billed flags.
const (
	TypeSimplified = "0211010"
	TypeStandard   = "0100000"
)

// PaymentMethod is the UN/ECE 4461 payment means code
type PaymentMethod string

const (
	PaymentUnspecified PaymentMethod = "1"
	PaymentCash        PaymentMethod = "10"
	PaymentCredit      PaymentMethod = "30"
	PaymentBankAccount PaymentMethod = "42"
	PaymentBankCard    PaymentMethod = "48"
)

// VAT category codes (UN/ECE 5305 subset)
const (
	CategoryStandard   = "S"
	CategoryZeroRated  = "Z"
	CategoryExempt     = "E"
	CategoryOutOfScope = "O"
)

// Address is a seller or buyer postal address
type Address struct {
	Street             string `json:"street"`
	Building           string `json:"building"`
	PlotIdentification string `json:"plot_identification,omitempty"`
	CitySubdivision    string `json:"city_subdivision,omitempty"`
	City               string `json:"city"`
	PostalZone         string `json:"postal_zone"`
	CountryCode        string `json:"country_code,omitempty"`
}

// EGSInfo identifies the invoicing device and the seller behind it
type EGSInfo struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	VATName        string   `json:"vat_name"`
	VATNumber      string   `json:"vat_number"`
	BranchName     string   `json:"branch_name"`
	BranchIndustry string   `json:"branch_industry"`
	Model          string   `json:"model"`
	Location       *Address `json:"location,omitempty"`
}

// CustomerInfo is the optional buyer of a simplified invoice
type CustomerInfo struct {
	Name      string   `json:"name"`
	VATNumber string   `json:"vat_number,omitempty"`
	Address   *Address `json:"address,omitempty"`
}

// VATCategory explains a line's tax treatment. Required for zero-rate lines.
type VATCategory struct {
	Code       string `json:"code"`
	Reason     string `json:"reason,omitempty"`
	ReasonCode string `json:"reason_code,omitempty"`
}

// LineItem is one invoiced good or service
type LineItem struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Quantity              decimal.Decimal `json:"quantity"`
	TaxExclusiveUnitPrice decimal.Decimal `json:"tax_exclusive_price"`
	VATRate               decimal.Decimal `json:"vat_rate"`
	VATCategory           *VATCategory    `json:"vat_category,omitempty"`
}

// Cancellation links a debit or credit note to the invoice it amends
type Cancellation struct {
	BillingReferenceID string `json:"billing_reference_id"`
	Reason             string `json:"reason"`
}

// InvoiceProps is the raw input of the invoice builder
type InvoiceProps struct {
	EGS                  EGSInfo       `json:"egs_info"`
	CRNNumber            string        `json:"crn_number"`
	Customer             *CustomerInfo `json:"customer_info,omitempty"`
	InvoiceUUID          string        `json:"invoice_uuid,omitempty"`
	InvoiceType          string        `json:"invoice_type"`
	InvoiceCode          InvoiceCode   `json:"invoice_code"`
	InvoiceCounterNumber int64         `json:"invoice_counter_number"`
	InvoiceSerialNumber  string        `json:"invoice_serial_number"`
	IssueDate            string        `json:"issue_date"`
	IssueTime            string        `json:"issue_time"`
	PreviousInvoiceHash  string        `json:"previous_invoice_hash"`
	PaymentMethod        PaymentMethod `json:"payment_method"`
	Cancellation         *Cancellation `json:"cancellation,omitempty"`
	LineItems            []LineItem    `json:"line_items"`
}

// DocumentUUID is the invoice UUID, falling back to the device id when the
// caller did not assign one.
func (p *InvoiceProps) DocumentUUID() string {
	if p.InvoiceUUID != "" {
		return p.InvoiceUUID
	}
	return p.EGS.ID
}

// Clone returns a deep copy so builders never share memory with callers.
func (p InvoiceProps) Clone() InvoiceProps {
	out := p
	if p.EGS.Location != nil {
		loc := *p.EGS.Location
		out.EGS.Location = &loc
	}
	if p.Customer != nil {
		c := *p.Customer
		if c.Address != nil {
			a := *c.Address
			c.Address = &a
		}
		out.Customer = &c
	}
	if p.Cancellation != nil {
		c := *p.Cancellation
		out.Cancellation = &c
	}
	if p.LineItems != nil {
		out.LineItems = make([]LineItem, len(p.LineItems))
		for i, li := range p.LineItems {
			if li.VATCategory != nil {
				cat := *li.VATCategory
				li.VATCategory = &cat
			}
			out.LineItems[i] = li
		}
	}
	return out
}
