// Package ubl reads issued UBL 2.1 invoice documents back into summaries.
package ubl

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
)

// UBL structures, matched by local name so any prefix binding works.
type ublInvoice struct {
	XMLName          xml.Name
	Extensions       *ublExtensions   `xml:"UBLExtensions"`
	ID               string           `xml:"ID"`
	UUID             string           `xml:"UUID"`
	IssueDate        string           `xml:"IssueDate"`
	IssueTime        string           `xml:"IssueTime"`
	TypeCode         ublTypeCode      `xml:"InvoiceTypeCode"`
	Currency         string           `xml:"DocumentCurrencyCode"`
	BillingReference *ublBillingRef   `xml:"BillingReference"`
	DocumentRefs     []ublDocumentRef `xml:"AdditionalDocumentReference"`
	Supplier         ublPartyWrapper  `xml:"AccountingSupplierParty"`
	Customer         *ublPartyWrapper `xml:"AccountingCustomerParty"`
	PaymentMeans     *ublPaymentMeans `xml:"PaymentMeans"`
	TaxTotals        []ublTaxTotal    `xml:"TaxTotal"`
	MonetaryTotal    ublMonetaryTotal `xml:"LegalMonetaryTotal"`
	Lines            []ublLine        `xml:"InvoiceLine"`
}

type ublExtensions struct {
	Inner string `xml:",innerxml"`
}

type ublTypeCode struct {
	Code string `xml:",chardata"`
	Name string `xml:"name,attr"`
}

type ublBillingRef struct {
	ID string `xml:"InvoiceDocumentReference>ID"`
}

type ublDocumentRef struct {
	ID     string `xml:"ID"`
	UUID   string `xml:"UUID"`
	Binary string `xml:"Attachment>EmbeddedDocumentBinaryObject"`
}

type ublPartyWrapper struct {
	Party *ublParty `xml:"Party"`
}

type ublParty struct {
	Identifications []ublSchemeID `xml:"PartyIdentification>ID"`
	City            string        `xml:"PostalAddress>CityName"`
	CompanyID       string        `xml:"PartyTaxScheme>CompanyID"`
	Name            string        `xml:"PartyLegalEntity>RegistrationName"`
}

type ublSchemeID struct {
	Value    string `xml:",chardata"`
	SchemeID string `xml:"schemeID,attr"`
}

type ublPaymentMeans struct {
	Code string `xml:"PaymentMeansCode"`
}

type ublTaxTotal struct {
	TaxAmount string `xml:"TaxAmount"`
}

type ublMonetaryTotal struct {
	LineExtension string `xml:"LineExtensionAmount"`
	TaxExclusive  string `xml:"TaxExclusiveAmount"`
	TaxInclusive  string `xml:"TaxInclusiveAmount"`
	Payable       string `xml:"PayableAmount"`
}

type ublLine struct {
	ID string `xml:"ID"`
}

// Parser reads issued invoice XML into model.InvoiceSummary
type Parser struct{}

// NewParser creates a new UBL parser
func NewParser() *Parser {
	return &Parser{}
}

// CanParse checks if content looks like a UBL 2.1 invoice
func (p *Parser) CanParse(content []byte) bool {
	return bytes.Contains(content, []byte(invoice.NSInvoice)) &&
		bytes.Contains(content, []byte("Invoice"))
}

// Parse reads a UBL invoice from r
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*model.InvoiceSummary, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError("content", "failed to read content", err)
	}
	return p.ParseBytes(ctx, content)
}

// ParseBytes reads a UBL invoice from memory
func (p *Parser) ParseBytes(ctx context.Context, content []byte) (*model.InvoiceSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc ublInvoice
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, model.NewParseError("xml", "failed to parse XML", err)
	}
	if doc.XMLName.Local != "Invoice" {
		return nil, model.NewParseError("root", "expected an Invoice document, got "+doc.XMLName.Local, nil)
	}
	if doc.ID == "" {
		return nil, model.NewParseError("cbc:ID", "invoice serial number is missing", nil)
	}

	return convert(&doc)
}

func convert(doc *ublInvoice) (*model.InvoiceSummary, error) {
	s := &model.InvoiceSummary{
		SerialNumber: strings.TrimSpace(doc.ID),
		UUID:         strings.TrimSpace(doc.UUID),
		IssueDate:    strings.TrimSpace(doc.IssueDate),
		IssueTime:    strings.TrimSpace(doc.IssueTime),
		InvoiceCode:  model.InvoiceCode(strings.TrimSpace(doc.TypeCode.Code)),
		InvoiceType:  doc.TypeCode.Name,
		Currency:     strings.TrimSpace(doc.Currency),
		LineCount:    len(doc.Lines),
		Signed:       doc.Extensions != nil && strings.Contains(doc.Extensions.Inner, "Signature"),
	}

	if doc.BillingReference != nil {
		s.BillingReference = strings.TrimSpace(doc.BillingReference.ID)
	}
	if doc.PaymentMeans != nil {
		s.PaymentMethod = model.PaymentMethod(strings.TrimSpace(doc.PaymentMeans.Code))
	}

	for _, ref := range doc.DocumentRefs {
		switch strings.TrimSpace(ref.ID) {
		case invoice.RefDevice:
			s.DeviceID = strings.TrimSpace(ref.UUID)
		case invoice.RefCounter:
			counter, err := strconv.ParseInt(strings.TrimSpace(ref.UUID), 10, 64)
			if err != nil {
				return nil, model.NewParseError("ICV", "invoice counter is not an integer", err)
			}
			s.Counter = counter
		case invoice.RefPreviousHash:
			s.PreviousHash = strings.TrimSpace(ref.Binary)
		case invoice.RefQR:
			s.QR = strings.TrimSpace(ref.Binary)
		}
	}

	if doc.Supplier.Party != nil {
		s.Seller = convertParty(doc.Supplier.Party)
	}
	if doc.Customer != nil && doc.Customer.Party != nil {
		buyer := convertParty(doc.Customer.Party)
		s.Buyer = &buyer
	}

	var err error
	mt := doc.MonetaryTotal
	if s.LineExtension, err = amount("LineExtensionAmount", mt.LineExtension); err != nil {
		return nil, err
	}
	if s.TaxExclusive, err = amount("TaxExclusiveAmount", mt.TaxExclusive); err != nil {
		return nil, err
	}
	if s.TaxInclusive, err = amount("TaxInclusiveAmount", mt.TaxInclusive); err != nil {
		return nil, err
	}
	if s.Payable, err = amount("PayableAmount", mt.Payable); err != nil {
		return nil, err
	}
	if len(doc.TaxTotals) > 0 {
		if s.TaxAmount, err = amount("TaxAmount", doc.TaxTotals[0].TaxAmount); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func convertParty(p *ublParty) model.Party {
	party := model.Party{
		Name:      strings.TrimSpace(p.Name),
		VATNumber: strings.TrimSpace(p.CompanyID),
		City:      strings.TrimSpace(p.City),
	}
	for _, id := range p.Identifications {
		if id.SchemeID == "CRN" {
			party.CRN = strings.TrimSpace(id.Value)
		}
	}
	return party
}

// amount parses a monetary value; empty values read as zero
func amount(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, model.NewParseError(field, "not a decimal amount", err)
	}
	return d, nil
}
