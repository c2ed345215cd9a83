// Package zatca provides the public API for producing e-invoices for the
// Saudi e-invoicing mandate.
//
// This package exposes the core types and functions for validating, building,
// hashing, encoding and signing invoices, and for checking signed ones.
//
// Example usage:
//
//	inv, err := zatca.Build(props, zatca.DefaultPolicy())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	signed, err := zatca.Sign(inv, certPEM, keyPEM)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(signed.InvoiceHash, signed.QR)
package zatca

import (
	"context"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/hashchain"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/parser/ubl"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/qr"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/trust"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/xml"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/tax"
)

// Re-export core types for public API
type (
	InvoiceProps   = model.InvoiceProps
	EGSInfo        = model.EGSInfo
	CustomerInfo   = model.CustomerInfo
	Address        = model.Address
	LineItem       = model.LineItem
	VATCategory    = model.VATCategory
	Cancellation   = model.Cancellation
	InvoiceCode    = model.InvoiceCode
	PaymentMethod  = model.PaymentMethod
	InvoiceSummary = model.InvoiceSummary

	Invoice             = invoice.Invoice
	Policy              = tax.Policy
	SignedInvoiceResult = signature.SignedInvoiceResult
	Credentials         = signature.Credentials
	VerificationResult  = signature.VerificationResult
	TrustStore          = trust.TrustStore
	QRPayload           = qr.Payload
)

// Re-export invoice kinds
const (
	CodeTaxInvoice = model.CodeTaxInvoice
	CodeDebitNote  = model.CodeDebitNote
	CodeCreditNote = model.CodeCreditNote

	TypeSimplified = model.TypeSimplified
	TypeStandard   = model.TypeStandard
)

// Re-export payment methods
const (
	PaymentCash        = model.PaymentCash
	PaymentCredit      = model.PaymentCredit
	PaymentBankAccount = model.PaymentBankAccount
	PaymentBankCard    = model.PaymentBankCard
)

// Re-export rounding policy settings
const (
	PrecisionStrict   = tax.PrecisionStrict
	PrecisionExtended = tax.PrecisionExtended
	LineLevel         = tax.LineLevel
	DocumentLevel     = tax.DocumentLevel
)

// GenesisHash is the previous-invoice hash of a device's first invoice
const GenesisHash = hashchain.GenesisHash

// Re-export error types
type (
	ValidationError  = model.ValidationError
	ValidationErrors = model.ValidationErrors
	EncodingError    = model.EncodingError
	ParseError       = model.ParseError
	SigningError     = signature.SigningError
)

// DefaultPolicy returns the compliant rounding policy: strict precision,
// line-level aggregation, half-up rounding.
func DefaultPolicy() Policy {
	return tax.DefaultPolicy()
}

// Validate checks props and returns every rule violation at once
func Validate(props InvoiceProps) error {
	return invoice.Validate(props)
}

// Build validates props, computes the tax figures and assembles the document
func Build(props InvoiceProps, policy Policy) (*Invoice, error) {
	return invoice.Build(props, policy)
}

// Hash returns the base64 chain hash of inv
func Hash(inv *Invoice) (string, error) {
	return hashchain.Digest(inv)
}

// EncodeQR returns the five-record base64 QR payload of inv
func EncodeQR(inv *Invoice) (string, error) {
	return qr.Encode(inv)
}

// DecodeQR parses a base64 QR payload
func DecodeQR(payload string) (*QRPayload, error) {
	return qr.Parse(payload)
}

// Sign signs inv with a PEM (or bare base64) certificate and EC private key
func Sign(inv *Invoice, certificatePEM, privateKeyPEM string) (*SignedInvoiceResult, error) {
	return signature.Sign(inv, certificatePEM, privateKeyPEM)
}

// LoadCredentials parses a certificate and its private key for repeated signing
func LoadCredentials(certificatePEM, privateKeyPEM string) (*Credentials, error) {
	return signature.LoadCredentials(certificatePEM, privateKeyPEM)
}

// NewTrustStore creates an empty trust store for Verify
func NewTrustStore() *TrustStore {
	return trust.NewTrustStore()
}

// Verify checks a signed invoice. ts may be nil to skip chain validation.
func Verify(ctx context.Context, signedXML []byte, ts *TrustStore) (*VerificationResult, error) {
	return xml.NewXMLVerifier(ts).Verify(ctx, signedXML)
}

// Parse reads the facts of any UBL invoice document
func Parse(ctx context.Context, data []byte) (*InvoiceSummary, error) {
	return ubl.NewParser().ParseBytes(ctx, data)
}
