package server

import (
	"time"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
)

// FieldError is one failed validation rule
type FieldError struct {
	Path    string `json:"path"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationResponse is the response for the validate endpoint
type ValidationResponse struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Totals are the document-level amounts, formatted
type Totals struct {
	LineExtension string `json:"line_extension"`
	TaxExclusive  string `json:"tax_exclusive"`
	TaxAmount     string `json:"tax_amount"`
	TaxInclusive  string `json:"tax_inclusive"`
	Payable       string `json:"payable"`
}

// BuildResponse is the response for the build endpoint
type BuildResponse struct {
	XML         string `json:"xml"`
	InvoiceHash string `json:"invoice_hash"`
	QR          string `json:"qr"`
	Totals      Totals `json:"totals"`
}

// SignResponse is the response for the sign endpoint
type SignResponse struct {
	SignedXML   string `json:"signed_xml"`
	InvoiceHash string `json:"invoice_hash"`
	QR          string `json:"qr"`
	SigningTime string `json:"signing_time"`
	Totals      Totals `json:"totals"`
}

// QRDecodeRequest carries a base64 TLV payload
type QRDecodeRequest struct {
	QR string `json:"qr"`
}

// InfoResponse is the response for the info endpoint
type InfoResponse struct {
	Kind    string                `json:"kind"`
	Size    int                   `json:"size"`
	Summary *model.InvoiceSummary `json:"summary"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// VerifyResponse is the response for signature verification endpoint
type VerifyResponse struct {
	Format                string            `json:"format,omitempty"`
	Valid                 bool              `json:"valid"`
	SignatureFound        bool              `json:"signature_found"`
	HashValid             bool              `json:"hash_valid"`
	SignatureValid        bool              `json:"signature_valid"`
	SignedPropertiesValid bool              `json:"signed_properties_valid"`
	CertDigestValid       bool              `json:"cert_digest_valid"`
	QRValid               bool              `json:"qr_valid"`
	CertChainValid        bool              `json:"cert_chain_valid"`
	NotRevoked            bool              `json:"not_revoked"`
	InvoiceHash           string            `json:"invoice_hash,omitempty"`
	Signer                *SignerInfoOutput `json:"signer,omitempty"`
	SignedAt              *time.Time        `json:"signed_at,omitempty"`
	Warnings              []string          `json:"warnings,omitempty"`
	Errors                []string          `json:"errors,omitempty"`
}

// SignerInfoOutput holds signer info for API response
type SignerInfoOutput struct {
	Name         string     `json:"name,omitempty"`
	Organization string     `json:"organization,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Issuer       string     `json:"issuer,omitempty"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
}
