package signature

import (
	"time"
)

// VerificationResult contains the complete signature verification outcome
type VerificationResult struct {
	// Overall validity - true only if all checks pass
	Valid bool `json:"valid"`

	// Individual check results
	SignatureFound        bool `json:"signature_found"`
	HashValid             bool `json:"hash_valid"`
	SignatureValid        bool `json:"signature_valid"`
	SignedPropertiesValid bool `json:"signed_properties_valid"`
	CertDigestValid       bool `json:"cert_digest_valid"`
	QRValid               bool `json:"qr_valid"`
	CertChainValid        bool `json:"cert_chain_valid"`
	NotRevoked            bool `json:"not_revoked"`

	// Hash recomputed from the document
	InvoiceHash string `json:"invoice_hash,omitempty"`

	// Signer information
	Signer *SignerInfo `json:"signer,omitempty"`

	// Signing time from the qualifying properties
	SignedAt *time.Time `json:"signed_at,omitempty"`

	// Certificate chain, leaf first (not serialized to JSON)
	CertChain []*Certificate `json:"-"`

	// Warnings (non-fatal issues)
	Warnings []string `json:"warnings,omitempty"`

	// Errors (reasons for invalid result)
	Errors []string `json:"errors,omitempty"`

	// Format of the verified document
	Format string `json:"format,omitempty"`
}

// SignerInfo contains certificate subject information
type SignerInfo struct {
	// Common name (CN)
	Name string `json:"name"`

	// Organization (O)
	Organization string `json:"organization,omitempty"`

	// Certificate serial number
	SerialNumber string `json:"serial_number"`

	// Issuer distinguished name
	Issuer string `json:"issuer"`

	Curve Curve `json:"curve"`

	// Certificate validity period
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
}

// NewVerificationResult creates a new empty result
func NewVerificationResult() *VerificationResult {
	return &VerificationResult{
		Warnings: make([]string, 0),
		Errors:   make([]string, 0),
	}
}

// AddWarning adds a warning message to the result
func (r *VerificationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddError adds an error message and sets Valid to false
func (r *VerificationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// SetSigner populates SignerInfo from a parsed certificate
func (r *VerificationResult) SetSigner(cert *Certificate) {
	if cert == nil {
		return
	}

	signer := &SignerInfo{
		Name:         cert.CommonName,
		Organization: cert.Organization,
		Issuer:       cert.Issuer,
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
	}
	if cert.SerialNumber != nil {
		signer.SerialNumber = cert.SerialNumber.String()
	}
	if cert.PublicKey != nil {
		signer.Curve = cert.PublicKey.Curve()
	}

	r.Signer = signer
}

// ComputeValidity sets the Valid field based on the document checks. Chain
// and revocation checks count only when a trust store was consulted, which
// callers record with warnings when skipped.
func (r *VerificationResult) ComputeValidity() {
	r.Valid = r.SignatureFound &&
		r.HashValid &&
		r.SignatureValid &&
		r.SignedPropertiesValid &&
		r.CertDigestValid &&
		r.QRValid &&
		len(r.Errors) == 0
}

// IsFullyValid returns true if the document checks passed and the
// certificate chains to a trusted, unrevoked root
func (r *VerificationResult) IsFullyValid() bool {
	return r.Valid && r.CertChainValid && r.NotRevoked
}
