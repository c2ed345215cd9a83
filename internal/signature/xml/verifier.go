// Package xml verifies the enveloped signature of signed invoice XML.
package xml

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/hashchain"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/qr"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/trust"
)

// XMLVerifier verifies signed invoices
type XMLVerifier struct {
	trustStore *trust.TrustStore
	extractor  *SignatureExtractor
}

var _ signature.Verifier = (*XMLVerifier)(nil)

// NewXMLVerifier creates a verifier. A nil trust store skips chain and
// revocation checks.
func NewXMLVerifier(ts *trust.TrustStore) *XMLVerifier {
	return &XMLVerifier{
		trustStore: ts,
		extractor:  NewSignatureExtractor(),
	}
}

// Verify re-derives the invoice hash and checks every digest and signature
// the document carries
func (v *XMLVerifier) Verify(ctx context.Context, data []byte) (*signature.VerificationResult, error) {
	result := signature.NewVerificationResult()
	result.Format = signature.FormatXML

	extraction, err := v.extractor.Extract(data)
	if err != nil {
		result.AddError(err.Error())
		return result, signature.ErrNoSignature()
	}
	result.SignatureFound = true

	hash, err := hashchain.DigestXML(data)
	if err != nil {
		result.AddError(fmt.Sprintf("failed to hash invoice: %v", err))
		return result, err
	}
	result.InvoiceHash = hash
	result.HashValid = hash == extraction.InvoiceDigest
	if !result.HashValid {
		result.AddError(signature.ErrDigestMismatch("invoiceSignedData", hash, extraction.InvoiceDigest).Error())
	}

	if t, err := time.Parse(signature.SigningTimeLayout, extraction.SigningTime); err == nil {
		result.SignedAt = &t
	}

	cert, err := signature.ParseCertificate(extraction.Certificate)
	if err != nil {
		result.AddError(fmt.Sprintf("certificate: %v", err))
		result.ComputeValidity()
		return result, nil
	}
	result.SetSigner(cert)

	v.checkSignature(result, extraction, cert, hash)
	v.checkProperties(result, extraction, cert)
	v.checkQR(result, extraction, cert, hash)
	v.checkChain(ctx, result, cert)

	result.ComputeValidity()
	return result, nil
}

func (v *XMLVerifier) checkSignature(result *signature.VerificationResult, ex *ExtractionResult, cert *signature.Certificate, hash string) {
	sig, err := base64.StdEncoding.DecodeString(ex.SignatureValue)
	if err != nil || len(sig) == 0 {
		result.AddError("signature value is missing or not base64")
		return
	}
	hashBytes, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		result.AddError(fmt.Sprintf("invoice hash: %v", err))
		return
	}
	digest := sha256.Sum256(hashBytes)
	result.SignatureValid = cert.PublicKey.Verify(digest[:], sig)
	if !result.SignatureValid {
		result.AddError(signature.ErrInvalidSignature(nil).Error())
	}
}

func (v *XMLVerifier) checkProperties(result *signature.VerificationResult, ex *ExtractionResult, cert *signature.Certificate) {
	if ex.SignedProperties == nil {
		result.AddError("no SignedProperties element found")
		return
	}

	digest, err := signature.SignedPropertiesDigest(ex.SignedProperties)
	if err != nil {
		result.AddError(err.Error())
		return
	}
	result.SignedPropertiesValid = digest == ex.PropertiesDigest
	if !result.SignedPropertiesValid {
		result.AddError(signature.ErrDigestMismatch("xadesSignedProperties", digest, ex.PropertiesDigest).Error())
	}

	result.CertDigestValid = cert.Digest() == ex.CertDigest
	if !result.CertDigestValid {
		result.AddError(signature.ErrDigestMismatch("CertDigest", cert.Digest(), ex.CertDigest).Error())
	}
	if ex.SerialNumber != cert.SerialNumber.String() {
		result.AddError(fmt.Sprintf("X509SerialNumber %s does not match certificate serial %s", ex.SerialNumber, cert.SerialNumber))
		result.CertDigestValid = false
	}
	if ex.IssuerName != cert.Issuer {
		result.AddWarning(fmt.Sprintf("X509IssuerName %q differs from certificate issuer %q", ex.IssuerName, cert.Issuer))
	}
}

// checkQR compares the embedded QR payload with the document it sits in
func (v *XMLVerifier) checkQR(result *signature.VerificationResult, ex *ExtractionResult, cert *signature.Certificate, hash string) {
	if ex.QR == "" {
		result.AddError("no QR document reference found")
		return
	}
	payload, err := qr.Parse(ex.QR)
	if err != nil {
		result.AddError(fmt.Sprintf("QR payload: %v", err))
		return
	}

	root := ex.Document.Root()
	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"seller_name", payload.SellerName, value(root, invoice.PathSellerName)},
		{"vat_number", payload.VATNumber, value(root, invoice.PathSellerVAT)},
		{"timestamp", payload.Timestamp, timestamp(root)},
		{"total_with_vat", payload.TotalWithVAT, value(root, invoice.PathTaxInclusive)},
		{"vat_total", payload.VATTotal, value(root, invoice.PathTaxAmount)},
	}
	if payload.Signed() {
		spki := base64.StdEncoding.EncodeToString(cert.RawSubjectPublicKeyInfo)
		checks = append(checks,
			struct{ field, got, want string }{"invoice_hash", payload.InvoiceHash, hash},
			struct{ field, got, want string }{"signature", payload.Signature, ex.SignatureValue},
			struct{ field, got, want string }{"public_key", payload.PublicKey, spki},
		)
	}

	result.QRValid = true
	for _, c := range checks {
		if c.got != c.want {
			result.QRValid = false
			result.AddError(fmt.Sprintf("QR %s %q does not match document value %q", c.field, c.got, c.want))
		}
	}
}

func (v *XMLVerifier) checkChain(ctx context.Context, result *signature.VerificationResult, cert *signature.Certificate) {
	if v.trustStore == nil {
		result.AddWarning("certificate chain not checked: no trust store configured")
		return
	}

	chain, err := v.trustStore.VerifyChain(cert, nil)
	if err != nil {
		result.AddWarning(fmt.Sprintf("certificate chain: %v", err))
		return
	}
	result.CertChain = chain
	result.CertChainValid = true

	if len(chain) < 2 {
		// Self-signed or no issuer in chain - skip revocation check
		result.NotRevoked = true
		result.AddWarning("revocation check skipped: no issuer certificate in chain")
		return
	}

	notRevoked, err := v.trustStore.CheckRevocation(ctx, cert, chain[1])
	switch {
	case err != nil && v.trustStore.IsSoftFail():
		result.AddWarning(fmt.Sprintf("OCSP check: %v (soft-fail enabled)", err))
		result.NotRevoked = true
	case err != nil:
		result.AddWarning(fmt.Sprintf("OCSP check failed: %v", err))
	default:
		result.NotRevoked = notRevoked
		if !notRevoked {
			result.AddError("certificate has been revoked")
		}
	}
}

// CanVerify returns true if the data appears to be XML
func (v *XMLVerifier) CanVerify(data []byte) bool {
	if len(data) < 5 {
		return false
	}

	trimmed := bytes.TrimSpace(data)
	return bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<"))
}

// Format returns the format this verifier handles
func (v *XMLVerifier) Format() string {
	return signature.FormatXML
}

func value(root *etree.Element, p string) string {
	return textOf(root.FindElement("./" + p))
}

func timestamp(root *etree.Element) string {
	date, clock := value(root, invoice.PathIssueDate), value(root, invoice.PathIssueTime)
	if t, err := time.Parse("2006-01-02 15:04:05", date+" "+clock); err == nil {
		return t.Format("2006-01-02T15:04:05") + "Z"
	}
	return date + "T" + clock + "Z"
}
