// Package pdf verifies invoice PDFs that carry their signed XML as an
// embedded attachment.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/render"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/trust"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/xml"
)

// PDFVerifier verifies the signed invoice embedded in a PDF
type PDFVerifier struct {
	xml *xml.XMLVerifier
}

var _ signature.Verifier = (*PDFVerifier)(nil)

// PDF magic bytes
var pdfMagic = []byte("%PDF")

// NewPDFVerifier creates a PDF verifier. A nil trust store skips chain and
// revocation checks.
func NewPDFVerifier(ts *trust.TrustStore) *PDFVerifier {
	return &PDFVerifier{xml: xml.NewXMLVerifier(ts)}
}

// Verify extracts the embedded invoice XML and verifies it. The first
// attachment ending in .xml is used; further ones produce a warning.
func (v *PDFVerifier) Verify(ctx context.Context, data []byte) (*signature.VerificationResult, error) {
	attachments, err := render.Attachments(data)
	if err != nil {
		result := signature.NewVerificationResult()
		result.Format = signature.FormatPDF
		result.AddError(fmt.Sprintf("failed to read PDF: %v", err))
		return result, err
	}

	var invoices []render.Attachment
	for _, a := range attachments {
		if strings.EqualFold(filepath.Ext(a.Name), ".xml") {
			invoices = append(invoices, a)
		}
	}
	if len(invoices) == 0 {
		result := signature.NewVerificationResult()
		result.Format = signature.FormatPDF
		result.AddError("no invoice XML attached to PDF")
		return result, signature.ErrNoSignature()
	}

	result, err := v.xml.Verify(ctx, invoices[0].Data)
	if result != nil {
		result.Format = signature.FormatPDF
		if len(invoices) > 1 {
			result.AddWarning(fmt.Sprintf("PDF contains %d invoice attachments, only %s verified", len(invoices), invoices[0].Name))
		}
	}
	return result, err
}

// CanVerify returns true if the data appears to be a PDF
func (v *PDFVerifier) CanVerify(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// Format returns the format this verifier handles
func (v *PDFVerifier) Format() string {
	return signature.FormatPDF
}
