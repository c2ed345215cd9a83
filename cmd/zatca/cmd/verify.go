package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/pdf"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/trust"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/xml"
)

var (
	caFiles  []string
	skipOCSP bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [files...]",
	Short: "Verify signed invoices",
	Long: `Verify signed invoice XML files, or invoice PDFs carrying the signed XML
as an attachment.

Verifies:
  - Invoice hash against the signed reference digest
  - Signature value (ECDSA with the embedded certificate)
  - Signed properties and certificate digests
  - QR payload against the document and signature
  - Certificate chain (with --ca-file) and revocation (OCSP)

Examples:
  # Verify a signed invoice
  zatca verify signed.xml

  # Verify against the platform CA bundle
  zatca verify --ca-file zatca-ca.pem signed.xml

  # Do not fail when OCSP is unreachable
  zatca verify --ca-file zatca-ca.pem --skip-ocsp signed.xml

  # Verify the invoice embedded in a rendered PDF
  zatca verify invoice.pdf

  # JSON output
  zatca verify -f json signed.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringSliceVar(&caFiles, "ca-file", nil, "Trusted CA certificate bundle (PEM), repeatable")
	verifyCmd.Flags().BoolVar(&skipOCSP, "skip-ocsp", false, "Treat unreachable OCSP responders as good")
}

// VerifyResult holds the result of verifying a single file
type VerifyResult struct {
	File           string        `json:"file"`
	Format         string        `json:"format,omitempty"`
	Valid          bool          `json:"valid"`
	InvoiceHash    string        `json:"invoice_hash,omitempty"`
	SignatureFound bool          `json:"signature_found"`
	HashValid      bool          `json:"hash_valid"`
	SignatureValid bool          `json:"signature_valid"`
	QRValid        bool          `json:"qr_valid"`
	CertChainValid bool          `json:"cert_chain_valid"`
	NotRevoked     bool          `json:"not_revoked"`
	Signer         *SignerOutput `json:"signer,omitempty"`
	SignedAt       *time.Time    `json:"signed_at,omitempty"`
	Errors         []string      `json:"errors,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// SignerOutput holds signer info for output
type SignerOutput struct {
	Name         string     `json:"name,omitempty"`
	Organization string     `json:"organization,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Issuer       string     `json:"issuer,omitempty"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	var ts *trust.TrustStore
	if len(caFiles) > 0 {
		var opts []trust.TrustStoreOption
		if skipOCSP {
			opts = append(opts, trust.WithSoftFail())
		}
		var err error
		ts, err = trust.LoadTrustStore(caFiles, opts...)
		if err != nil {
			return fmt.Errorf("failed to create trust store: %w", err)
		}
	}
	verifiers := []signature.Verifier{
		xml.NewXMLVerifier(ts),
		pdf.NewPDFVerifier(ts),
	}

	results := make([]*VerifyResult, 0, len(args))
	allValid := true
	for _, file := range args {
		printVerbose("Verifying: %s\n", file)
		result := verifyFile(cmd.Context(), verifiers, file)
		results = append(results, result)
		if !result.Valid {
			allValid = false
		}
	}

	if outputFormat == "json" {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printVerifyResult(r, ts != nil)
		}
	}

	if !allValid {
		return fmt.Errorf("verification failed for some files")
	}
	return nil
}

func printVerifyResult(r *VerifyResult, chainChecked bool) {
	statusIcon, statusText := "✓", "VALID"
	if !r.Valid {
		statusIcon, statusText = "✗", "INVALID"
	}
	fmt.Printf("%s %s: %s\n", statusIcon, r.File, statusText)

	if r.Signer != nil {
		fmt.Printf("  Signer: %s\n", r.Signer.Name)
		if r.Signer.Organization != "" {
			fmt.Printf("  Org:    %s\n", r.Signer.Organization)
		}
		if r.Signer.Issuer != "" {
			fmt.Printf("  Issuer: %s\n", r.Signer.Issuer)
		}
	}
	if r.SignedAt != nil {
		fmt.Printf("  Signed: %s\n", r.SignedAt.Format(time.RFC3339))
	}
	if r.InvoiceHash != "" {
		fmt.Printf("  Invoice hash: %s\n", r.InvoiceHash)
	}

	if r.SignatureFound {
		fmt.Printf("  Hash:        %s\n", mark(r.HashValid))
		fmt.Printf("  Signature:   %s\n", mark(r.SignatureValid))
		fmt.Printf("  QR:          %s\n", mark(r.QRValid))
		if chainChecked {
			fmt.Printf("  Cert Chain:  %s\n", mark(r.CertChainValid))
			fmt.Printf("  Not Revoked: %s\n", mark(r.NotRevoked))
		} else {
			fmt.Printf("  Cert Chain:  - (no --ca-file)\n")
		}
	}

	for _, e := range r.Errors {
		fmt.Printf("  ✗ %s\n", e)
	}
	for _, w := range r.Warnings {
		fmt.Printf("  ⚠ %s\n", w)
	}
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func verifyFile(parent context.Context, verifiers []signature.Verifier, filePath string) *VerifyResult {
	ctx, cancel := context.WithTimeout(parent, 60*time.Second)
	defer cancel()

	result := &VerifyResult{File: filePath}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read file: %v", err))
		return result
	}
	var verifier signature.Verifier
	for _, v := range verifiers {
		if v.CanVerify(data) {
			verifier = v
			break
		}
	}
	if verifier == nil {
		result.Errors = append(result.Errors, "not an XML or PDF document")
		return result
	}
	result.Format = verifier.Format()

	verifyResult, err := verifier.Verify(ctx, data)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("verification error: %v", err))
		return result
	}

	result.Valid = verifyResult.Valid
	result.InvoiceHash = verifyResult.InvoiceHash
	result.SignatureFound = verifyResult.SignatureFound
	result.HashValid = verifyResult.HashValid
	result.SignatureValid = verifyResult.SignatureValid
	result.QRValid = verifyResult.QRValid
	result.CertChainValid = verifyResult.CertChainValid
	result.NotRevoked = verifyResult.NotRevoked
	result.SignedAt = verifyResult.SignedAt
	result.Errors = append(result.Errors, verifyResult.Errors...)
	result.Warnings = append(result.Warnings, verifyResult.Warnings...)

	if verifyResult.Signer != nil {
		result.Signer = &SignerOutput{
			Name:         verifyResult.Signer.Name,
			Organization: verifyResult.Signer.Organization,
			SerialNumber: verifyResult.Signer.SerialNumber,
			Issuer:       verifyResult.Signer.Issuer,
			ValidFrom:    &verifyResult.Signer.ValidFrom,
			ValidTo:      &verifyResult.Signer.ValidTo,
		}
	}
	return result
}
