package signature

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"
)

func TestVerificationResult_JSONSerialization(t *testing.T) {
	signedAt := time.Date(2022, 3, 13, 14, 40, 40, 0, time.UTC)

	result := &VerificationResult{
		Valid:                 true,
		SignatureFound:        true,
		HashValid:             true,
		SignatureValid:        true,
		SignedPropertiesValid: true,
		CertDigestValid:       true,
		QRValid:               true,
		InvoiceHash:           "f+0WCqnPkInI+eL9G3LAry12fTPf+toC9UX07F4fI+s=",
		SignedAt:              &signedAt,
		Format:                FormatXML,
		Signer: &SignerInfo{
			Name:         "EGS1-886431145",
			Organization: "شركة توريد التكنولوجيا",
			SerialNumber: "1234567890",
			Issuer:       "CN=TSZEINVOICE-SubCA-1, DC=extgazt, DC=gov, DC=local",
			Curve:        CurveSecp256k1,
			ValidFrom:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ValidTo:      time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
		},
		Warnings: []string{"no trust store configured"},
		Errors:   []string{},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}

	var decoded VerificationResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if decoded.Valid != result.Valid {
		t.Errorf("Valid: got %v, want %v", decoded.Valid, result.Valid)
	}
	if decoded.HashValid != result.HashValid {
		t.Errorf("HashValid: got %v, want %v", decoded.HashValid, result.HashValid)
	}
	if decoded.InvoiceHash != result.InvoiceHash {
		t.Errorf("InvoiceHash: got %v, want %v", decoded.InvoiceHash, result.InvoiceHash)
	}
	if decoded.Signer == nil {
		t.Fatal("Signer is nil after unmarshal")
	}
	if decoded.Signer.Organization != result.Signer.Organization {
		t.Errorf("Signer.Organization: got %v, want %v", decoded.Signer.Organization, result.Signer.Organization)
	}
	if decoded.Signer.Curve != CurveSecp256k1 {
		t.Errorf("Signer.Curve: got %v, want %v", decoded.Signer.Curve, CurveSecp256k1)
	}
	if len(decoded.Warnings) != len(result.Warnings) {
		t.Errorf("Warnings length: got %d, want %d", len(decoded.Warnings), len(result.Warnings))
	}
}

func TestVerificationResult_OmitEmpty(t *testing.T) {
	data, err := json.Marshal(&VerificationResult{})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal to map: %v", err)
	}

	for _, key := range []string{"signer", "signed_at", "invoice_hash", "cert_chain"} {
		if _, exists := raw[key]; exists {
			t.Errorf("%s should be omitted", key)
		}
	}
}

func TestVerificationResult_SetSigner(t *testing.T) {
	key, err := GeneratePrivateKey(CurveSecp256k1)
	if err != nil {
		t.Fatal(err)
	}
	cert := &Certificate{
		SerialNumber: big.NewInt(12345),
		CommonName:   "EGS1-886431145",
		Organization: "Wesam Alzahir",
		Issuer:       "CN=Test CA",
		PublicKey:    key.Public(),
		NotBefore:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:     time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}

	result := NewVerificationResult()
	result.SetSigner(cert)

	if result.Signer == nil {
		t.Fatal("Signer is nil after SetSigner")
	}
	if result.Signer.Name != "EGS1-886431145" {
		t.Errorf("Name: got %v", result.Signer.Name)
	}
	if result.Signer.SerialNumber != "12345" {
		t.Errorf("SerialNumber: got %v, want 12345", result.Signer.SerialNumber)
	}
	if result.Signer.Curve != CurveSecp256k1 {
		t.Errorf("Curve: got %v", result.Signer.Curve)
	}

	result.SetSigner(nil)
	if result.Signer == nil {
		t.Error("SetSigner(nil) should keep the previous signer")
	}
}

func TestVerificationResult_ComputeValidity(t *testing.T) {
	allPass := func(r *VerificationResult) {
		r.SignatureFound = true
		r.HashValid = true
		r.SignatureValid = true
		r.SignedPropertiesValid = true
		r.CertDigestValid = true
		r.QRValid = true
	}

	tests := []struct {
		name     string
		setup    func(*VerificationResult)
		expected bool
	}{
		{"all checks pass", func(r *VerificationResult) {}, true},
		{"signature not found", func(r *VerificationResult) { r.SignatureFound = false }, false},
		{"hash mismatch", func(r *VerificationResult) { r.HashValid = false }, false},
		{"signature invalid", func(r *VerificationResult) { r.SignatureValid = false }, false},
		{"signed properties tampered", func(r *VerificationResult) { r.SignedPropertiesValid = false }, false},
		{"certificate digest mismatch", func(r *VerificationResult) { r.CertDigestValid = false }, false},
		{"qr mismatch", func(r *VerificationResult) { r.QRValid = false }, false},
		{"has errors", func(r *VerificationResult) { r.Errors = []string{"some error"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewVerificationResult()
			allPass(result)
			tt.setup(result)
			result.ComputeValidity()

			if result.Valid != tt.expected {
				t.Errorf("Valid: got %v, want %v", result.Valid, tt.expected)
			}
		})
	}
}

func TestVerificationResult_IsFullyValid(t *testing.T) {
	result := NewVerificationResult()
	result.Valid = true
	if result.IsFullyValid() {
		t.Error("IsFullyValid without chain checks should be false")
	}
	result.CertChainValid = true
	result.NotRevoked = true
	if !result.IsFullyValid() {
		t.Error("IsFullyValid should be true")
	}
}

func TestVerificationResult_AddWarningAndError(t *testing.T) {
	result := NewVerificationResult()
	result.Valid = true

	result.AddWarning("OCSP responder not configured")
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings count: got %d, want 1", len(result.Warnings))
	}
	if result.Valid != true {
		t.Error("AddWarning should not change Valid")
	}

	result.AddError("certificate expired")
	if len(result.Errors) != 1 {
		t.Errorf("Errors count: got %d, want 1", len(result.Errors))
	}
	if result.Valid != false {
		t.Error("AddError should set Valid to false")
	}
}
