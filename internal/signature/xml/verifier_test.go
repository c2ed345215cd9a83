package xml_test

import (
	"context"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/trust"
	sigxml "github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/xml"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/tax"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/testutil"
)

func signed(t *testing.T, creds testutil.Credentials, opts ...signature.Option) *signature.SignedInvoiceResult {
	t.Helper()
	inv, err := invoice.Build(testutil.Props(), tax.DefaultPolicy())
	require.NoError(t, err)
	res, err := signature.NewSigner(opts...).Sign(inv, creds.CertificatePEM, creds.PrivateKeyPEM)
	require.NoError(t, err)
	return res
}

// tamper parses the signed XML, applies fn and serializes it again.
func tamper(t *testing.T, data string, fn func(root *etree.Element)) []byte {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(data))
	fn(doc.Root())
	out, err := doc.WriteToBytes()
	require.NoError(t, err)
	return out
}

func TestXMLVerifier_Valid(t *testing.T) {
	creds := testutil.SelfSigned(t)
	res := signed(t, creds)

	result, err := sigxml.NewXMLVerifier(nil).Verify(context.Background(), []byte(res.SignedXML))
	require.NoError(t, err)

	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.True(t, result.HashValid)
	assert.True(t, result.SignatureValid)
	assert.True(t, result.SignedPropertiesValid)
	assert.True(t, result.CertDigestValid)
	assert.True(t, result.QRValid)
	assert.False(t, result.CertChainValid)
	assert.Equal(t, res.InvoiceHash, result.InvoiceHash)
	require.NotNil(t, result.Signer)
	assert.Equal(t, "Test Root CA", result.Signer.Name)
	require.NotNil(t, result.SignedAt)
	assert.NotEmpty(t, result.Warnings)
}

func TestXMLVerifier_PhaseTwoQR(t *testing.T) {
	creds := testutil.SelfSigned(t)
	res := signed(t, creds, signature.WithPhaseTwoQR())

	result, err := sigxml.NewXMLVerifier(nil).Verify(context.Background(), []byte(res.SignedXML))
	require.NoError(t, err)
	assert.True(t, result.QRValid, "errors: %v", result.Errors)
	assert.True(t, result.Valid)
}

func TestXMLVerifier_DecomposedText(t *testing.T) {
	creds := testutil.SelfSigned(t)

	names := map[string]string{
		"combining accent":    "Cafe\u0301 Riyadh",
		"shadda before fatha": "\u0645\u062d\u0645\u0651\u064e\u062f",
	}
	for name, seller := range names {
		t.Run(name, func(t *testing.T) {
			props := testutil.Props()
			props.EGS.VATName = seller
			props.LineItems[0].Name = seller
			inv, err := invoice.Build(props, tax.DefaultPolicy())
			require.NoError(t, err)

			res, err := signature.Sign(inv, creds.CertificatePEM, creds.PrivateKeyPEM)
			require.NoError(t, err)

			result, err := sigxml.NewXMLVerifier(nil).Verify(context.Background(), []byte(res.SignedXML))
			require.NoError(t, err)
			assert.True(t, result.QRValid, "errors: %v", result.Errors)
			assert.True(t, result.Valid)
			assert.Equal(t, res.InvoiceHash, result.InvoiceHash)
		})
	}
}

func TestXMLVerifier_Tampered(t *testing.T) {
	creds := testutil.SelfSigned(t)
	res := signed(t, creds)

	tests := []struct {
		name  string
		fn    func(root *etree.Element)
		check func(t *testing.T, r *signature.VerificationResult)
	}{
		{
			name: "amount changed",
			fn: func(root *etree.Element) {
				root.FindElement("./" + invoice.PathTaxInclusive).SetText("1.00")
			},
			check: func(t *testing.T, r *signature.VerificationResult) {
				assert.False(t, r.HashValid)
				assert.False(t, r.SignatureValid)
				assert.False(t, r.QRValid)
			},
		},
		{
			name: "signing time changed",
			fn: func(root *etree.Element) {
				root.FindElement(".//xades:SigningTime").SetText("2030-01-01T00:00:00")
			},
			check: func(t *testing.T, r *signature.VerificationResult) {
				assert.True(t, r.HashValid)
				assert.True(t, r.SignatureValid)
				assert.False(t, r.SignedPropertiesValid)
			},
		},
		{
			name: "signature value replaced",
			fn: func(root *etree.Element) {
				other := signed(t, testutil.SelfSigned(t))
				doc := etree.NewDocument()
				require.NoError(t, doc.ReadFromString(other.SignedXML))
				root.FindElement(".//ds:SignatureValue").SetText(doc.FindElement("//ds:SignatureValue").Text())
			},
			check: func(t *testing.T, r *signature.VerificationResult) {
				assert.True(t, r.HashValid)
				assert.False(t, r.SignatureValid)
			},
		},
		{
			name: "qr swapped",
			fn: func(root *etree.Element) {
				for _, ref := range root.FindElements("./" + invoice.PathDocumentRefs) {
					if ref.FindElement("./cbc:ID").Text() == invoice.RefQR {
						ref.FindElement(".//cbc:EmbeddedDocumentBinaryObject").SetText("AQNhYmM=")
					}
				}
			},
			check: func(t *testing.T, r *signature.VerificationResult) {
				assert.True(t, r.HashValid)
				assert.False(t, r.QRValid)
			},
		},
		{
			name: "serial number changed",
			fn: func(root *etree.Element) {
				root.FindElement(".//ds:X509SerialNumber").SetText("1")
			},
			check: func(t *testing.T, r *signature.VerificationResult) {
				assert.False(t, r.SignedPropertiesValid)
				assert.False(t, r.CertDigestValid)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tamper(t, res.SignedXML, tt.fn)
			result, err := sigxml.NewXMLVerifier(nil).Verify(context.Background(), data)
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.NotEmpty(t, result.Errors)
			tt.check(t, result)
		})
	}
}

func TestXMLVerifier_Unsigned(t *testing.T) {
	inv, err := invoice.Build(testutil.Props(), tax.DefaultPolicy())
	require.NoError(t, err)
	data, err := inv.XML()
	require.NoError(t, err)

	result, err := sigxml.NewXMLVerifier(nil).Verify(context.Background(), data)
	require.Error(t, err)
	assert.False(t, result.SignatureFound)
	assert.False(t, result.Valid)
}

func TestXMLVerifier_TrustStore(t *testing.T) {
	root := testutil.SelfSigned(t)
	leaf := testutil.Issue(t, &root)
	res := signed(t, leaf)

	store := trust.NewTrustStore()
	require.NoError(t, store.AddCertificatesFromPEM([]byte(root.CertificatePEM)))

	result, err := sigxml.NewXMLVerifier(store).Verify(context.Background(), []byte(res.SignedXML))
	require.NoError(t, err)
	assert.True(t, result.CertChainValid)
	assert.True(t, result.NotRevoked)
	assert.Len(t, result.CertChain, 2)
	assert.True(t, result.IsFullyValid(), "errors: %v warnings: %v", result.Errors, result.Warnings)

	// a store that does not know the root leaves the document valid but not fully
	other := trust.NewTrustStore()
	result, err = sigxml.NewXMLVerifier(other).Verify(context.Background(), []byte(res.SignedXML))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.False(t, result.CertChainValid)
	assert.False(t, result.IsFullyValid())
	assert.True(t, containsAny(result.Warnings, "UNTRUSTED_ROOT"))
}

func TestXMLVerifier_CanVerify(t *testing.T) {
	v := sigxml.NewXMLVerifier(nil)
	assert.True(t, v.CanVerify([]byte(`<?xml version="1.0"?><Invoice/>`)))
	assert.False(t, v.CanVerify([]byte(`%PDF-1.4`)))
	assert.False(t, v.CanVerify(nil))
	assert.Equal(t, signature.FormatXML, v.Format())
}

func containsAny(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
