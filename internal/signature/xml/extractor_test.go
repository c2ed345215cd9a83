package xml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
)

const minimalSigned = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	xmlns:ext="urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2">
	<ext:UBLExtensions><ext:UBLExtension><ext:ExtensionContent>
		<sig:UBLDocumentSignatures xmlns:sig="urn:sig"><sac:SignatureInformation xmlns:sac="urn:sac">
			<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#" Id="signature">
				<ds:SignedInfo>
					<ds:Reference Id="invoiceSignedData" URI=""><ds:DigestValue>HASH</ds:DigestValue></ds:Reference>
					<ds:Reference URI="#xadesSignedProperties"><ds:DigestValue>PROPS</ds:DigestValue></ds:Reference>
				</ds:SignedInfo>
				<ds:SignatureValue>SIG</ds:SignatureValue>
				<ds:KeyInfo><ds:X509Data><ds:X509Certificate>CERT</ds:X509Certificate></ds:X509Data></ds:KeyInfo>
				<ds:Object><xades:QualifyingProperties xmlns:xades="http://uri.etsi.org/01903/v1.3.2#">
					<xades:SignedProperties Id="xadesSignedProperties"><xades:SignedSignatureProperties>
						<xades:SigningTime>2022-03-13T14:40:41</xades:SigningTime>
						<xades:SigningCertificate><xades:Cert>
							<xades:CertDigest><ds:DigestValue>CERTDIGEST</ds:DigestValue></xades:CertDigest>
							<xades:IssuerSerial><ds:X509IssuerName>CN=CA</ds:X509IssuerName><ds:X509SerialNumber>42</ds:X509SerialNumber></xades:IssuerSerial>
						</xades:Cert></xades:SigningCertificate>
					</xades:SignedSignatureProperties></xades:SignedProperties>
				</xades:QualifyingProperties></ds:Object>
			</ds:Signature>
		</sac:SignatureInformation></sig:UBLDocumentSignatures>
	</ext:ExtensionContent></ext:UBLExtension></ext:UBLExtensions>
	<cbc:ID>SME00010</cbc:ID>
	<cac:AdditionalDocumentReference><cbc:ID>QR</cbc:ID><cac:Attachment><cbc:EmbeddedDocumentBinaryObject mimeCode="text/plain">AQ==</cbc:EmbeddedDocumentBinaryObject></cac:Attachment></cac:AdditionalDocumentReference>
</Invoice>`

func TestSignatureExtractor_CanExtract(t *testing.T) {
	extractor := NewSignatureExtractor()

	tests := []struct {
		name     string
		data     []byte
		expected bool
	}{
		{"signed invoice", []byte(minimalSigned), true},
		{"signature outside extensions", []byte(`<?xml version="1.0"?><Invoice><ds:Signature xmlns:ds="x"/></Invoice>`), false},
		{"XML without Signature", []byte(`<?xml version="1.0"?><Invoice><Data>test</Data></Invoice>`), false},
		{"Not XML", []byte(`{"type": "json"}`), false},
		{"Empty", []byte(``), false},
		{"PDF magic bytes", []byte(`%PDF-1.4`), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractor.CanExtract(tt.data))
		})
	}
}

func TestSignatureExtractor_Extract(t *testing.T) {
	res, err := NewSignatureExtractor().Extract([]byte(minimalSigned))
	require.NoError(t, err)

	assert.Equal(t, "HASH", res.InvoiceDigest)
	assert.Equal(t, "PROPS", res.PropertiesDigest)
	assert.Equal(t, "SIG", res.SignatureValue)
	assert.Equal(t, "CERT", res.Certificate)
	assert.Equal(t, "2022-03-13T14:40:41", res.SigningTime)
	assert.Equal(t, "CERTDIGEST", res.CertDigest)
	assert.Equal(t, "CN=CA", res.IssuerName)
	assert.Equal(t, "42", res.SerialNumber)
	assert.Equal(t, "AQ==", res.QR)
	require.NotNil(t, res.SignedProperties)
	assert.Equal(t, signature.SignedPropertiesID, res.SignedProperties.SelectAttrValue("Id", ""))
}

func TestSignatureExtractor_Extract_Errors(t *testing.T) {
	tests := map[string]string{
		"no extensions": `<?xml version="1.0"?><Invoice><Data>test</Data></Invoice>`,
		"no signature":  `<Invoice><ext:UBLExtensions xmlns:ext="x"/></Invoice>`,
		"invalid XML":   `<Invoice>`,
		"empty":         ``,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewSignatureExtractor().Extract([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestHasLocalName(t *testing.T) {
	res, err := NewSignatureExtractor().Extract([]byte(minimalSigned))
	require.NoError(t, err)

	assert.True(t, hasLocalName(res.Signature, "Signature"))
	assert.False(t, hasLocalName(res.Signature, "ds:Signature"))
	assert.Nil(t, path(res.Signature, "KeyInfo", "Missing"))
	assert.Equal(t, "", textOf(nil))
}
