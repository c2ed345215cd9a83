package signature

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
)

// Namespaces of the signature block.
const (
	NSSig   = "urn:oasis:names:specification:ubl:schema:xsd:CommonSignatureComponents-2"
	NSSAC   = "urn:oasis:names:specification:ubl:schema:xsd:SignatureAggregateComponents-2"
	NSSBC   = "urn:oasis:names:specification:ubl:schema:xsd:SignatureBasicComponents-2"
	NSXAdES = "http://uri.etsi.org/01903/v1.3.2#"
)

// Identifiers and algorithms written into the signature block.
const (
	ExtensionURI         = "urn:oasis:names:specification:ubl:dsig:enveloped:xades"
	SignatureID          = "urn:oasis:names:specification:ubl:signature:Invoice"
	SignatureInfoID      = "urn:oasis:names:specification:ubl:signature:1"
	SignatureElementID   = "signature"
	InvoiceReferenceID   = "invoiceSignedData"
	SignedPropertiesID   = "xadesSignedProperties"
	SignedPropertiesType = "http://www.w3.org/2000/09/xmldsig#SignatureProperties"
	AlgorithmECDSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
	AlgorithmSHA256      = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgorithmXPath       = "http://www.w3.org/TR/1999/REC-xpath-19991116"
	SigningTimeLayout    = "2006-01-02T15:04:05"
	qrMimeCode           = "text/plain"
)

// Enveloped transforms of the invoice reference. They name the same
// regions hashchain removes before hashing.
var xpathExclusions = []string{
	"not(//ancestor-or-self::ext:UBLExtensions)",
	"not(//ancestor-or-self::cac:Signature)",
	"not(//ancestor-or-self::cac:AdditionalDocumentReference[cbc:ID='" + invoice.RefQR + "'])",
}

// blockParams is everything the signature block embeds.
type blockParams struct {
	InvoiceHash      string
	SignatureValue   string
	Certificate      *Certificate
	SignedProperties *etree.Element
	PropertiesDigest string
}

// newSignedProperties builds xades:SignedProperties. Its digest is taken
// before it is placed into the signature block.
func newSignedProperties(cert *Certificate, signingTime string) *etree.Element {
	props := etree.NewElement("xades:SignedProperties")
	props.CreateAttr("Id", SignedPropertiesID)

	ssp := props.CreateElement("xades:SignedSignatureProperties")
	ssp.CreateElement("xades:SigningTime").SetText(signingTime)

	certEl := ssp.CreateElement("xades:SigningCertificate").CreateElement("xades:Cert")
	digest := certEl.CreateElement("xades:CertDigest")
	digest.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", AlgorithmSHA256)
	digest.CreateElement("ds:DigestValue").SetText(cert.Digest())

	serial := certEl.CreateElement("xades:IssuerSerial")
	serial.CreateElement("ds:X509IssuerName").SetText(cert.Issuer)
	serial.CreateElement("ds:X509SerialNumber").SetText(cert.SerialNumber.String())
	return props
}

// SignedPropertiesDigest returns base64 of the hex SHA-256 of the C14N 1.1
// form of a SignedProperties element. The element is canonicalized
// detached, with the xades and ds prefixes declared on it.
func SignedPropertiesDigest(el *etree.Element) (string, error) {
	detached := el.Copy()
	if detached.SelectAttr("xmlns:xades") == nil {
		detached.CreateAttr("xmlns:xades", NSXAdES)
	}
	if detached.SelectAttr("xmlns:ds") == nil {
		detached.CreateAttr("xmlns:ds", dsig.Namespace)
	}

	canonical, err := dsig.MakeC14N11Canonicalizer().Canonicalize(detached)
	if err != nil {
		return "", ErrCanonicalization("signed_properties", err)
	}
	sum := sha256.Sum256(canonical)
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:]))), nil
}

// newExtensions builds ext:UBLExtensions holding the ds:Signature.
func newExtensions(p blockParams) *etree.Element {
	ext := etree.NewElement("ext:UBLExtensions")
	ublExt := ext.CreateElement("ext:UBLExtension")
	ublExt.CreateElement("ext:ExtensionURI").SetText(ExtensionURI)

	docSigs := ublExt.CreateElement("ext:ExtensionContent").CreateElement("sig:UBLDocumentSignatures")
	docSigs.CreateAttr("xmlns:sig", NSSig)
	docSigs.CreateAttr("xmlns:sac", NSSAC)
	docSigs.CreateAttr("xmlns:sbc", NSSBC)

	info := docSigs.CreateElement("sac:SignatureInformation")
	info.CreateElement("cbc:ID").SetText(SignatureInfoID)
	info.CreateElement("sbc:ReferencedSignatureID").SetText(SignatureID)
	info.AddChild(newSignature(p))
	return ext
}

func newSignature(p blockParams) *etree.Element {
	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", dsig.Namespace)
	sig.CreateAttr("Id", SignatureElementID)

	signedInfo := sig.CreateElement("ds:SignedInfo")
	signedInfo.CreateElement("ds:CanonicalizationMethod").CreateAttr("Algorithm", string(dsig.CanonicalXML11AlgorithmId))
	signedInfo.CreateElement("ds:SignatureMethod").CreateAttr("Algorithm", AlgorithmECDSASHA256)

	ref := signedInfo.CreateElement("ds:Reference")
	ref.CreateAttr("Id", InvoiceReferenceID)
	ref.CreateAttr("URI", "")
	transforms := ref.CreateElement("ds:Transforms")
	for _, xpath := range xpathExclusions {
		t := transforms.CreateElement("ds:Transform")
		t.CreateAttr("Algorithm", AlgorithmXPath)
		t.CreateElement("ds:XPath").SetText(xpath)
	}
	transforms.CreateElement("ds:Transform").CreateAttr("Algorithm", string(dsig.CanonicalXML11AlgorithmId))
	ref.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", AlgorithmSHA256)
	ref.CreateElement("ds:DigestValue").SetText(p.InvoiceHash)

	propsRef := signedInfo.CreateElement("ds:Reference")
	propsRef.CreateAttr("Type", SignedPropertiesType)
	propsRef.CreateAttr("URI", "#"+SignedPropertiesID)
	propsRef.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", AlgorithmSHA256)
	propsRef.CreateElement("ds:DigestValue").SetText(p.PropertiesDigest)

	sig.CreateElement("ds:SignatureValue").SetText(p.SignatureValue)
	sig.CreateElement("ds:KeyInfo").
		CreateElement("ds:X509Data").
		CreateElement("ds:X509Certificate").SetText(p.Certificate.Base64())

	qp := sig.CreateElement("ds:Object").CreateElement("xades:QualifyingProperties")
	qp.CreateAttr("xmlns:xades", NSXAdES)
	qp.CreateAttr("Target", SignatureElementID)
	qp.AddChild(p.SignedProperties)
	return sig
}

// newQRReference builds the AdditionalDocumentReference carrying payload.
func newQRReference(payload string) *etree.Element {
	ref := etree.NewElement("cac:AdditionalDocumentReference")
	ref.CreateElement("cbc:ID").SetText(invoice.RefQR)
	obj := ref.CreateElement("cac:Attachment").CreateElement("cbc:EmbeddedDocumentBinaryObject")
	obj.CreateAttr("mimeCode", qrMimeCode)
	obj.SetText(payload)
	return ref
}

// newSignatureReference builds cac:Signature.
func newSignatureReference() *etree.Element {
	sig := etree.NewElement("cac:Signature")
	sig.CreateElement("cbc:ID").SetText(SignatureID)
	sig.CreateElement("cbc:SignatureMethod").SetText(ExtensionURI)
	return sig
}
