package xml

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
)

// SignatureExtractor pulls the enveloped signature block and QR reference
// out of a signed invoice. Elements are matched by local name so any
// namespace prefix is accepted.
type SignatureExtractor struct{}

// NewSignatureExtractor creates a new signature extractor
func NewSignatureExtractor() *SignatureExtractor {
	return &SignatureExtractor{}
}

// ExtractionResult contains the extracted signature and related values
type ExtractionResult struct {
	Document         *etree.Document
	Signature        *etree.Element
	SignedProperties *etree.Element

	InvoiceDigest    string
	PropertiesDigest string
	SignatureValue   string
	Certificate      string
	SigningTime      string
	CertDigest       string
	IssuerName       string
	SerialNumber     string
	QR               string
}

// Extract finds the ds:Signature of a signed invoice and reads its values
func (e *SignatureExtractor) Extract(data []byte) (*ExtractionResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty XML document")
	}

	ext := childByLocalName(root, "UBLExtensions")
	if ext == nil {
		return nil, fmt.Errorf("no UBLExtensions element found in document")
	}
	sig := findElementRecursive(ext, "Signature")
	if sig == nil {
		return nil, fmt.Errorf("no Signature element found in document")
	}

	res := &ExtractionResult{
		Document:       doc,
		Signature:      sig,
		SignatureValue: textOf(childByLocalName(sig, "SignatureValue")),
		Certificate:    textOf(path(sig, "KeyInfo", "X509Data", "X509Certificate")),
		QR:             extractQR(root),
	}

	if signedInfo := childByLocalName(sig, "SignedInfo"); signedInfo != nil {
		for _, ref := range childrenByLocalName(signedInfo, "Reference") {
			digest := textOf(childByLocalName(ref, "DigestValue"))
			switch {
			case ref.SelectAttrValue("Id", "") == signature.InvoiceReferenceID:
				res.InvoiceDigest = digest
			case ref.SelectAttrValue("URI", "") == "#"+signature.SignedPropertiesID:
				res.PropertiesDigest = digest
			}
		}
	}

	res.SignedProperties = findElementRecursive(sig, "SignedProperties")
	if res.SignedProperties != nil {
		props := res.SignedProperties
		res.SigningTime = textOf(findElementRecursive(props, "SigningTime"))
		if certDigest := findElementRecursive(props, "CertDigest"); certDigest != nil {
			res.CertDigest = textOf(childByLocalName(certDigest, "DigestValue"))
		}
		res.IssuerName = textOf(findElementRecursive(props, "X509IssuerName"))
		res.SerialNumber = textOf(findElementRecursive(props, "X509SerialNumber"))
	}

	return res, nil
}

// extractQR returns the payload of the AdditionalDocumentReference with ID QR
func extractQR(root *etree.Element) string {
	for _, ref := range childrenByLocalName(root, "AdditionalDocumentReference") {
		if textOf(childByLocalName(ref, "ID")) != invoice.RefQR {
			continue
		}
		return textOf(path(ref, "Attachment", "EmbeddedDocumentBinaryObject"))
	}
	return ""
}

// findElementRecursive searches for an element by local name recursively
func findElementRecursive(elem *etree.Element, localName string) *etree.Element {
	if hasLocalName(elem, localName) {
		return elem
	}

	for _, child := range elem.ChildElements() {
		if found := findElementRecursive(child, localName); found != nil {
			return found
		}
	}

	return nil
}

// hasLocalName checks if element has the given local name (ignoring namespace prefix)
func hasLocalName(elem *etree.Element, localName string) bool {
	tag := elem.Tag
	if idx := strings.IndexByte(tag, ':'); idx >= 0 {
		tag = tag[idx+1:]
	}
	return tag == localName
}

func childByLocalName(elem *etree.Element, localName string) *etree.Element {
	if elem == nil {
		return nil
	}
	for _, child := range elem.ChildElements() {
		if hasLocalName(child, localName) {
			return child
		}
	}
	return nil
}

func childrenByLocalName(elem *etree.Element, localName string) []*etree.Element {
	var out []*etree.Element
	for _, child := range elem.ChildElements() {
		if hasLocalName(child, localName) {
			out = append(out, child)
		}
	}
	return out
}

func path(elem *etree.Element, names ...string) *etree.Element {
	for _, name := range names {
		elem = childByLocalName(elem, name)
		if elem == nil {
			return nil
		}
	}
	return elem
}

func textOf(elem *etree.Element) string {
	if elem == nil {
		return ""
	}
	return strings.TrimSpace(elem.Text())
}

// CanExtract returns true if the data appears to be XML with a signature
func (e *SignatureExtractor) CanExtract(data []byte) bool {
	if len(data) < 5 {
		return false
	}

	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("<?xml")) && !bytes.HasPrefix(trimmed, []byte("<")) {
		return false
	}

	return bytes.Contains(data, []byte("UBLExtensions")) &&
		(bytes.Contains(data, []byte("<Signature")) || bytes.Contains(data, []byte(":Signature")))
}
