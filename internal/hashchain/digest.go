// Package hashchain computes the content hash that links each invoice to
// the next one issued by the same device.
//
// The hash is SHA-256 over the C14N 1.1 form of the invoice XML with the
// signature region (ext:UBLExtensions, cac:Signature) and the QR document
// reference removed, so a signed document hashes to the same value as the
// unsigned invoice it was made from.
package hashchain

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
)

// GenesisHash is the previous-invoice hash of a device's first invoice:
// base64 of the hex SHA-256 of "0".
const GenesisHash = "NWZlY2ViNjZmZmM4NmYzOGQ5NTI3ODZjNmQ2OTZjNzljMmRiYzIzOWRkNGU5MWI0NjcyOWQ3M2EyN2ZiNTdlOQ=="

// Excluded lists the etree paths removed before hashing.
var Excluded = []string{
	"./ext:UBLExtensions",
	"./cac:Signature",
	"./cac:AdditionalDocumentReference[cbc:ID='" + invoice.RefQR + "']",
}

// Digest returns the base64 SHA-256 of the invoice's canonical form.
func Digest(inv *invoice.Invoice) (string, error) {
	sum, err := Sum(inv.Document())
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sum), nil
}

// DigestXML is Digest for an already serialized (signed or unsigned) invoice.
func DigestXML(data []byte) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return "", fmt.Errorf("parse invoice xml: %w", err)
	}
	sum, err := Sum(doc)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sum), nil
}

// Sum returns the raw 32-byte digest of doc. doc is not modified.
func Sum(doc *etree.Document) ([]byte, error) {
	canonical, err := Canonicalize(doc)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(canonical)
	return sum[:], nil
}

// Canonicalize strips the excluded regions from a copy of doc's root and
// returns its C14N 1.1 serialization.
func Canonicalize(doc *etree.Document) ([]byte, error) {
	if doc.Root() == nil {
		return nil, fmt.Errorf("invoice xml has no root element")
	}
	root := doc.Root().Copy()
	for _, path := range Excluded {
		for _, el := range root.FindElements(path) {
			root.RemoveChild(el)
		}
	}

	out, err := dsig.MakeC14N11Canonicalizer().Canonicalize(root)
	if err != nil {
		return nil, fmt.Errorf("canonicalize invoice: %w", err)
	}
	return out, nil
}
