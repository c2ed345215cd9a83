package qr

import (
	"encoding/base64"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
)

// Proof carries the signing output that the signed payload adds.
type Proof struct {
	InvoiceHash          string
	Signature            string
	PublicKey            []byte
	CertificateSignature []byte
}

// Facts returns the five basic records of inv, read through its document
// tree so they always match what the XML says.
func Facts(inv *invoice.Invoice) []Record {
	return []Record{
		Text(TagSellerName, inv.Value(invoice.PathSellerName)),
		Text(TagVATNumber, inv.Value(invoice.PathSellerVAT)),
		Text(TagTimestamp, inv.IssueTimestamp()),
		Text(TagTotalWithVAT, inv.Value(invoice.PathTaxInclusive)),
		Text(TagVATTotal, inv.Value(invoice.PathTaxAmount)),
	}
}

// Encode returns the base64 payload of the five basic records.
func Encode(inv *invoice.Invoice) (string, error) {
	return EncodeRecords(Facts(inv))
}

// EncodeSigned appends the hash, signature, public key and certificate
// signature records (tags 6-9) to the basic payload.
func EncodeSigned(inv *invoice.Invoice, p Proof) (string, error) {
	records := append(Facts(inv),
		Text(TagInvoiceHash, p.InvoiceHash),
		Text(TagSignature, p.Signature),
		Binary(TagPublicKey, p.PublicKey),
	)
	if len(p.CertificateSignature) > 0 {
		records = append(records, Binary(TagCertificateSignature, p.CertificateSignature))
	}
	return EncodeRecords(records)
}

// Payload is a decoded QR payload with named fields.
type Payload struct {
	SellerName           string `json:"seller_name"`
	VATNumber            string `json:"vat_number"`
	Timestamp            string `json:"timestamp"`
	TotalWithVAT         string `json:"total_with_vat"`
	VATTotal             string `json:"vat_total"`
	InvoiceHash          string `json:"invoice_hash,omitempty"`
	Signature            string `json:"signature,omitempty"`
	PublicKey            string `json:"public_key,omitempty"`
	CertificateSignature string `json:"certificate_signature,omitempty"`
	Records              int    `json:"records"`
}

// Signed reports whether the payload carries the signing records.
func (p *Payload) Signed() bool {
	return p.InvoiceHash != "" && p.Signature != ""
}

// Parse decodes payload into named fields. Binary values are returned as
// base64.
func Parse(payload string) (*Payload, error) {
	records, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	out := &Payload{Records: len(records)}
	for _, r := range records {
		switch r.Tag {
		case TagSellerName:
			out.SellerName = r.String()
		case TagVATNumber:
			out.VATNumber = r.String()
		case TagTimestamp:
			out.Timestamp = r.String()
		case TagTotalWithVAT:
			out.TotalWithVAT = r.String()
		case TagVATTotal:
			out.VATTotal = r.String()
		case TagInvoiceHash:
			out.InvoiceHash = r.String()
		case TagSignature:
			out.Signature = r.String()
		case TagPublicKey:
			out.PublicKey = base64.StdEncoding.EncodeToString(r.Value)
		case TagCertificateSignature:
			out.CertificateSignature = base64.StdEncoding.EncodeToString(r.Value)
		}
	}
	return out, nil
}
