// Package qr encodes invoice facts into the tag-length-value payload printed
// as a QR code on simplified invoices, and decodes such payloads.
package qr

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
)

// Tags of the QR payload. Tags 1-5 form the basic payload; 6-9 are added
// once the invoice is signed.
const (
	TagSellerName           byte = 1
	TagVATNumber            byte = 2
	TagTimestamp            byte = 3
	TagTotalWithVAT         byte = 4
	TagVATTotal             byte = 5
	TagInvoiceHash          byte = 6
	TagSignature            byte = 7
	TagPublicKey            byte = 8
	TagCertificateSignature byte = 9
)

// MaxValueLength is the largest value a one-byte length field can describe.
const MaxValueLength = 255

var tagNames = map[byte]string{
	TagSellerName:           "seller_name",
	TagVATNumber:            "vat_number",
	TagTimestamp:            "timestamp",
	TagTotalWithVAT:         "total_with_vat",
	TagVATTotal:             "vat_total",
	TagInvoiceHash:          "invoice_hash",
	TagSignature:            "signature",
	TagPublicKey:            "public_key",
	TagCertificateSignature: "certificate_signature",
}

// TagName returns a readable name for tag.
func TagName(tag byte) string {
	if n, ok := tagNames[tag]; ok {
		return n
	}
	return fmt.Sprintf("tag_%d", tag)
}

// Record is one TLV entry.
type Record struct {
	Tag   byte
	Value []byte
}

// Text creates a record from a string value. Values are encoded as given;
// invoice.Build has already normalized document text to NFC.
func Text(tag byte, value string) Record {
	return Record{Tag: tag, Value: []byte(value)}
}

// Binary creates a record holding raw bytes.
func Binary(tag byte, value []byte) Record {
	return Record{Tag: tag, Value: value}
}

func (r Record) String() string {
	return string(r.Value)
}

// Marshal concatenates records as [tag][len][value]. A value longer than
// MaxValueLength is rejected with a *model.EncodingError.
func Marshal(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range records {
		if len(r.Value) > MaxValueLength {
			return nil, model.NewEncodingError(r.Tag, TagName(r.Tag), len(r.Value),
				fmt.Sprintf("value exceeds %d bytes", MaxValueLength))
		}
		buf.WriteByte(r.Tag)
		buf.WriteByte(byte(len(r.Value)))
		buf.Write(r.Value)
	}
	return buf.Bytes(), nil
}

// EncodeRecords marshals records and base64-encodes the result.
func EncodeRecords(records []Record) (string, error) {
	raw, err := Marshal(records)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Unmarshal walks a raw TLV stream using only the record headers.
func Unmarshal(raw []byte) ([]Record, error) {
	var records []Record
	for pos := 0; pos < len(raw); {
		if len(raw)-pos < 2 {
			return nil, model.NewEncodingError(raw[pos], TagName(raw[pos]), 0, "truncated record header")
		}
		tag, length := raw[pos], int(raw[pos+1])
		pos += 2
		if len(raw)-pos < length {
			return nil, model.NewEncodingError(tag, TagName(tag), length,
				fmt.Sprintf("record needs %d bytes, %d left", length, len(raw)-pos))
		}
		value := make([]byte, length)
		copy(value, raw[pos:pos+length])
		records = append(records, Record{Tag: tag, Value: value})
		pos += length
	}
	return records, nil
}

// Decode base64-decodes payload and walks its records.
func Decode(payload string) ([]Record, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode qr payload: %w", err)
	}
	return Unmarshal(raw)
}

// Find returns the first record with tag.
func Find(records []Record, tag byte) (Record, bool) {
	for _, r := range records {
		if r.Tag == tag {
			return r, true
		}
	}
	return Record{}, false
}
