// Package testutil provides invoice input and signing material for tests.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
)

// GenesisHash is the previous-hash seed of a device's first invoice.
const GenesisHash = "NWZlY2ViNjZmZmM4NmYzOGQ5NTI3ODZjNmQ2OTZjNzljMmRiYzIzOWRkNGU5MWI0NjcyOWQ3M2EyN2ZiNTdlOQ=="

// Props returns a valid single-line simplified invoice: 100 SAR at 15%.
func Props() model.InvoiceProps {
	return model.InvoiceProps{
		EGS: model.EGSInfo{
			ID:             "6f4d20e0-6bfe-4a80-9389-7dabe6620f12",
			Name:           "EGS1-886431145",
			VATName:        "Wesam Alzahir",
			VATNumber:      "301121971500003",
			BranchName:     "Main Branch",
			BranchIndustry: "Food",
			Model:          "IOS",
			Location: &model.Address{
				Street:             "King Fahad st",
				Building:           "0000",
				PlotIdentification: "0000",
				CitySubdivision:    "West",
				City:               "Khobar",
				PostalZone:         "31952",
			},
		},
		CRNNumber:            "454634645645654",
		InvoiceUUID:          "8e6000cf-1a98-4174-b3e7-b5d5954bc10d",
		InvoiceType:          model.TypeSimplified,
		InvoiceCode:          model.CodeTaxInvoice,
		InvoiceCounterNumber: 1,
		InvoiceSerialNumber:  "EGS1-886431145-1",
		IssueDate:            "2022-03-13",
		IssueTime:            "14:40:40",
		PreviousInvoiceHash:  GenesisHash,
		PaymentMethod:        model.PaymentCash,
		LineItems: []model.LineItem{
			Item("1", "100", "0.15"),
		},
	}
}

// Item builds a quantity-one line.
func Item(id, price, rate string) model.LineItem {
	return model.LineItem{
		ID:                    id,
		Name:                  "Item " + id,
		Quantity:              decimal.NewFromInt(1),
		TaxExclusiveUnitPrice: decimal.RequireFromString(price),
		VATRate:               decimal.RequireFromString(rate),
	}
}

// Credentials is a PEM certificate and matching EC private key.
type Credentials struct {
	CertificatePEM string
	PrivateKeyPEM  string
	Key            *ecdsa.PrivateKey
	Certificate    *x509.Certificate
}

// SelfSigned creates a P-256 key and a self-signed certificate for it.
func SelfSigned(t testing.TB) Credentials {
	t.Helper()
	return Issue(t, nil)
}

// Issue creates a P-256 key and a certificate signed by issuer, or a
// self-signed one when issuer is nil.
func Issue(t testing.TB, issuer *Credentials) Credentials {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatalf("serial: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:         "EGS1-886431145",
			Organization:       []string{"Wesam Alzahir"},
			OrganizationalUnit: []string{"Main Branch"},
			Country:            []string{"SA"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	parent := tmpl
	var signer interface{} = key
	if issuer == nil {
		tmpl.IsCA = true
		tmpl.Subject.CommonName = "Test Root CA"
	} else {
		parent = issuer.Certificate
		signer = issuer.Key
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, signer)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	return Credentials{
		CertificatePEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		PrivateKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})),
		Key:            key,
		Certificate:    cert,
	}
}
