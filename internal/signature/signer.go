// Package signature signs invoices with an XAdES-style enveloped signature
// and defines the result and error types shared by the verifiers.
package signature

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/beevik/etree"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/hashchain"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/qr"
)

// SignedInvoiceResult is the signed document together with the hash and
// QR payload embedded in it.
type SignedInvoiceResult struct {
	SignedXML   string `json:"signed_xml"`
	InvoiceHash string `json:"invoice_hash"`
	QR          string `json:"qr"`
	SigningTime string `json:"signing_time"`
}

// Credentials is a certificate and the private key that belongs to it.
type Credentials struct {
	Certificate *Certificate
	Key         *PrivateKey
}

// LoadCredentials parses a certificate and private key and checks that they
// form a pair.
func LoadCredentials(certificatePEM, privateKeyPEM string) (*Credentials, error) {
	cert, err := ParseCertificate(certificatePEM)
	if err != nil {
		return nil, err
	}
	key, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	if !key.Public().Equal(cert.PublicKey) {
		return nil, ErrKeyMismatch()
	}
	return &Credentials{Certificate: cert, Key: key}, nil
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock sets the source of the signing time.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// WithPhaseTwoQR embeds the nine-record QR payload (hash, signature, public
// key and certificate signature) instead of the basic five records.
func WithPhaseTwoQR() Option {
	return func(s *Signer) {
		s.phaseTwoQR = true
	}
}

// Signer produces signed invoice XML. It holds no per-invoice state and is
// safe for concurrent use.
type Signer struct {
	now        func() time.Time
	phaseTwoQR bool
}

func NewSigner(opts ...Option) *Signer {
	s := &Signer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign signs inv with a PEM (or bare base64) certificate and private key.
func Sign(inv *invoice.Invoice, certificatePEM, privateKeyPEM string) (*SignedInvoiceResult, error) {
	return NewSigner().Sign(inv, certificatePEM, privateKeyPEM)
}

// Sign parses the credentials and signs inv.
func (s *Signer) Sign(inv *invoice.Invoice, certificatePEM, privateKeyPEM string) (*SignedInvoiceResult, error) {
	creds, err := LoadCredentials(certificatePEM, privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return s.SignWith(inv, creds)
}

// SignWith signs inv with already parsed credentials. inv is not modified.
func (s *Signer) SignWith(inv *invoice.Invoice, creds *Credentials) (*SignedInvoiceResult, error) {
	doc := inv.Document()

	hashBytes, err := hashchain.Sum(doc)
	if err != nil {
		return nil, ErrCanonicalization("invoice", err)
	}
	invoiceHash := base64.StdEncoding.EncodeToString(hashBytes)

	digest := sha256.Sum256(hashBytes)
	sigDER, err := creds.Key.Sign(digest[:])
	if err != nil {
		return nil, err
	}
	signatureValue := base64.StdEncoding.EncodeToString(sigDER)

	payload, err := s.qrPayload(inv, creds, invoiceHash, signatureValue)
	if err != nil {
		return nil, err
	}

	signingTime := s.now().UTC().Format(SigningTimeLayout)
	props := newSignedProperties(creds.Certificate, signingTime)
	propsDigest, err := SignedPropertiesDigest(props)
	if err != nil {
		return nil, err
	}

	root := doc.Root()
	root.InsertChildAt(0, newExtensions(blockParams{
		InvoiceHash:      invoiceHash,
		SignatureValue:   signatureValue,
		Certificate:      creds.Certificate,
		SignedProperties: props,
		PropertiesDigest: propsDigest,
	}))
	insertBeforeSupplier(root, newQRReference(payload), newSignatureReference())

	out, err := doc.WriteToString()
	if err != nil {
		return nil, ErrSignFailed(err)
	}

	return &SignedInvoiceResult{
		SignedXML:   out,
		InvoiceHash: invoiceHash,
		QR:          payload,
		SigningTime: signingTime,
	}, nil
}

func (s *Signer) qrPayload(inv *invoice.Invoice, creds *Credentials, invoiceHash, signatureValue string) (string, error) {
	if !s.phaseTwoQR {
		return qr.Encode(inv)
	}
	return qr.EncodeSigned(inv, qr.Proof{
		InvoiceHash:          invoiceHash,
		Signature:            signatureValue,
		PublicKey:            creds.Certificate.RawSubjectPublicKeyInfo,
		CertificateSignature: creds.Certificate.Signature,
	})
}

// insertBeforeSupplier places els right after the PIH reference, which is
// where the seller party starts.
func insertBeforeSupplier(root *etree.Element, els ...*etree.Element) {
	at := len(root.Child)
	if supplier := root.SelectElement("cac:AccountingSupplierParty"); supplier != nil {
		at = supplier.Index()
	}
	for i, el := range els {
		root.InsertChildAt(at+i, el)
	}
}
