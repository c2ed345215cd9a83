package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// X.509 structures, decoded by hand because crypto/x509 rejects
// secp256k1 keys.
type certificate struct {
	Raw                asn1.RawContent
	TBS                tbsCertificate
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          asn1.BitString
}

type tbsCertificate struct {
	Raw                asn1.RawContent
	Version            int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber       *big.Int
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Issuer             asn1.RawValue
	Validity           validity
	Subject            asn1.RawValue
	PublicKey          publicKeyInfo
	UniqueID           asn1.BitString   `asn1:"optional,tag:1"`
	SubjectUniqueID    asn1.BitString   `asn1:"optional,tag:2"`
	Extensions         []pkix.Extension `asn1:"omitempty,optional,explicit,tag:3"`
}

type validity struct {
	NotBefore, NotAfter time.Time
}

type publicKeyInfo struct {
	Raw       asn1.RawContent
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

var (
	oidECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	oidECDSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}
)

var attributeNames = map[string]string{
	"2.5.4.3":                    "CN",
	"2.5.4.4":                    "SN",
	"2.5.4.5":                    "SERIALNUMBER",
	"2.5.4.6":                    "C",
	"2.5.4.7":                    "L",
	"2.5.4.8":                    "ST",
	"2.5.4.9":                    "STREET",
	"2.5.4.10":                   "O",
	"2.5.4.11":                   "OU",
	"2.5.4.12":                   "T",
	"2.5.4.15":                   "BUSINESSCATEGORY",
	"2.5.4.97":                   "ORGANIZATIONIDENTIFIER",
	"0.9.2342.19200300.100.1.1":  "UID",
	"0.9.2342.19200300.100.1.25": "DC",
	"1.2.840.113549.1.9.1":       "E",
}

// Certificate is a parsed X.509 certificate holding what invoice signing
// and verification need.
type Certificate struct {
	Raw                     []byte
	RawTBSCertificate       []byte
	RawSubjectPublicKeyInfo []byte

	SerialNumber     *big.Int
	Issuer           string
	Subject          string
	CommonName       string
	Organization     string
	IssuerCommonName string

	NotBefore time.Time
	NotAfter  time.Time

	PublicKey          *PublicKey
	SignatureAlgorithm asn1.ObjectIdentifier
	Signature          []byte
}

// ParseCertificate reads a certificate, PEM armored or as bare base64 DER.
func ParseCertificate(data string) (*Certificate, error) {
	der, _, err := decodeMaterial(data, "CERTIFICATE")
	if err != nil {
		return nil, ErrInvalidCertificate(err.Error(), nil)
	}
	return ParseCertificateDER(der)
}

// ParseCertificateDER reads a DER encoded certificate.
func ParseCertificateDER(der []byte) (*Certificate, error) {
	var c certificate
	rest, err := asn1.Unmarshal(der, &c)
	if err != nil {
		return nil, ErrInvalidCertificate("malformed certificate", err)
	}
	if len(rest) > 0 {
		return nil, ErrInvalidCertificate("trailing data after certificate", nil)
	}

	issuer, err := parseName(c.TBS.Issuer.FullBytes)
	if err != nil {
		return nil, ErrInvalidCertificate("malformed issuer name", err)
	}
	subject, err := parseName(c.TBS.Subject.FullBytes)
	if err != nil {
		return nil, ErrInvalidCertificate("malformed subject name", err)
	}

	pub, err := parsePublicKey(c.TBS.PublicKey)
	if err != nil {
		return nil, err
	}

	return &Certificate{
		Raw:                     c.Raw,
		RawTBSCertificate:       c.TBS.Raw,
		RawSubjectPublicKeyInfo: c.TBS.PublicKey.Raw,
		SerialNumber:            c.TBS.SerialNumber,
		Issuer:                  formatName(issuer),
		Subject:                 formatName(subject),
		CommonName:              firstAttribute(subject, "2.5.4.3"),
		Organization:            firstAttribute(subject, "2.5.4.10"),
		IssuerCommonName:        firstAttribute(issuer, "2.5.4.3"),
		NotBefore:               c.TBS.Validity.NotBefore,
		NotAfter:                c.TBS.Validity.NotAfter,
		PublicKey:               pub,
		SignatureAlgorithm:      c.SignatureAlgorithm.Algorithm,
		Signature:               c.Signature.RightAlign(),
	}, nil
}

func parsePublicKey(spki publicKeyInfo) (*PublicKey, error) {
	if !spki.Algorithm.Algorithm.Equal(oidPublicKeyEC) {
		return nil, ErrInvalidCertificate(fmt.Sprintf("not an EC public key: %s", spki.Algorithm.Algorithm), nil)
	}
	var curveOID asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(spki.Algorithm.Parameters.FullBytes, &curveOID); err != nil {
		return nil, ErrInvalidCertificate("missing curve parameters", err)
	}
	curve, ok := curveFromOID(curveOID)
	if !ok {
		return nil, ErrUnsupportedCurve("certificate", curveOID.String())
	}

	if curve == CurveSecp256k1 {
		key, err := secp256k1.ParsePubKey(spki.PublicKey.RightAlign())
		if err != nil {
			return nil, ErrInvalidCertificate("malformed secp256k1 public key", err)
		}
		return &PublicKey{curve: curve, k1: key}, nil
	}

	key, err := x509.ParsePKIXPublicKey(spki.Raw)
	if err != nil {
		return nil, ErrInvalidCertificate("malformed P-256 public key", err)
	}
	ec, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, ErrInvalidCertificate("not an ECDSA public key", nil)
	}
	return &PublicKey{curve: curve, p256: ec}, nil
}

func parseName(der []byte) (pkix.RDNSequence, error) {
	var rdns pkix.RDNSequence
	rest, err := asn1.Unmarshal(der, &rdns)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("trailing data after name")
	}
	return rdns, nil
}

// formatName renders rdns most-specific first, e.g.
// "CN=eInvoicing, DC=gov, DC=local".
func formatName(rdns pkix.RDNSequence) string {
	parts := make([]string, 0, len(rdns))
	for i := len(rdns) - 1; i >= 0; i-- {
		for _, atv := range rdns[i] {
			key, ok := attributeNames[atv.Type.String()]
			if !ok {
				key = atv.Type.String()
			}
			parts = append(parts, fmt.Sprintf("%s=%v", key, atv.Value))
		}
	}
	return strings.Join(parts, ", ")
}

func firstAttribute(rdns pkix.RDNSequence, oid string) string {
	for _, rdn := range rdns {
		for _, atv := range rdn {
			if atv.Type.String() == oid {
				return fmt.Sprint(atv.Value)
			}
		}
	}
	return ""
}

// Base64 returns the DER encoding as one base64 line, the form embedded in
// ds:X509Certificate.
func (c *Certificate) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Raw)
}

// Digest is the xades:CertDigest value: base64 of the hex SHA-256 of the
// base64 certificate text.
func (c *Certificate) Digest() string {
	sum := sha256.Sum256([]byte(c.Base64()))
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])))
}

// CheckValidity fails unless t is inside the validity window.
func (c *Certificate) CheckValidity(t time.Time) error {
	if t.Before(c.NotBefore) {
		return ErrCertNotYetValid(c.Subject)
	}
	if t.After(c.NotAfter) {
		return ErrCertExpired(c.Subject)
	}
	return nil
}

// CheckSignatureFrom verifies that parent signed c.
func (c *Certificate) CheckSignatureFrom(parent *Certificate) error {
	var h hash.Hash
	switch {
	case c.SignatureAlgorithm.Equal(oidECDSAWithSHA256):
		h = sha256.New()
	case c.SignatureAlgorithm.Equal(oidECDSAWithSHA384):
		h = sha512.New384()
	case c.SignatureAlgorithm.Equal(oidECDSAWithSHA512):
		h = sha512.New()
	default:
		return ErrChainInvalid(fmt.Errorf("unsupported signature algorithm %s", c.SignatureAlgorithm))
	}
	h.Write(c.RawTBSCertificate)
	if !parent.PublicKey.Verify(h.Sum(nil), c.Signature) {
		return ErrChainInvalid(fmt.Errorf("%q is not signed by %q", c.Subject, parent.Subject))
	}
	return nil
}

// X509 parses the certificate with crypto/x509. It fails for secp256k1
// certificates.
func (c *Certificate) X509() (*x509.Certificate, error) {
	return x509.ParseCertificate(c.Raw)
}
