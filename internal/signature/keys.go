package signature

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Curve names an elliptic curve supported for invoice signing.
type Curve string

const (
	CurveSecp256k1 Curve = "secp256k1"
	CurveP256      Curve = "P-256"
)

var (
	oidPublicKeyEC = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
	oidP256        = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
)

func curveFromOID(oid asn1.ObjectIdentifier) (Curve, bool) {
	switch {
	case oid.Equal(oidSecp256k1):
		return CurveSecp256k1, true
	case oid.Equal(oidP256):
		return CurveP256, true
	}
	return "", false
}

func (c Curve) oid() asn1.ObjectIdentifier {
	if c == CurveP256 {
		return oidP256
	}
	return oidSecp256k1
}

// RFC 5915 ECPrivateKey
type ecPrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

// RFC 5208 PrivateKeyInfo
type pkcs8 struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// PrivateKey is an EC signing key on secp256k1 or P-256.
type PrivateKey struct {
	curve Curve
	p256  *ecdsa.PrivateKey
	k1    *secp256k1.PrivateKey
}

// GeneratePrivateKey creates a new key on curve.
func GeneratePrivateKey(curve Curve) (*PrivateKey, error) {
	switch curve {
	case CurveP256:
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, ErrInvalidPrivateKey("generate key", err)
		}
		return &PrivateKey{curve: curve, p256: key}, nil
	case CurveSecp256k1:
		key, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, ErrInvalidPrivateKey("generate key", err)
		}
		return &PrivateKey{curve: curve, k1: key}, nil
	}
	return nil, ErrUnsupportedCurve("private_key", string(curve))
}

// ParsePrivateKey reads a SEC1 ("EC PRIVATE KEY") or PKCS#8 ("PRIVATE KEY")
// key, PEM armored or as bare base64.
func ParsePrivateKey(data string) (*PrivateKey, error) {
	der, blockType, err := decodeMaterial(data, "EC PRIVATE KEY", "PRIVATE KEY")
	if err != nil {
		return nil, ErrInvalidPrivateKey(err.Error(), nil)
	}

	switch blockType {
	case "EC PRIVATE KEY":
		return parseSEC1(der, nil)
	case "PRIVATE KEY":
		return parsePKCS8(der)
	}

	if key, err := parseSEC1(der, nil); err == nil {
		return key, nil
	}
	return parsePKCS8(der)
}

func parseSEC1(der []byte, curveOID asn1.ObjectIdentifier) (*PrivateKey, error) {
	var k ecPrivateKey
	rest, err := asn1.Unmarshal(der, &k)
	if err != nil {
		return nil, ErrInvalidPrivateKey("malformed EC private key", err)
	}
	if len(rest) > 0 {
		return nil, ErrInvalidPrivateKey("trailing data after EC private key", nil)
	}
	if k.Version != 1 {
		return nil, ErrInvalidPrivateKey(fmt.Sprintf("unknown EC private key version %d", k.Version), nil)
	}
	if len(k.NamedCurveOID) > 0 {
		curveOID = k.NamedCurveOID
	}

	curve, ok := curveFromOID(curveOID)
	if !ok {
		return nil, ErrUnsupportedCurve("private_key", curveOID.String())
	}
	if len(k.PrivateKey) == 0 || len(k.PrivateKey) > 32 {
		return nil, ErrInvalidPrivateKey(fmt.Sprintf("invalid scalar length %d", len(k.PrivateKey)), nil)
	}

	if curve == CurveSecp256k1 {
		return &PrivateKey{curve: curve, k1: secp256k1.PrivKeyFromBytes(k.PrivateKey)}, nil
	}

	// re-encode with the curve so the standard parser accepts PKCS#8 inner keys
	k.NamedCurveOID = oidP256
	full, err := asn1.Marshal(k)
	if err != nil {
		return nil, ErrInvalidPrivateKey("re-encode P-256 key", err)
	}
	key, err := x509.ParseECPrivateKey(full)
	if err != nil {
		return nil, ErrInvalidPrivateKey("malformed P-256 key", err)
	}
	return &PrivateKey{curve: curve, p256: key}, nil
}

func parsePKCS8(der []byte) (*PrivateKey, error) {
	var p pkcs8
	if _, err := asn1.Unmarshal(der, &p); err != nil {
		return nil, ErrInvalidPrivateKey("malformed PKCS#8 private key", err)
	}
	if !p.Algo.Algorithm.Equal(oidPublicKeyEC) {
		return nil, ErrInvalidPrivateKey(fmt.Sprintf("not an EC key: %s", p.Algo.Algorithm), nil)
	}
	var curveOID asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(p.Algo.Parameters.FullBytes, &curveOID); err != nil {
		return nil, ErrInvalidPrivateKey("missing curve parameters", err)
	}
	return parseSEC1(p.PrivateKey, curveOID)
}

// Curve returns the key's curve.
func (k *PrivateKey) Curve() Curve {
	return k.curve
}

// Public returns the matching public key.
func (k *PrivateKey) Public() *PublicKey {
	if k.curve == CurveP256 {
		return &PublicKey{curve: k.curve, p256: &k.p256.PublicKey}
	}
	return &PublicKey{curve: k.curve, k1: k.k1.PubKey()}
}

// Sign returns the ASN.1 DER ECDSA signature of digest.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	if k.curve == CurveP256 {
		sig, err := ecdsa.SignASN1(rand.Reader, k.p256, digest)
		if err != nil {
			return nil, ErrSignFailed(err)
		}
		return sig, nil
	}
	return k1ecdsa.Sign(k.k1, digest).Serialize(), nil
}

// PEM encodes the key as a SEC1 "EC PRIVATE KEY" block.
func (k *PrivateKey) PEM() (string, error) {
	var scalar []byte
	if k.curve == CurveP256 {
		scalar = k.p256.D.FillBytes(make([]byte, 32))
	} else {
		scalar = k.k1.Serialize()
	}
	der, err := asn1.Marshal(ecPrivateKey{
		Version:       1,
		PrivateKey:    scalar,
		NamedCurveOID: k.curve.oid(),
		PublicKey:     asn1.BitString{Bytes: k.Public().Bytes(), BitLength: 8 * len(k.Public().Bytes())},
	})
	if err != nil {
		return "", ErrInvalidPrivateKey("encode key", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})), nil
}

// PublicKey is an EC verification key on secp256k1 or P-256.
type PublicKey struct {
	curve Curve
	p256  *ecdsa.PublicKey
	k1    *secp256k1.PublicKey
}

func (p *PublicKey) Curve() Curve {
	return p.curve
}

// Bytes returns the uncompressed point encoding.
func (p *PublicKey) Bytes() []byte {
	if p.curve == CurveP256 {
		pub, err := p.p256.ECDH()
		if err != nil {
			return nil
		}
		return pub.Bytes()
	}
	return p.k1.SerializeUncompressed()
}

// Equal reports whether both keys are the same point on the same curve.
func (p *PublicKey) Equal(other *PublicKey) bool {
	if other == nil || p.curve != other.curve {
		return false
	}
	return bytes.Equal(p.Bytes(), other.Bytes())
}

// Verify checks an ASN.1 DER ECDSA signature over digest.
func (p *PublicKey) Verify(digest, sig []byte) bool {
	if p.curve == CurveP256 {
		return ecdsa.VerifyASN1(p.p256, digest, sig)
	}
	parsed, err := k1ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(digest, p.k1)
}

// MarshalPKIX encodes the key as a SubjectPublicKeyInfo.
func (p *PublicKey) MarshalPKIX() ([]byte, error) {
	params, err := asn1.Marshal(p.curve.oid())
	if err != nil {
		return nil, err
	}
	point := p.Bytes()
	return asn1.Marshal(publicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidPublicKeyEC,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		PublicKey: asn1.BitString{Bytes: point, BitLength: 8 * len(point)},
	})
}

// decodeMaterial returns the DER bytes of a PEM block of one of the given
// types, or of bare base64 text. The PEM type is empty for bare input.
func decodeMaterial(data string, types ...string) ([]byte, string, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, "", fmt.Errorf("empty input")
	}

	if strings.HasPrefix(data, "-----BEGIN") {
		rest := []byte(data)
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				return nil, "", fmt.Errorf("no PEM block of type %s", strings.Join(types, " or "))
			}
			for _, t := range types {
				if block.Type == t {
					return block.Bytes, block.Type, nil
				}
			}
		}
	}

	compact := strings.Join(strings.Fields(data), "")
	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, "", fmt.Errorf("neither PEM nor base64: %w", err)
	}
	return der, "", nil
}
