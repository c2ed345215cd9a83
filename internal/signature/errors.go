package signature

import "fmt"

// Error codes for signing and signature verification
const (
	ErrCodeInvalidCertificate = "INVALID_CERTIFICATE"
	ErrCodeInvalidPrivateKey  = "INVALID_PRIVATE_KEY"
	ErrCodeUnsupportedCurve   = "UNSUPPORTED_CURVE"
	ErrCodeKeyMismatch        = "KEY_MISMATCH"
	ErrCodeSignFailed         = "SIGN_FAILED"
	ErrCodeCanonicalization   = "CANONICALIZATION_FAILED"

	ErrCodeNoSignature      = "NO_SIGNATURE"
	ErrCodeInvalidSignature = "INVALID_SIGNATURE"
	ErrCodeDigestMismatch   = "DIGEST_MISMATCH"
	ErrCodeCertExpired      = "CERT_EXPIRED"
	ErrCodeCertNotYetValid  = "CERT_NOT_YET_VALID"
	ErrCodeCertRevoked      = "CERT_REVOKED"
	ErrCodeChainInvalid     = "CHAIN_INVALID"
	ErrCodeUntrustedRoot    = "UNTRUSTED_ROOT"
	ErrCodeOCSPUnavailable  = "OCSP_UNAVAILABLE"
)

// SigningError is returned for malformed key or certificate material, a
// failing cryptographic primitive, or a signature that does not verify.
type SigningError struct {
	Code    string
	Field   string
	Message string
	Cause   error
}

func (e *SigningError) Error() string {
	if e.Field != "" && e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Code, e.Field, e.Message, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SigningError) Unwrap() error {
	return e.Cause
}

// NewSigningError creates a new signing error
func NewSigningError(code, field, message string, cause error) *SigningError {
	return &SigningError{
		Code:    code,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

func ErrInvalidCertificate(message string, cause error) *SigningError {
	return NewSigningError(ErrCodeInvalidCertificate, "certificate", message, cause)
}

func ErrInvalidPrivateKey(message string, cause error) *SigningError {
	return NewSigningError(ErrCodeInvalidPrivateKey, "private_key", message, cause)
}

// ErrUnsupportedCurve is returned for keys on curves other than secp256k1
// and P-256.
func ErrUnsupportedCurve(field, oid string) *SigningError {
	return NewSigningError(ErrCodeUnsupportedCurve, field, fmt.Sprintf("unsupported elliptic curve %s", oid), nil)
}

// ErrKeyMismatch is returned when the private key does not belong to the
// certificate.
func ErrKeyMismatch() *SigningError {
	return NewSigningError(ErrCodeKeyMismatch, "private_key", "private key does not match certificate public key", nil)
}

func ErrSignFailed(cause error) *SigningError {
	return NewSigningError(ErrCodeSignFailed, "", "signing failed", cause)
}

func ErrCanonicalization(field string, cause error) *SigningError {
	return NewSigningError(ErrCodeCanonicalization, field, "canonicalization failed", cause)
}

// ErrNoSignature returns error when no signature found in document
func ErrNoSignature() *SigningError {
	return NewSigningError(ErrCodeNoSignature, "", "no signature found in document", nil)
}

// ErrInvalidSignature returns error when signature validation fails
func ErrInvalidSignature(cause error) *SigningError {
	return NewSigningError(ErrCodeInvalidSignature, "signature", "signature validation failed", cause)
}

// ErrDigestMismatch reports a digest in the document that does not match
// the recomputed value.
func ErrDigestMismatch(field, want, got string) *SigningError {
	return NewSigningError(ErrCodeDigestMismatch, field, fmt.Sprintf("digest %s does not match computed %s", got, want), nil)
}

// ErrCertExpired returns error when certificate has expired
func ErrCertExpired(subject string) *SigningError {
	return NewSigningError(ErrCodeCertExpired, "certificate", fmt.Sprintf("certificate expired: %s", subject), nil)
}

// ErrCertNotYetValid returns error when certificate is not yet valid
func ErrCertNotYetValid(subject string) *SigningError {
	return NewSigningError(ErrCodeCertNotYetValid, "certificate", fmt.Sprintf("certificate not yet valid: %s", subject), nil)
}

// ErrCertRevoked returns error when certificate has been revoked
func ErrCertRevoked(subject string) *SigningError {
	return NewSigningError(ErrCodeCertRevoked, "certificate", fmt.Sprintf("certificate revoked: %s", subject), nil)
}

// ErrChainInvalid returns error when certificate chain is invalid
func ErrChainInvalid(cause error) *SigningError {
	return NewSigningError(ErrCodeChainInvalid, "chain", "certificate chain validation failed", cause)
}

// ErrUntrustedRoot returns error when root CA is not trusted
func ErrUntrustedRoot(issuer string) *SigningError {
	return NewSigningError(ErrCodeUntrustedRoot, "chain", fmt.Sprintf("root CA not trusted: %s", issuer), nil)
}

// ErrOCSPUnavailable returns error when OCSP check fails
func ErrOCSPUnavailable(cause error) *SigningError {
	return NewSigningError(ErrCodeOCSPUnavailable, "ocsp", "OCSP check unavailable", cause)
}
