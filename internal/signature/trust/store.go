// Package trust holds the CA certificates a signing certificate must chain
// to, and checks revocation over OCSP.
package trust

import (
	"bytes"
	"context"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
)

// MaxChainDepth bounds the intermediates walked between a leaf and a root.
const MaxChainDepth = 5

// TrustStore manages trusted CA certificates and revocation checking
type TrustStore struct {
	roots         []*signature.Certificate
	intermediates []*signature.Certificate
	ocspCache     *OCSPCache
	ocspTimeout   time.Duration
	httpClient    *http.Client
	ocspRetries   uint64
	softFail      bool
	now           func() time.Time
}

// TrustStoreOption configures a TrustStore
type TrustStoreOption func(*TrustStore)

// NewTrustStore creates a trust store without any CA
func NewTrustStore(opts ...TrustStoreOption) *TrustStore {
	store := &TrustStore{
		ocspCache:   NewOCSPCache(DefaultOCSPCacheTTL),
		ocspTimeout: DefaultOCSPTimeout,
		httpClient:  &http.Client{},
		ocspRetries: DefaultOCSPRetries,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// LoadTrustStore creates a trust store from PEM bundles on disk. Every file
// must contain at least one certificate.
func LoadTrustStore(paths []string, opts ...TrustStoreOption) (*TrustStore, error) {
	store := NewTrustStore(opts...)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read trust bundle: %w", err)
		}
		if err := store.AddCertificatesFromPEM(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return store, nil
}

// WithSoftFail enables soft-fail mode for OCSP checks
// When enabled, OCSP failures don't cause verification to fail
func WithSoftFail() TrustStoreOption {
	return func(s *TrustStore) {
		s.softFail = true
	}
}

// WithOCSPTimeout sets the timeout for OCSP requests
func WithOCSPTimeout(d time.Duration) TrustStoreOption {
	return func(s *TrustStore) {
		s.ocspTimeout = d
	}
}

// WithOCSPCacheTTL sets the TTL for OCSP cache entries
func WithOCSPCacheTTL(d time.Duration) TrustStoreOption {
	return func(s *TrustStore) {
		s.ocspCache = NewOCSPCache(d)
	}
}

// WithHTTPClient sets the client used for OCSP requests
func WithHTTPClient(c *http.Client) TrustStoreOption {
	return func(s *TrustStore) {
		s.httpClient = c
	}
}

// WithOCSPRetries sets how often each responder is retried after a
// transport error or 5xx answer
func WithOCSPRetries(n uint64) TrustStoreOption {
	return func(s *TrustStore) {
		s.ocspRetries = n
	}
}

// WithClock sets the time used for validity checks
func WithClock(now func() time.Time) TrustStoreOption {
	return func(s *TrustStore) {
		s.now = now
	}
}

// AddCertificate adds a trusted root
func (s *TrustStore) AddCertificate(cert *signature.Certificate) {
	if cert != nil {
		s.roots = append(s.roots, cert)
	}
}

// AddIntermediate adds a CA certificate that may appear between a leaf and
// a root but is not itself trusted
func (s *TrustStore) AddIntermediate(cert *signature.Certificate) {
	if cert != nil {
		s.intermediates = append(s.intermediates, cert)
	}
}

// AddCertificatesFromPEM parses and adds roots from PEM data
func (s *TrustStore) AddCertificatesFromPEM(pemData []byte) error {
	var added int
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert, err := signature.ParseCertificateDER(block.Bytes)
			if err != nil {
				return fmt.Errorf("failed to parse certificate: %w", err)
			}
			s.AddCertificate(cert)
			added++
		}
		pemData = rest
	}
	if added == 0 {
		return fmt.Errorf("no certificates found in PEM data")
	}
	return nil
}

// VerifyChain walks from cert to a trusted root and returns the chain, leaf
// first. Signatures and validity windows are checked at every step.
func (s *TrustStore) VerifyChain(cert *signature.Certificate, intermediates []*signature.Certificate) ([]*signature.Certificate, error) {
	if cert == nil {
		return nil, signature.ErrChainInvalid(fmt.Errorf("certificate is nil"))
	}

	pool := append(append([]*signature.Certificate(nil), intermediates...), s.intermediates...)
	chain := []*signature.Certificate{cert}
	current := cert

	for depth := 0; depth <= MaxChainDepth; depth++ {
		if err := current.CheckValidity(s.now()); err != nil {
			return nil, err
		}
		if s.isRoot(current) {
			return chain, nil
		}
		if root := findIssuer(current, s.roots); root != nil {
			if err := root.CheckValidity(s.now()); err != nil {
				return nil, err
			}
			return append(chain, root), nil
		}

		next := findIssuer(current, pool)
		if next == nil || next == current {
			return nil, signature.ErrUntrustedRoot(current.Issuer)
		}
		chain = append(chain, next)
		current = next
	}
	return nil, signature.ErrChainInvalid(fmt.Errorf("chain longer than %d certificates", MaxChainDepth))
}

func (s *TrustStore) isRoot(cert *signature.Certificate) bool {
	for _, root := range s.roots {
		if bytes.Equal(root.Raw, cert.Raw) {
			return true
		}
	}
	return false
}

func findIssuer(cert *signature.Certificate, candidates []*signature.Certificate) *signature.Certificate {
	for _, c := range candidates {
		if c.Subject != cert.Issuer {
			continue
		}
		if cert.CheckSignatureFrom(c) == nil {
			return c
		}
	}
	return nil
}

// CheckRevocation checks if a certificate has been revoked using OCSP.
// Certificates crypto/x509 cannot parse (secp256k1) carry no usable OCSP
// data and report ErrOCSPUnavailable.
func (s *TrustStore) CheckRevocation(ctx context.Context, cert, issuer *signature.Certificate) (bool, error) {
	if cert == nil || issuer == nil {
		return false, fmt.Errorf("certificate or issuer is nil")
	}

	if status, found := s.ocspCache.Get(cert); found {
		return !status.Revoked, nil
	}

	leaf, err := cert.X509()
	if err != nil {
		return s.unavailable(err)
	}
	parent, err := issuer.X509()
	if err != nil {
		return s.unavailable(err)
	}

	// No OCSP URLs - nothing to ask
	if len(leaf.OCSPServer) == 0 {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.ocspTimeout)
	defer cancel()

	status, err := NewOCSPClient(s.httpClient, s.ocspRetries).Check(ctx, leaf, parent)
	if err != nil {
		return s.unavailable(err)
	}

	s.ocspCache.Set(cert, status)
	return !status.Revoked, nil
}

func (s *TrustStore) unavailable(cause error) (bool, error) {
	// Soft-fail: assume not revoked
	return s.softFail, signature.ErrOCSPUnavailable(cause)
}

// Roots returns the trusted root certificates
func (s *TrustStore) Roots() []*signature.Certificate {
	return s.roots
}

// IsSoftFail returns whether soft-fail mode is enabled
func (s *TrustStore) IsSoftFail() bool {
	return s.softFail
}
