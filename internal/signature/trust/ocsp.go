package trust

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/crypto/ocsp"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
)

// Default OCSP configuration
const (
	DefaultOCSPTimeout  = 10 * time.Second
	DefaultOCSPCacheTTL = 1 * time.Hour
	DefaultOCSPRetries  = 2
)

// OCSPStatus is the answer of a responder for one certificate
type OCSPStatus struct {
	Revoked    bool
	RevokedAt  time.Time
	Reason     int
	ThisUpdate time.Time
	NextUpdate time.Time
}

// OCSPCache keeps responder answers until the earlier of the cache TTL and
// the response's NextUpdate
type OCSPCache struct {
	mu      sync.RWMutex
	entries map[string]*ocspCacheEntry
	ttl     time.Duration
}

type ocspCacheEntry struct {
	status    *OCSPStatus
	expiresAt time.Time
}

// NewOCSPCache creates an empty cache
func NewOCSPCache(ttl time.Duration) *OCSPCache {
	return &OCSPCache{
		entries: make(map[string]*ocspCacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached status of cert
func (c *OCSPCache) Get(cert *signature.Certificate) (*OCSPStatus, bool) {
	if cert == nil {
		return nil, false
	}
	key := certCacheKey(cert)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.status, true
}

// Set stores status for cert
func (c *OCSPCache) Set(cert *signature.Certificate, status *OCSPStatus) {
	if cert == nil || status == nil {
		return
	}

	expires := time.Now().Add(c.ttl)
	if !status.NextUpdate.IsZero() && status.NextUpdate.Before(expires) {
		expires = status.NextUpdate
	}

	c.mu.Lock()
	c.entries[certCacheKey(cert)] = &ocspCacheEntry{status: status, expiresAt: expires}
	c.mu.Unlock()
}

// Clear removes all cached entries
func (c *OCSPCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*ocspCacheEntry)
	c.mu.Unlock()
}

// Size returns the number of cached entries
func (c *OCSPCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// certCacheKey identifies a certificate by its DER fingerprint, or by
// issuer and serial when the raw bytes are unknown
func certCacheKey(cert *signature.Certificate) string {
	if len(cert.Raw) > 0 {
		sum := sha256.Sum256(cert.Raw)
		return hex.EncodeToString(sum[:])
	}
	return fmt.Sprintf("%s:%s", cert.Issuer, cert.SerialNumber.String())
}

// OCSPClient queries the responders named in a certificate
type OCSPClient struct {
	httpClient *http.Client
	retries    uint64
	interval   time.Duration
}

// NewOCSPClient creates a client. Each responder is retried up to retries
// times on transport errors and 5xx answers.
func NewOCSPClient(httpClient *http.Client, retries uint64) *OCSPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OCSPClient{httpClient: httpClient, retries: retries, interval: 200 * time.Millisecond}
}

// Check asks each responder of cert in turn and returns the first answer
func (c *OCSPClient) Check(ctx context.Context, cert, issuer *x509.Certificate) (*OCSPStatus, error) {
	if len(cert.OCSPServer) == 0 {
		return nil, fmt.Errorf("no OCSP server URL in certificate")
	}

	request, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCSP request: %w", err)
	}

	var lastErr error
	for _, server := range cert.OCSPServer {
		status, err := c.query(ctx, server, request, issuer)
		if err == nil {
			return status, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all OCSP servers failed: %w", lastErr)
}

func (c *OCSPClient) query(ctx context.Context, serverURL string, request []byte, issuer *x509.Certificate) (*OCSPStatus, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.interval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx)

	var body []byte
	err := backoff.Retry(func() error {
		var err error
		body, err = c.post(ctx, serverURL, request)
		return err
	}, retry)
	if err != nil {
		return nil, err
	}

	resp, err := ocsp.ParseResponseForCert(body, nil, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OCSP response: %w", err)
	}

	status := &OCSPStatus{ThisUpdate: resp.ThisUpdate, NextUpdate: resp.NextUpdate}
	switch resp.Status {
	case ocsp.Good:
	case ocsp.Revoked:
		status.Revoked = true
		status.RevokedAt = resp.RevokedAt
		status.Reason = resp.RevocationReason
	case ocsp.Unknown:
		return nil, errors.New("OCSP status unknown")
	default:
		return nil, fmt.Errorf("unexpected OCSP status: %d", resp.Status)
	}
	return status, nil
}

// post sends one request. Client errors are permanent; transport errors and
// 5xx answers are retried.
func (c *OCSPClient) post(ctx context.Context, serverURL string, request []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL, bytes.NewReader(request))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCSP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("OCSP server returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("OCSP server returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read OCSP response: %w", err)
	}
	return body, nil
}
