// Package client talks to the e-invoicing platform: certificate issuance,
// compliance checks, reporting and clearance.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/logger"
)

// Config holds client configuration
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Language        string
}

// DefaultConfig returns the sandbox configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:         SandboxURL,
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Language:        "en",
	}
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// Client calls the platform API
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// New creates a client
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{},
		log:  logger.Named("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// IssueComplianceCSID submits a CSR with the one-time password from the
// taxpayer portal and returns the compliance certificate
func (c *Client) IssueComplianceCSID(ctx context.Context, csr, otp string) (*CSIDResponse, error) {
	var out CSIDResponse
	headers := map[string]string{"OTP": otp}
	if err := c.post(ctx, PathComplianceCSID, nil, headers, CSIDRequest{CSR: csr}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckCompliance submits a sample invoice under the compliance certificate
func (c *Client) CheckCompliance(ctx context.Context, creds Credentials, req InvoiceRequest) (*InvoiceResponse, error) {
	var out InvoiceResponse
	if err := c.post(ctx, PathComplianceInvoices, &creds, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IssueProductionCSID exchanges a passed compliance request for the
// production certificate
func (c *Client) IssueProductionCSID(ctx context.Context, creds Credentials, complianceRequestID string) (*CSIDResponse, error) {
	var out CSIDResponse
	body := ProductionCSIDRequest{ComplianceRequestID: complianceRequestID}
	if err := c.post(ctx, PathProductionCSID, &creds, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report submits a simplified invoice after issuance
func (c *Client) Report(ctx context.Context, creds Credentials, req InvoiceRequest) (*InvoiceResponse, error) {
	var out InvoiceResponse
	headers := map[string]string{"Clearance-Status": "0"}
	if err := c.post(ctx, PathReporting, &creds, headers, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clear submits a standard invoice for clearance before it is shared
func (c *Client) Clear(ctx context.Context, creds Credentials, req InvoiceRequest) (*InvoiceResponse, error) {
	var out InvoiceResponse
	headers := map[string]string{"Clearance-Status": "1"}
	if err := c.post(ctx, PathClearance, &creds, headers, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// post sends body as JSON and decodes a 2xx answer into out. Network
// failures, timeouts, 429 and 5xx are retried with exponential backoff.
func (c *Client) post(ctx context.Context, path string, creds *Credentials, headers map[string]string, body, out interface{}) error {
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := c.do(ctx, url, creds, headers, payload, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.log.Warn("request failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}

	expBackoff := backoff.NewExponentialBackOff()
	if c.cfg.InitialInterval > 0 {
		expBackoff.InitialInterval = c.cfg.InitialInterval
	}
	if c.cfg.MaxInterval > 0 {
		expBackoff.MaxInterval = c.cfg.MaxInterval
	}
	expBackoff.MaxElapsedTime = 0

	var policy backoff.BackOff = expBackoff
	if c.cfg.MaxRetries >= 0 {
		policy = backoff.WithMaxRetries(expBackoff, uint64(c.cfg.MaxRetries))
	}

	start := time.Now()
	err = backoff.Retry(operation, backoff.WithContext(policy, ctx))
	if err != nil {
		c.log.Error("request failed",
			zap.String("url", url),
			zap.Int("attempts", attempt),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return err
	}
	c.log.Info("request succeeded",
		zap.String("url", url),
		zap.Int("attempts", attempt),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (c *Client) do(ctx context.Context, url string, creds *Credentials, headers map[string]string, payload []byte, out interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Version", "V2")
	req.Header.Set("Accept-Language", c.cfg.Language)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if creds != nil {
		req.SetBasicAuth(creds.Token, creds.Secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(url, resp, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       string(data),
			Errors:     []ValidationMessage{{Type: "ERROR", Message: "malformed response body: " + err.Error()}},
		}
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, url string, err error) error {
	var netErr net.Error
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())) {
		return &TimeoutError{URL: url, Timeout: c.cfg.Timeout}
	}
	return &NetworkError{URL: url, Message: err.Error(), Cause: err}
}

func newAPIError(url string, resp *http.Response, data []byte) *APIError {
	apiErr := &APIError{
		URL:        url,
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       string(data),
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return apiErr
	}
	if body.ValidationResults != nil {
		apiErr.Errors = append(apiErr.Errors, body.ValidationResults.ErrorMessages...)
		apiErr.Warnings = append(apiErr.Warnings, body.ValidationResults.WarningMessages...)
	}
	apiErr.Errors = append(apiErr.Errors, body.Errors...)
	if body.Message != "" {
		apiErr.Errors = append(apiErr.Errors, ValidationMessage{Type: "ERROR", Code: body.Code, Message: body.Message})
	}
	return apiErr
}
