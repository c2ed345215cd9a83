// Package processor issues invoices: it reserves the next chain position of
// a device, builds and signs the document, records it and optionally reports
// it to the platform.
package processor

//go:generate mockgen -destination=mocks/mocks.go -package=mocks . ChainStore,Reporter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/client"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/logger"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/store"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/tax"
)

// Record statuses
const (
	StatusIssued       = "ISSUED"
	StatusReportFailed = "REPORT_FAILED"
)

// ChainStore is the persistence the pipeline needs
type ChainStore interface {
	Head(egsID string) (store.Head, error)
	Append(rec *store.Record) error
	List(egsID string) ([]*store.Record, error)
	SetStatus(egsID string, counter int64, status string) error
}

// Reporter submits signed invoices to the platform
type Reporter interface {
	Report(ctx context.Context, creds client.Credentials, req client.InvoiceRequest) (*client.InvoiceResponse, error)
	Clear(ctx context.Context, creds client.Credentials, req client.InvoiceRequest) (*client.InvoiceResponse, error)
}

// Result is the outcome of issuing one invoice
type Result struct {
	Record      *store.Record
	Invoice     *invoice.Invoice
	Signed      *signature.SignedInvoiceResult
	Submission  *client.InvoiceResponse
	SubmitError error
	Duration    time.Duration
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithPolicy sets the tax rounding policy
func WithPolicy(policy tax.Policy) Option {
	return func(p *Pipeline) {
		p.policy = policy
	}
}

// WithSigner sets the signer
func WithSigner(s *signature.Signer) Option {
	return func(p *Pipeline) {
		p.signer = s
	}
}

// WithReporter submits every issued invoice: simplified invoices are
// reported, standard invoices cleared.
func WithReporter(r Reporter, creds client.Credentials) Option {
	return func(p *Pipeline) {
		p.reporter = r
		p.apiCreds = creds
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithClock sets the source of issue dates
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithUUIDGenerator sets how missing invoice UUIDs are filled in
func WithUUIDGenerator(gen func() string) Option {
	return func(p *Pipeline) {
		p.newUUID = gen
	}
}

// Pipeline issues invoices. Issuance for one device is serialized; devices
// proceed independently.
type Pipeline struct {
	store    ChainStore
	creds    *signature.Credentials
	signer   *signature.Signer
	policy   tax.Policy
	reporter Reporter
	apiCreds client.Credentials
	log      *zap.Logger
	now      func() time.Time
	newUUID  func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline creates a pipeline over a chain store and signing credentials
func NewPipeline(st ChainStore, creds *signature.Credentials, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   st,
		creds:   creds,
		signer:  signature.NewSigner(),
		policy:  tax.DefaultPolicy(),
		log:     logger.Named("processor"),
		now:     time.Now,
		newUUID: uuid.NewString,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) deviceLock(egsID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[egsID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[egsID] = l
	}
	return l
}

// Issue assigns the device's next counter and previous hash to props, then
// builds, signs and records the invoice. Submission failures do not undo
// issuance; they are returned in Result.SubmitError.
func (p *Pipeline) Issue(ctx context.Context, props model.InvoiceProps) (*Result, error) {
	start := time.Now()
	if p.creds == nil {
		return nil, fmt.Errorf("pipeline has no signing credentials")
	}
	egsID := props.EGS.ID
	if egsID == "" {
		return nil, model.NewValidationError("egs_info.id", "", "required", "egs_info.id is required")
	}

	lock := p.deviceLock(egsID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head, err := p.store.Head(egsID)
	if err != nil {
		return nil, fmt.Errorf("reading chain head: %w", err)
	}

	props = p.fill(props, head)
	inv, err := invoice.Build(props, p.policy)
	if err != nil {
		return nil, err
	}
	signed, err := p.signer.SignWith(inv, p.creds)
	if err != nil {
		return nil, fmt.Errorf("signing invoice %d: %w", props.InvoiceCounterNumber, err)
	}

	rec := &store.Record{
		EGSID:        egsID,
		Counter:      props.InvoiceCounterNumber,
		UUID:         props.InvoiceUUID,
		SerialNumber: props.InvoiceSerialNumber,
		InvoiceHash:  signed.InvoiceHash,
		PreviousHash: props.PreviousInvoiceHash,
		QR:           signed.QR,
		SignedXML:    signed.SignedXML,
		IssuedAt:     p.now().UTC(),
		Status:       StatusIssued,
	}
	if err := p.store.Append(rec); err != nil {
		return nil, fmt.Errorf("recording invoice %d: %w", rec.Counter, err)
	}

	p.log.Info("invoice issued",
		zap.String("egs_id", egsID),
		zap.Int64("counter", rec.Counter),
		zap.String("serial", rec.SerialNumber),
		zap.String("hash", rec.InvoiceHash))

	result := &Result{Record: rec, Invoice: inv, Signed: signed}
	if p.reporter != nil {
		result.Submission, result.SubmitError = p.submit(ctx, rec, isSimplified(props.InvoiceType))
	}
	result.Duration = time.Since(start)
	return result, nil
}

// fill sets the chain position and defaults the caller left empty
func (p *Pipeline) fill(props model.InvoiceProps, head store.Head) model.InvoiceProps {
	props = props.Clone()
	props.InvoiceCounterNumber = head.Next()
	props.PreviousInvoiceHash = head.LastHash
	if props.InvoiceUUID == "" {
		props.InvoiceUUID = p.newUUID()
	}
	if props.InvoiceSerialNumber == "" {
		props.InvoiceSerialNumber = fmt.Sprintf("%s-%d", props.EGS.Name, props.InvoiceCounterNumber)
	}
	now := p.now()
	if props.IssueDate == "" {
		props.IssueDate = now.Format("2006-01-02")
	}
	if props.IssueTime == "" {
		props.IssueTime = now.Format("15:04:05")
	}
	if props.InvoiceCode == "" {
		props.InvoiceCode = model.CodeTaxInvoice
	}
	if props.InvoiceType == "" {
		props.InvoiceType = model.TypeSimplified
	}
	if props.PaymentMethod == "" {
		props.PaymentMethod = model.PaymentCash
	}
	return props
}

func (p *Pipeline) submit(ctx context.Context, rec *store.Record, simplified bool) (*client.InvoiceResponse, error) {
	req := client.NewInvoiceRequest(rec.UUID, &signature.SignedInvoiceResult{
		SignedXML:   rec.SignedXML,
		InvoiceHash: rec.InvoiceHash,
	})

	var (
		resp *client.InvoiceResponse
		err  error
	)
	if simplified {
		resp, err = p.reporter.Report(ctx, p.apiCreds, req)
	} else {
		resp, err = p.reporter.Clear(ctx, p.apiCreds, req)
	}

	status := StatusReportFailed
	if err == nil {
		status = resp.Status()
	}
	if setErr := p.store.SetStatus(rec.EGSID, rec.Counter, status); setErr != nil {
		err = errors.Join(err, fmt.Errorf("saving status: %w", setErr))
	}
	rec.Status = status

	if err != nil {
		p.log.Warn("invoice submission failed",
			zap.String("egs_id", rec.EGSID),
			zap.Int64("counter", rec.Counter),
			zap.Error(err))
		return resp, err
	}
	p.log.Info("invoice submitted",
		zap.String("egs_id", rec.EGSID),
		zap.Int64("counter", rec.Counter),
		zap.String("status", status))
	return resp, nil
}

// ReportPending resubmits a device's invoices that were never accepted, in
// counter order. It stops at the first failure so the platform sees the
// chain in order.
func (p *Pipeline) ReportPending(ctx context.Context, egsID string) (int, error) {
	if p.reporter == nil {
		return 0, fmt.Errorf("pipeline has no reporter")
	}

	lock := p.deviceLock(egsID)
	lock.Lock()
	defer lock.Unlock()

	records, err := p.store.List(egsID)
	if err != nil {
		return 0, fmt.Errorf("listing invoices: %w", err)
	}

	sent := 0
	for _, rec := range records {
		if rec.Status != StatusIssued && rec.Status != StatusReportFailed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if _, err := p.submit(ctx, rec, isSimplifiedXML(rec.SignedXML)); err != nil {
			return sent, fmt.Errorf("submitting invoice %d: %w", rec.Counter, err)
		}
		sent++
	}
	return sent, nil
}

func isSimplified(invoiceType string) bool {
	return strings.HasPrefix(invoiceType, "02")
}

func isSimplifiedXML(signedXML string) bool {
	return strings.Contains(signedXML, `name="02`)
}
