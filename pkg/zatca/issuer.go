package zatca

import (
	"context"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/processor"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/store"
)

// IssueResult is the outcome of Issuer.Issue
type IssueResult = processor.Result

// Record is an issued invoice as kept in the chain store
type Record = store.Record

// Issuer numbers, chains, signs and records invoices for one or more
// devices, persisting chain state in a local database file.
type Issuer struct {
	store    *store.BoltStore
	pipeline *processor.Pipeline
}

// OpenIssuer opens (or creates) the chain database at path and signs with
// creds
func OpenIssuer(path string, creds *Credentials, opts ...processor.Option) (*Issuer, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return &Issuer{
		store:    st,
		pipeline: processor.NewPipeline(st, creds, opts...),
	}, nil
}

// Issue assigns the next counter and previous hash of props.EGS.ID, then
// builds, signs and records the invoice
func (i *Issuer) Issue(ctx context.Context, props InvoiceProps) (*IssueResult, error) {
	return i.pipeline.Issue(ctx, props)
}

// Invoices lists the recorded invoices of a device in counter order
func (i *Issuer) Invoices(egsID string) ([]*Record, error) {
	return i.store.List(egsID)
}

// Close releases the database
func (i *Issuer) Close() error {
	return i.store.Close()
}
