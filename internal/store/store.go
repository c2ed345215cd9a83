// Package store persists per-device chain state and issued invoices in bbolt.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/hashchain"
)

const (
	chainBucketName   = "chain"
	invoiceBucketName = "invoices"
)

// ErrNotFound is returned when a device or invoice record does not exist
var ErrNotFound = errors.New("not found")

// ChainError is returned when an append does not continue the device's chain
type ChainError struct {
	EGSID        string
	WantCounter  int64
	GotCounter   int64
	WantPrevious string
	GotPrevious  string
}

func (e *ChainError) Error() string {
	if e.WantCounter != e.GotCounter {
		return fmt.Sprintf("chain %s: counter %d does not follow head, want %d", e.EGSID, e.GotCounter, e.WantCounter)
	}
	return fmt.Sprintf("chain %s: previous hash %s does not match head %s", e.EGSID, e.GotPrevious, e.WantPrevious)
}

// Head is the chain position of one device. A device that never issued
// has counter 0 and the genesis hash.
type Head struct {
	EGSID     string    `json:"egs_id"`
	Counter   int64     `json:"counter"`
	LastHash  string    `json:"last_hash"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Next returns the counter of the device's next invoice
func (h Head) Next() int64 {
	return h.Counter + 1
}

// Record is one issued invoice
type Record struct {
	EGSID        string    `json:"egs_id"`
	Counter      int64     `json:"counter"`
	UUID         string    `json:"uuid"`
	SerialNumber string    `json:"serial_number"`
	InvoiceHash  string    `json:"invoice_hash"`
	PreviousHash string    `json:"previous_hash"`
	QR           string    `json:"qr"`
	SignedXML    string    `json:"signed_xml"`
	IssuedAt     time.Time `json:"issued_at"`
	Status       string    `json:"status,omitempty"`
}

// Store defines the chain persistence operations
type Store interface {
	// Head returns the device's current chain position
	Head(egsID string) (Head, error)

	// Append stores rec and advances the head when rec continues the chain
	Append(rec *Record) error

	// Get retrieves one invoice by device and counter
	Get(egsID string, counter int64) (*Record, error)

	// List returns a device's invoices in counter order
	List(egsID string) ([]*Record, error)

	// SetStatus records the reporting or clearance outcome of an invoice
	SetStatus(egsID string, counter int64, status string) error

	// Close closes the database
	Close() error
}

// BoltStore implements Store using bbolt
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ Store = (*BoltStore)(nil)

// Open opens or creates the store at path
func Open(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(chainBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(invoiceBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// Head returns the device's current chain position
func (s *BoltStore) Head(egsID string) (Head, error) {
	var head Head
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		head, err = readHead(tx, egsID)
		return err
	})
	return head, err
}

func readHead(tx *bbolt.Tx, egsID string) (Head, error) {
	data := tx.Bucket([]byte(chainBucketName)).Get([]byte(egsID))
	if data == nil {
		return Head{EGSID: egsID, LastHash: hashchain.GenesisHash}, nil
	}
	var head Head
	if err := json.Unmarshal(data, &head); err != nil {
		return Head{}, fmt.Errorf("unmarshaling head: %w", err)
	}
	return head, nil
}

// Append stores rec and advances the head in one transaction. The record
// must carry counter head+1 and the head's last hash as previous hash.
func (s *BoltStore) Append(rec *Record) error {
	if rec == nil || rec.EGSID == "" {
		return fmt.Errorf("record must name a device")
	}
	if rec.InvoiceHash == "" {
		return fmt.Errorf("record %d has no invoice hash", rec.Counter)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		head, err := readHead(tx, rec.EGSID)
		if err != nil {
			return err
		}
		if rec.Counter != head.Next() || rec.PreviousHash != head.LastHash {
			return &ChainError{
				EGSID:        rec.EGSID,
				WantCounter:  head.Next(),
				GotCounter:   rec.Counter,
				WantPrevious: head.LastHash,
				GotPrevious:  rec.PreviousHash,
			}
		}

		if rec.IssuedAt.IsZero() {
			rec.IssuedAt = s.now().UTC()
		}
		invoices, err := tx.Bucket([]byte(invoiceBucketName)).CreateBucketIfNotExists([]byte(rec.EGSID))
		if err != nil {
			return fmt.Errorf("creating device bucket: %w", err)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		if err := invoices.Put(counterKey(rec.Counter), data); err != nil {
			return err
		}

		head = Head{EGSID: rec.EGSID, Counter: rec.Counter, LastHash: rec.InvoiceHash, UpdatedAt: rec.IssuedAt}
		headData, err := json.Marshal(head)
		if err != nil {
			return fmt.Errorf("marshaling head: %w", err)
		}
		return tx.Bucket([]byte(chainBucketName)).Put([]byte(rec.EGSID), headData)
	})
}

// Get retrieves one invoice by device and counter
func (s *BoltStore) Get(egsID string, counter int64) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		invoices := tx.Bucket([]byte(invoiceBucketName)).Bucket([]byte(egsID))
		if invoices == nil {
			return fmt.Errorf("device %s: %w", egsID, ErrNotFound)
		}
		data := invoices.Get(counterKey(counter))
		if data == nil {
			return fmt.Errorf("invoice %s/%d: %w", egsID, counter, ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns a device's invoices in counter order
func (s *BoltStore) List(egsID string) ([]*Record, error) {
	records := make([]*Record, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		invoices := tx.Bucket([]byte(invoiceBucketName)).Bucket([]byte(egsID))
		if invoices == nil {
			return nil
		}
		return invoices.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			records = append(records, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SetStatus records the reporting or clearance outcome of an invoice
func (s *BoltStore) SetStatus(egsID string, counter int64, status string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		invoices := tx.Bucket([]byte(invoiceBucketName)).Bucket([]byte(egsID))
		if invoices == nil {
			return fmt.Errorf("device %s: %w", egsID, ErrNotFound)
		}
		key := counterKey(counter)
		data := invoices.Get(key)
		if data == nil {
			return fmt.Errorf("invoice %s/%d: %w", egsID, counter, ErrNotFound)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("unmarshaling record: %w", err)
		}
		rec.Status = status
		updated, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return invoices.Put(key, updated)
	})
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// counterKey encodes big-endian so bucket iteration follows counter order
func counterKey(counter int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(counter))
	return key
}
