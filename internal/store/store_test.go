package store_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/hashchain"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/store"
)

const device = "6f4d20e0-6bfe-4a80-9389-7dabe6620f12"

func record(counter int64, previous string) *store.Record {
	return &store.Record{
		EGSID:        device,
		Counter:      counter,
		UUID:         fmt.Sprintf("uuid-%d", counter),
		SerialNumber: fmt.Sprintf("EGS1-%d", counter),
		InvoiceHash:  fmt.Sprintf("hash-%d", counter),
		PreviousHash: previous,
	}
}

var _ = Describe("BoltStore", func() {
	var (
		dbPath string
		db     *store.BoltStore
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "chain.db")
		var err error
		db, err = store.Open(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("Head", func() {
		When("the device never issued", func() {
			It("returns counter zero and the genesis hash", func() {
				head, err := db.Head(device)
				Expect(err).NotTo(HaveOccurred())
				Expect(head.Counter).To(BeZero())
				Expect(head.Next()).To(Equal(int64(1)))
				Expect(head.LastHash).To(Equal(hashchain.GenesisHash))
			})
		})

		When("invoices were appended", func() {
			BeforeEach(func() {
				Expect(db.Append(record(1, hashchain.GenesisHash))).To(Succeed())
				Expect(db.Append(record(2, "hash-1"))).To(Succeed())
			})

			It("points at the last invoice", func() {
				head, err := db.Head(device)
				Expect(err).NotTo(HaveOccurred())
				Expect(head.Counter).To(Equal(int64(2)))
				Expect(head.LastHash).To(Equal("hash-2"))
				Expect(head.UpdatedAt).NotTo(BeZero())
			})

			It("keeps other devices at genesis", func() {
				head, err := db.Head("other")
				Expect(err).NotTo(HaveOccurred())
				Expect(head.Counter).To(BeZero())
			})

			It("survives reopening", func() {
				Expect(db.Close()).To(Succeed())
				var err error
				db, err = store.Open(dbPath)
				Expect(err).NotTo(HaveOccurred())

				head, err := db.Head(device)
				Expect(err).NotTo(HaveOccurred())
				Expect(head.Counter).To(Equal(int64(2)))
			})
		})
	})

	Describe("Append", func() {
		var (
			rec *store.Record
			err error
		)

		JustBeforeEach(func() {
			err = db.Append(rec)
		})

		When("the record continues the chain", func() {
			BeforeEach(func() {
				rec = record(1, hashchain.GenesisHash)
			})

			It("stores the record", func() {
				Expect(err).NotTo(HaveOccurred())
				saved, getErr := db.Get(device, 1)
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.UUID).To(Equal("uuid-1"))
				Expect(saved.IssuedAt).NotTo(BeZero())
			})
		})

		When("the counter skips ahead", func() {
			BeforeEach(func() {
				rec = record(2, hashchain.GenesisHash)
			})

			It("returns a chain error and leaves the head alone", func() {
				var chainErr *store.ChainError
				Expect(errors.As(err, &chainErr)).To(BeTrue())
				Expect(chainErr.WantCounter).To(Equal(int64(1)))
				Expect(chainErr.GotCounter).To(Equal(int64(2)))
				Expect(err.Error()).To(ContainSubstring("counter 2"))

				head, _ := db.Head(device)
				Expect(head.Counter).To(BeZero())
			})
		})

		When("the previous hash is stale", func() {
			BeforeEach(func() {
				rec = record(1, "something-else")
			})

			It("returns a chain error naming the hash", func() {
				var chainErr *store.ChainError
				Expect(errors.As(err, &chainErr)).To(BeTrue())
				Expect(chainErr.WantPrevious).To(Equal(hashchain.GenesisHash))
				Expect(err.Error()).To(ContainSubstring("previous hash"))
			})
		})

		When("the record is replayed", func() {
			BeforeEach(func() {
				Expect(db.Append(record(1, hashchain.GenesisHash))).To(Succeed())
				rec = record(1, hashchain.GenesisHash)
			})

			It("is rejected", func() {
				Expect(err).To(HaveOccurred())
			})
		})

		When("the record has no device", func() {
			BeforeEach(func() {
				rec = &store.Record{Counter: 1, InvoiceHash: "h"}
			})

			It("is rejected", func() {
				Expect(err).To(MatchError(ContainSubstring("device")))
			})
		})

		When("the record has no hash", func() {
			BeforeEach(func() {
				rec = &store.Record{EGSID: device, Counter: 1, PreviousHash: hashchain.GenesisHash}
			})

			It("is rejected", func() {
				Expect(err).To(MatchError(ContainSubstring("no invoice hash")))
			})
		})
	})

	Describe("concurrent appends", func() {
		It("accepts exactly one record per counter", func() {
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				accepted int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if db.Append(record(1, hashchain.GenesisHash)) == nil {
						mu.Lock()
						accepted++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			Expect(accepted).To(Equal(1))
		})
	})

	Describe("Get", func() {
		It("returns ErrNotFound for unknown devices", func() {
			_, err := db.Get("missing", 1)
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})

		It("returns ErrNotFound for unknown counters", func() {
			Expect(db.Append(record(1, hashchain.GenesisHash))).To(Succeed())
			_, err := db.Get(device, 9)
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("List", func() {
		It("returns an empty list for unknown devices", func() {
			records, err := db.List("missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("returns records in counter order", func() {
			previous := hashchain.GenesisHash
			for i := int64(1); i <= 12; i++ {
				Expect(db.Append(record(i, previous))).To(Succeed())
				previous = fmt.Sprintf("hash-%d", i)
			}

			records, err := db.List(device)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(12))
			for i, rec := range records {
				Expect(rec.Counter).To(Equal(int64(i + 1)))
			}
		})
	})

	Describe("SetStatus", func() {
		It("updates the stored record", func() {
			Expect(db.Append(record(1, hashchain.GenesisHash))).To(Succeed())
			Expect(db.SetStatus(device, 1, "REPORTED")).To(Succeed())

			rec, err := db.Get(device, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal("REPORTED"))
		})

		It("returns ErrNotFound for missing records", func() {
			err := db.SetStatus(device, 1, "REPORTED")
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})
	})
})
