package receipt

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-insights/internal/scanning"
)

// documentStoreBehaviors runs the same contract against every DocumentStore backend
func documentStoreBehaviors(open func(dir string) (DocumentStore, error)) {
	var (
		store   DocumentStore
		timeSrc *mockTimeSource
		gateway *Gateway
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		store, err = open(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(store.Close)

		timeSrc = &mockTimeSource{now: time.Date(2024, 9, 3, 12, 30, 45, 123456789, time.UTC)}
		gateway = NewGatewayWithTimeSource(store, timeSrc)
	})

	Describe("QueryOrdered", func() {
		When("the collection is empty", func() {
			It("returns an empty list", func() {
				docs, err := store.QueryOrdered(ctx, receiptsCollection, true)
				Expect(err).NotTo(HaveOccurred())
				Expect(docs).NotTo(BeNil())
				Expect(docs).To(BeEmpty())
			})
		})

		When("the collection has never been written", func() {
			It("returns an empty list", func() {
				docs, err := store.QueryOrdered(ctx, "unknown", false)
				Expect(err).NotTo(HaveOccurred())
				Expect(docs).To(BeEmpty())
			})
		})

		When("documents were added out of order", func() {
			BeforeEach(func() {
				for _, day := range []int{2, 3, 1} {
					doc := &Document{
						MerchantName: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC).Format("Jan 2"),
						CreatedAt:    TimestampFromTime(time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)),
					}
					_, err := store.AddDocument(ctx, receiptsCollection, doc)
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("sorts descending", func() {
				docs, err := store.QueryOrdered(ctx, receiptsCollection, true)
				Expect(err).NotTo(HaveOccurred())
				Expect(docs).To(HaveLen(3))
				Expect(docs[0].MerchantName).To(Equal("Jan 3"))
				Expect(docs[1].MerchantName).To(Equal("Jan 2"))
				Expect(docs[2].MerchantName).To(Equal("Jan 1"))
			})

			It("sorts ascending", func() {
				docs, err := store.QueryOrdered(ctx, receiptsCollection, false)
				Expect(err).NotTo(HaveOccurred())
				Expect(docs[0].MerchantName).To(Equal("Jan 1"))
				Expect(docs[2].MerchantName).To(Equal("Jan 3"))
			})

			It("assigns distinct IDs", func() {
				docs, _ := store.QueryOrdered(ctx, receiptsCollection, true)
				Expect(docs[0].ID).NotTo(BeEmpty())
				Expect(docs[0].ID).NotTo(Equal(docs[1].ID))
			})
		})
	})

	Describe("Gateway round trip", func() {
		var (
			saved *Receipt
			id    string
		)

		BeforeEach(func() {
			saved = &Receipt{
				Total:          scanning.Cents(1250),
				Date:           "2024-09-01",
				Time:           "08:15",
				MerchantName:   "Padaria Real",
				Category:       scanning.CategoryFood,
				ImageReference: "abc_receipt.jpg",
				Extras:         &scanning.Extras{Items: []string{"pão", "café"}, TaxID: "123"},
			}
			var err error
			id, err = gateway.Save(ctx, saved)
			Expect(err).NotTo(HaveOccurred())
		})

		It("records the ID on the receipt", func() {
			Expect(id).NotTo(BeEmpty())
			Expect(saved.ID).To(Equal(id))
		})

		It("reads back identical fields", func() {
			receipts, err := gateway.ListAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(1))

			got := receipts[0]
			Expect(got.ID).To(Equal(id))
			Expect(got.Total).To(Equal(saved.Total))
			Expect(got.MerchantName).To(Equal(saved.MerchantName))
			Expect(got.Category).To(Equal(saved.Category))
			Expect(got.Date).To(Equal("2024-09-01"))
			Expect(got.Time).To(Equal("08:15"))
			Expect(got.ImageReference).To(Equal("abc_receipt.jpg"))
			Expect(got.Extras).To(Equal(saved.Extras))
			Expect(got.CreatedAt).To(BeTemporally("~", timeSrc.now, time.Microsecond))
			Expect(got.UpdatedAt).To(BeNil())
		})

		It("refuses to save the same receipt twice", func() {
			_, err := gateway.Save(ctx, saved)
			Expect(err).To(MatchError(ErrAlreadyPersisted))
		})
	})

	Describe("reading foreign documents", func() {
		BeforeEach(func() {
			_, err := store.AddDocument(ctx, receiptsCollection, &Document{
				TotalCents: -500,
				Category:   "alimentação",
				CreatedAt:  TimestampFromTime(timeSrc.now),
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("restores the receipt invariants", func() {
			receipts, err := gateway.ListAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts[0].Total).To(BeZero())
			Expect(receipts[0].Category).To(Equal(scanning.CategoryOther))
		})
	})
}

var _ = Describe("BoltDB", func() {
	documentStoreBehaviors(func(dir string) (DocumentStore, error) {
		return NewBoltDB(filepath.Join(dir, "test.db"))
	})

	It("orders pre-epoch timestamps before later ones", func() {
		before := documentKey(TimestampFromTime(time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)), "a")
		after := documentKey(TimestampFromTime(time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)), "a")
		Expect(string(before) < string(after)).To(BeTrue())
	})
})

var _ = Describe("SQLiteDB", func() {
	documentStoreBehaviors(func(dir string) (DocumentStore, error) {
		return NewSQLiteDB(filepath.Join(dir, "data", "test.sqlite"))
	})

	It("can be reopened without re-running migrations", func() {
		path := filepath.Join(GinkgoT().TempDir(), "reopen.sqlite")
		first, err := NewSQLiteDB(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Close()).To(Succeed())

		second, err := NewSQLiteDB(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Close()).To(Succeed())
	})
})

var _ = Describe("Timestamp", func() {
	It("round trips nanosecond precision", func() {
		t := time.Date(2023, 10, 5, 1, 2, 3, 999999999, time.UTC)
		Expect(TimestampFromTime(t).Time()).To(BeTemporally("==", t))
	})

	It("converts to UTC", func() {
		t := time.Date(2023, 10, 5, 1, 2, 3, 0, time.FixedZone("BRT", -3*3600))
		Expect(TimestampFromTime(t).Time().Location()).To(Equal(time.UTC))
		Expect(TimestampFromTime(t).Time().Equal(t)).To(BeTrue())
	})
})
