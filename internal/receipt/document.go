package receipt

import (
	"context"
	"time"

	"github.com/zombor/receipt-insights/internal/scanning"
)

// receiptsCollection is the document collection receipts are stored in
const receiptsCollection = "receipts"

// Timestamp is the store-native time representation: seconds and nanoseconds since the Unix epoch, UTC.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// TimestampFromTime converts t to a Timestamp
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts the timestamp back to a UTC time
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// UnixNano returns the timestamp as nanoseconds since the epoch
func (ts Timestamp) UnixNano() int64 {
	return ts.Seconds*int64(time.Second) + int64(ts.Nanos)
}

// Document is a receipt as it is written to a DocumentStore
type Document struct {
	ID             string           `json:"-"`
	TotalCents     int64            `json:"totalCents"`
	ReceiptDate    string           `json:"receiptDate"`
	ReceiptTime    string           `json:"receiptTime,omitempty"`
	MerchantName   string           `json:"merchantName"`
	Category       string           `json:"category"`
	ImageReference string           `json:"imageReference,omitempty"`
	Extras         *scanning.Extras `json:"extras,omitempty"`
	CreatedAt      Timestamp        `json:"createdAt"`
	UpdatedAt      *Timestamp       `json:"updatedAt"`
}

// DocumentStore is an ordered document collection. Stores assign document
// IDs and return documents sorted by CreatedAt.
type DocumentStore interface {
	// AddDocument writes a new document and returns its store-assigned ID
	AddDocument(ctx context.Context, collection string, doc *Document) (string, error)

	// QueryOrdered returns every document in the collection sorted by CreatedAt
	QueryOrdered(ctx context.Context, collection string, descending bool) ([]*Document, error)

	// Close closes the store
	Close() error
}

func toDocument(r *Receipt) *Document {
	doc := &Document{
		TotalCents:     int64(r.Total),
		ReceiptDate:    r.Date,
		ReceiptTime:    r.Time,
		MerchantName:   r.MerchantName,
		Category:       string(r.Category),
		ImageReference: r.ImageReference,
		Extras:         r.Extras,
		CreatedAt:      TimestampFromTime(r.CreatedAt),
	}
	if r.UpdatedAt != nil {
		ts := TimestampFromTime(*r.UpdatedAt)
		doc.UpdatedAt = &ts
	}
	return doc
}

// fromDocument maps a stored document back to a Receipt. Documents written
// by other clients may break the receipt invariants, so category and amount
// are normalized on the way out.
func fromDocument(doc *Document) *Receipt {
	total := scanning.Cents(doc.TotalCents)
	if total < 0 {
		total = 0
	}
	r := &Receipt{
		ID:             doc.ID,
		Total:          total,
		Date:           doc.ReceiptDate,
		Time:           doc.ReceiptTime,
		MerchantName:   doc.MerchantName,
		Category:       scanning.ParseCategory(doc.Category),
		ImageReference: doc.ImageReference,
		Extras:         doc.Extras,
		CreatedAt:      doc.CreatedAt.Time(),
	}
	if doc.UpdatedAt != nil {
		t := doc.UpdatedAt.Time()
		r.UpdatedAt = &t
	}
	return r
}
