package receipt

import (
	"time"

	"github.com/zombor/receipt-insights/internal/scanning"
)

// Receipt is a persisted, normalized receipt record
type Receipt struct {
	ID             string            `json:"id,omitempty"` // Empty until saved; assigned by the store
	Total          scanning.Cents    `json:"totalAmount"`
	Date           string            `json:"receiptDate"` // As printed on the receipt, not the save time
	Time           string            `json:"receiptTime,omitempty"`
	MerchantName   string            `json:"merchantName"`
	Category       scanning.Category `json:"category"`
	ImageReference string            `json:"imageReference,omitempty"`
	Extras         *scanning.Extras  `json:"extras,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      *time.Time        `json:"updatedAt,omitempty"`
}

// Persisted reports whether the receipt has been saved
func (r *Receipt) Persisted() bool {
	return r.ID != ""
}

// Draft is the result of scanning an image, awaiting the user's decision to save it
type Draft struct {
	scanning.ReceiptData
	ImageReference string `json:"imageReference"`
}

// Promote turns a reviewed draft into an unsaved receipt. Category and
// amount are normalized again since drafts come back from clients.
func (d *Draft) Promote() *Receipt {
	merchant := d.MerchantName
	if merchant == "" {
		merchant = scanning.UnidentifiedMerchant
	}
	total := d.Total
	if total < 0 {
		total = 0
	}
	return &Receipt{
		Total:          total,
		Date:           d.Date,
		Time:           d.Time,
		MerchantName:   merchant,
		Category:       scanning.ParseCategory(string(d.Category)),
		ImageReference: d.ImageReference,
		Extras:         d.Extras,
	}
}
