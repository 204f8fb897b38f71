package scanning

import (
	"context"
	"fmt"
	"time"
)

// Category is the closed set of expense classifications a receipt can carry.
type Category string

const (
	CategoryFood      Category = "food"
	CategoryTransport Category = "transport"
	CategoryLeisure   Category = "leisure"
	CategoryHealth    Category = "health"
	CategoryEducation Category = "education"
	CategoryHousing   Category = "housing"
	CategoryOther     Category = "other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryLeisure,
	CategoryHealth,
	CategoryEducation,
	CategoryHousing,
	CategoryOther,
}

// ParseCategory returns the matching category, or CategoryOther for anything
// that is not an exact member of the set.
func ParseCategory(s string) Category {
	for _, c := range Categories {
		if string(c) == s {
			return c
		}
	}
	return CategoryOther
}

// UnidentifiedMerchant is used when the model could not read a merchant name.
const UnidentifiedMerchant = "Unidentified merchant"

// Extras holds optional details printed on the receipt
type Extras struct {
	Items   []string `json:"items,omitempty"`
	TaxID   string   `json:"taxId,omitempty"`
	Address string   `json:"address,omitempty"`
}

// ReceiptData contains the fields extracted from a receipt image
type ReceiptData struct {
	Total        Cents    `json:"totalAmount"`
	Date         string   `json:"receiptDate"` // ISO 8601 calendar date
	Time         string   `json:"receiptTime,omitempty"`
	MerchantName string   `json:"merchantName"`
	Category     Category `json:"category"`
	Extras       *Extras  `json:"extras,omitempty"`
}

// Part is one piece of a model request: either instruction text or inline image data.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart builds a text-only Part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart builds an inline image Part.
func ImagePart(data []byte, mimeType string) Part {
	return Part{Data: data, MIMEType: mimeType}
}

// IsImage reports whether the part carries inline data.
func (p Part) IsImage() bool {
	return len(p.Data) > 0
}

// Model is a generative model that turns an ordered list of parts into text.
type Model interface {
	// GenerateContent sends the parts to the model and returns the response text
	GenerateContent(ctx context.Context, parts ...Part) (string, error)
	// Close releases any resources held by the model client
	Close() error
}

// ModelFunc adapts a plain function to the Model interface.
type ModelFunc func(ctx context.Context, parts ...Part) (string, error)

// GenerateContent calls f.
func (f ModelFunc) GenerateContent(ctx context.Context, parts ...Part) (string, error) {
	return f(ctx, parts...)
}

// Close is a no-op.
func (f ModelFunc) Close() error {
	return nil
}

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Scanner extracts receipt data from images using a generative model
type Scanner struct {
	model Model
	clock Clock
}

// NewScanner creates a Scanner backed by the given model
func NewScanner(model Model) *Scanner {
	return NewScannerWithClock(model, systemClock{})
}

// NewScannerWithClock creates a Scanner with a custom clock for testing
func NewScannerWithClock(model Model, clock Clock) *Scanner {
	return &Scanner{model: model, clock: clock}
}

// ScanReceipt converts the image to PNG, asks the model for the receipt
// fields and normalizes the response.
func (s *Scanner) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error) {
	finalImageData, mimeType, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	text, err := s.model.GenerateContent(ctx,
		TextPart(receiptScanPrompt),
		ImagePart(finalImageData, mimeType),
	)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	data, err := ParseReceiptJSON(text, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}
	return data, nil
}

// Close closes the underlying model
func (s *Scanner) Close() error {
	return s.model.Close()
}
