package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/zombor/receipt-insights/internal/scanning"
)

// Scanner extracts receipt fields from an image
type Scanner interface {
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*scanning.ReceiptData, error)
}

// IDGenerator generates unique names for stored images
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Service runs the capture flow: scan an image into a draft, then save the reviewed draft
type Service struct {
	gateway     *Gateway
	scanner     Scanner
	storage     Storage
	idGenerator IDGenerator
}

// NewService creates a new Service with UUID image names
func NewService(gateway *Gateway, scanner Scanner, storage Storage) *Service {
	return NewServiceWithDeps(gateway, scanner, storage, uuidGenerator{})
}

// NewServiceWithDeps creates a new Service with a custom ID generator for testing
func NewServiceWithDeps(gateway *Gateway, scanner Scanner, storage Storage, idGen IDGenerator) *Service {
	return &Service{
		gateway:     gateway,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips phone-generated filenames down to a short safe name
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// ScanReceipt stores the image and asks the scanner for its fields.
// Nothing is persisted in the document store; the image is removed again if scanning fails.
func (s *Service) ScanReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Draft, error) {
	name := fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(filename))

	ref, err := s.storage.Save(ctx, name, data)
	if err != nil {
		return nil, &StorageError{Op: "saving image", Err: err}
	}

	receiptData, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		if delErr := s.storage.Delete(ctx, ref); delErr != nil {
			slog.Warn("Failed to clean up image", "image_reference", ref, "error", delErr)
		}
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	return &Draft{ReceiptData: *receiptData, ImageReference: ref}, nil
}

// CreateReceipt saves a reviewed draft as a new receipt
func (s *Service) CreateReceipt(ctx context.Context, draft *Draft) (*Receipt, error) {
	receipt := draft.Promote()
	if _, err := s.gateway.Save(ctx, receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	slog.Info("Receipt saved",
		"id", receipt.ID,
		"merchant", receipt.MerchantName,
		"category", receipt.Category,
		"total", receipt.Total.String(),
	)
	return receipt, nil
}

// ListReceipts returns all receipts, newest first
func (s *Service) ListReceipts(ctx context.Context) ([]*Receipt, error) {
	receipts, err := s.gateway.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// GetImage returns the stored image for a reference
func (s *Service) GetImage(ctx context.Context, ref string) ([]byte, error) {
	data, err := s.storage.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("getting image: %w", err)
	}
	return data, nil
}
