package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

const (
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"
	mimePDF  = "application/pdf"
)

// ErrUnsupportedImage is returned for uploads that cannot be turned into a PNG.
var ErrUnsupportedImage = errors.New("unsupported image format, use JPEG, PNG, GIF, HEIC or PDF")

// decodePDF renders the first page of a PDF. Receipts are single page.
func decodePDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

func decodeHEIC(data []byte) (image.Image, error) {
	img, err := heic.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
	}
	return img, nil
}

func decodeStandard(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEIC sniffs the ISO-BMFF ftyp box for HEIC/HEIF brands, or falls back to the MIME type.
// Phones frequently upload HEIC with a generic content type.
func isHEIC(data []byte, mimeType string) bool {
	if strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif") {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// prepareImageData normalizes an upload into PNG bytes for the model.
// It returns the data, the MIME type to declare and whether a conversion happened.
func prepareImageData(imageData []byte, contentType string) ([]byte, string, bool, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = mimeJPEG
	}

	var decode func([]byte) (image.Image, error)
	switch {
	case mimeType == mimePDF:
		decode = decodePDF
	case isHEIC(imageData, mimeType):
		decode = decodeHEIC
	case mimeType == mimePNG:
		return imageData, mimePNG, false, nil
	default:
		decode = decodeStandard
	}

	img, err := decode(imageData)
	if err != nil {
		return nil, "", false, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", false, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), mimePNG, true, nil
}
