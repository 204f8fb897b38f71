package scanning

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// excerptLimit bounds how much of a bad model response is carried in errors.
const excerptLimit = 200

// ExtractionFormatError is returned when a model response holds no usable JSON object.
type ExtractionFormatError struct {
	// Excerpt is the beginning of the raw model response
	Excerpt string
	Err     error
}

func (e *ExtractionFormatError) Error() string {
	return fmt.Sprintf("model response is not a receipt JSON object: %v (response: %q)", e.Err, e.Excerpt)
}

func (e *ExtractionFormatError) Unwrap() error {
	return e.Err
}

var (
	errNoJSONObject = errors.New("no JSON object found in response")

	fencedObject = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
)

func newFormatError(text string, err error) *ExtractionFormatError {
	excerpt := text
	if r := []rune(excerpt); len(r) > excerptLimit {
		excerpt = string(r[:excerptLimit])
	}
	return &ExtractionFormatError{Excerpt: excerpt, Err: err}
}

// findJSONObject returns the JSON payload inside a model response, preferring
// a fenced code block over a bare {...} span.
func findJSONObject(text string) (string, bool) {
	if m := fencedObject.FindStringSubmatch(text); m != nil {
		return m[1], true
	}

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", false
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", false
	}
	return text[startIdx : endIdx+1], true
}

// ParseReceiptJSON turns raw model output into normalized receipt data.
// Every field has a fallback; only a response without a decodable JSON
// object is an error. today supplies the default receipt date.
func ParseReceiptJSON(text string, today time.Time) (*ReceiptData, error) {
	payload, ok := findJSONObject(text)
	if !ok {
		return nil, newFormatError(text, errNoJSONObject)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, newFormatError(text, fmt.Errorf("unmarshaling json: %w", err))
	}

	data := &ReceiptData{
		Total:        coerceAmount(raw["totalAmount"]),
		Date:         stringField(raw, "receiptDate"),
		Time:         stringField(raw, "receiptTime"),
		MerchantName: strings.TrimSpace(stringField(raw, "merchantName")),
		Category:     ParseCategory(stringField(raw, "category")),
		Extras:       extrasField(raw["extras"]),
	}

	if data.Date == "" {
		data.Date = today.Format("2006-01-02")
	}
	if data.MerchantName == "" {
		data.MerchantName = UnidentifiedMerchant
	}

	return data, nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// extrasField keeps whatever string-valued extras the model returned.
func extrasField(v any) *Extras {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	extras := &Extras{
		TaxID:   stringField(m, "taxId"),
		Address: stringField(m, "address"),
	}
	if items, ok := m["items"].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				extras.Items = append(extras.Items, s)
			}
		}
	}
	return extras
}
