package scanning

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Cents is a non-negative currency amount with two-decimal semantics.
type Cents int64

// Decimal returns the amount in currency units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String formats the amount with exactly two decimals, e.g. "12.50".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string and applies the same
// coercion as model output.
func (c *Cents) UnmarshalJSON(b []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*c = coerceAmount(v)
	return nil
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)`)

// ParseAmount converts a human or model supplied amount into cents.
// A decimal comma is read as a decimal point. Anything unparsable or negative
// yields zero.
func ParseAmount(s string) Cents {
	s = strings.TrimSpace(s)
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
	})
	s = strings.ReplaceAll(s, " ", "")

	if comma := strings.LastIndex(s, ","); comma != -1 {
		switch {
		case strings.Contains(s[comma:], "."):
			// 1,234.56: commas group thousands
			s = strings.ReplaceAll(s, ",", "")
		case strings.Contains(s[:comma], "."):
			// 1.234,56: dots group thousands
			s = strings.ReplaceAll(s[:comma], ".", "") + s[comma:]
		}
	}
	s = strings.Replace(s, ",", ".", 1)

	m := leadingNumber.FindString(s)
	if m == "" {
		return 0
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return 0
	}
	return fromDecimal(d)
}

func fromFloat(f float64) Cents {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return fromDecimal(decimal.NewFromFloat(f))
}

// maxAmount is the largest amount that fits in Cents
var maxAmount = decimal.New(math.MaxInt64, -2)

func fromDecimal(d decimal.Decimal) Cents {
	if d.IsNegative() {
		return 0
	}
	// decimal.Round rounds half away from zero
	d = d.Round(2)
	if d.GreaterThan(maxAmount) {
		return 0
	}
	return Cents(d.Shift(2).IntPart())
}

// coerceAmount handles the loosely typed total value found in model JSON.
func coerceAmount(v any) Cents {
	switch t := v.(type) {
	case float64:
		return fromFloat(t)
	case json.Number:
		// JSON numbers may use exponent form, which ParseAmount does not read
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return fromDecimal(d)
		}
		return ParseAmount(t.String())
	case string:
		return ParseAmount(t)
	default:
		return 0
	}
}
