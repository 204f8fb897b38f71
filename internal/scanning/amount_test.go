package scanning

import (
	"encoding/json"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseAmount", func() {
	DescribeTable("coercing amounts to cents",
		func(input string, expected Cents) {
			Expect(ParseAmount(input)).To(Equal(expected))
		},
		Entry("point decimal", "12.50", Cents(1250)),
		Entry("comma decimal", "12,50", Cents(1250)),
		Entry("integer", "42", Cents(4200)),
		Entry("currency prefix", "R$ 7,99", Cents(799)),
		Entry("dot thousands with comma decimal", "1.234,56", Cents(123456)),
		Entry("comma thousands with point decimal", "1,234.56", Cents(123456)),
		Entry("trailing text", "12.5 total", Cents(1250)),
		Entry("rounds half away from zero", "0.125", Cents(13)),
		Entry("not a number", "N/A", Cents(0)),
		Entry("empty", "", Cents(0)),
		Entry("negative", "-5.00", Cents(0)),
		Entry("largest representable amount", "92233720368547758.07", Cents(math.MaxInt64)),
		Entry("too large for cents", "92233720368547759", Cents(0)),
		Entry("far too large for cents", "100000000000000000000", Cents(0)),
	)
})

var _ = Describe("coerceAmount", func() {
	DescribeTable("coercing JSON values to cents",
		func(input any, expected Cents) {
			Expect(coerceAmount(input)).To(Equal(expected))
		},
		Entry("JSON number", json.Number("25.99"), Cents(2599)),
		Entry("JSON number with exponent", json.Number("1.5e2"), Cents(15000)),
		Entry("JSON number with negative exponent", json.Number("125e-2"), Cents(125)),
		Entry("JSON number too large for cents", json.Number("92233720368547759"), Cents(0)),
		Entry("float too large for cents", 1e20, Cents(0)),
		Entry("numeric string", "9,90", Cents(990)),
	)
})

var _ = Describe("Cents", func() {
	It("formats with two decimals", func() {
		Expect(Cents(5).String()).To(Equal("0.05"))
		Expect(Cents(123456).String()).To(Equal("1234.56"))
	})

	It("encodes as a JSON number", func() {
		b, err := json.Marshal(struct {
			Total Cents `json:"total"`
		}{Cents(1250)})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(Equal(`{"total":12.50}`))
	})

	It("decodes numbers and numeric strings", func() {
		var v struct {
			A Cents `json:"a"`
			B Cents `json:"b"`
			C Cents `json:"c"`
		}
		Expect(json.Unmarshal([]byte(`{"a": 3.1, "b": "9,90", "c": "oops"}`), &v)).To(Succeed())
		Expect(v.A).To(Equal(Cents(310)))
		Expect(v.B).To(Equal(Cents(990)))
		Expect(v.C).To(BeZero())
	})

	It("never decodes an oversized amount as negative", func() {
		var v struct {
			A Cents `json:"a"`
			B Cents `json:"b"`
		}
		Expect(json.Unmarshal([]byte(`{"a": 92233720368547759, "b": 1.5e2}`), &v)).To(Succeed())
		Expect(v.A).To(BeZero())
		Expect(v.B).To(Equal(Cents(15000)))
	})
})
