// Package aggregate derives chart series and summary statistics from receipts.
//
// Every function is total: an empty input yields empty totals and zero sums.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/zombor/receipt-insights/internal/receipt"
	"github.com/zombor/receipt-insights/internal/scanning"
)

// CategoryTotal is the summed amount of one category
type CategoryTotal struct {
	Category scanning.Category `json:"category"`
	Total    scanning.Cents    `json:"total"`
}

// CategoryTotals holds per-category sums in first-encountered order
type CategoryTotals []CategoryTotal

// Get returns the total for c and whether c is present
func (t CategoryTotals) Get(c scanning.Category) (scanning.Cents, bool) {
	for _, ct := range t {
		if ct.Category == c {
			return ct.Total, true
		}
	}
	return 0, false
}

// MonthTotal is the summed amount of one "{month}/{year}" label
type MonthTotal struct {
	Label string         `json:"label"`
	Total scanning.Cents `json:"total"`
}

// MonthTotals holds per-month sums sorted by label
type MonthTotals []MonthTotal

// Labels returns the month labels in display order
func (t MonthTotals) Labels() []string {
	labels := make([]string, len(t))
	for i, mt := range t {
		labels[i] = mt.Label
	}
	return labels
}

// Get returns the total for label and whether it is present
func (t MonthTotals) Get(label string) (scanning.Cents, bool) {
	for _, mt := range t {
		if mt.Label == label {
			return mt.Total, true
		}
	}
	return 0, false
}

// TotalsByCategory sums receipt totals per category. Categories without
// receipts are left out.
func TotalsByCategory(receipts []*receipt.Receipt) CategoryTotals {
	totals := make(CategoryTotals, 0)
	index := make(map[scanning.Category]int)
	for _, r := range receipts {
		i, ok := index[r.Category]
		if !ok {
			i = len(totals)
			index[r.Category] = i
			totals = append(totals, CategoryTotal{Category: r.Category})
		}
		totals[i].Total += r.Total
	}
	return totals
}

// MonthLabel returns the UTC month bucket of r's creation time, e.g. "9/2024".
func MonthLabel(r *receipt.Receipt) string {
	return MonthLabelIn(r, time.UTC)
}

// MonthLabelIn returns the month bucket of r's creation time as seen in loc.
// A nil loc means UTC.
func MonthLabelIn(r *receipt.Receipt, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t := r.CreatedAt.In(loc)
	return fmt.Sprintf("%d/%d", int(t.Month()), t.Year())
}

// TotalsByMonth sums receipt totals per UTC month of CreatedAt (not the
// printed receipt date).
//
// Labels are sorted as strings, so "10/2023" comes before "9/2024". Chart
// clients rely on this order.
func TotalsByMonth(receipts []*receipt.Receipt) MonthTotals {
	return TotalsByMonthIn(receipts, time.UTC)
}

// TotalsByMonthIn is TotalsByMonth with months taken in loc
func TotalsByMonthIn(receipts []*receipt.Receipt, loc *time.Location) MonthTotals {
	sums := make(map[string]scanning.Cents)
	for _, r := range receipts {
		sums[MonthLabelIn(r, loc)] += r.Total
	}

	totals := make(MonthTotals, 0, len(sums))
	for label, total := range sums {
		totals = append(totals, MonthTotal{Label: label, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Label < totals[j].Label
	})
	return totals
}

// GrandTotal sums every receipt total
func GrandTotal(receipts []*receipt.Receipt) scanning.Cents {
	var total scanning.Cents
	for _, r := range receipts {
		total += r.Total
	}
	return total
}

// Count returns the number of receipts
func Count(receipts []*receipt.Receipt) int {
	return len(receipts)
}

// TopCategory returns the category with the largest total. Ties go to the
// category encountered first. ok is false when there are no receipts.
func TopCategory(receipts []*receipt.Receipt) (scanning.Category, bool) {
	return TotalsByCategory(receipts).top()
}

func (t CategoryTotals) top() (scanning.Category, bool) {
	if len(t) == 0 {
		return "", false
	}
	best := t[0]
	for _, ct := range t[1:] {
		if ct.Total > best.Total {
			best = ct
		}
	}
	return best.Category, true
}

// Summary bundles every aggregate over one set of receipts
type Summary struct {
	Count       int               `json:"count"`
	GrandTotal  scanning.Cents    `json:"grandTotal"`
	ByCategory  CategoryTotals    `json:"byCategory"`
	ByMonth     MonthTotals       `json:"byMonth"`
	TopCategory scanning.Category `json:"topCategory,omitempty"`
}

// Empty reports whether the summary covers no receipts
func (s Summary) Empty() bool {
	return s.Count == 0
}

// Summarize computes every aggregate in one pass over the category totals.
// Months are UTC.
func Summarize(receipts []*receipt.Receipt) Summary {
	return SummarizeIn(receipts, time.UTC)
}

// SummarizeIn is Summarize with months taken in loc
func SummarizeIn(receipts []*receipt.Receipt, loc *time.Location) Summary {
	byCategory := TotalsByCategory(receipts)
	top, _ := byCategory.top()
	return Summary{
		Count:       Count(receipts),
		GrandTotal:  GrandTotal(receipts),
		ByCategory:  byCategory,
		ByMonth:     TotalsByMonthIn(receipts, loc),
		TopCategory: top,
	}
}
