// Package analyze computes cross-document statistics over a finished
// batch. Everything here is a pure function of the outcome slice; the
// analysis is recomputed fresh each run and never persisted.
package analyze

import (
	"sort"

	"github.com/sheldon123z/invoice-ocr/internal/common"
	"github.com/sheldon123z/invoice-ocr/internal/pipeline"
)

// sellerKeyRunes bounds the by-seller grouping key. Long official company
// names differ only in boilerplate suffixes, so a short prefix groups
// better than the full name.
const sellerKeyRunes = 20

// outlierFactor flags totals far above the batch mean.
const outlierFactor = 3.0

// Group tracks one bucket of a grouping dimension.
type Group struct {
	Count int
	Total float64
}

// Histogram splits positive totals into three fixed amount ranges.
type Histogram struct {
	Under1K  int // [0, 1000)
	Under10K int // [1000, 10000)
	Over10K  int // [10000, +inf)
}

// Outlier flags a single document whose total dwarfs the batch mean.
type Outlier struct {
	Path      string
	InvoiceNo string
	Total     float64
	Mean      float64
}

// Analysis is the read-only aggregate over one batch.
type Analysis struct {
	DocumentCount int
	ValidCount    int

	// GrandTotal sums every outcome's total, including documents that
	// carry errors. A partially-failed document still contributes the
	// amount it did recognize.
	GrandTotal float64

	// Duplicates lists each invoice number seen more than once, exactly
	// once, in the order its first collision was observed.
	Duplicates []string

	ByMonth  map[string]Group // key: issue_date[:7], YYYY-MM
	BySeller map[string]Group // key: first 20 runes of the seller name

	Histogram Histogram
	Outliers  []Outlier
}

// Mean is the batch mean used for outlier detection. The denominator is
// never below 1 so an empty batch yields 0, not a division by zero.
func (a Analysis) Mean() float64 {
	n := a.DocumentCount
	if n < 1 {
		n = 1
	}
	return a.GrandTotal / float64(n)
}

// SortedMonths returns the by-month keys in ascending order for stable
// rendering.
func (a Analysis) SortedMonths() []string {
	return sortedKeys(a.ByMonth)
}

// SortedSellers returns the by-seller keys in ascending order.
func (a Analysis) SortedSellers() []string {
	return sortedKeys(a.BySeller)
}

func sortedKeys(m map[string]Group) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Analyze computes the batch aggregate. Inputs are not mutated; calling
// again on a grown outcome slice is safe and yields a fresh analysis.
func Analyze(outcomes []pipeline.Outcome) Analysis {
	a := Analysis{
		ByMonth:  make(map[string]Group),
		BySeller: make(map[string]Group),
	}

	seen := make(map[string]bool)
	flagged := make(map[string]bool)

	for _, out := range outcomes {
		a.DocumentCount++
		if out.OK() {
			a.ValidCount++
		}
		a.GrandTotal += out.Info.Total

		if no := out.Info.InvoiceNo; no != "" {
			if seen[no] && !flagged[no] {
				a.Duplicates = append(a.Duplicates, no)
				flagged[no] = true
			}
			seen[no] = true
		}

		if month := monthKey(out.Info.IssueDate); month != "" {
			g := a.ByMonth[month]
			g.Count++
			g.Total += out.Info.Total
			a.ByMonth[month] = g
		}
		if seller := common.Truncate(out.Info.Seller, sellerKeyRunes); seller != "" {
			g := a.BySeller[seller]
			g.Count++
			g.Total += out.Info.Total
			a.BySeller[seller] = g
		}

		switch total := out.Info.Total; {
		case total <= 0:
		case total < 1000:
			a.Histogram.Under1K++
		case total < 10000:
			a.Histogram.Under10K++
		default:
			a.Histogram.Over10K++
		}
	}

	mean := a.Mean()
	if mean > 0 {
		for _, out := range outcomes {
			if out.Info.Total > outlierFactor*mean {
				a.Outliers = append(a.Outliers, Outlier{
					Path:      out.Document.Path,
					InvoiceNo: out.Info.InvoiceNo,
					Total:     out.Info.Total,
					Mean:      mean,
				})
			}
		}
	}

	return a
}

// monthKey reduces an issue date to its YYYY-MM prefix, or "" when the
// date is absent or too short to carry a month.
func monthKey(issueDate string) string {
	if len(issueDate) < 7 {
		return ""
	}
	return issueDate[:7]
}
