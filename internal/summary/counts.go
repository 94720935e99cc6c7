package summary

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/energy-modelling-hub/water-value-database/internal/derive"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// Count is the number of rows sharing one key
type Count struct {
	Key string
	N   int
}

// CountValues counts values by trimmed text. NULL and blank values count
// under domain.NotSpecified. The result is sorted with SortCounts.
func CountValues(values []domain.Value) []Count {
	counts := make(map[string]int)
	for _, v := range values {
		counts[keyOf(v)]++
	}
	out := make([]Count, 0, len(counts))
	for k, n := range counts {
		out = append(out, Count{Key: k, N: n})
	}
	SortCounts(out)
	return out
}

// SortCounts orders by descending count, then ascending key, with
// domain.NotSpecified always last.
func SortCounts(counts []Count) {
	slices.SortFunc(counts, func(a, b Count) int {
		aNS, bNS := a.Key == domain.NotSpecified, b.Key == domain.NotSpecified
		switch {
		case aNS && !bNS:
			return 1
		case bNS && !aNS:
			return -1
		case a.N != b.N:
			return b.N - a.N
		}
		return strings.Compare(a.Key, b.Key)
	})
}

// Total sums the counts
func Total(counts []Count) int {
	total := 0
	for _, c := range counts {
		total += c.N
	}
	return total
}

// Percent formats n as a percentage of total with one decimal
func Percent(n, total int) string {
	if total == 0 {
		return "0.0"
	}
	return strconv.FormatFloat(float64(n)/float64(total)*100, 'f', 1, 64)
}

func keyOf(v domain.Value) string {
	if !v.IsPresent() {
		return domain.NotSpecified
	}
	return v.Trimmed()
}

// countTable renders counts as <key>,Count,Percentage rows plus a Total row
func countTable(keyHeader string, counts []Count) *domain.SummaryTable {
	total := Total(counts)
	t := &domain.SummaryTable{
		Headers: []string{keyHeader, "Count", "Percentage"},
		Total:   []string{"Total", strconv.Itoa(total), Percent(total, total)},
	}
	for _, c := range counts {
		t.Rows = append(t.Rows, []string{c.Key, strconv.Itoa(c.N), Percent(c.N, total)})
	}
	return t
}

func classificationTable(ds *domain.Dataset) (*domain.SummaryTable, error) {
	values, err := column(ds.Classification, domain.TableClassification, domain.ColClassification)
	if err != nil {
		return nil, err
	}
	counts := CountValues(values)
	total := Total(counts)

	t := &domain.SummaryTable{
		Headers: []string{"Category", "Category_Name", "Count", "Percentage"},
		Total:   []string{"Total", "", strconv.Itoa(total), Percent(total, total)},
		Caption: fmt.Sprintf("Distribution of %d classified papers across %d classification categories.",
			total, len(domain.CategoryOrder)),
	}
	for _, c := range counts {
		t.Rows = append(t.Rows, []string{c.Key, domain.CategoryNames[c.Key], strconv.Itoa(c.N), Percent(c.N, total)})
	}
	return t, nil
}

func methodTable(ds *domain.Dataset) (*domain.SummaryTable, error) {
	values, err := column(ds.Classification, domain.TableClassification, domain.ColMethodClean)
	if err != nil {
		return nil, err
	}
	counts := CountValues(values)
	t := countTable("Method", counts)
	t.Caption = fmt.Sprintf("Distribution of optimization and analysis methods used across the %d classified papers.",
		Total(counts))
	return t, nil
}

// FoldRegions keeps regions with at least minCount rows, plus the
// not-specified and synthetic buckets, and folds the rest into one
// "Other (n countries/regions)" entry.
func FoldRegions(counts []Count, minCount int) []Count {
	var out []Count
	other, folded := 0, 0
	for _, c := range counts {
		if c.N >= minCount || c.Key == domain.NotSpecified || c.Key == domain.SyntheticRegion {
			out = append(out, c)
			continue
		}
		other += c.N
		folded++
	}
	if folded > 0 {
		out = append(out, Count{Key: fmt.Sprintf("Other (%d countries/regions)", folded), N: other})
	}
	SortCounts(out)
	return out
}

func regionTable(ds *domain.Dataset, minCount int) (*domain.SummaryTable, error) {
	values, err := column(ds.Classification, domain.TableClassification, domain.ColStudyRegionClean)
	if err != nil {
		return nil, err
	}
	raw := CountValues(values)
	counts := FoldRegions(raw, minCount)
	total := Total(counts)

	notSpecified := 0
	for _, c := range raw {
		if c.Key == domain.NotSpecified {
			notSpecified = c.N
		}
	}

	t := countTable("Country_or_Region", counts)
	t.Caption = fmt.Sprintf("Geographic distribution of study regions across the %d classified papers. "+
		"Countries or regions with fewer than %d papers are grouped under 'Other'. "+
		"%s%% of papers did not specify a study region.", total, minCount, Percent(notSpecified, total))
	return t, nil
}

// YearRangeCounts counts Year_range values over every bin, zero counts
// included, in chronological order. Bins after 2025 run up to the latest
// observed bin without gaps. NULL years count under domain.NotSpecified,
// last, when present.
func YearRangeCounts(values []domain.Value) []Count {
	observed := make(map[string]int)
	maxYear := 0
	for _, v := range values {
		k := keyOf(v)
		observed[k]++
		if start, ok := binStart(k); ok && start > maxYear {
			maxYear = start
		}
	}

	bins := derive.YearRangeBins(maxYear)
	var extra []string
	for k := range observed {
		if k != domain.NotSpecified && !slices.Contains(bins, k) {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	bins = append(bins, extra...)

	out := make([]Count, 0, len(bins)+1)
	for _, b := range bins {
		out = append(out, Count{Key: b, N: observed[b]})
	}
	if n := observed[domain.NotSpecified]; n > 0 {
		out = append(out, Count{Key: domain.NotSpecified, N: n})
	}
	return out
}

// binStart returns the first year of a "YYYY–YYYY" bin label
func binStart(label string) (int, bool) {
	from, _, found := strings.Cut(label, "–")
	if !found {
		return 0, false
	}
	year, err := strconv.Atoi(from)
	return year, err == nil
}

func yearTable(ds *domain.Dataset) (*domain.SummaryTable, error) {
	values, err := column(ds.Classification, domain.TableClassification, domain.ColYearRange)
	if err != nil {
		return nil, err
	}
	counts := YearRangeCounts(values)
	t := countTable("Year_Range", counts)
	t.Caption = fmt.Sprintf("Temporal distribution of the %d classified papers by publication year range.",
		Total(counts))
	return t, nil
}
