package summary

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// ValueStats describes one group of converted water values
type ValueStats struct {
	Group  string
	N      int
	Mean   float64
	Median float64
	// Std is the sample standard deviation; nil when N < 2.
	Std *float64
	Min float64
	Max float64
}

// Describe computes descriptive statistics of xs, which must be non-empty
func Describe(group string, xs []float64) ValueStats {
	sorted := append([]float64(nil), xs...)
	slices.Sort(sorted)

	s := ValueStats{
		Group:  group,
		N:      len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: median(sorted),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
	}
	if s.N >= 2 {
		std := stat.StdDev(sorted, nil)
		s.Std = &std
	}
	return s
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// GroupValues collects the parsed numbers of values by the key in groups.
// NULL and unparsable numbers are skipped, so empty groups never appear.
func GroupValues(groups, values []domain.Value) map[string][]float64 {
	out := make(map[string][]float64)
	for i, v := range values {
		f := domain.ParseNumber(v.String)
		if !v.Valid || f == nil {
			continue
		}
		key := keyOf(groups[i])
		out[key] = append(out[key], *f)
	}
	return out
}

// DescribeGroups computes ValueStats per group, ordered like count tables
func DescribeGroups(groups map[string][]float64) []ValueStats {
	counts := make([]Count, 0, len(groups))
	for k, xs := range groups {
		counts = append(counts, Count{Key: k, N: len(xs)})
	}
	SortCounts(counts)

	out := make([]ValueStats, len(counts))
	for i, c := range counts {
		out[i] = Describe(c.Key, groups[c.Key])
	}
	return out
}

// FormatStat renders a statistic rounded to four decimals
func FormatStat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}

func wvValueStatsTable(ds *domain.Dataset) (*domain.SummaryTable, error) {
	purposes, err := column(ds.WaterValues, domain.TableWaterValues, domain.ColPurposeClean)
	if err != nil {
		return nil, err
	}
	values, err := column(ds.WaterValues, domain.TableWaterValues, domain.ColWVConvertedNumeric)
	if err != nil {
		return nil, err
	}

	t := &domain.SummaryTable{
		Headers: []string{"Purpose", "Count", "Mean", "Median", "Std", "Min", "Max"},
		Caption: "Descriptive statistics of converted water values by water use purpose. " +
			"Std is the sample standard deviation and is blank for purposes with a single value.",
	}
	for _, s := range DescribeGroups(GroupValues(purposes, values)) {
		std := ""
		if s.Std != nil {
			std = FormatStat(*s.Std)
		}
		t.Rows = append(t.Rows, []string{
			s.Group, strconv.Itoa(s.N), FormatStat(s.Mean), FormatStat(s.Median), std,
			FormatStat(s.Min), FormatStat(s.Max),
		})
	}
	return t, nil
}

// distinct counts the distinct present values
func distinct(values []domain.Value) int {
	seen := make(map[string]struct{})
	for _, v := range values {
		if v.IsPresent() {
			seen[v.Trimmed()] = struct{}{}
		}
	}
	return len(seen)
}

// mode returns the most frequent present value, ties broken alphabetically
func mode(values []domain.Value) string {
	var present []domain.Value
	for _, v := range values {
		if v.IsPresent() {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return "n/a"
	}
	return CountValues(present)[0].Key
}

func wvSummaryTable(ds *domain.Dataset) (*domain.SummaryTable, error) {
	cols, err := wvColumns(ds,
		domain.ColID, domain.ColCountryClean, domain.ColContinent, domain.ColMethodClean,
		domain.ColMethodDetail, domain.ColPurposeClean, domain.ColUnitsClean,
		domain.ColYearNumeric, domain.ColWVMedianRaw)
	if err != nil {
		return nil, err
	}
	n := ds.WaterValues.Len()

	perPaper := make(map[string]int)
	for _, v := range cols[domain.ColID] {
		if v.IsPresent() {
			perPaper[v.Trimmed()]++
		}
	}
	avgPoints, maxPoints, maxPaper := 0.0, 0, ""
	if len(perPaper) > 0 {
		sum := 0
		for id, c := range perPaper {
			sum += c
			if c > maxPoints || (c == maxPoints && id < maxPaper) {
				maxPoints, maxPaper = c, id
			}
		}
		avgPoints = float64(sum) / float64(len(perPaper))
	}

	yearRange := "n/a"
	var years []float64
	for _, v := range cols[domain.ColYearNumeric] {
		if f := domain.ParseNumber(v.String); v.Valid && f != nil {
			years = append(years, *f)
		}
	}
	if len(years) > 0 {
		yearRange = fmt.Sprintf("%d–%d", int(floats.Min(years)), int(floats.Max(years)))
	}

	medianFilled := 0
	for _, v := range cols[domain.ColWVMedianRaw] {
		if v.IsPresent() {
			medianFilled++
		}
	}

	maxLabel := "n/a"
	if maxPaper != "" {
		maxLabel = fmt.Sprintf("%d (ID: %s)", maxPoints, maxPaper)
	}

	stats := [][]string{
		{"Total papers reporting numerical water values", strconv.Itoa(len(perPaper))},
		{"Total water value data points", strconv.Itoa(n)},
		{"Countries represented", strconv.Itoa(distinct(cols[domain.ColCountryClean]))},
		{"Continents represented", strconv.Itoa(distinct(cols[domain.ColContinent]))},
		{"Method categories (manuscript-level)", strconv.Itoa(distinct(cols[domain.ColMethodClean]))},
		{"Method types (detailed)", strconv.Itoa(distinct(cols[domain.ColMethodDetail]))},
		{"Purpose categories", strconv.Itoa(distinct(cols[domain.ColPurposeClean]))},
		{"Unique unit types", strconv.Itoa(distinct(cols[domain.ColUnitsClean]))},
		{"Publication year range", yearRange},
		{"Most common purpose", mode(cols[domain.ColPurposeClean])},
		{"Most common unit", mode(cols[domain.ColUnitsClean])},
		{"Most common country", mode(cols[domain.ColCountryClean])},
		{"Most common method", mode(cols[domain.ColMethodClean])},
		{"Average data points per paper", strconv.FormatFloat(avgPoints, 'f', 1, 64)},
		{"Maximum data points (single paper)", maxLabel},
		{"WV_median_raw completeness", fmt.Sprintf("%d/%d (%s%%)", medianFilled, n, Percent(medianFilled, n))},
	}

	return &domain.SummaryTable{
		Headers: []string{"Statistic", "Value"},
		Rows:    stats,
		Caption: "Summary statistics of the water value dataset extracted from papers reporting numerical water values.",
	}, nil
}

func wvPurposeTable(ds *domain.Dataset) (*domain.SummaryTable, error) {
	cols, err := wvColumns(ds, domain.ColPurposeClean, domain.ColID, domain.ColCountryClean, domain.ColContinent)
	if err != nil {
		return nil, err
	}

	type group struct{ ids, countries, continents []domain.Value }
	groups := make(map[string]*group)
	for i, p := range cols[domain.ColPurposeClean] {
		key := keyOf(p)
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
		}
		g.ids = append(g.ids, cols[domain.ColID][i])
		g.countries = append(g.countries, cols[domain.ColCountryClean][i])
		g.continents = append(g.continents, cols[domain.ColContinent][i])
	}

	counts := make([]Count, 0, len(groups))
	for k, g := range groups {
		counts = append(counts, Count{Key: k, N: len(g.ids)})
	}
	SortCounts(counts)
	total := ds.WaterValues.Len()

	t := &domain.SummaryTable{
		Headers: []string{"Purpose", "Data_Points_Count", "Papers_Count", "Countries_Count", "Continents_Count", "Pct_of_Data_Points"},
		Total: []string{
			"Total", strconv.Itoa(total),
			strconv.Itoa(distinct(cols[domain.ColID])),
			strconv.Itoa(distinct(cols[domain.ColCountryClean])),
			strconv.Itoa(distinct(cols[domain.ColContinent])),
			Percent(total, total),
		},
		Caption: "Distribution of water value data points by water use purpose, showing the number of data points, " +
			"papers, countries and continents represented for each purpose category.",
	}
	for _, c := range counts {
		g := groups[c.Key]
		t.Rows = append(t.Rows, []string{
			c.Key, strconv.Itoa(c.N),
			strconv.Itoa(distinct(g.ids)),
			strconv.Itoa(distinct(g.countries)),
			strconv.Itoa(distinct(g.continents)),
			Percent(c.N, total),
		})
	}
	return t, nil
}

func wvColumns(ds *domain.Dataset, names ...string) (map[string][]domain.Value, error) {
	out := make(map[string][]domain.Value, len(names))
	for _, name := range names {
		values, err := column(ds.WaterValues, domain.TableWaterValues, name)
		if err != nil {
			return nil, err
		}
		out[name] = values
	}
	return out, nil
}
