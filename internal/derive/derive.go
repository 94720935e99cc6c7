// Package derive computes the normalized and derived columns of the water
// value database tables.
//
// Derivation never drops or reorders rows. Values that fail to parse become
// NULL and values missing from a vocabulary pass through unchanged; both are
// recorded as Issues for manual review instead of aborting the run. A source
// column the table lacks skips the columns derived from it, so that only the
// summaries needing those columns fail later.
package derive

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/energy-modelling-hub/water-value-database/internal/infrastructure"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// IssueKind classifies a review issue
type IssueKind string

const (
	IssueParse         IssueKind = "parse"
	IssueUnmapped      IssueKind = "unmapped"
	IssueMissingColumn IssueKind = "missing_column"
)

// Issue is one value that needs manual review. Row is the 1-based position
// in the table, or 0 for table-level issues.
type Issue struct {
	Table    string    `json:"table"`
	Column   string    `json:"column"`
	Row      int       `json:"row"`
	RecordID string    `json:"record_id"`
	Kind     IssueKind `json:"kind"`
	Value    string    `json:"value"`
	Message  string    `json:"message"`
}

// ReviewHeaders is the header row of review.csv
var ReviewHeaders = []string{"Table", "Column", "Row", "Record_ID", "Kind", "Value", "Message"}

// Record returns the issue as a review.csv record
func (is Issue) Record() []string {
	return []string{is.Table, is.Column, strconv.Itoa(is.Row), is.RecordID, string(is.Kind), is.Value, is.Message}
}

// Result is a derived dataset plus the issues found while deriving it
type Result struct {
	Dataset *domain.Dataset
	Issues  []Issue
}

// IssueCounts tallies issues by kind
func (r *Result) IssueCounts() map[IssueKind]int {
	counts := make(map[IssueKind]int)
	for _, is := range r.Issues {
		counts[is.Kind]++
	}
	return counts
}

// Deriver applies the derivation rules with a given vocabulary
type Deriver struct {
	vocab  *Vocabulary
	logger *slog.Logger
}

// New creates a Deriver. A nil vocabulary uses DefaultVocabulary.
func New(vocab *Vocabulary, logger *slog.Logger) *Deriver {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Deriver{vocab: vocab, logger: infrastructure.WithComponent(logger, "derive")}
}

// Derive derives all three tables of ds. The input dataset is not modified.
func (d *Deriver) Derive(ctx context.Context, ds *domain.Dataset) (*Result, error) {
	res := &Result{Dataset: &domain.Dataset{}}

	steps := []struct {
		table *domain.Table
		fn    func(*domain.Table) (*domain.Table, []Issue, error)
		out   **domain.Table
	}{
		{ds.Screening, d.DeriveScreening, &res.Dataset.Screening},
		{ds.Classification, d.DeriveClassification, &res.Dataset.Classification},
		{ds.WaterValues, d.DeriveWaterValues, &res.Dataset.WaterValues},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.table == nil {
			continue
		}
		derived, issues, err := s.fn(s.table)
		if err != nil {
			return nil, err
		}
		if derived.Len() != s.table.Len() {
			return nil, fmt.Errorf("derivation of %s changed row count from %d to %d",
				s.table.Name, s.table.Len(), derived.Len())
		}
		*s.out = derived
		res.Issues = append(res.Issues, issues...)

		d.logger.InfoContext(ctx, "Table derived",
			slog.String("table", s.table.Name),
			slog.Int("rows", derived.Len()),
			slog.Int("columns", len(derived.Columns)),
			slog.Int("issues", len(issues)))
	}

	return res, nil
}

// DeriveScreening adds Year_numeric, Decade and Included.
func (d *Deriver) DeriveScreening(t *domain.Table) (*domain.Table, []Issue, error) {
	b := newBuilder(t, domain.ColID)

	if years, ok := b.years(domain.ColYear); ok {
		b.set(domain.ColYearNumeric, mapInts(years, strconv.Itoa))
		b.set(domain.ColDecade, mapInts(years, func(y int) string { return strconv.Itoa(Decade(y)) }))
	}
	if decisions, ok := b.source(domain.ColDecision); ok {
		included := make([]domain.Value, len(decisions))
		for i, v := range decisions {
			included[i] = boolValue(domain.IsIncludedDecision(v.Trimmed()))
		}
		b.set(domain.ColIncluded, included)
	}

	return b.result()
}

// DeriveClassification adds the year columns, Has_water_value, and the
// cleaned method and study region columns.
func (d *Deriver) DeriveClassification(t *domain.Table) (*domain.Table, []Issue, error) {
	b := newBuilder(t, domain.ColID)

	if years, ok := b.years(domain.ColYear); ok {
		b.set(domain.ColYearNumeric, mapInts(years, strconv.Itoa))
		b.set(domain.ColDecade, mapInts(years, func(y int) string { return strconv.Itoa(Decade(y)) }))
		b.set(domain.ColYearRange, mapInts(years, YearRange))
	}

	if wv, ok := b.source(domain.ColWaterValue); ok {
		present := make([]domain.Value, len(wv))
		for i, v := range wv {
			present[i] = boolValue(v.IsPresent())
		}
		b.set(domain.ColHasWaterValue, present)
	}

	if methods, ok := b.normalize(domain.ColMethod, d.vocab.Methods, ""); ok {
		b.set(domain.ColMethodClean, methods)
		b.set(domain.ColMethodCategory, mapValues(methods, d.vocab.MethodCategory))
	}

	if regions, ok := b.normalize(domain.ColStudyRegion, d.vocab.Regions, domain.NotSpecified); ok {
		b.set(domain.ColStudyRegionClean, regions)
		b.set(domain.ColStudyRegionContinent, d.continents(regions))
	}

	return b.result()
}

// DeriveWaterValues adds the year columns from Paper_year, the cleaned
// categorical columns, and numeric parses of the value columns.
func (d *Deriver) DeriveWaterValues(t *domain.Table) (*domain.Table, []Issue, error) {
	b := newBuilder(t, domain.ColWVID)

	if years, ok := b.years(domain.ColPaperYear); ok {
		b.set(domain.ColYearNumeric, mapInts(years, strconv.Itoa))
		b.set(domain.ColDecade, mapInts(years, func(y int) string { return strconv.Itoa(Decade(y)) }))
	}

	if countries, ok := b.normalize(domain.ColCountry, d.vocab.Regions, domain.NotSpecified); ok {
		b.set(domain.ColCountryClean, countries)
		b.set(domain.ColContinent, d.continents(countries))
	}

	if purposes, ok := b.normalize(domain.ColPurpose, d.vocab.Purposes, ""); ok {
		b.set(domain.ColPurposeClean, purposes)
	}

	if methods, ok := b.normalize(domain.ColMethod, d.vocab.Methods, ""); ok {
		b.set(domain.ColMethodClean, methods)
		b.set(domain.ColMethodCategory, mapValues(methods, d.vocab.MethodCategory))
	}

	if units, ok := b.normalize(domain.ColUnits, d.vocab.Units, ""); ok {
		b.set(domain.ColUnitsClean, units)
	}

	numeric := []struct{ source, target string }{
		{domain.ColWVRaw, domain.ColWVRawNumeric},
		{domain.ColWVConverted, domain.ColWVConvertedNumeric},
		{domain.ColConversionFactor, domain.ColFactorNumeric},
	}
	for _, n := range numeric {
		if values, ok := b.numbers(n.source); ok {
			b.set(n.target, values)
		}
	}

	return b.result()
}

// continents maps cleaned regions to continents. Regions without a known
// continent get NULL; the region itself was already flagged if unmapped.
func (d *Deriver) continents(regions []domain.Value) []domain.Value {
	out := make([]domain.Value, len(regions))
	for i, r := range regions {
		if !r.Valid {
			continue
		}
		if c, ok := d.vocab.Continent(r.String); ok {
			out[i] = domain.Text(c)
		}
	}
	return out
}

var yearPattern = regexp.MustCompile(`^\d{1,4}(?:\.0+)?$`)

// ParseYear parses a publication year. Integers and floats with a zero
// fraction are accepted ("1998", "1998.0", " 1998 "); anything else is not.
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if !yearPattern.MatchString(s) {
		return 0, false
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return year, true
}

// Decade returns the decade a year falls in, e.g. 1998 -> 1990.
func Decade(year int) int {
	return year / 10 * 10
}

// YearRange returns the 5-year publication bin of a year. Years before 2000
// share one bin, 2020-2025 form a six-year bin, and later years continue in
// five-year bins from 2026.
func YearRange(year int) string {
	switch {
	case year < 2000:
		return domain.YearRangeLabels[0]
	case year <= 2019:
		start := 2000 + (year-2000)/5*5
		return rangeLabel(start, start+4)
	case year <= 2025:
		return domain.YearRangeLabels[len(domain.YearRangeLabels)-1]
	default:
		start := 2026 + (year-2026)/5*5
		return rangeLabel(start, start+4)
	}
}

// YearRangeBins returns every bin label in chronological order, extended to
// cover maxYear.
func YearRangeBins(maxYear int) []string {
	bins := append([]string(nil), domain.YearRangeLabels...)
	for start := 2026; start <= maxYear; start += 5 {
		bins = append(bins, rangeLabel(start, start+4))
	}
	return bins
}

func rangeLabel(from, to int) string {
	return fmt.Sprintf("%d–%d", from, to)
}

// FormatNumber renders a parsed number the way derived tables store it
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func boolValue(b bool) domain.Value {
	return domain.Text(strconv.FormatBool(b))
}

func mapInts(values []*int, fn func(int) string) []domain.Value {
	out := make([]domain.Value, len(values))
	for i, v := range values {
		if v != nil {
			out[i] = domain.Text(fn(*v))
		}
	}
	return out
}

func mapValues(values []domain.Value, fn func(string) string) []domain.Value {
	out := make([]domain.Value, len(values))
	for i, v := range values {
		if v.Valid {
			out[i] = domain.Text(fn(v.String))
		}
	}
	return out
}
