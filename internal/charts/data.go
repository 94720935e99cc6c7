package charts

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/energy-modelling-hub/water-value-database/internal/derive"
	"github.com/energy-modelling-hub/water-value-database/internal/summary"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// CompletenessGrid is the share of non-null cells per column (rows) and
// table (columns). A nil cell means the table has no such column or no rows.
type CompletenessGrid struct {
	Tables  []string
	Columns []string
	Percent [][]*float64
}

// Completeness computes the completeness grid of the raw tables. Derived
// columns and the columns in exclude are skipped. Percentages are rounded
// to precision decimals.
func Completeness(tables []*domain.Table, exclude []string, precision int) *CompletenessGrid {
	skip := make(map[string]bool)
	for _, c := range domain.DerivedColumns {
		skip[c] = true
	}
	for _, c := range exclude {
		skip[strings.TrimSpace(c)] = true
	}

	g := &CompletenessGrid{}
	seen := make(map[string]bool)
	for _, t := range tables {
		g.Tables = append(g.Tables, t.Name)
		for _, c := range t.Columns {
			if !skip[c] && !seen[c] {
				seen[c] = true
				g.Columns = append(g.Columns, c)
			}
		}
	}

	g.Percent = make([][]*float64, len(g.Columns))
	for i, col := range g.Columns {
		g.Percent[i] = make([]*float64, len(tables))
		for j, t := range tables {
			values, err := t.Column(col)
			if err != nil || len(values) == 0 {
				continue
			}
			present := 0
			for _, v := range values {
				if v.Valid {
					present++
				}
			}
			pct := Round(float64(present)/float64(len(values))*100, precision)
			g.Percent[i][j] = &pct
		}
	}
	return g
}

// CompletenessSummary describes the completeness of one table
type CompletenessSummary struct {
	Table    string
	Columns  int
	Complete int
	Partial  int
	Empty    int
	Average  float64
}

// Summaries returns one summary per table over the columns it has
func (g *CompletenessGrid) Summaries() []CompletenessSummary {
	out := make([]CompletenessSummary, len(g.Tables))
	for j, name := range g.Tables {
		s := CompletenessSummary{Table: name}
		sum := 0.0
		for i := range g.Columns {
			p := g.Percent[i][j]
			if p == nil {
				continue
			}
			s.Columns++
			sum += *p
			switch {
			case *p >= 100:
				s.Complete++
			case *p <= 0:
				s.Empty++
			default:
				s.Partial++
			}
		}
		if s.Columns > 0 {
			s.Average = Round(sum/float64(s.Columns), 1)
		}
		out[j] = s
	}
	return out
}

// Round rounds v half away from zero to the given number of decimals
func Round(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}

// Bar is one labelled bar of a categorical chart
type Bar struct {
	Label   string
	N       int
	Special bool
}

// GeographicBars returns the top regular regions by count, then an Other
// bar folding the rest, then the special categories. The order is top to
// bottom as displayed.
func GeographicBars(values []domain.Value, top int) []Bar {
	special := map[string]bool{domain.NotSpecified: true, domain.SyntheticRegion: true}

	var regular []summary.Count
	specialCounts := make(map[string]int)
	for _, c := range summary.CountValues(values) {
		if special[c.Key] {
			specialCounts[c.Key] = c.N
			continue
		}
		regular = append(regular, c)
	}

	var bars []Bar
	for i, c := range regular {
		if i >= top {
			break
		}
		bars = append(bars, Bar{Label: c.Key, N: c.N})
	}
	if len(regular) > top {
		rest := regular[top:]
		bars = append(bars, Bar{
			Label:   fmt.Sprintf("Other (%d regions)", len(rest)),
			N:       summary.Total(rest),
			Special: true,
		})
	}
	for _, key := range []string{domain.SyntheticRegion, domain.NotSpecified} {
		if n := specialCounts[key]; n > 0 {
			bars = append(bars, Bar{Label: key, N: n, Special: true})
		}
	}
	return bars
}

// Series is one named sequence of values aligned with a chart's X positions
type Series struct {
	Label  string
	Values []float64
}

// Total sums the series
func (s Series) Total() float64 {
	t := 0.0
	for _, v := range s.Values {
		t += v
	}
	return t
}

// YearStack is a per-year stacked count with moving averages of the yearly
// totals. Moving average entries are nil where too few years are in range.
type YearStack struct {
	Years  []int
	Series []Series
	MA3    []*float64
	MA5    []*float64
}

// Totals returns the yearly totals across all series
func (s *YearStack) Totals() []float64 {
	totals := make([]float64, len(s.Years))
	for _, series := range s.Series {
		for i, v := range series.Values {
			totals[i] += v
		}
	}
	return totals
}

// crossCounts counts (year, key) pairs. Rows with a null year or key are
// dropped.
func crossCounts(years, keys []domain.Value) (map[int]map[string]int, int, int, bool) {
	counts := make(map[int]map[string]int)
	minYear, maxYear := math.MaxInt, math.MinInt
	for i := range years {
		if i >= len(keys) || !keys[i].IsPresent() || !years[i].IsPresent() {
			continue
		}
		year, ok := derive.ParseYear(years[i].String)
		if !ok {
			continue
		}
		if counts[year] == nil {
			counts[year] = make(map[string]int)
		}
		counts[year][keys[i].Trimmed()]++
		minYear = min(minYear, year)
		maxYear = max(maxYear, year)
	}
	return counts, minYear, maxYear, len(counts) > 0
}

// YearMethodStack counts papers per year by cleaned method in the fixed
// method order. The display starts at the first year whose three-year
// window holds at least two papers; years without papers count zero.
func YearMethodStack(years, methods []domain.Value) *YearStack {
	counts, minYear, maxYear, ok := crossCounts(years, methods)
	if !ok {
		return &YearStack{}
	}

	yearTotal := func(y int) int {
		n := 0
		for _, c := range counts[y] {
			n += c
		}
		return n
	}
	start := minYear
	for y := minYear; y < maxYear; y++ {
		if yearTotal(y)+yearTotal(y+1)+yearTotal(y+2) >= 2 {
			start = y
			break
		}
	}

	order := append([]string(nil), domain.MethodOrder...)
	var extra []string
	for _, byKey := range counts {
		for k := range byKey {
			if !slices.Contains(order, k) && !slices.Contains(extra, k) {
				extra = append(extra, k)
			}
		}
	}
	slices.Sort(extra)
	order = append(order, extra...)

	stack := &YearStack{}
	for y := start; y <= maxYear; y++ {
		stack.Years = append(stack.Years, y)
	}
	for _, m := range order {
		s := Series{Label: m, Values: make([]float64, len(stack.Years))}
		for i, y := range stack.Years {
			s.Values[i] = float64(counts[y][m])
		}
		stack.Series = append(stack.Series, s)
	}

	totals := stack.Totals()
	stack.MA3 = MovingAverage(totals, 3, 2)
	stack.MA5 = MovingAverage(totals, 5, 3)
	return stack
}

// PurposeYearStack counts water value data points per paper year by
// cleaned purpose. Purposes are ordered by total count descending, ties
// alphabetical; every year between the first and last is present.
func PurposeYearStack(years, purposes []domain.Value) *YearStack {
	counts, minYear, maxYear, ok := crossCounts(years, purposes)
	if !ok {
		return &YearStack{}
	}

	totals := make(map[string]int)
	for _, byKey := range counts {
		for k, n := range byKey {
			totals[k] += n
		}
	}
	ranked := make([]summary.Count, 0, len(totals))
	for k, n := range totals {
		ranked = append(ranked, summary.Count{Key: k, N: n})
	}
	summary.SortCounts(ranked)

	stack := &YearStack{}
	for y := minYear; y <= maxYear; y++ {
		stack.Years = append(stack.Years, y)
	}
	for _, c := range ranked {
		s := Series{Label: c.Key, Values: make([]float64, len(stack.Years))}
		for i, y := range stack.Years {
			s.Values[i] = float64(counts[y][c.Key])
		}
		stack.Series = append(stack.Series, s)
	}
	return stack
}

// MovingAverage returns the centred moving average of values over window
// points. Near the ends the window is truncated; positions with fewer than
// minPoints values in the window are nil.
func MovingAverage(values []float64, window, minPoints int) []*float64 {
	out := make([]*float64, len(values))
	half := window / 2
	for i := range values {
		lo, hi := max(0, i-half), min(len(values)-1, i+half)
		n := hi - lo + 1
		if n < minPoints {
			continue
		}
		sum := 0.0
		for _, v := range values[lo : hi+1] {
			sum += v
		}
		avg := sum / float64(n)
		out[i] = &avg
	}
	return out
}

// CellKind distinguishes the cells of a cross tabulation
type CellKind int

const (
	// CellCount is an observed combination
	CellCount CellKind = iota
	// CellStructuralZero is an absent combination of two observed levels
	CellStructuralZero
	// CellMissing belongs to a level with no observations at all
	CellMissing
)

// CrossTab counts rows per (row level, column level) pair
type CrossTab struct {
	Rows   []string
	Cols   []string
	Counts [][]int
	Kinds  [][]CellKind
}

// Max returns the largest cell count
func (x *CrossTab) Max() int {
	m := 0
	for _, row := range x.Counts {
		for _, n := range row {
			m = max(m, n)
		}
	}
	return m
}

// NewCrossTab tabulates rows against cols. Fixed orders list levels that
// are always shown, observed levels outside them are appended in
// alphabetical order. With a nil order, levels are the observed ones ranked
// by total count descending. Pairs with a blank value are dropped.
func NewCrossTab(rows, cols []domain.Value, rowOrder, colOrder []string) *CrossTab {
	counts := make(map[[2]string]int)
	rowTotals := make(map[string]int)
	colTotals := make(map[string]int)
	for i := range rows {
		if i >= len(cols) || !rows[i].IsPresent() || !cols[i].IsPresent() {
			continue
		}
		r, c := rows[i].Trimmed(), cols[i].Trimmed()
		counts[[2]string{r, c}]++
		rowTotals[r]++
		colTotals[c]++
	}

	x := &CrossTab{
		Rows: levels(rowTotals, rowOrder),
		Cols: levels(colTotals, colOrder),
	}
	x.Counts = make([][]int, len(x.Rows))
	x.Kinds = make([][]CellKind, len(x.Rows))
	for i, r := range x.Rows {
		x.Counts[i] = make([]int, len(x.Cols))
		x.Kinds[i] = make([]CellKind, len(x.Cols))
		for j, c := range x.Cols {
			n := counts[[2]string{r, c}]
			x.Counts[i][j] = n
			switch {
			case rowTotals[r] == 0 || colTotals[c] == 0:
				x.Kinds[i][j] = CellMissing
			case n == 0:
				x.Kinds[i][j] = CellStructuralZero
			}
		}
	}
	return x
}

func levels(totals map[string]int, order []string) []string {
	if order == nil {
		ranked := make([]summary.Count, 0, len(totals))
		for k, n := range totals {
			ranked = append(ranked, summary.Count{Key: k, N: n})
		}
		summary.SortCounts(ranked)
		out := make([]string, len(ranked))
		for i, c := range ranked {
			out[i] = c.Key
		}
		return out
	}

	out := append([]string(nil), order...)
	var extra []string
	for k := range totals {
		if !slices.Contains(order, k) {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// ExcludedPoint is an observation left out of a log-scale chart
type ExcludedPoint struct {
	Chart   string
	WVID    string
	PaperID string
	Purpose string
	Value   float64
	Reason  string
}

// ExcludedHeaders is the header of excluded_points.csv
var ExcludedHeaders = []string{"Chart", "WV_ID", "ID", "Purpose", "Value", "Reason"}

// Record returns the CSV record of the point
func (p ExcludedPoint) Record() []string {
	return []string{p.Chart, p.WVID, p.PaperID, p.Purpose, derive.FormatNumber(p.Value), p.Reason}
}

// ValueGroup holds the positive converted values of one purpose
type ValueGroup struct {
	Purpose string
	Values  []float64
}

// PositiveValueGroups groups the converted values by purpose for a log
// axis. Non-positive values are returned as excluded points; NULL values
// are not points at all. Groups are ordered by size descending, ties
// alphabetical, with Not specified last.
func PositiveValueGroups(ids, paperIDs, purposes, values []domain.Value) ([]ValueGroup, []ExcludedPoint) {
	byPurpose := make(map[string][]float64)
	var excluded []ExcludedPoint
	for i, v := range values {
		f := domain.ParseNumber(v.String)
		if !v.Valid || f == nil {
			continue
		}
		purpose := domain.NotSpecified
		if i < len(purposes) && purposes[i].IsPresent() {
			purpose = purposes[i].Trimmed()
		}
		if *f <= 0 {
			excluded = append(excluded, ExcludedPoint{
				Chart:   ChartValueRanges,
				WVID:    cell(ids, i),
				PaperID: cell(paperIDs, i),
				Purpose: purpose,
				Value:   *f,
				Reason:  "non-positive value on log axis",
			})
			continue
		}
		byPurpose[purpose] = append(byPurpose[purpose], *f)
	}

	ranked := make([]summary.Count, 0, len(byPurpose))
	for k, vs := range byPurpose {
		ranked = append(ranked, summary.Count{Key: k, N: len(vs)})
	}
	summary.SortCounts(ranked)

	groups := make([]ValueGroup, len(ranked))
	for i, c := range ranked {
		groups[i] = ValueGroup{Purpose: c.Key, Values: byPurpose[c.Key]}
	}
	return groups, excluded
}

func cell(values []domain.Value, i int) string {
	if i < len(values) {
		return values[i].Trimmed()
	}
	return ""
}
