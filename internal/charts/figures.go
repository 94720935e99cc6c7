package charts

import (
	"errors"
	"fmt"
	"image/color"
	"slices"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
	"github.com/energy-modelling-hub/water-value-database/internal/summary"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

const methodAbbreviations = "LP = Linear Programming, MILP = Mixed-Integer Linear Programming, " +
	"SDP = Stochastic Dynamic Programming, SDDP = Stochastic Dual Dynamic Programming, " +
	"Econ-Engi = Economic-Engineering approach."

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Legend.Left = true
	return p
}

// columns fetches columns of a table, reporting an absent table or column
// as a MISSING_COLUMN error.
func columns(t *domain.Table, table string, names ...string) (map[string][]domain.Value, error) {
	if t == nil {
		return nil, apperrors.NewMissingColumnError(table, names[0], fmt.Errorf("table %s is not loaded", table))
	}
	cols, err := t.ColumnSet(names...)
	if err != nil {
		return nil, apperrors.FromMissingColumn(err)
	}
	return cols, nil
}

// reversed returns a reversed copy; nominal Y axes count from the bottom
func reversed[T any](s []T) []T {
	out := slices.Clone(s)
	slices.Reverse(out)
	return out
}

func (r *Renderer) completenessChart(raw, _ *domain.Dataset) (*built, error) {
	var tables []*domain.Table
	for _, t := range raw.Tables() {
		if t != nil {
			tables = append(tables, t)
		}
	}
	if len(tables) == 0 {
		return nil, errors.New("no tables loaded")
	}

	g := Completeness(tables, r.cfg.CompletenessExclude, r.cfg.CompletenessPrecision)
	if len(g.Columns) == 0 {
		return nil, errors.New("no original columns to show")
	}

	p := newPlot("Data Completeness Across Dataset Tables", "Table", "")
	rows := len(g.Columns)
	p.Add(&heatGrid{
		cols: len(g.Tables),
		rows: rows,
		cell: func(i, j int) gridCell {
			pct := g.Percent[rows-1-j][i]
			if pct == nil {
				return gridCell{Fill: missingGrey, Label: "–", Hatched: true}
			}
			return gridCell{
				Fill:  Diverging(*pct, r.cfg.CompletenessMidpoint),
				Label: strconv.FormatFloat(*pct, 'f', r.cfg.CompletenessPrecision, 64),
			}
		},
	})
	p.NominalX(g.Tables...)
	p.NominalY(reversed(g.Columns)...)

	mid := strconv.FormatFloat(r.cfg.CompletenessMidpoint, 'f', -1, 64)
	caption := fmt.Sprintf("Data completeness of the %d original data columns across the %d tables, "+
		"shown as the percentage of non-null values per column. Colours run from red (0%%) "+
		"through yellow (%s%%) to green (100%%). Hatched grey cells mark columns a table does not have. "+
		"Derived variables created during standardization are excluded.",
		len(g.Columns), len(g.Tables), mid)

	return &built{
		plot:         p,
		caption:      caption,
		height:       vg.Length(rows)*vg.Points(14) + vg.Inch*2,
		completeness: g.Summaries(),
	}, nil
}

func (r *Renderer) categoryChart(_, derived *domain.Dataset) (*built, error) {
	cols, err := columns(derived.Classification, domain.TableClassification, domain.ColClassification)
	if err != nil {
		return nil, err
	}
	counts := summary.CountValues(cols[domain.ColClassification])
	if len(counts) == 0 {
		return nil, errors.New("no classified papers")
	}

	p := newPlot("Papers by Classification Category", "Classification Category", "Number of Papers")
	labels := make([]string, len(counts))
	values := make(plotter.Values, len(counts))
	for i, c := range counts {
		labels[i] = c.Key
		values[i] = float64(c.N)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return nil, err
	}
	bars.Color = steelBlue
	bars.LineStyle.Width = 0
	p.Add(bars)
	if err := addBarLabels(p, counts); err != nil {
		return nil, err
	}
	p.NominalX(labels...)
	p.Y.Min = 0

	total := summary.Total(counts)
	var names []string
	for _, c := range counts {
		if name, ok := domain.CategoryNames[c.Key]; ok {
			names = append(names, c.Key+" = "+name)
		}
	}
	caption := fmt.Sprintf("Distribution of the %d classified papers across %d classification categories, "+
		"ordered by frequency. %s.", total, len(counts), strings.Join(names, "; "))

	return &built{plot: p, caption: caption}, nil
}

func (r *Renderer) methodDonut(_, derived *domain.Dataset) (*built, error) {
	cols, err := columns(derived.Classification, domain.TableClassification, domain.ColMethodClean)
	if err != nil {
		return nil, err
	}
	counts := summary.CountValues(cols[domain.ColMethodClean])
	if len(counts) == 0 {
		return nil, errors.New("no classified papers")
	}
	total := summary.Total(counts)

	p := newPlot("Papers by Method Type", "", "")
	p.HideAxes()
	d := &donut{hole: 0.5}
	for _, c := range counts {
		clr := paletteColor(domain.MethodColors, c.Key)
		d.slices = append(d.slices, slice{Label: c.Key, Value: float64(c.N), Color: clr})
		p.Legend.Add(fmt.Sprintf("%s (%d)", c.Key, c.N), swatch{color: clr})
	}
	p.Add(d)

	var parts []string
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s %s%%", c.Key, summary.Percent(c.N, total)))
	}
	caption := fmt.Sprintf("Share of optimization/analysis methods across the %d classified papers (%s). %s",
		total, strings.Join(parts, ", "), methodAbbreviations)

	return &built{plot: p, caption: caption}, nil
}

func (r *Renderer) geographicChart(_, derived *domain.Dataset) (*built, error) {
	cols, err := columns(derived.Classification, domain.TableClassification, domain.ColStudyRegionClean)
	if err != nil {
		return nil, err
	}
	regions := cols[domain.ColStudyRegionClean]
	bars := GeographicBars(regions, r.cfg.TopRegions)
	if len(bars) == 0 {
		return nil, errors.New("no classified papers")
	}
	total := len(regions)

	// bottom to top
	display := reversed(bars)
	regular := make(plotter.Values, len(display))
	special := make(plotter.Values, len(display))
	labels := make([]string, len(display))
	maxN := 0
	for i, b := range display {
		labels[i] = b.Label
		if b.Special {
			special[i] = float64(b.N)
		} else {
			regular[i] = float64(b.N)
		}
		maxN = max(maxN, b.N)
	}

	p := newPlot("Geographic Distribution of Study Regions", "Number of Papers", "")
	for _, set := range []struct {
		values plotter.Values
		color  color.Color
	}{{regular, steelBlue}, {special, specialGrey}} {
		bc, err := plotter.NewBarChart(set.values, vg.Points(10))
		if err != nil {
			return nil, err
		}
		bc.Horizontal = true
		bc.Color = set.color
		bc.LineStyle.Width = 0
		p.Add(bc)
	}

	xys := make(plotter.XYs, len(display))
	text := make([]string, len(display))
	for i, b := range display {
		xys[i] = plotter.XY{X: float64(b.N), Y: float64(i)}
		text[i] = fmt.Sprintf("%d (%s%%)", b.N, summary.Percent(b.N, total))
	}
	labelPlot, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: text})
	if err != nil {
		return nil, err
	}
	for i := range labelPlot.TextStyle {
		labelPlot.TextStyle[i].YAlign = draw.YCenter
	}
	labelPlot.Offset = vg.Point{X: vg.Points(3)}
	p.Add(labelPlot)

	p.NominalY(labels...)
	p.X.Min = 0
	p.X.Max = float64(maxN) * 1.25

	notSpecified := 0
	shown := 0
	for _, b := range bars {
		if b.Label == domain.NotSpecified {
			notSpecified = b.N
		}
		if !b.Special {
			shown++
		}
	}
	caption := fmt.Sprintf("Geographic distribution of study regions across the %d classified papers "+
		"(top %d countries/regions shown). %s%% of papers did not specify a study region and are "+
		"categorized as 'Not specified'. Grey bars indicate non-geographic categories.",
		total, shown, summary.Percent(notSpecified, total))

	return &built{
		plot:    p,
		caption: caption,
		height:  vg.Length(len(display))*vg.Points(16) + vg.Inch,
	}, nil
}

// addBarLabels writes the count above each vertical bar
func addBarLabels(p *plot.Plot, counts []summary.Count) error {
	xys := make(plotter.XYs, len(counts))
	text := make([]string, len(counts))
	for i, c := range counts {
		xys[i] = plotter.XY{X: float64(i), Y: float64(c.N)}
		text[i] = strconv.Itoa(c.N)
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: text})
	if err != nil {
		return err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = draw.XCenter
	}
	labels.Offset = vg.Point{Y: vg.Points(3)}
	p.Add(labels)
	return nil
}

// stackedBars adds one bar chart per series, each stacked on the previous
func stackedBars(p *plot.Plot, stack *YearStack, palette map[string]string, width vg.Length) error {
	var below *plotter.BarChart
	for _, s := range stack.Series {
		bc, err := plotter.NewBarChart(plotter.Values(s.Values), width)
		if err != nil {
			return err
		}
		bc.XMin = float64(stack.Years[0])
		bc.Color = paletteColor(palette, s.Label)
		bc.LineStyle.Color = cellBorder
		bc.LineStyle.Width = vg.Points(0.3)
		if below != nil {
			bc.StackOn(below)
		}
		p.Add(bc)
		p.Legend.Add(s.Label, bc)
		below = bc
	}
	return nil
}

// barWidth spreads n bars over most of a plot of the given width
func barWidth(plotWidth vg.Length, n int) vg.Length {
	if n <= 0 {
		return vg.Points(10)
	}
	return max(plotWidth*0.7/vg.Length(n), vg.Points(1))
}

func (r *Renderer) yearMethodChart(_, derived *domain.Dataset) (*built, error) {
	cols, err := columns(derived.Classification, domain.TableClassification,
		domain.ColYearNumeric, domain.ColMethodClean)
	if err != nil {
		return nil, err
	}
	stack := YearMethodStack(cols[domain.ColYearNumeric], cols[domain.ColMethodClean])
	if len(stack.Years) == 0 {
		return nil, errors.New("no papers with a publication year and method")
	}

	p := newPlot("Papers per Year by Method", "Publication Year", "Number of Papers")
	width := barWidth(vg.Length(r.cfg.WidthInches)*vg.Inch, len(stack.Years))
	if err := stackedBars(p, stack, domain.MethodColors, width); err != nil {
		return nil, err
	}

	for _, ma := range []struct {
		values []*float64
		label  string
		dashes []vg.Length
	}{
		{stack.MA3, "3-year moving avg.", nil},
		{stack.MA5, "5-year moving avg.", []vg.Length{vg.Points(5), vg.Points(3)}},
	} {
		var xys plotter.XYs
		for i, v := range ma.values {
			if v != nil {
				xys = append(xys, plotter.XY{X: float64(stack.Years[i]), Y: *v})
			}
		}
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		line.Color = trendBlack
		line.Width = vg.Points(1.8)
		line.Dashes = ma.dashes
		p.Add(line)
		p.Legend.Add(ma.label, line)
	}
	p.Y.Min = 0

	first, last := stack.Years[0], stack.Years[len(stack.Years)-1]
	total := 0
	for _, v := range stack.Totals() {
		total += int(v)
	}
	peakYear, peak := first, 0.0
	for i, v := range stack.MA5 {
		if v != nil && *v > peak {
			peakYear, peak = stack.Years[i], *v
		}
	}
	caption := fmt.Sprintf("Distribution of %d classified papers by publication year (%d–%d), stacked by "+
		"optimization/analysis method. Solid and dashed black lines show 3-year and 5-year centred moving "+
		"averages of total annual publications. The 5-year moving average peaks at %.1f papers per year "+
		"around %d. %s", total, first, last, peak, peakYear, methodAbbreviations)

	return &built{plot: p, caption: caption}, nil
}

func (r *Renderer) datapointsByYearChart(_, derived *domain.Dataset) (*built, error) {
	cols, err := columns(derived.WaterValues, domain.TableWaterValues,
		domain.ColYearNumeric, domain.ColPurposeClean, domain.ColID)
	if err != nil {
		return nil, err
	}
	stack := PurposeYearStack(cols[domain.ColYearNumeric], cols[domain.ColPurposeClean])
	if len(stack.Years) == 0 {
		return nil, errors.New("no water values with a paper year and purpose")
	}

	p := newPlot("Water Value Data Points by Year and Purpose", "Publication Year", "Number of Water Value Data Points")
	width := barWidth(vg.Length(r.cfg.WidthInches)*vg.Inch, len(stack.Years))
	if err := stackedBars(p, stack, domain.PurposeColors, width); err != nil {
		return nil, err
	}
	p.Y.Min = 0

	points := 0
	for _, s := range stack.Series {
		points += int(s.Total())
	}
	papers := make(map[string]bool)
	for _, id := range cols[domain.ColID] {
		if id.IsPresent() {
			papers[id.Trimmed()] = true
		}
	}
	perPaper := 0.0
	if len(papers) > 0 {
		perPaper = float64(points) / float64(len(papers))
	}
	first, last := stack.Years[0], stack.Years[len(stack.Years)-1]
	caption := fmt.Sprintf("Distribution of %d water value data points by publication year (%d–%d), "+
		"stacked by water use purpose. A single paper may contribute several data points "+
		"(average %.1f per paper); the data points were extracted from %d papers.",
		points, first, last, perPaper, len(papers))

	return &built{plot: p, caption: caption}, nil
}

// crossTabGrid draws a cross tabulation with count colours from low to high
func crossTabGrid(x *CrossTab, low, high colorful.Color) *heatGrid {
	peak := x.Max()
	rows := len(x.Rows)
	return &heatGrid{
		cols: len(x.Cols),
		rows: rows,
		cell: func(i, j int) gridCell {
			row := rows - 1 - j
			switch x.Kinds[row][i] {
			case CellMissing:
				return gridCell{Fill: missingGrey, Label: "–", Hatched: true}
			case CellStructuralZero:
				return gridCell{Fill: color.White, Label: "0"}
			}
			n := x.Counts[row][i]
			return gridCell{Fill: sequential(low, high, n, peak), Label: strconv.Itoa(n)}
		},
	}
}

func (r *Renderer) categoryMethodHeatmap(_, derived *domain.Dataset) (*built, error) {
	cols, err := columns(derived.Classification, domain.TableClassification,
		domain.ColClassification, domain.ColMethodClean)
	if err != nil {
		return nil, err
	}
	x := NewCrossTab(cols[domain.ColClassification], cols[domain.ColMethodClean],
		domain.CategoryOrder, domain.MethodOrder)

	p := newPlot("Classification Category × Method", "Method", "Classification Category")
	p.Add(crossTabGrid(x, sequentialLow, sequentialHigh))
	p.NominalX(x.Cols...)
	p.NominalY(reversed(x.Rows)...)

	caption := fmt.Sprintf("Cross-tabulation of classification categories and optimization/analysis "+
		"methods across the %d classified papers. Cell values give the number of papers using each "+
		"method within each category; darker cells indicate higher counts. White cells marked 0 are "+
		"combinations of observed categories and methods that no paper uses; hatched grey cells marked "+
		"– belong to a category or method with no papers at all. %s",
		derived.Classification.Len(), methodAbbreviations)

	return &built{plot: p, caption: caption}, nil
}

func (r *Renderer) continentPurposeHeatmap(_, derived *domain.Dataset) (*built, error) {
	cols, err := columns(derived.WaterValues, domain.TableWaterValues,
		domain.ColContinent, domain.ColPurposeClean)
	if err != nil {
		return nil, err
	}
	x := NewCrossTab(cols[domain.ColContinent], cols[domain.ColPurposeClean], nil, nil)
	if len(x.Rows) == 0 || len(x.Cols) == 0 {
		return nil, errors.New("no water values with a continent and purpose")
	}

	p := newPlot("Water Value Data Points by Continent and Purpose", "Water Use Purpose", "Continent")
	p.Add(crossTabGrid(x, heatLow, heatHigh))
	p.NominalX(x.Cols...)
	p.NominalY(reversed(x.Rows)...)

	caption := fmt.Sprintf("Cross-tabulation of water value data points by continent and water use "+
		"purpose. Cell values give the number of data points for each combination; darker cells "+
		"indicate higher counts and white cells marked 0 highlight coverage gaps. The %d data points "+
		"span %d continents and %d purpose categories.",
		derived.WaterValues.Len(), len(x.Rows), len(x.Cols))

	return &built{plot: p, caption: caption}, nil
}

func (r *Renderer) valueRangesChart(_, derived *domain.Dataset) (*built, error) {
	cols, err := columns(derived.WaterValues, domain.TableWaterValues,
		domain.ColWVID, domain.ColID, domain.ColPurposeClean, domain.ColWVConvertedNumeric)
	if err != nil {
		return nil, err
	}
	groups, excluded := PositiveValueGroups(cols[domain.ColWVID], cols[domain.ColID],
		cols[domain.ColPurposeClean], cols[domain.ColWVConvertedNumeric])

	p := newPlot("Converted Water Values by Purpose", "Water Use Purpose", "Converted Water Value (log scale)")
	plotted := 0
	if len(groups) > 0 {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

		labels := make([]string, len(groups))
		for i, g := range groups {
			box, err := plotter.NewBoxPlot(vg.Points(28), float64(i), plotter.Values(g.Values))
			if err != nil {
				return nil, err
			}
			box.FillColor = paletteColor(domain.PurposeColors, g.Purpose)
			p.Add(box)
			labels[i] = fmt.Sprintf("%s (n=%d)", g.Purpose, len(g.Values))
			plotted += len(g.Values)
		}
		p.NominalX(labels...)

		// a single repeated value would otherwise widen the axis to zero
		lo, hi := groups[0].Values[0], groups[0].Values[0]
		for _, g := range groups {
			for _, v := range g.Values {
				lo, hi = min(lo, v), max(hi, v)
			}
		}
		p.Y.Min, p.Y.Max = lo/2, hi*2
	} else {
		p.HideAxes()
		p.Title.Text += " (no positive values)"
	}

	caption := fmt.Sprintf("Distribution of %d converted water values by water use purpose on a "+
		"logarithmic axis. Boxes span the interquartile range with the median marked; whiskers reach "+
		"the most extreme values within 1.5 times the interquartile range. %d non-positive values "+
		"cannot be shown on a log axis and are listed in %s.",
		plotted, len(excluded), ExcludedPointsFile)

	return &built{plot: p, caption: caption, excluded: excluded}, nil
}
