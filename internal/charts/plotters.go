package charts

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// gridCell is one annotated cell of a heat grid
type gridCell struct {
	Fill    color.Color
	Label   string
	Hatched bool
}

// heatGrid draws annotated cells on nominal axes: cell (i, j) is centred on
// x = i, y = j.
type heatGrid struct {
	cols, rows int
	cell       func(col, row int) gridCell
}

var _ plot.Plotter = (*heatGrid)(nil)
var _ plot.DataRanger = (*heatGrid)(nil)

func (g *heatGrid) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	label := plt.X.Tick.Label
	label.XAlign = draw.XCenter
	label.YAlign = draw.YCenter

	border := draw.LineStyle{Color: cellBorder, Width: vg.Points(1)}
	hatch := draw.LineStyle{Color: hatchGrey, Width: vg.Points(0.5)}

	for i := 0; i < g.cols; i++ {
		for j := 0; j < g.rows; j++ {
			cell := g.cell(i, j)
			x0, x1 := trX(float64(i)-0.5), trX(float64(i)+0.5)
			y0, y1 := trY(float64(j)-0.5), trY(float64(j)+0.5)
			pts := []vg.Point{{X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: x1, Y: y0}}
			c.FillPolygon(cell.Fill, pts)

			if cell.Hatched {
				// diagonal strokes clipped to the cell
				w, h := x1-x0, y1-y0
				for k := 1; k < 6; k++ {
					f := vg.Length(k) / 6
					c.StrokeLines(hatch,
						[]vg.Point{{X: x0 + w*f, Y: y0}, {X: x0, Y: y0 + h*f}},
						[]vg.Point{{X: x1, Y: y0 + h*f}, {X: x0 + w*f, Y: y1}},
					)
				}
			}
			c.StrokeLines(border, append(pts, pts[0]))

			if cell.Label != "" {
				label.Color = textColor(cell.Fill)
				c.FillText(label, vg.Point{X: (x0 + x1) / 2, Y: (y0 + y1) / 2}, cell.Label)
			}
		}
	}
}

func (g *heatGrid) DataRange() (xmin, xmax, ymin, ymax float64) {
	return -0.5, float64(g.cols) - 0.5, -0.5, float64(g.rows) - 0.5
}

// slice is one segment of a donut
type slice struct {
	Label string
	Value float64
	Color color.Color
}

// donut draws a ring chart with percentage labels, clockwise from twelve
// o'clock.
type donut struct {
	slices []slice
	hole   float64
}

var _ plot.Plotter = (*donut)(nil)
var _ plot.DataRanger = (*donut)(nil)

func (d *donut) Plot(c draw.Canvas, plt *plot.Plot) {
	total := 0.0
	for _, s := range d.slices {
		total += s.Value
	}
	if total <= 0 {
		return
	}

	center := c.Center()
	outer := min(c.Max.X-c.Min.X, c.Max.Y-c.Min.Y) / 2 * 0.9
	inner := outer * vg.Length(d.hole)

	label := plt.X.Tick.Label
	label.XAlign = draw.XCenter
	label.YAlign = draw.YCenter

	start := math.Pi / 2
	for _, s := range d.slices {
		if s.Value <= 0 {
			continue
		}
		sweep := -2 * math.Pi * s.Value / total

		var p vg.Path
		p.Move(polar(center, outer, start))
		p.Arc(center, outer, start, sweep)
		p.Line(polar(center, inner, start+sweep))
		p.Arc(center, inner, start+sweep, -sweep)
		p.Close()
		c.SetColor(s.Color)
		c.Fill(p)

		c.SetColor(cellBorder)
		c.SetLineWidth(vg.Points(1))
		c.Stroke(p)

		if share := s.Value / total; share >= 0.03 {
			mid := polar(center, (outer+inner)/2, start+sweep/2)
			label.Color = textColor(s.Color)
			c.FillText(label, mid, Percent(share*100))
		}
		start += sweep
	}
}

func (d *donut) DataRange() (xmin, xmax, ymin, ymax float64) {
	return -1, 1, -1, 1
}

func polar(center vg.Point, r vg.Length, angle float64) vg.Point {
	return vg.Point{
		X: center.X + r*vg.Length(math.Cos(angle)),
		Y: center.Y + r*vg.Length(math.Sin(angle)),
	}
}

// swatch is a filled legend thumbnail
type swatch struct {
	color color.Color
}

func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.color, pts)
}
