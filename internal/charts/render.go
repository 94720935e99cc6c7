package charts

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
)

// canvasSize is the page size of one figure
type canvasSize struct {
	width, height vg.Length
	dpi           int
}

// savePlot writes p as <dir>/<name>.png at the configured DPI and as
// <dir>/<name>.pdf, and returns both paths.
func savePlot(p *plot.Plot, size canvasSize, dir, name string) (pngPath, pdfPath string, err error) {
	pngPath = filepath.Join(dir, name+".png")
	pdfPath = filepath.Join(dir, name+".pdf")

	img := vgimg.NewWith(vgimg.UseWH(size.width, size.height), vgimg.UseDPI(size.dpi))
	p.Draw(draw.New(img))
	if err := writeCanvas(pngPath, vgimg.PngCanvas{Canvas: img}); err != nil {
		return "", "", fmt.Errorf("write png: %w", err)
	}

	pdf := vgpdf.New(size.width, size.height)
	p.Draw(draw.New(pdf))
	if err := writeCanvas(pdfPath, pdf); err != nil {
		return "", "", fmt.Errorf("write pdf: %w", err)
	}

	return pngPath, pdfPath, nil
}

func writeCanvas(path string, c vg.CanvasWriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
