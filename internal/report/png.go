package report

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"unicode"

	gonum "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/lamim/vecplot/internal/metrics"
	"github.com/lamim/vecplot/internal/palette"
)

// snapshotSize is the edge length of PNG snapshots.
const snapshotSize = 6 * vg.Inch

// GeneratePNG draws an x/y snapshot of every plotted view. 3D views are
// projected onto their first two components.
func (g *Generator) GeneratePNG() error {
	for _, r := range g.collector.GetResults() {
		if !r.Plotted {
			continue
		}
		if err := SavePNG(r, filepath.Join(g.outputDir, SnapshotName(r))); err != nil {
			return fmt.Errorf("view %s/%s: %w", r.Collection, r.View, err)
		}
	}
	return nil
}

// SnapshotName returns the PNG file name for a view.
func SnapshotName(r metrics.Result) string {
	return sanitize(r.Collection) + "_" + sanitize(r.View) + ".png"
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return '_'
	}, s)
	if s == "" {
		return "_"
	}
	return s
}

// SavePNG draws one view to path. Legend-only traces are left out of the
// drawing but kept in the legend.
func SavePNG(r metrics.Result, path string) error {
	p := gonum.New()
	p.Title.Text = fmt.Sprintf("%s / %s", r.Collection, r.View)
	p.X.Label.Text = "Comp. 1"
	p.Y.Label.Text = "Comp. 2"
	p.X.Min, p.X.Max = r.Ranges.X[0], r.Ranges.X[1]
	p.Y.Min, p.Y.Max = r.Ranges.Y[0], r.Ranges.Y[1]
	p.Add(plotter.NewGrid())

	for _, t := range r.Traces {
		n := min(len(t.X), len(t.Y))
		if n == 0 {
			continue
		}
		points := make(plotter.XYs, n)
		for i := 0; i < n; i++ {
			points[i] = plotter.XY{X: t.X[i], Y: t.Y[i]}
		}

		scatter, err := plotter.NewScatter(points)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(2.5)
		scatter.GlyphStyle.Color = parseHex(t.Marker.Color)

		if t.Marker.Values != nil {
			lo, hi := valueRange(t.Marker.Values)
			values := t.Marker.Values
			base := scatter.GlyphStyle
			scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
				style := base
				if i < len(values) {
					style.Color = parseHex(scaleColor(values[i], lo, hi))
				}
				return style
			}
		}

		if t.Shown() {
			p.Add(scatter)
		}
		if t.Name != "" {
			p.Legend.Add(t.Name, scatter)
		}
	}
	p.Legend.Top = true

	return p.Save(snapshotSize, snapshotSize, path)
}

func valueRange(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// scaleColor maps v onto a blue to red hue ramp.
func scaleColor(v, lo, hi float64) string {
	t := 0.5
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	return palette.HSLToHex(240*(1-t), 80, 50)
}
