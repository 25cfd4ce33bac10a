package plot

import (
	"math"

	"github.com/lamim/vecplot/internal/dataset"
)

// Range is an axis interval.
type Range [2]float64

// Ranges holds the axis intervals of a plot. Z is nil for 2D data.
type Ranges struct {
	X Range  `json:"x"`
	Y Range  `json:"y"`
	Z *Range `json:"z,omitempty"`
}

// AxisRanges computes padded axis intervals for the dataset so the camera
// does not jump when traces are hidden.
func AxisRanges(ds *dataset.Dataset) Ranges {
	dim := ds.Dimension()
	r := Ranges{
		X: axisRange(ds, 0),
		Y: axisRange(ds, 1),
	}
	if dim == 3 {
		z := axisRange(ds, 2)
		r.Z = &z
	}
	return r
}

func axisRange(ds *dataset.Dataset, axis int) Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	if ds != nil {
		for _, p := range ds.Points {
			if axis >= len(p) {
				continue
			}
			v := p[axis]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return Range{-1, 1}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 0.1
	}
	return Range{lo - pad, hi + pad}
}
