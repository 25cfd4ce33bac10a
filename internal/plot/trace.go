package plot

import (
	"encoding/json"
)

// Visibility is a Plotly trace visibility: shown, or listed in the legend only.
type Visibility string

const (
	Visible    Visibility = "true"
	LegendOnly Visibility = "legendonly"
)

// MarshalJSON emits Visible as the JSON boolean Plotly expects.
func (v Visibility) MarshalJSON() ([]byte, error) {
	if v == LegendOnly {
		return json.Marshal(string(LegendOnly))
	}
	return []byte("true"), nil
}

// UnmarshalJSON accepts true, false and "legendonly".
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*v = Visible
		} else {
			*v = LegendOnly
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == string(LegendOnly) {
		*v = LegendOnly
	} else {
		*v = Visible
	}
	return nil
}

// TraceVisibility overrides the visibility of one named trace.
type TraceVisibility struct {
	Name    string     `json:"name"`
	Visible Visibility `json:"visible"`
}

// Trace types and marker constants.
const (
	TypeScatter3D = "scatter3d"
	TypeScatterGL = "scattergl"

	ColorScale = "Turbo"
	outline    = "rgba(255,255,255,0.3)"
)

// MarkerLine is the outline drawn around each marker.
type MarkerLine struct {
	Width float64 `json:"width"`
	Color string  `json:"color"`
}

// ColorBar describes the continuous scale legend.
type ColorBar struct {
	Title     string  `json:"title"`
	Thickness int     `json:"thickness"`
	Len       float64 `json:"len"`
	Y         float64 `json:"y"`
}

// Marker styles the points of a trace. Either Color or Values is set: Color
// is a single hex color, Values a per-point scalar mapped through ColorScale.
type Marker struct {
	Color      string
	Values     []float64
	ColorScale string
	ColorBar   *ColorBar
	Size       float64
	Opacity    float64
	Line       MarkerLine
}

type markerJSON struct {
	Color      any        `json:"color,omitempty"`
	ColorScale string     `json:"colorscale,omitempty"`
	ColorBar   *ColorBar  `json:"colorbar,omitempty"`
	Size       float64    `json:"size"`
	Opacity    float64    `json:"opacity"`
	Line       MarkerLine `json:"line"`
}

// MarshalJSON implements json.Marshaler.
func (m Marker) MarshalJSON() ([]byte, error) {
	out := markerJSON{
		ColorScale: m.ColorScale,
		ColorBar:   m.ColorBar,
		Size:       m.Size,
		Opacity:    m.Opacity,
		Line:       m.Line,
	}
	if m.Values != nil {
		out.Color = m.Values
	} else if m.Color != "" {
		out.Color = m.Color
	}
	return json.Marshal(out)
}

// HoverLabel styles the hover box.
type HoverLabel struct {
	BgColor     string `json:"bgcolor"`
	BorderColor string `json:"bordercolor"`
	Font        Font   `json:"font"`
}

// Font is a Plotly font description.
type Font struct {
	Size int `json:"size"`
}

// Trace is one Plotly scatter trace.
type Trace struct {
	X          []float64  `json:"x"`
	Y          []float64  `json:"y"`
	Z          []float64  `json:"z,omitempty"`
	Name       string     `json:"name,omitempty"`
	Text       []string   `json:"text"`
	CustomData []int      `json:"customdata"`
	Mode       string     `json:"mode"`
	Type       string     `json:"type"`
	Marker     Marker     `json:"marker"`
	HoverInfo  string     `json:"hoverinfo"`
	HoverLabel HoverLabel `json:"hoverlabel"`
	Visible    Visibility `json:"visible,omitempty"`
}

// Len returns the number of points in the trace.
func (t Trace) Len() int {
	return len(t.CustomData)
}

// Shown reports whether the trace is drawn, not just listed.
func (t Trace) Shown() bool {
	return t.Visible != LegendOnly
}

func standardMarker(dim int, color string) Marker {
	size := 7.0
	if dim == 3 {
		size = 5
	}
	return Marker{
		Color:   color,
		Size:    size,
		Opacity: 0.85,
		Line:    MarkerLine{Width: 0.5, Color: outline},
	}
}

func neutralMarker(dim int, color string) Marker {
	size := 5.0
	if dim == 3 {
		size = 3
	}
	return Marker{
		Color:   color,
		Size:    size,
		Opacity: 0.5,
		Line:    MarkerLine{Width: 0.5, Color: outline},
	}
}

func traceType(dim int) string {
	if dim == 3 {
		return TypeScatter3D
	}
	return TypeScatterGL
}

func newTrace(dim int, name string) Trace {
	return Trace{
		Name:      name,
		Mode:      "markers",
		Type:      traceType(dim),
		HoverInfo: "text",
		HoverLabel: HoverLabel{
			BgColor:     "white",
			BorderColor: "#ccc",
			Font:        Font{Size: 11},
		},
	}
}
