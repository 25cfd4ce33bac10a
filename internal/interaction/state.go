// Package interaction holds the legend and point-click state of one plot.
//
// Every reducer takes a State by value and returns a new one; nothing is
// mutated in place, so a caller can keep the previous state around or share
// it between goroutines as long as it does not mutate it itself.
package interaction

import (
	"fmt"
	"maps"

	"github.com/lamim/vecplot/internal/dataset"
	"github.com/lamim/vecplot/internal/plot"
)

// Mode decides what a legend click on a drillable color mode does.
type Mode string

const (
	// Isolate drills into the clicked entry.
	Isolate Mode = "isolate"
	// MultiSelect toggles trace visibility.
	MultiSelect Mode = "multiselect"
)

// ParseMode validates a mode name. Empty means isolate.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Isolate:
		return Isolate, nil
	case MultiSelect:
		return MultiSelect, nil
	}
	return "", fmt.Errorf("unknown interaction mode %q (valid: isolate, multiselect)", s)
}

// State is the interaction state of one plot.
type State struct {
	ColorBy    plot.ColorBy           `json:"color_by"`
	Modes      map[plot.ColorBy]Mode  `json:"modes"`
	Isolated   *plot.Isolation        `json:"isolated,omitempty"`
	Visibility []plot.TraceVisibility `json:"visibility,omitempty"`
	Policy     plot.Policy            `json:"palette"`
}

// NewState returns the initial state for a color mode: isolate mode for
// family and cluster, nothing isolated, every trace visible.
func NewState(colorBy plot.ColorBy) State {
	return State{
		ColorBy: colorBy,
		Modes: map[plot.ColorBy]Mode{
			plot.ColorByFamily:  Isolate,
			plot.ColorByCluster: Isolate,
		},
		Policy: plot.PolicySequential,
	}
}

// Mode returns the interaction mode of the current color mode. Modes that
// cannot be drilled into always behave as multiselect.
func (s State) Mode() Mode {
	if !s.ColorBy.Drillable() {
		return MultiSelect
	}
	if m, ok := s.Modes[s.ColorBy]; ok {
		return m
	}
	return Isolate
}

func (s State) reset() State {
	s.Modes = maps.Clone(s.Modes)
	s.Isolated = nil
	s.Visibility = nil
	return s
}

// DatasetChanged clears isolation and visibility after a new fetch.
func (s State) DatasetChanged() State {
	return s.reset()
}

// ColorByChanged switches the color mode and clears isolation and visibility.
func (s State) ColorByChanged(c plot.ColorBy) State {
	s = s.reset()
	s.ColorBy = c
	return s
}

// WithMode sets the interaction mode of a drillable color mode.
func (s State) WithMode(key plot.ColorBy, m Mode) State {
	if !key.Drillable() {
		return s
	}
	s = s.reset()
	if s.Modes == nil {
		s.Modes = make(map[plot.ColorBy]Mode)
	}
	s.Modes[key] = m
	return s
}

// ToggleMode flips isolate and multiselect for a drillable color mode.
func (s State) ToggleMode(key plot.ColorBy) State {
	if !key.Drillable() {
		return s
	}
	next := MultiSelect
	if m, ok := s.Modes[key]; ok && m == MultiSelect {
		next = Isolate
	}
	return s.WithMode(key, next)
}

// LegendClick applies a click on legend entry curve, given the names of the
// traces currently drawn. The returned bool is always false: the click is
// fully handled here and the plotting library must not toggle the trace too.
func (s State) LegendClick(traceNames []string, curve int) (State, bool) {
	mode := s.Mode()

	if mode == Isolate && s.Isolated != nil {
		return s.reset(), false
	}

	if mode == Isolate && s.ColorBy.Drillable() {
		name := ""
		if curve >= 0 && curve < len(traceNames) {
			name = traceNames[curve]
		}
		if name != "" && !plot.IsNeutralName(name) {
			s = s.reset()
			s.Isolated = &plot.Isolation{Type: s.ColorBy, Value: name}
		}
		return s, false
	}

	if len(traceNames) <= 1 || curve < 0 || curve >= len(traceNames) {
		return s, false
	}
	clicked := traceNames[curve]
	if clicked == "" {
		return s, false
	}

	var next []plot.TraceVisibility
	if s.Visibility == nil {
		next = make([]plot.TraceVisibility, len(traceNames))
		for i, name := range traceNames {
			v := plot.LegendOnly
			if i == curve {
				v = plot.Visible
			}
			next[i] = plot.TraceVisibility{Name: name, Visible: v}
		}
	} else {
		next = make([]plot.TraceVisibility, len(s.Visibility))
		copy(next, s.Visibility)
		for i := range next {
			if next[i].Name != clicked {
				continue
			}
			if next[i].Visible == plot.LegendOnly {
				next[i].Visible = plot.Visible
			} else {
				next[i].Visible = plot.LegendOnly
			}
		}
	}

	visible := 0
	for _, tv := range next {
		if tv.Visible != plot.LegendOnly {
			visible++
		}
	}

	s.Modes = maps.Clone(s.Modes)
	if visible == 0 || visible == len(traceNames) {
		s.Visibility = nil
	} else {
		s.Visibility = next
	}
	return s, false
}

// Render builds the traces for the dataset under this state. Isolation only
// applies while the current color mode is in isolate mode.
func (s State) Render(ds *dataset.Dataset) plot.Result {
	req := plot.Request{
		Dataset:    ds,
		ColorBy:    s.ColorBy,
		Visibility: s.Visibility,
		Policy:     s.Policy,
	}
	if s.Mode() == Isolate {
		req.Isolation = s.Isolated
	}
	return plot.Transform(req)
}

// Names returns the names of traces in legend order.
func Names(traces []plot.Trace) []string {
	names := make([]string, len(traces))
	for i, t := range traces {
		names[i] = t.Name
	}
	return names
}
