// Package plot turns a dataset and a coloring choice into Plotly scatter
// traces: one trace per category, colored, labelled and ordered for the legend.
package plot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/lamim/vecplot/internal/dataset"
	"github.com/lamim/vecplot/internal/palette"
)

// ColorBy selects the attribute points are colored by.
type ColorBy string

const (
	ColorByComponent ColorBy = "component"
	ColorByFamily    ColorBy = "family"
	ColorByReporter  ColorBy = "reporter"
	ColorByCluster   ColorBy = "cluster"
)

// ColorModes lists every color mode in display order.
var ColorModes = []ColorBy{ColorByComponent, ColorByFamily, ColorByReporter, ColorByCluster}

// ParseColorBy validates a color mode name.
func ParseColorBy(s string) (ColorBy, error) {
	for _, c := range ColorModes {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown color mode %q (valid: component, family, reporter, cluster)", s)
}

// Drillable reports whether legend entries of this mode can be isolated.
func (c ColorBy) Drillable() bool {
	return c == ColorByFamily || c == ColorByCluster
}

// Policy selects how family and reporter categories get their colors.
type Policy string

const (
	// PolicySequential hands out palette entries largest group first.
	PolicySequential Policy = "sequential"
	// PolicyHash derives colors from category names.
	PolicyHash Policy = "hash"
)

// ParsePolicy validates a palette policy name. Empty means sequential.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicySequential:
		return PolicySequential, nil
	case PolicyHash:
		return PolicyHash, nil
	}
	return "", fmt.Errorf("unknown palette %q (valid: sequential, hash)", s)
}

// Isolation drills into one legend entry.
type Isolation struct {
	Type  ColorBy `json:"type"`
	Value string  `json:"value"`
}

// Request is the input of Transform.
type Request struct {
	Dataset    *dataset.Dataset
	ColorBy    ColorBy
	Visibility []TraceVisibility
	Isolation  *Isolation
	Policy     Policy
}

// Result is the output of Transform. Traces is nil whenever the dataset cannot
// be plotted; Status then explains why.
type Result struct {
	Traces    []Trace
	Status    string
	Dimension int
}

// Transform builds the traces for a request. It never panics on malformed
// data and never returns an error: problems are reported through Status.
func Transform(req Request) Result {
	ds := req.Dataset
	if msg := ds.Validate(); msg != "" {
		return Result{Status: msg}
	}
	dim := ds.Dimension()

	if iso := req.Isolation; iso != nil && iso.Value != "" && iso.Type == req.ColorBy {
		switch iso.Type {
		case ColorByFamily:
			traces := isolateFamily(ds, dim, iso.Value, req.Policy)
			return Result{
				Traces:    traces,
				Dimension: dim,
				Status: fmt.Sprintf("%d points for family %q, colored by reporter (%dD)",
					countPoints(traces), familyDisplayName(ds, iso.Value), dim),
			}
		case ColorByCluster:
			traces := isolateCluster(ds, dim, iso.Value, req.Policy)
			return Result{
				Traces:    traces,
				Dimension: dim,
				Status: fmt.Sprintf("%d points for %q, colored by family (%dD)",
					countPoints(traces), iso.Value, dim),
			}
		}
	}

	var traces []Trace
	switch req.ColorBy {
	case ColorByFamily:
		traces = categoryTraces(ds, dim, FamilyKey, req.Policy)
	case ColorByReporter:
		traces = categoryTraces(ds, dim, ReporterKey, req.Policy)
	case ColorByCluster:
		traces = clusterTraces(ds, dim)
	default:
		traces = []Trace{componentTrace(ds, dim)}
	}

	if req.Visibility != nil {
		for i := range traces {
			traces[i].Visible = lookupVisibility(req.Visibility, traces[i].Name)
		}
	}

	return Result{
		Traces:    traces,
		Dimension: dim,
		Status:    fmt.Sprintf("%d points visualized (%dD)", ds.Len(), dim),
	}
}

func lookupVisibility(list []TraceVisibility, name string) Visibility {
	for _, tv := range list {
		if tv.Name == name {
			if tv.Visible == "" {
				return Visible
			}
			return tv.Visible
		}
	}
	return Visible
}

func countPoints(traces []Trace) int {
	n := 0
	for _, t := range traces {
		n += t.Len()
	}
	return n
}

// familyDisplayName returns the dataset's own spelling of an isolated family.
func familyDisplayName(ds *dataset.Dataset, value string) string {
	for _, m := range ds.Metadata {
		if f := m.Properties.MalwareFamily; f.Present() && strings.EqualFold(f.Value, value) {
			return f.Value
		}
	}
	return value
}

func componentTrace(ds *dataset.Dataset, dim int) Trace {
	t := newTrace(dim, "")
	t.Marker = standardMarker(dim, "")
	t.Marker.ColorScale = ColorScale
	t.Marker.ColorBar = &ColorBar{Title: "Component 1", Thickness: 15, Len: 0.75, Y: 0.5}

	n := ds.Len()
	t.X = make([]float64, 0, n)
	t.Y = make([]float64, 0, n)
	if dim == 3 {
		t.Z = make([]float64, 0, n)
	}
	t.Text = make([]string, 0, n)
	t.CustomData = make([]int, 0, n)

	for i, p := range ds.Points {
		t.X = append(t.X, p[0])
		t.Y = append(t.Y, p[1])
		if dim == 3 {
			t.Z = append(t.Z, p[2])
		}
		t.Text = append(t.Text, componentHover(ds.Metadata[i], p))
		t.CustomData = append(t.CustomData, i)
	}
	t.Marker.Values = t.X
	return t
}

// groupTrace lays out one group's points. Hover text is built from the full
// dataset through the group's original indices.
func groupTrace(ds *dataset.Dataset, dim int, g *Group, marker Marker, hover func(dataset.Metadata, dataset.Point) string) Trace {
	t := newTrace(dim, g.Name)
	t.Marker = marker

	t.X = make([]float64, 0, g.Len())
	t.Y = make([]float64, 0, g.Len())
	if dim == 3 {
		t.Z = make([]float64, 0, g.Len())
	}
	for _, p := range g.Points {
		t.X = append(t.X, p[0])
		t.Y = append(t.Y, p[1])
		if dim == 3 {
			t.Z = append(t.Z, p[2])
		}
	}

	t.Text = make([]string, 0, len(g.Indices))
	for _, idx := range g.Indices {
		t.Text = append(t.Text, hover(ds.Metadata[idx], ds.Points[idx]))
	}
	t.CustomData = append([]int(nil), g.Indices...)
	return t
}

// categoryColors assigns a color to each group key under the given policy.
// Sequential assignment visits groups largest first, ties in first-seen order.
func categoryColors(groups *Groups, policy Policy) map[string]string {
	all := groups.All()
	colors := make(map[string]string, len(all))

	if policy == PolicyHash {
		for _, g := range all {
			if palette.IsReserved(g.Key) {
				colors[g.Key] = palette.Neutral
				continue
			}
			colors[g.Key] = palette.HashColor(g.Key)
		}
		return colors
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Len() > all[j].Len()
	})
	assignor := palette.NewAssignor()
	for _, g := range all {
		colors[g.Key] = assignor.Color(g.Key)
	}
	return colors
}

func markerFor(dim int, key, color string) Marker {
	if palette.IsReserved(key) {
		return neutralMarker(dim, palette.Neutral)
	}
	return standardMarker(dim, color)
}

func categoryTraces(ds *dataset.Dataset, dim int, key KeyFunc, policy Policy) []Trace {
	groups := GroupBy(ds.Points, ds.Metadata, key, UnknownName, nil)
	colors := categoryColors(groups, policy)

	traces := make([]Trace, 0, groups.Len())
	for _, g := range groups.All() {
		traces = append(traces, groupTrace(ds, dim, g, markerFor(dim, g.Key, colors[g.Key]), familyHover))
	}
	sortAlphabetical(traces)
	return traces
}

func clusterTraces(ds *dataset.Dataset, dim int) []Trace {
	groups := GroupBy(ds.Points, ds.Metadata, ClusterKey, UnclusteredName, nil)

	traces := make([]Trace, 0, groups.Len())
	for _, g := range groups.All() {
		color := palette.Neutral
		if label, ok := ParseClusterName(g.Name); ok && g.Key != palette.UnclusteredKey {
			color = palette.DistinctColor(int(label))
		}
		traces = append(traces, groupTrace(ds, dim, g, markerFor(dim, g.Key, color), clusterHover))
	}
	sortClusters(traces)
	return traces
}

func isolateFamily(ds *dataset.Dataset, dim int, value string, policy Policy) []Trace {
	want := strings.ToLower(value)
	selected := ds.Select(func(m dataset.Metadata) bool {
		family := m.Properties.MalwareFamily
		name := UnknownName
		if family.Present() {
			name = family.Value
		}
		return strings.ToLower(name) == want
	})
	return isolatedTraces(ds, dim, selected, ReporterKey, policy, reporterWithinFamilyHover)
}

func isolateCluster(ds *dataset.Dataset, dim int, value string, policy Policy) []Trace {
	label, ok := ParseClusterName(value)
	if !ok {
		return []Trace{}
	}
	selected := ds.Select(func(m dataset.Metadata) bool {
		return m.ClusterLabel.Valid && m.ClusterLabel.Value == label
	})
	return isolatedTraces(ds, dim, selected, FamilyKey, policy, familyWithinClusterHover)
}

func isolatedTraces(
	ds *dataset.Dataset,
	dim int,
	selected *roaring.Bitmap,
	key KeyFunc,
	policy Policy,
	hover func(dataset.Metadata, dataset.Point) string,
) []Trace {
	if selected.IsEmpty() {
		return []Trace{}
	}
	points, meta, original := ds.Subset(selected)
	groups := GroupBy(points, meta, key, UnknownName, original)
	colors := categoryColors(groups, policy)

	traces := make([]Trace, 0, groups.Len())
	for _, g := range groups.All() {
		traces = append(traces, groupTrace(ds, dim, g, markerFor(dim, g.Key, colors[g.Key]), hover))
	}
	sortAlphabetical(traces)
	return traces
}
