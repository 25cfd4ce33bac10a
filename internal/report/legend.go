package report

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/lamim/vecplot/internal/metrics"
	"github.com/lamim/vecplot/internal/palette"
	"github.com/lamim/vecplot/internal/plot"
)

// ScaleColor marks the continuous component trace in legends.
const ScaleColor = "scale"

// LegendEntry is one row of a static legend.
type LegendEntry struct {
	Name    string `json:"name"`
	Color   string `json:"color"`
	Points  int    `json:"points"`
	Visible bool   `json:"visible"`
}

// Legend lists the traces of a view in plot order.
func Legend(traces []plot.Trace) []LegendEntry {
	entries := make([]LegendEntry, 0, len(traces))
	for _, t := range traces {
		name := t.Name
		c := t.Marker.Color
		if t.Marker.Values != nil {
			c = ScaleColor
			if name == "" {
				name = "Component 1"
			}
		}
		entries = append(entries, LegendEntry{
			Name:    name,
			Color:   c,
			Points:  t.Len(),
			Visible: t.Shown(),
		})
	}
	return entries
}

var (
	legendTitle  = lipgloss.NewStyle().Bold(true)
	legendMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c757d"))
	legendFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c"))
	legendBox    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#dee2e6")).
			Padding(0, 1)
)

// TerminalLegend renders a boxed legend with colored swatches for one view.
func TerminalLegend(r metrics.Result) string {
	lines := []string{legendTitle.Render(fmt.Sprintf("%s / %s", r.Collection, r.View))}
	if r.Status != "" {
		lines = append(lines, legendMuted.Render(r.Status))
	}
	if !r.Plotted {
		msg := r.Error
		if msg == "" {
			msg = "not plotted"
		}
		lines = append(lines, legendFailed.Render("✗ "+msg))
		return legendBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	}

	for _, e := range Legend(r.Traces) {
		swatch := "●"
		switch {
		case e.Color == ScaleColor:
			swatch = "▁▃▅▇"
		case e.Color != "":
			swatch = lipgloss.NewStyle().Foreground(lipgloss.Color(e.Color)).Render(swatch)
		}
		label := fmt.Sprintf("%s %s (%d)", swatch, e.Name, e.Points)
		if !e.Visible {
			label = legendMuted.Render(fmt.Sprintf("○ %s (%d, hidden)", e.Name, e.Points))
		}
		lines = append(lines, label)
	}
	return legendBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// hoverMarkdown converts a Plotly hover label into one line of markdown.
func hoverMarkdown(hover string) string {
	out, err := md.ConvertString(hover)
	if err != nil {
		return hover
	}
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "; ")
}

// hoverSamples returns up to n converted hover labels per trace.
func hoverSamples(t plot.Trace, n int) []string {
	n = min(n, len(t.Text))
	samples := make([]string, 0, n)
	for _, text := range t.Text[:n] {
		samples = append(samples, hoverMarkdown(text))
	}
	return samples
}

// parseHex converts "#rrggbb" into a color, falling back to the neutral bucket color.
func parseHex(s string) color.Color {
	if len(s) != 7 || s[0] != '#' {
		s = palette.Neutral
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		v, _ = strconv.ParseUint(palette.Neutral[1:], 16, 32)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
