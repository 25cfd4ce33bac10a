package report

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lamim/vecplot/internal/metrics"
	"github.com/lamim/vecplot/internal/plot"
)

// PlotlyURL is the Plotly bundle loaded by HTML reports.
const PlotlyURL = "https://cdn.plot.ly/plotly-2.35.2.min.js"

// GenerateHTML creates an HTML report with one Plotly plot per view
func (g *Generator) GenerateHTML() error {
	collections := g.collector.GetAllCollections()
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	var out strings.Builder

	out.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Vector Plot Report</title>
    <script src="`)
	out.WriteString(PlotlyURL)
	out.WriteString(`"></script>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: #f5f5f5;
            color: #343a40;
            line-height: 1.6;
            padding: 20px;
        }
        .container { max-width: 1400px; margin: 0 auto; }
        h1 { color: #2c3e50; margin-bottom: 10px; }
        h2 { color: #2c3e50; margin: 30px 0 16px; padding-bottom: 8px; border-bottom: 2px solid #3498db; }
        .timestamp { color: #666; margin-bottom: 30px; }
        .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 20px; margin-bottom: 30px; }
        .card { background: white; padding: 20px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .card h3 { color: #666; font-size: 0.9em; text-transform: uppercase; margin-bottom: 10px; }
        .card .value { font-size: 2em; font-weight: bold; color: #2c3e50; }
        .note { color: #666; margin: -8px 0 16px; font-size: 0.9em; }
        .failure { color: #e74c3c; }
        .view { display: grid; grid-template-columns: 1fr 260px; gap: 16px; background: white; padding: 16px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); margin-bottom: 20px; }
        .view h3 { grid-column: 1 / -1; font-size: 1.05em; }
        .view .status { grid-column: 1 / -1; color: #6c757d; font-size: 0.9em; margin-top: -10px; }
        .plot { height: 520px; }
        .legend { list-style: none; font-size: 0.9em; max-height: 520px; overflow-y: auto; }
        .legend li { display: flex; align-items: center; gap: 8px; padding: 2px 0; }
        .legend li.hidden { opacity: 0.4; }
        .swatch { width: 12px; height: 12px; border-radius: 50%; flex: none; border: 1px solid #dee2e6; }
        .swatch.scale { border-radius: 2px; width: 40px; background: linear-gradient(90deg, #30123b, #4686fb, #1ae4b6, #a2fc3c, #fba238, #e4460a, #7a0403); }
        table { width: 100%; border-collapse: collapse; font-size: 0.85em; margin-top: 8px; }
        th, td { padding: 4px 8px; text-align: left; border-bottom: 1px solid #eee; word-break: break-all; }
        th { background: #2c3e50; color: white; font-weight: 600; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Vector Plot Report</h1>
        <p class="timestamp">Generated: `)
	out.WriteString(timestamp)
	out.WriteString(`</p>
`)
	out.WriteString(g.generateCards(collections))

	var scripts strings.Builder
	plotIndex := 0
	for _, collection := range collections {
		fmt.Fprintf(&out, "        <h2>%s</h2>\n", html.EscapeString(collection))
		if f, ok := g.collector.FetchFor(collection); ok {
			switch {
			case !f.Success:
				fmt.Fprintf(&out, "        <p class=\"note failure\">Fetch failed (%s): %s</p>\n",
					html.EscapeString(f.ErrorCategory), html.EscapeString(f.Error))
			case f.Message != "":
				fmt.Fprintf(&out, "        <p class=\"note\">%s</p>\n", html.EscapeString(f.Message))
			}
		}

		for _, r := range g.collector.GetResultsByCollection(collection) {
			id := fmt.Sprintf("plot-%d", plotIndex)
			plotIndex++
			out.WriteString(viewSection(id, r))
			if r.Plotted {
				script, err := plotScript(id, r)
				if err != nil {
					return fmt.Errorf("view %s/%s: %w", collection, r.View, err)
				}
				scripts.WriteString(script)
			}
		}
	}

	out.WriteString(`    </div>
    <script>
`)
	out.WriteString(scripts.String())
	out.WriteString(`    </script>
</body>
</html>
`)

	outputPath := filepath.Join(g.outputDir, "report.html")
	// #nosec G306 - 0640 allows owner/group to read, which is appropriate for report files
	return os.WriteFile(outputPath, []byte(out.String()), 0640)
}

func (g *Generator) generateCards(collections []string) string {
	fetched, points, plotted, views := 0, 0, 0, 0
	for _, c := range collections {
		s := g.collector.ComputeSummary(c)
		if s.FetchSucceeded {
			fetched++
		}
		points += s.Points
		plotted += s.PlottedViews
		views += s.TotalViews
	}

	var sb strings.Builder
	sb.WriteString("        <div class=\"cards\">\n")
	card := func(title string, value any) {
		fmt.Fprintf(&sb, "            <div class=\"card\"><h3>%s</h3><div class=\"value\">%v</div></div>\n", title, value)
	}
	card("Collections", fmt.Sprintf("%d/%d", fetched, len(collections)))
	card("Points", points)
	card("Views Plotted", fmt.Sprintf("%d/%d", plotted, views))
	sb.WriteString("        </div>\n")
	return sb.String()
}

// viewSection renders the container, static legend and selection table of one view.
func viewSection(id string, r metrics.Result) string {
	var sb strings.Builder
	sb.WriteString("        <div class=\"view\">\n")
	fmt.Fprintf(&sb, "            <h3>%s <small>(%s, %s)</small></h3>\n",
		html.EscapeString(r.View), html.EscapeString(r.ColorBy), html.EscapeString(orDash(r.Mode)))
	fmt.Fprintf(&sb, "            <p class=\"status\">%s</p>\n", html.EscapeString(r.Status))

	if !r.Plotted {
		msg := r.Error
		if msg == "" {
			msg = r.Status
		}
		fmt.Fprintf(&sb, "            <p class=\"failure\">%s</p>\n", html.EscapeString(msg))
		sb.WriteString("        </div>\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "            <div id=\"%s\" class=\"plot\"></div>\n", id)
	sb.WriteString("            <div>\n                <ul class=\"legend\">\n")
	for _, e := range Legend(r.Traces) {
		class := ""
		if !e.Visible {
			class = " class=\"hidden\""
		}
		swatch := fmt.Sprintf("<span class=\"swatch\" style=\"background:%s\"></span>", html.EscapeString(e.Color))
		if e.Color == ScaleColor {
			swatch = "<span class=\"swatch scale\"></span>"
		}
		fmt.Fprintf(&sb, "                    <li%s>%s%s <small>(%d)</small></li>\n",
			class, swatch, html.EscapeString(e.Name), e.Points)
	}
	sb.WriteString("                </ul>\n")

	if r.Selection != nil {
		fmt.Fprintf(&sb, "                <table><tr><th colspan=\"2\">Point %d</th></tr>\n", r.Selection.Index)
		for _, d := range r.Selection.Details {
			fmt.Fprintf(&sb, "                    <tr><td>%s</td><td>%s</td></tr>\n",
				html.EscapeString(d.Label), html.EscapeString(d.Value))
		}
		sb.WriteString("                </table>\n")
	}
	sb.WriteString("            </div>\n        </div>\n")
	return sb.String()
}

// plotScript emits the Plotly call for one view. The built-in legend is
// disabled since each view carries a static legend.
func plotScript(id string, r metrics.Result) (string, error) {
	colorBy, err := plot.ParseColorBy(r.ColorBy)
	if err != nil {
		return "", err
	}
	layout := plot.Layout(colorBy, r.Dimension, r.Ranges)
	layout["showlegend"] = false

	traces, err := json.Marshal(r.Traces)
	if err != nil {
		return "", err
	}
	layoutJSON, err := json.Marshal(layout)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("        Plotly.newPlot(%q, %s, %s, {responsive: true, displaylogo: false});\n",
		id, traces, layoutJSON), nil
}
