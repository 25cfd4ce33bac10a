package plot

// Layout returns the Plotly layout for a plot. Axis ranges are fixed so
// hiding traces never rescales the view.
func Layout(colorBy ColorBy, dim int, ranges Ranges) map[string]any {
	layout := map[string]any{
		"autosize":      true,
		"margin":        map[string]any{"l": 20, "r": 20, "b": 20, "t": 40, "pad": 4},
		"paper_bgcolor": "rgba(0,0,0,0)",
		"plot_bgcolor":  "#f8f9fa",
		"font":          map[string]any{"family": "sans-serif", "color": "#343a40"},
		"hovermode":     "closest",
		"showlegend":    colorBy != ColorByComponent,
		"legend": map[string]any{
			"x":           1,
			"y":           1,
			"xanchor":     "right",
			"yanchor":     "top",
			"bgcolor":     "rgba(255, 255, 255, 0.9)",
			"bordercolor": "#dee2e6",
			"borderwidth": 1,
			"font":        map[string]any{"size": 14},
		},
	}

	if dim == 3 {
		scene := map[string]any{
			"uirevision": "true",
			"xaxis":      sceneAxis("Comp. 1", ranges.X),
			"yaxis":      sceneAxis("Comp. 2", ranges.Y),
		}
		if ranges.Z != nil {
			scene["zaxis"] = sceneAxis("Comp. 3", *ranges.Z)
		}
		layout["dragmode"] = "turntable"
		layout["scene"] = scene
		return layout
	}

	layout["uirevision"] = "true"
	layout["xaxis"] = planeAxis(ranges.X)
	layout["yaxis"] = planeAxis(ranges.Y)
	return layout
}

func sceneAxis(title string, r Range) map[string]any {
	return map[string]any{
		"title":          title,
		"titlefont":      map[string]any{"size": 10, "color": "#6c757d"},
		"gridcolor":      "#dee2e6",
		"zerolinecolor":  "#adb5bd",
		"showbackground": false,
		"autorange":      false,
		"range":          r,
	}
}

func planeAxis(r Range) map[string]any {
	return map[string]any{
		"autorange":     false,
		"range":         r,
		"gridcolor":     "#dee2e6",
		"zerolinecolor": "#adb5bd",
	}
}
