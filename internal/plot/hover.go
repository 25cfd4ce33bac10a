package plot

import (
	"fmt"
	"strings"

	"github.com/lamim/vecplot/internal/dataset"
)

const missing = "N/A"

// coords renders up to three coordinates with two decimals.
func coords(p dataset.Point) string {
	n := min(len(p), 3)
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%.2f", p[i])
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func componentHover(m dataset.Metadata, p dataset.Point) string {
	return fmt.Sprintf("Family: <b>%s</b><br>Coords: %s",
		m.Properties.MalwareFamily.Or(missing), coords(p))
}

func familyHover(m dataset.Metadata, p dataset.Point) string {
	return fmt.Sprintf("Family: <b>%s</b><br>Reporter: %s<br>Coords: %s",
		m.Properties.MalwareFamily.Or(missing), m.Properties.Reporter.Or(missing), coords(p))
}

func clusterHover(m dataset.Metadata, p dataset.Point) string {
	return fmt.Sprintf("Cluster: <b>%s</b><br>Family: %s<br>Coords: %s",
		m.ClusterLabel, m.Properties.MalwareFamily.Or(missing), coords(p))
}

// reporterWithinFamilyHover labels points of an isolated family.
func reporterWithinFamilyHover(m dataset.Metadata, p dataset.Point) string {
	return fmt.Sprintf("Reporter: <b>%s</b><br>Family: %s<br>Coords: %s",
		m.Properties.Reporter.Or(missing), m.Properties.MalwareFamily.Or(missing), coords(p))
}

// familyWithinClusterHover labels points of an isolated cluster.
func familyWithinClusterHover(m dataset.Metadata, p dataset.Point) string {
	return fmt.Sprintf("Family: <b>%s</b><br>Cluster: %s<br>Reporter: %s<br>Coords: %s",
		m.Properties.MalwareFamily.Or(missing), m.ClusterLabel,
		m.Properties.Reporter.Or(missing), coords(p))
}
