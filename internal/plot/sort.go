package plot

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/lamim/vecplot/internal/palette"
)

// IsNeutralName reports whether a trace name is the Unknown or Unclustered
// bucket, in any spelling.
func IsNeutralName(name string) bool {
	return palette.IsReserved(strings.ToLower(name))
}

// legendLess collates a before b, with the neutral bucket pinned to the end.
func legendLess(c *collate.Collator, a, b string) bool {
	if IsNeutralName(a) {
		return false
	}
	if IsNeutralName(b) {
		return true
	}
	return c.CompareString(a, b) < 0
}

// sortAlphabetical orders traces by name, the neutral bucket last.
func sortAlphabetical(traces []Trace) {
	c := collate.New(language.English)
	sort.SliceStable(traces, func(i, j int) bool {
		return legendLess(c, traces[i].Name, traces[j].Name)
	})
}

// sortClusters orders cluster traces by numeric label, "Unclustered" last.
func sortClusters(traces []Trace) {
	sort.SliceStable(traces, func(i, j int) bool {
		a, b := traces[i].Name, traces[j].Name
		if IsNeutralName(a) {
			return false
		}
		if IsNeutralName(b) {
			return true
		}
		la, _ := ParseClusterName(a)
		lb, _ := ParseClusterName(b)
		return la < lb
	})
}

// ParseClusterName extracts N from "Cluster N".
func ParseClusterName(name string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(name, "Cluster ")), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
