package plot

import (
	"fmt"
	"strings"

	"github.com/lamim/vecplot/internal/dataset"
)

// Display names of the reserved neutral buckets. A real category literally
// named "Unknown" is indistinguishable from the missing-value bucket and
// merges into it.
const (
	UnknownName     = "Unknown"
	UnclusteredName = "Unclustered"
)

// KeyFunc extracts the category a point belongs to.
type KeyFunc func(dataset.Metadata) dataset.OptString

// FamilyKey groups by malware family.
func FamilyKey(m dataset.Metadata) dataset.OptString {
	return m.Properties.MalwareFamily
}

// ReporterKey groups by reporter.
func ReporterKey(m dataset.Metadata) dataset.OptString {
	return m.Properties.Reporter
}

// ClusterKey groups by cluster label. Every point gets a name: labels >= 0
// become "Cluster N", anything else "Unclustered".
func ClusterKey(m dataset.Metadata) dataset.OptString {
	if m.Clustered() {
		return dataset.Some(ClusterName(m.ClusterLabel.Value))
	}
	return dataset.Some(UnclusteredName)
}

// ClusterName formats a cluster label as its legend name.
func ClusterName(label int64) string {
	return fmt.Sprintf("Cluster %d", label)
}

// Group is the set of points sharing one normalized category.
type Group struct {
	// Key is the lower-cased category used for merging.
	Key string
	// Name is the first-seen spelling of the category.
	Name    string
	Points  []dataset.Point
	Indices []int
}

// Len returns the number of points in the group.
func (g *Group) Len() int {
	return len(g.Points)
}

// Groups is an insertion-ordered map of normalized key to group.
type Groups struct {
	order []string
	byKey map[string]*Group
}

func newGroups() *Groups {
	return &Groups{byKey: make(map[string]*Group)}
}

// Len returns the number of groups.
func (g *Groups) Len() int {
	return len(g.order)
}

// Get returns the group for a normalized key.
func (g *Groups) Get(key string) (*Group, bool) {
	grp, ok := g.byKey[key]
	return grp, ok
}

// All returns the groups in order of first encounter.
func (g *Groups) All() []*Group {
	out := make([]*Group, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, g.byKey[k])
	}
	return out
}

// GroupBy partitions points by the category key returns. Missing or empty
// categories fall into a bucket named fallback. Keys merge case-insensitively
// and keep the first-seen spelling as the display name.
//
// When parent is non-nil it maps each local position to an index in the full
// dataset, and groups record those original indices instead of local ones.
// Positions with no point or no parent index are skipped.
func GroupBy(points []dataset.Point, meta []dataset.Metadata, key KeyFunc, fallback string, parent []int) *Groups {
	groups := newGroups()

	for i, m := range meta {
		if i >= len(points) || points[i] == nil {
			continue
		}

		original := i
		if parent != nil {
			if i >= len(parent) {
				continue
			}
			original = parent[i]
		}

		name := fallback
		if raw := key(m); raw.Present() {
			name = raw.Value
		}
		normalized := strings.ToLower(name)

		grp, ok := groups.byKey[normalized]
		if !ok {
			grp = &Group{Key: normalized, Name: name}
			groups.byKey[normalized] = grp
			groups.order = append(groups.order, normalized)
		}
		grp.Points = append(grp.Points, points[i])
		grp.Indices = append(grp.Indices, original)
	}

	return groups
}
