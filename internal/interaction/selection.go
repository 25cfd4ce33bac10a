package interaction

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lamim/vecplot/internal/dataset"
)

// OpcodePreview is how many opcode characters a collapsed detail view shows.
const OpcodePreview = 50

// Selection is the record behind a clicked point.
type Selection struct {
	Index       int              `json:"index"`
	Metadata    dataset.Metadata `json:"metadata"`
	Coordinates dataset.Point    `json:"coordinates"`
}

// PointClick resolves a plot click. points holds the custom data of the
// clicked points; only the first is used. An empty click reports a nil
// selection; an index with no record reports nothing at all.
func PointClick(ds *dataset.Dataset, points []int) (*Selection, bool) {
	if len(points) == 0 {
		return nil, true
	}
	idx := points[0]
	if ds == nil || idx < 0 || idx >= len(ds.Points) || idx >= len(ds.Metadata) || ds.Points[idx] == nil {
		return nil, false
	}
	return &Selection{
		Index:       idx,
		Metadata:    ds.Metadata[idx],
		Coordinates: ds.Points[idx],
	}, true
}

// Detail is one labelled line of a selection.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Details formats the selection for display. The opcode line is omitted when
// the record carries none and is truncated unless full is set.
func (s *Selection) Details(full bool) []Detail {
	const na = "N/A"
	p := s.Metadata.Properties
	printer := message.NewPrinter(language.English)

	size := na
	if p.FileSize.Valid && p.FileSize.Value != 0 {
		size = printer.Sprintf("%d bytes", p.FileSize.Value)
	}

	details := []Detail{
		{"Family", p.MalwareFamily.Or(na)},
		{"Cluster", s.Metadata.ClusterLabel.String()},
		{"File Name", p.FileName.Or(na)},
		{"SHA256", p.SHA256Hash.Or(na)},
		{"File Type", p.FileType.Or(na)},
		{"File Size", size},
		{"Reporter", p.Reporter.Or(na)},
	}

	if p.OpCode.Present() {
		op := p.OpCode.Value
		if !full {
			op = truncate(op, OpcodePreview)
		}
		details = append(details, Detail{"Opcode", op})
	}

	coords := make([]string, len(s.Coordinates))
	for i, c := range s.Coordinates {
		coords[i] = fmt.Sprintf("%.3f", c)
	}

	return append(details,
		Detail{"UUID", s.Metadata.UUID},
		Detail{"Vec Length", fmt.Sprint(s.Metadata.VectorLength)},
		Detail{"Coords", "[" + strings.Join(coords, ", ") + "]"},
	)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
