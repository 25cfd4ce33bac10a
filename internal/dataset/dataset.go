// Package dataset defines the embedding points and per-point metadata fetched
// from a backend, along with the shape checks that decide whether a dataset
// can be plotted at all.
package dataset

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
)

// Status messages reported in place of a plot.
const (
	StatusLoading      = "Loading data..."
	StatusNoData       = "No data available."
	StatusMismatch     = "Error: Data and metadata mismatch."
	StatusNotPlottable = "Data is not in a plottable 2D/3D format."
)

// Point is one reduced embedding: 2 or 3 coordinates.
type Point []float64

// OptString is a string that may be absent. JSON null and missing fields
// decode to an invalid value.
type OptString struct {
	Value string
	Valid bool
}

// Some returns a present OptString.
func Some(s string) OptString {
	return OptString{Value: s, Valid: true}
}

// None returns an absent OptString.
func None() OptString {
	return OptString{}
}

// Present reports whether the value exists and is non-empty.
func (o OptString) Present() bool {
	return o.Valid && o.Value != ""
}

// Or returns the value, or fallback when absent.
func (o OptString) Or(fallback string) string {
	if !o.Valid {
		return fallback
	}
	return o.Value
}

// MarshalJSON implements json.Marshaler.
func (o OptString) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Some(s)
	return nil
}

// OptInt is an integer that may be absent.
type OptInt struct {
	Value int64
	Valid bool
}

// SomeInt returns a present OptInt.
func SomeInt(v int64) OptInt {
	return OptInt{Value: v, Valid: true}
}

// String renders the value, or "N/A" when absent.
func (o OptInt) String() string {
	if !o.Valid {
		return "N/A"
	}
	return strconv.FormatInt(o.Value, 10)
}

// MarshalJSON implements json.Marshaler.
func (o OptInt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(o.Value, 10)), nil
}

// UnmarshalJSON implements json.Unmarshaler. Backends occasionally send
// whole numbers as floats, so both forms are accepted.
func (o *OptInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = OptInt{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*o = SomeInt(int64(f))
	return nil
}

// Properties are the descriptive fields stored with each sample.
type Properties struct {
	MalwareFamily OptString `json:"malware_family"`
	Reporter      OptString `json:"reporter"`
	FileName      OptString `json:"file_name"`
	SHA256Hash    OptString `json:"sha256_hash"`
	FileType      OptString `json:"file_type"`
	FileSize      OptInt    `json:"file_size"`
	OpCode        OptString `json:"op_code"`
}

// Metadata is the record attached to a single point.
type Metadata struct {
	Properties   Properties `json:"properties"`
	ClusterLabel OptInt     `json:"cluster_label"`
	UUID         string     `json:"uuid"`
	VectorLength int        `json:"vector_length"`
}

// Clustered reports whether the record carries a real cluster label.
// Labels below zero mean the clustering step left the point unassigned.
func (m Metadata) Clustered() bool {
	return m.ClusterLabel.Valid && m.ClusterLabel.Value >= 0
}

// Dataset is a fetched collection: parallel point and metadata arrays.
type Dataset struct {
	Collection string     `json:"collection_name"`
	Reduced    bool       `json:"pacmap_applied"`
	Message    string     `json:"message,omitempty"`
	Points     []Point    `json:"data"`
	Metadata   []Metadata `json:"metadata"`
}

// Len returns the number of points.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Points)
}

// Dimension derives the plot dimensionality from the first point. It returns
// 0 when the data is not 2D or 3D, or when any point is shorter than the first.
func (d *Dataset) Dimension() int {
	if d == nil || len(d.Points) == 0 || d.Points[0] == nil {
		return 0
	}
	dim := len(d.Points[0])
	if dim < 2 || dim > 3 {
		return 0
	}
	for _, p := range d.Points {
		if len(p) < dim {
			return 0
		}
	}
	return dim
}

// Validate classifies the dataset shape. It returns "" when the dataset can
// be plotted, otherwise the status message to show instead of a plot.
func (d *Dataset) Validate() string {
	if d.Len() == 0 {
		return StatusNoData
	}
	if len(d.Points) != len(d.Metadata) {
		return StatusMismatch
	}
	if d.Dimension() == 0 {
		return StatusNotPlottable
	}
	return ""
}

// Select returns the indices of every record matching pred.
func (d *Dataset) Select(pred func(Metadata) bool) *roaring.Bitmap {
	bm := roaring.New()
	if d == nil {
		return bm
	}
	for i, m := range d.Metadata {
		if i >= len(d.Points) {
			break
		}
		if pred(m) {
			bm.Add(uint32(i))
		}
	}
	return bm
}

// Subset copies the points and metadata at the given indices, in ascending
// index order. The returned slice holds the original index of each entry.
func (d *Dataset) Subset(indices *roaring.Bitmap) ([]Point, []Metadata, []int) {
	n := int(indices.GetCardinality())
	points := make([]Point, 0, n)
	meta := make([]Metadata, 0, n)
	original := make([]int, 0, n)

	it := indices.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		if i >= len(d.Points) || i >= len(d.Metadata) || d.Points[i] == nil {
			continue
		}
		points = append(points, d.Points[i])
		meta = append(meta, d.Metadata[i])
		original = append(original, i)
	}
	return points, meta, original
}
