package dataset

import (
	"encoding/json"
	"testing"
)

func TestValidate_Statuses(t *testing.T) {
	tests := []struct {
		name string
		ds   *Dataset
		want string
	}{
		{"nil dataset", nil, StatusNoData},
		{"empty", &Dataset{}, StatusNoData},
		{"mismatch", &Dataset{
			Points:   []Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}},
			Metadata: make([]Metadata, 5),
		}, StatusMismatch},
		{"one dimension", &Dataset{
			Points:   []Point{{1}},
			Metadata: make([]Metadata, 1),
		}, StatusNotPlottable},
		{"four dimensions", &Dataset{
			Points:   []Point{{1, 2, 3, 4}},
			Metadata: make([]Metadata, 1),
		}, StatusNotPlottable},
		{"short second point", &Dataset{
			Points:   []Point{{1, 2, 3}, {1, 2}},
			Metadata: make([]Metadata, 2),
		}, StatusNotPlottable},
		{"valid 2d", &Dataset{
			Points:   []Point{{1, 2}, {3, 4}},
			Metadata: make([]Metadata, 2),
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ds.Validate(); got != tt.want {
				t.Errorf("Validate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDimension(t *testing.T) {
	ds := &Dataset{Points: []Point{{1, 2, 3}, {4, 5, 6}}}
	if got := ds.Dimension(); got != 3 {
		t.Errorf("expected dimension 3, got %d", got)
	}
	ds = &Dataset{Points: []Point{{1, 2}}}
	if got := ds.Dimension(); got != 2 {
		t.Errorf("expected dimension 2, got %d", got)
	}
}

func TestMetadata_UnmarshalNulls(t *testing.T) {
	raw := `{
		"properties": {"malware_family": null, "reporter": "abuse_ch", "file_size": 1024.0},
		"cluster_label": null,
		"uuid": "abc",
		"vector_length": 768
	}`

	var m Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if m.Properties.MalwareFamily.Valid {
		t.Error("expected malware_family to be absent")
	}
	if got := m.Properties.Reporter.Or("N/A"); got != "abuse_ch" {
		t.Errorf("expected reporter abuse_ch, got %s", got)
	}
	if !m.Properties.FileSize.Valid || m.Properties.FileSize.Value != 1024 {
		t.Errorf("expected file_size 1024, got %+v", m.Properties.FileSize)
	}
	if m.Clustered() {
		t.Error("expected null cluster label to be unclustered")
	}
	if m.Properties.FileName.Valid {
		t.Error("expected missing file_name to be absent")
	}
}

func TestMetadata_NegativeClusterIsUnclustered(t *testing.T) {
	m := Metadata{ClusterLabel: SomeInt(-1)}
	if m.Clustered() {
		t.Error("expected label -1 to be unclustered")
	}
	m.ClusterLabel = SomeInt(0)
	if !m.Clustered() {
		t.Error("expected label 0 to be clustered")
	}
}

func TestOptString_MarshalRoundTrip(t *testing.T) {
	data, err := json.Marshal(struct {
		A OptString `json:"a"`
		B OptString `json:"b"`
	}{A: Some("x"), B: None()})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"a":"x","b":null}` {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestSelectAndSubset(t *testing.T) {
	ds := &Dataset{
		Points: []Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}},
		Metadata: []Metadata{
			{Properties: Properties{MalwareFamily: Some("Emotet")}},
			{Properties: Properties{MalwareFamily: Some("TrickBot")}},
			{Properties: Properties{MalwareFamily: Some("emotet")}},
			{},
		},
	}

	bm := ds.Select(func(m Metadata) bool {
		return m.Properties.MalwareFamily.Or("") != "" && m.Properties.MalwareFamily.Value[0]|0x20 == 'e'
	})
	if bm.GetCardinality() != 2 {
		t.Fatalf("expected 2 matches, got %d", bm.GetCardinality())
	}

	points, meta, original := ds.Subset(bm)
	if len(points) != 2 || len(meta) != 2 {
		t.Fatalf("expected 2 entries, got %d points and %d metadata", len(points), len(meta))
	}
	if original[0] != 0 || original[1] != 2 {
		t.Errorf("expected original indices [0 2], got %v", original)
	}
	if points[1][0] != 2 {
		t.Errorf("expected second point to be dataset point 2, got %v", points[1])
	}
}
