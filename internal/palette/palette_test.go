package palette

import (
	"fmt"
	"testing"
)

func TestDistinctColor_CuratedThenGenerated(t *testing.T) {
	if got := DistinctColor(0); got != "#e6194b" {
		t.Errorf("DistinctColor(0) = %s, want #e6194b", got)
	}
	if got := DistinctColor(29); got != "#3a6b6b" {
		t.Errorf("DistinctColor(29) = %s, want #3a6b6b", got)
	}
	// First generated color: hue 0, saturation 65%, lightness 35%.
	if got := DistinctColor(30); got != "#931f1f" {
		t.Errorf("DistinctColor(30) = %s, want #931f1f", got)
	}
	// Second generated color: hue 137.508, saturation 80%, lightness 35%.
	if got := DistinctColor(31); got != "#12a13c" {
		t.Errorf("DistinctColor(31) = %s, want #12a13c", got)
	}
	if got := DistinctColor(-1); got != Neutral {
		t.Errorf("DistinctColor(-1) = %s, want neutral", got)
	}
}

func TestHSLToHex_Primaries(t *testing.T) {
	tests := []struct {
		h, s, l float64
		want    string
	}{
		{0, 100, 50, "#ff0000"},
		{120, 100, 50, "#00ff00"},
		{240, 100, 50, "#0000ff"},
		{0, 0, 100, "#ffffff"},
		{0, 0, 0, "#000000"},
	}
	for _, tt := range tests {
		if got := HSLToHex(tt.h, tt.s, tt.l); got != tt.want {
			t.Errorf("HSLToHex(%v, %v, %v) = %s, want %s", tt.h, tt.s, tt.l, got, tt.want)
		}
	}
}

func TestHashColor_KnownValues(t *testing.T) {
	// "a" hashes to 97 -> 97 % 90 = 7.
	if got := HashColor("a"); got != DistinctColor(7) {
		t.Errorf("HashColor(a) = %s, want %s", got, DistinctColor(7))
	}
	// "ab" hashes to 97*31+98 = 3105 -> 105 -> 15.
	if got := HashColor("ab"); got != DistinctColor(15) {
		t.Errorf("HashColor(ab) = %s, want %s", got, DistinctColor(15))
	}
	if got := HashColor(""); got != Neutral {
		t.Errorf("HashColor(\"\") = %s, want neutral", got)
	}
}

func TestHashColor_Deterministic(t *testing.T) {
	names := []string{"Emotet", "TrickBot", "Qakbot", "AgentTesla", "Formbook-ünicode"}
	for _, name := range names {
		first := HashColor(name)
		for i := 0; i < 5; i++ {
			if got := HashColor(name); got != first {
				t.Fatalf("HashColor(%q) changed between calls: %s then %s", name, first, got)
			}
		}
	}
}

func TestHashColor_LongStringWraps(t *testing.T) {
	// Long inputs overflow 32 bits; the result must still be a palette color.
	s := ""
	for i := 0; i < 200; i++ {
		s += "zzzz"
	}
	got := HashColor(s)
	if len(got) != 7 || got[0] != '#' {
		t.Errorf("unexpected color %q", got)
	}
}

func TestAssignor_SequentialAndCached(t *testing.T) {
	a := NewAssignor()

	if got := a.Color("Emotet"); got != DistinctColor(0) {
		t.Errorf("first key got %s, want %s", got, DistinctColor(0))
	}
	if got := a.Color("TrickBot"); got != DistinctColor(1) {
		t.Errorf("second key got %s, want %s", got, DistinctColor(1))
	}
	if got := a.Color("emotet"); got != DistinctColor(0) {
		t.Errorf("case variant got %s, want cached %s", got, DistinctColor(0))
	}
	if got := a.Color("Unknown"); got != Neutral {
		t.Errorf("unknown got %s, want neutral", got)
	}
	if got := a.Color("unclustered"); got != Neutral {
		t.Errorf("unclustered got %s, want neutral", got)
	}
	if a.Len() != 2 {
		t.Errorf("expected 2 assignments, got %d", a.Len())
	}

	a.Reset()
	if got := a.Color("TrickBot"); got != DistinctColor(0) {
		t.Errorf("after reset got %s, want %s", got, DistinctColor(0))
	}
}

func TestAssignor_NeverReusesColor(t *testing.T) {
	a := NewAssignor()
	seen := make(map[string]string)
	for i := 0; i < 3000; i++ {
		key := fmt.Sprintf("family-%d", i)
		c := a.Color(key)
		if c == Neutral {
			t.Fatalf("key %s got the neutral color", key)
		}
		if other, ok := seen[c]; ok {
			t.Fatalf("color %s assigned to both %s and %s", c, other, key)
		}
		seen[c] = key
	}
}

func TestAssignor_ResetForgetsUsedColors(t *testing.T) {
	a := NewAssignor()
	for i := 0; i < 1000; i++ {
		a.Color(fmt.Sprintf("family-%d", i))
	}
	a.Reset()
	if got := a.Color("first"); got != DistinctColor(0) {
		t.Errorf("after reset got %s, want %s", got, DistinctColor(0))
	}
}

func TestAssignor_DeterministicForSameOrder(t *testing.T) {
	keys := []string{"c", "a", "b", "a", "d"}
	first, second := NewAssignor(), NewAssignor()
	for _, k := range keys {
		if x, y := first.Color(k), second.Color(k); x != y {
			t.Fatalf("key %s: %s vs %s", k, x, y)
		}
	}
}
