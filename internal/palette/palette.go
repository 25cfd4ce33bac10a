// Package palette assigns visually distinct colors to plot categories.
//
// Two policies coexist. An Assignor hands out colors sequentially in the order
// categories are requested, so the categories colored first get the most
// distinct entries of the curated palette. HashColor derives a color from the
// category name alone, so the same name gets the same color in unrelated
// datasets at the cost of occasional near-collisions.
package palette

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf16"
)

// Neutral is the fixed color of the "Unknown" and "Unclustered" buckets.
const Neutral = "#b0b0b0"

// GoldenAngle is the hue step, in degrees, between generated colors.
const GoldenAngle = 137.508

// Reserved normalized keys that never take a palette color.
const (
	UnknownKey     = "unknown"
	UnclusteredKey = "unclustered"
)

var distinct = [...]string{
	"#e6194b", // red
	"#3cb44b", // green
	"#4363d8", // blue
	"#f58231", // orange
	"#911eb4", // purple
	"#46f0f0", // cyan
	"#f032e6", // magenta
	"#bcf60c", // lime
	"#fabebe", // pink
	"#008080", // teal
	"#e6beff", // lavender
	"#9a6324", // brown
	"#fffac8", // beige
	"#800000", // maroon
	"#aaffc3", // mint
	"#808000", // olive
	"#ffd8b1", // apricot
	"#000075", // navy
	"#808080", // grey
	"#000000", // black
	"#ffe119", // yellow
	"#42d4f4", // sky blue
	"#bfef45", // yellow-green
	"#fabed4", // light pink
	"#469990", // dark cyan
	"#dcbeff", // light purple
	"#9a4b2a", // rust
	"#2f6b3a", // forest
	"#6b3a6b", // plum
	"#3a6b6b", // dark teal
}

// Size returns the number of curated colors.
func Size() int {
	return len(distinct)
}

// IsReserved reports whether a normalized key is one of the neutral buckets.
func IsReserved(key string) bool {
	return key == UnknownKey || key == UnclusteredKey
}

// DistinctColor returns the color at position index: curated entries first,
// then golden-angle generated ones. Negative indices get Neutral.
func DistinctColor(index int) string {
	if index < 0 {
		return Neutral
	}
	if index < len(distinct) {
		return distinct[index]
	}
	return goldenAngleColor(index - len(distinct))
}

// goldenAngleColor steps hue by the golden angle and cycles saturation and
// lightness through three bands each.
func goldenAngleColor(index int) string {
	hue := math.Mod(float64(index)*GoldenAngle, 360)

	saturation := 65 + float64(index%3)*15
	lightness := 35 + float64((index/3)%3)*15

	return HSLToHex(hue, saturation, lightness)
}

// HSLToHex converts hue in degrees and saturation/lightness in percent to a
// "#rrggbb" string.
func HSLToHex(h, s, l float64) string {
	s /= 100
	l /= 100

	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return fmt.Sprintf("#%02x%02x%02x", channel(r+m), channel(g+m), channel(b+m))
}

func channel(v float64) int {
	n := int(math.Floor(v*255 + 0.5))
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return n
}

// HashColor maps a category name to a color independent of render order.
// The hash runs over UTF-16 code units with 32-bit wraparound so names hash
// identically to the dashboard that first stored these colors.
func HashColor(s string) string {
	if s == "" {
		return Neutral
	}

	var hash int32
	for _, unit := range utf16.Encode([]rune(s)) {
		hash = (hash << 5) - hash + int32(unit)
	}

	abs := int64(hash)
	if abs < 0 {
		abs = -abs
	}
	index := int(abs % 1000)

	return DistinctColor(index % (len(distinct) * 3))
}

// Assignor hands out palette colors sequentially. It is meant to live for a
// single render pass; construct a fresh one per pass.
type Assignor struct {
	assigned map[string]string
	used     map[string]struct{}
	next     int
}

// NewAssignor returns an empty Assignor.
func NewAssignor() *Assignor {
	return &Assignor{
		assigned: make(map[string]string),
		used:     make(map[string]struct{}),
	}
}

// Color returns the color for key, assigning the next palette entry on first
// use. Keys are compared case-insensitively; reserved keys get Neutral.
func (a *Assignor) Color(key string) string {
	normalized := strings.ToLower(key)
	if IsReserved(normalized) {
		return Neutral
	}

	if c, ok := a.assigned[normalized]; ok {
		return c
	}

	// Generated colors can round to the same hex value; skip those.
	var c string
	for {
		c = DistinctColor(a.next)
		a.next++
		if _, dup := a.used[c]; !dup && c != Neutral {
			break
		}
	}
	a.assigned[normalized] = c
	a.used[c] = struct{}{}
	return c
}

// Len returns how many keys have been assigned a color.
func (a *Assignor) Len() int {
	return len(a.assigned)
}

// Reset forgets every assignment.
func (a *Assignor) Reset() {
	a.assigned = make(map[string]string)
	a.used = make(map[string]struct{})
	a.next = 0
}
