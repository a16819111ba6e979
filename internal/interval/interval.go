// Package interval implements half-open [Start, End) time intervals over
// absolute instants. Conversion to and from wall-clock time happens at the
// availability-resolution boundary, never here.
package interval

import (
	"sort"
	"time"
)

// Interval is a half-open [Start, End) span. A zero-length or inverted
// interval is empty; every operation drops empty results.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Empty() bool {
	return !iv.End.After(iv.Start)
}

func (iv Interval) Duration() time.Duration {
	if iv.Empty() {
		return 0
	}
	return iv.End.Sub(iv.Start)
}

// Contains reports whether t lies inside the interval. The end bound is
// exclusive, so Contains(iv.End) is false.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Covers reports whether o is fully contained in iv. Sharing boundaries is
// fine: [9,17) covers [9,10) and [16,17).
func (iv Interval) Covers(o Interval) bool {
	if iv.Empty() || o.Empty() {
		return false
	}
	return !o.Start.Before(iv.Start) && !o.End.After(iv.End)
}

// Overlaps reports whether the two intervals share any instant. Touching
// boundaries do not overlap: [a,b) and [b,c) are disjoint.
func (iv Interval) Overlaps(o Interval) bool {
	if iv.Empty() || o.Empty() {
		return false
	}
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// Intersect returns the common span of a and b. ok is false when the
// intersection is empty.
func Intersect(a, b Interval) (Interval, bool) {
	if !a.Overlaps(b) {
		return Interval{}, false
	}
	out := a
	if b.Start.After(out.Start) {
		out.Start = b.Start
	}
	if b.End.Before(out.End) {
		out.End = b.End
	}
	return out, true
}

// Subtract removes b from a, yielding zero, one, or two pieces.
func Subtract(a, b Interval) []Interval {
	if a.Empty() {
		return nil
	}
	if !a.Overlaps(b) {
		return []Interval{a}
	}

	var out []Interval
	if b.Start.After(a.Start) {
		out = append(out, Interval{Start: a.Start, End: b.Start})
	}
	if b.End.Before(a.End) {
		out = append(out, Interval{Start: b.End, End: a.End})
	}
	return out
}

// SubtractAll removes every block from every base interval. Inputs need not
// be sorted; the result is sorted and non-overlapping.
func SubtractAll(base []Interval, blocks []Interval) []Interval {
	blocks = Merge(blocks)
	var out []Interval
	for _, b := range Merge(base) {
		pieces := []Interval{b}
		for _, blk := range blocks {
			var next []Interval
			for _, p := range pieces {
				next = append(next, Subtract(p, blk)...)
			}
			pieces = next
		}
		out = append(out, pieces...)
	}
	return out
}

// Merge sorts the intervals and coalesces overlapping or adjacent spans.
// Empty intervals are dropped.
func Merge(ivs []Interval) []Interval {
	cleaned := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.Empty() {
			cleaned = append(cleaned, iv)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}

	sort.Slice(cleaned, func(i, j int) bool {
		if cleaned[i].Start.Equal(cleaned[j].Start) {
			return cleaned[i].End.Before(cleaned[j].End)
		}
		return cleaned[i].Start.Before(cleaned[j].Start)
	})

	merged := cleaned[:1]
	for _, cur := range cleaned[1:] {
		last := &merged[len(merged)-1]
		if cur.Start.After(last.End) {
			merged = append(merged, cur)
			continue
		}
		if cur.End.After(last.End) {
			last.End = cur.End
		}
	}
	return merged
}

// CoveredBy reports whether the candidate span is fully contained within the
// union of ivs. The union is evaluated after merging, so a span crossing two
// adjacent intervals still counts as covered.
func CoveredBy(candidate Interval, ivs []Interval) bool {
	for _, iv := range Merge(ivs) {
		if iv.Covers(candidate) {
			return true
		}
	}
	return false
}
