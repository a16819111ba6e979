package interval

import (
	"testing"
	"time"
)

var day = time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func span(h1, m1, h2, m2 int) Interval {
	return Interval{Start: at(h1, m1), End: at(h2, m2)}
}

func TestContains_HalfOpen(t *testing.T) {
	iv := span(9, 0, 17, 0)
	if !iv.Contains(at(9, 0)) {
		t.Fatal("start bound should be inclusive")
	}
	if iv.Contains(at(17, 0)) {
		t.Fatal("end bound should be exclusive")
	}
	if !iv.Contains(at(16, 59)) {
		t.Fatal("instant just before end should be contained")
	}
}

func TestOverlaps_TouchingBoundaries(t *testing.T) {
	a := span(9, 0, 10, 0)
	b := span(10, 0, 11, 0)
	if a.Overlaps(b) || b.Overlaps(a) {
		t.Fatal("[9,10) and [10,11) must not overlap")
	}
	c := span(9, 30, 10, 30)
	if !a.Overlaps(c) {
		t.Fatal("[9,10) and [9:30,10:30) must overlap")
	}
}

func TestOverlaps_EmptyNeverOverlaps(t *testing.T) {
	empty := Interval{Start: at(10, 0), End: at(10, 0)}
	if empty.Overlaps(span(9, 0, 11, 0)) {
		t.Fatal("empty interval must not overlap anything")
	}
	if span(9, 0, 11, 0).Overlaps(empty) {
		t.Fatal("nothing overlaps an empty interval")
	}
}

func TestIntersect(t *testing.T) {
	got, ok := Intersect(span(9, 0, 12, 0), span(11, 0, 14, 0))
	if !ok {
		t.Fatal("expected non-empty intersection")
	}
	if want := span(11, 0, 12, 0); got != want {
		t.Fatalf("intersection = %v, want %v", got, want)
	}

	if _, ok := Intersect(span(9, 0, 10, 0), span(10, 0, 11, 0)); ok {
		t.Fatal("touching intervals must intersect to empty")
	}
}

func TestSubtract(t *testing.T) {
	base := span(9, 0, 17, 0)

	tests := []struct {
		name  string
		block Interval
		want  []Interval
	}{
		{"disjoint", span(18, 0, 19, 0), []Interval{base}},
		{"middle", span(12, 0, 13, 0), []Interval{span(9, 0, 12, 0), span(13, 0, 17, 0)}},
		{"leading edge", span(8, 0, 10, 0), []Interval{span(10, 0, 17, 0)}},
		{"trailing edge", span(16, 0, 18, 0), []Interval{span(9, 0, 16, 0)}},
		{"full cover", span(8, 0, 18, 0), nil},
		{"exact cover", base, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Subtract(base, tc.block)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d pieces, want %d: %v", len(got), len(tc.want), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("piece %d = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSubtractAll_SortedAndDisjoint(t *testing.T) {
	base := []Interval{span(13, 0, 17, 0), span(9, 0, 12, 0)}
	blocks := []Interval{span(10, 0, 10, 30), span(16, 30, 18, 0), span(9, 45, 10, 15)}

	got := SubtractAll(base, blocks)
	want := []Interval{
		span(9, 0, 9, 45),
		span(10, 30, 12, 0),
		span(13, 0, 16, 30),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d intervals, want %d: %v", len(got), len(want), got)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("interval %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMerge_CoalescesAdjacent(t *testing.T) {
	got := Merge([]Interval{
		span(10, 0, 11, 0),
		span(9, 0, 10, 0),
		span(12, 0, 13, 0),
		{Start: at(14, 0), End: at(14, 0)},
	})
	want := []Interval{span(9, 0, 11, 0), span(12, 0, 13, 0)}
	if len(got) != len(want) {
		t.Fatalf("got %d intervals, want %d: %v", len(got), len(want), got)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("interval %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCoveredBy_AcrossAdjacentIntervals(t *testing.T) {
	ivs := []Interval{span(9, 0, 12, 0), span(12, 0, 17, 0)}
	if !CoveredBy(span(11, 30, 12, 30), ivs) {
		t.Fatal("span crossing two adjacent intervals should be covered")
	}
	if CoveredBy(span(16, 30, 17, 30), ivs) {
		t.Fatal("span extending past the union must not be covered")
	}
}
