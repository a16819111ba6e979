package availability

import (
	"testing"
	"time"

	"github.com/slotwise/slotwise/internal/interval"
	"github.com/slotwise/slotwise/internal/settings"
)

func utc(h, m int) time.Time {
	return time.Date(2026, 1, 26, h, m, 0, 0, time.UTC)
}

func TestShrinkBuffers(t *testing.T) {
	ivs := []interval.Interval{
		{Start: utc(9, 0), End: utc(12, 0)},
		{Start: utc(13, 0), End: utc(13, 20)},
	}
	got := ShrinkBuffers(ivs, 15*time.Minute, 15*time.Minute)
	if len(got) != 1 {
		t.Fatalf("the 20m interval should vanish under 30m of buffer, got %v", got)
	}
	if !got[0].Start.Equal(utc(9, 15)) || !got[0].End.Equal(utc(11, 45)) {
		t.Fatalf("shrunk interval = %v", got[0])
	}
}

func TestShrinkBuffers_ZeroIsNoop(t *testing.T) {
	ivs := []interval.Interval{{Start: utc(9, 0), End: utc(10, 0)}}
	got := ShrinkBuffers(ivs, 0, 0)
	if len(got) != 1 || got[0] != ivs[0] {
		t.Fatalf("zero buffers must not modify intervals, got %v", got)
	}
}

func TestClampNotice(t *testing.T) {
	ivs := []interval.Interval{
		{Start: utc(9, 0), End: utc(12, 0)},
		{Start: utc(13, 0), End: utc(14, 0)},
	}
	now := utc(8, 0)

	got := ClampNotice(ivs, now, 2*time.Hour)
	if len(got) != 2 {
		t.Fatalf("expected 2 intervals, got %v", got)
	}
	if !got[0].Start.Equal(utc(10, 0)) {
		t.Fatalf("first interval should be clamped to 10:00, got %v", got[0].Start)
	}
	if !got[1].Start.Equal(utc(13, 0)) {
		t.Fatalf("second interval should be untouched, got %v", got[1].Start)
	}
}

func TestClampNotice_ZeroStillExcludesPast(t *testing.T) {
	ivs := []interval.Interval{{Start: utc(9, 0), End: utc(12, 0)}}
	now := utc(10, 30)

	got := ClampNotice(ivs, now, 0)
	if len(got) != 1 || !got[0].Start.Equal(now) {
		t.Fatalf("past portion should be clipped at now, got %v", got)
	}
}

func TestClampNotice_DropsFullyPast(t *testing.T) {
	ivs := []interval.Interval{{Start: utc(9, 0), End: utc(10, 0)}}
	got := ClampNotice(ivs, utc(10, 0), 0)
	if len(got) != 0 {
		t.Fatalf("interval ending at now should be dropped, got %v", got)
	}
}

func TestClampAdvance(t *testing.T) {
	ivs := []interval.Interval{
		{Start: utc(9, 0), End: utc(12, 0)},
		{Start: utc(13, 0), End: utc(14, 0)},
	}
	now := utc(8, 0)

	got := ClampAdvance(ivs, now, 3*time.Hour)
	if len(got) != 1 {
		t.Fatalf("second interval lies past the horizon, got %v", got)
	}
	if !got[0].End.Equal(utc(11, 0)) {
		t.Fatalf("first interval should be clipped at 11:00, got %v", got[0].End)
	}
}

func TestClampAdvance_ZeroMeansUnlimited(t *testing.T) {
	ivs := []interval.Interval{{Start: utc(9, 0), End: utc(12, 0)}}
	got := ClampAdvance(ivs, utc(8, 0), 0)
	if len(got) != 1 || got[0] != ivs[0] {
		t.Fatalf("zero max advance must not clip, got %v", got)
	}
}

func TestDropShort(t *testing.T) {
	ivs := []interval.Interval{
		{Start: utc(9, 0), End: utc(9, 20)},
		{Start: utc(10, 0), End: utc(10, 30)},
	}
	got := DropShort(ivs, 30*time.Minute)
	if len(got) != 1 || got[0] != ivs[1] {
		t.Fatalf("only the 30m interval should survive, got %v", got)
	}
}

func TestApply_Composition(t *testing.T) {
	ivs := []interval.Interval{{Start: utc(9, 0), End: utc(17, 0)}}
	policy := settings.BufferPolicy{
		PreBuffer:  10 * time.Minute,
		PostBuffer: 10 * time.Minute,
		MinNotice:  2 * time.Hour,
		MaxAdvance: 6 * time.Hour,
	}
	now := utc(8, 0)

	got := Apply(ivs, policy, now, 30*time.Minute)
	if len(got) != 1 {
		t.Fatalf("expected 1 interval, got %v", got)
	}
	// Pre-buffer moves start to 09:10, notice to 10:00; advance caps at 14:00.
	if !got[0].Start.Equal(utc(10, 0)) || !got[0].End.Equal(utc(14, 0)) {
		t.Fatalf("pipeline result = %v, want [10:00, 14:00)", got[0])
	}
}
