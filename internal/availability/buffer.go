package availability

import (
	"time"

	"github.com/slotwise/slotwise/internal/interval"
	"github.com/slotwise/slotwise/internal/settings"
)

// The buffer pipeline is split into stages so the booking validator can tell
// apart why a proposal fell out of availability (buffer vs notice vs advance
// window). The read path composes all of them through Apply.

// ShrinkBuffers trims pre/post buffer padding off each end of every
// interval. Intervals consumed entirely by their buffers disappear.
func ShrinkBuffers(ivs []interval.Interval, pre, post time.Duration) []interval.Interval {
	if pre <= 0 && post <= 0 {
		return ivs
	}
	out := make([]interval.Interval, 0, len(ivs))
	for _, iv := range ivs {
		shrunk := interval.Interval{Start: iv.Start.Add(pre), End: iv.End.Add(-post)}
		if !shrunk.Empty() {
			out = append(out, shrunk)
		}
	}
	return out
}

// ClampNotice intersects with [now+minNotice, +inf). A zero notice still
// clamps at now: slots in the past are never bookable.
func ClampNotice(ivs []interval.Interval, now time.Time, minNotice time.Duration) []interval.Interval {
	earliest := now.Add(minNotice)
	out := make([]interval.Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.End.After(earliest) {
			continue
		}
		if iv.Start.Before(earliest) {
			iv.Start = earliest
		}
		out = append(out, iv)
	}
	return out
}

// ClampAdvance intersects with (-inf, now+maxAdvance]. maxAdvance <= 0 means
// no advance limit.
func ClampAdvance(ivs []interval.Interval, now time.Time, maxAdvance time.Duration) []interval.Interval {
	if maxAdvance <= 0 {
		return ivs
	}
	latest := now.Add(maxAdvance)
	out := make([]interval.Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.Start.Before(latest) {
			continue
		}
		if iv.End.After(latest) {
			iv.End = latest
		}
		out = append(out, iv)
	}
	return out
}

// DropShort removes intervals that can no longer fit a booking of the given
// duration, so the generator never emits degenerate slots.
func DropShort(ivs []interval.Interval, duration time.Duration) []interval.Interval {
	out := make([]interval.Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.Duration() >= duration {
			out = append(out, iv)
		}
	}
	return out
}

// Apply runs the full buffer pipeline for one event type.
func Apply(ivs []interval.Interval, policy settings.BufferPolicy, now time.Time, duration time.Duration) []interval.Interval {
	out := ShrinkBuffers(ivs, policy.PreBuffer, policy.PostBuffer)
	out = ClampNotice(out, now, policy.MinNotice)
	out = ClampAdvance(out, now, policy.MaxAdvance)
	return DropShort(out, duration)
}
