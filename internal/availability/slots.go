package availability

import (
	"iter"
	"time"

	"github.com/slotwise/slotwise/internal/interval"
)

// Slots yields candidate booking start instants for the given buffered
// intervals: within each interval, starts are multiples of step counted from
// the Unix epoch (stable boundaries across overlapping queries), advancing
// by step while the full duration still fits. The sequence is finite and
// restartable; it is advisory only, booking revalidates authoritatively.
func Slots(ivs []interval.Interval, duration, step time.Duration) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if duration <= 0 || step <= 0 {
			return
		}
		for _, iv := range ivs {
			for t := quantizeUp(iv.Start, step); !t.Add(duration).After(iv.End); t = t.Add(step) {
				if !yield(t) {
					return
				}
			}
		}
	}
}

// quantizeUp rounds t up to the next multiple of step since the Unix epoch.
func quantizeUp(t time.Time, step time.Duration) time.Time {
	ns := t.UnixNano()
	s := step.Nanoseconds()
	rem := ns % s
	if rem < 0 {
		rem += s
	}
	if rem != 0 {
		ns += s - rem
	}
	return time.Unix(0, ns).UTC()
}
