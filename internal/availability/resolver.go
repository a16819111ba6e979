// Package availability turns declared working hours, date exceptions, and
// buffer policy into concrete bookable UTC intervals.
package availability

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/slotwise/slotwise/internal/interval"
	"github.com/slotwise/slotwise/internal/settings"
)

const dateLayout = "2006-01-02"

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Schedule is one owner's declared availability: weekly rules, date
// exceptions, and the owner's timezone. Exceptions take precedence over
// rules for their date.
type Schedule struct {
	Rules      []settings.WorkingHourRule
	Exceptions []settings.AvailabilityException
	Location   *time.Location
}

// Resolve expands the schedule into an ordered, non-overlapping sequence of
// UTC intervals clipped to [from, to).
//
// The weekly recurrence is expanded over owner-local calendar dates; each
// matching date's window is then materialized as wall-clock time in the
// owner's location, so an interval spanning a DST transition carries its true
// UTC duration. Recurrence arithmetic itself runs on date tokens in UTC and
// is therefore immune to midnight-less local dates.
func (s Schedule) Resolve(from, to time.Time) ([]interval.Interval, error) {
	if !to.After(from) || s.Location == nil {
		return nil, nil
	}

	firstDate := dateToken(from.In(s.Location))
	lastDate := dateToken(to.In(s.Location))

	rulesByDay := make(map[time.Weekday][]settings.WorkingHourRule, len(s.Rules))
	for _, r := range s.Rules {
		rulesByDay[r.Weekday] = append(rulesByDay[r.Weekday], r)
	}

	// A block beats an override on the same date, regardless of row order.
	excByDate := make(map[string]settings.AvailabilityException, len(s.Exceptions))
	for _, e := range s.Exceptions {
		if cur, ok := excByDate[e.Date]; ok && cur.Kind == settings.ExceptionBlock {
			continue
		}
		excByDate[e.Date] = e
	}

	var out []interval.Interval

	if len(rulesByDay) > 0 {
		var byday []rrule.Weekday
		for wd := range rulesByDay {
			byday = append(byday, rruleWeekdays[wd])
		}
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Byweekday: byday,
			Dtstart:   firstDate,
			Until:     lastDate,
		})
		if err != nil {
			return nil, fmt.Errorf("expand weekly rules: %w", err)
		}
		for _, occ := range rule.Between(firstDate, lastDate, true) {
			if _, overridden := excByDate[occ.Format(dateLayout)]; overridden {
				continue
			}
			for _, r := range rulesByDay[occ.Weekday()] {
				out = append(out, s.localWindow(occ, r.StartMinute, r.EndMinute))
			}
		}
	}

	for d := firstDate; !d.After(lastDate); d = d.AddDate(0, 0, 1) {
		e, ok := excByDate[d.Format(dateLayout)]
		if !ok || e.Kind != settings.ExceptionOverride {
			continue
		}
		out = append(out, s.localWindow(d, e.StartMinute, e.EndMinute))
	}

	clipped := make([]interval.Interval, 0, len(out))
	query := interval.Interval{Start: from, End: to}
	for _, iv := range out {
		if hit, ok := interval.Intersect(iv, query); ok {
			clipped = append(clipped, hit)
		}
	}
	return interval.Merge(clipped), nil
}

// localWindow materializes a minute-of-day window on the given date token as
// owner-local wall-clock time. time.Date normalizes instants that fall into
// a DST gap.
func (s Schedule) localWindow(date time.Time, startMin, endMin int) interval.Interval {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, startMin, 0, 0, s.Location)
	end := time.Date(date.Year(), date.Month(), date.Day(), 0, endMin, 0, 0, s.Location)
	return interval.Interval{Start: start.UTC(), End: end.UTC()}
}

// dateToken strips a local timestamp down to its calendar date, re-anchored
// at UTC midnight so recurrence arithmetic stays pure calendar math.
func dateToken(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
