// Package settings holds the read-only calendar configuration the
// availability engine consumes. The entities are owned and mutated by the
// calendar-settings service; this core only reads them.
package settings

import "time"

// Profile is the owner-level calendar configuration.
type Profile struct {
	OwnerID         string
	Timezone        string // IANA identifier, e.g. "America/New_York"
	CalendarName    string
	DefaultDuration time.Duration
}

// WorkingHourRule is one recurring weekly availability window. Start and end
// are minutes after local midnight; start < end, and rules for the same
// owner+weekday never overlap (enforced at write time by the settings
// service).
type WorkingHourRule struct {
	OwnerID     string
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

// ExceptionKind discriminates date-specific overrides.
type ExceptionKind string

const (
	// ExceptionBlock removes the whole date from availability.
	ExceptionBlock ExceptionKind = "block"
	// ExceptionOverride replaces the weekly rules with an explicit window.
	ExceptionOverride ExceptionKind = "override"
)

// AvailabilityException overrides the weekly rules for a single owner-local
// calendar date. For overrides, StartMinute/EndMinute describe the
// replacement window.
type AvailabilityException struct {
	OwnerID     string
	Date        string // owner-local calendar date, "2006-01-02"
	Kind        ExceptionKind
	StartMinute int
	EndMinute   int
}

// BufferPolicy is the owner-wide padding and lead-time policy.
type BufferPolicy struct {
	OwnerID    string
	PreBuffer  time.Duration
	PostBuffer time.Duration
	MinNotice  time.Duration
	MaxAdvance time.Duration
}

// BufferOverride replaces the owner-level pre/post buffers for one event
// type.
type BufferOverride struct {
	Pre  time.Duration
	Post time.Duration
}

// EventType is a bookable meeting template. Buffer/notice overrides are
// nil when the owner-level BufferPolicy applies unchanged.
type EventType struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Duration    time.Duration
	SlotStep    time.Duration
	MinNotice   *time.Duration
	MaxAdvance  *time.Duration
	Buffer      *BufferOverride
	Active      bool
}

// EffectivePolicy folds the event type's overrides into the owner policy.
func (et EventType) EffectivePolicy(base BufferPolicy) BufferPolicy {
	out := base
	if et.Buffer != nil {
		out.PreBuffer = et.Buffer.Pre
		out.PostBuffer = et.Buffer.Post
	}
	if et.MinNotice != nil {
		out.MinNotice = *et.MinNotice
	}
	if et.MaxAdvance != nil {
		out.MaxAdvance = *et.MaxAdvance
	}
	return out
}
