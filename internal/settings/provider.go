package settings

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown owners and event types.
var ErrNotFound = errors.New("settings: not found")

// Provider is the narrow read contract the availability engine needs from
// the calendar-settings service. Implementations must be safe for concurrent
// use.
type Provider interface {
	Profile(ctx context.Context, ownerID string) (Profile, error)
	WorkingHours(ctx context.Context, ownerID string) ([]WorkingHourRule, error)
	// Exceptions returns date-specific overrides whose owner-local date falls
	// inside [from, to) expressed in UTC.
	Exceptions(ctx context.Context, ownerID string, from, to time.Time) ([]AvailabilityException, error)
	BufferPolicy(ctx context.Context, ownerID string) (BufferPolicy, error)
	EventType(ctx context.Context, ownerID, eventTypeID string) (EventType, error)
}
