package booking

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/slotwise/internal/availability"
	"github.com/slotwise/slotwise/internal/interval"
	"github.com/slotwise/slotwise/internal/settings"
)

// Store is the persistence contract the validator relies on. Create must be
// atomic across processes: when two overlapping proposals race for the same
// owner, at most one insert may succeed and the loser gets ErrOverlap
// (enforced by a storage-level overlap constraint, not in-process locking).
type Store interface {
	ListConfirmed(ctx context.Context, ownerID string, span interval.Interval) ([]Booking, error)
	Create(ctx context.Context, b Booking) (Booking, error)
	Get(ctx context.Context, ownerID, bookingID string) (Booking, error)
	// Cancel flips status to cancelled. Cancelling an already-cancelled
	// booking is a no-op success.
	Cancel(ctx context.Context, ownerID, bookingID, reason string) (Booking, error)
}

// SlotCache serves the lock-free read path. Slightly stale entries are
// acceptable because CreateBooking revalidates against live state.
type SlotCache interface {
	Get(ctx context.Context, ownerID, key string) ([]time.Time, bool)
	Set(ctx context.Context, ownerID, key string, starts []time.Time)
	InvalidateOwner(ctx context.Context, ownerID string)
}

// maxQueryRange caps a single slot-listing window.
const maxQueryRange = 62 * 24 * time.Hour

// Service computes bookable slots and validates booking attempts against
// fresh availability. It is the only writer of bookings.
type Service struct {
	settings settings.Provider
	store    Store
	cache    SlotCache // nil disables caching
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(provider settings.Provider, store Store, cache SlotCache, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		settings: provider,
		store:    store,
		cache:    cache,
		logger:   logger,
		now:      now,
	}
}

// ownerContext is everything CreateBooking and ListSlots need to resolve one
// owner's availability, fetched fresh per call.
type ownerContext struct {
	eventType settings.EventType
	policy    settings.BufferPolicy
	schedule  availability.Schedule
}

func (s *Service) loadOwner(ctx context.Context, ownerID, eventTypeID string, from, to time.Time) (ownerContext, error) {
	et, err := s.settings.EventType(ctx, ownerID, eventTypeID)
	if err != nil {
		return ownerContext{}, err
	}
	if !et.Active {
		return ownerContext{}, settings.ErrNotFound
	}

	profile, err := s.settings.Profile(ctx, ownerID)
	if err != nil {
		return ownerContext{}, err
	}
	loc, err := time.LoadLocation(profile.Timezone)
	if err != nil {
		return ownerContext{}, fmt.Errorf("owner %s timezone %q: %w", ownerID, profile.Timezone, err)
	}

	rules, err := s.settings.WorkingHours(ctx, ownerID)
	if err != nil {
		return ownerContext{}, err
	}
	exceptions, err := s.settings.Exceptions(ctx, ownerID, from, to)
	if err != nil {
		return ownerContext{}, err
	}
	policy, err := s.settings.BufferPolicy(ctx, ownerID)
	if err != nil {
		return ownerContext{}, err
	}

	return ownerContext{
		eventType: et,
		policy:    et.EffectivePolicy(policy),
		schedule: availability.Schedule{
			Rules:      rules,
			Exceptions: exceptions,
			Location:   loc,
		},
	}, nil
}

// ListSlots returns candidate start instants for [from, to). The result is
// advisory: availability may change before a booking attempt, which is why
// CreateBooking recomputes everything.
func (s *Service) ListSlots(ctx context.Context, ownerID, eventTypeID string, from, to time.Time) ([]time.Time, error) {
	from, to = from.UTC(), to.UTC()
	if !to.After(from) || to.Sub(from) > maxQueryRange {
		return nil, ErrInvalidRange
	}

	cacheKey := fmt.Sprintf("%s:%d:%d", eventTypeID, from.Unix(), to.Unix())
	if s.cache != nil {
		if starts, ok := s.cache.Get(ctx, ownerID, cacheKey); ok {
			return starts, nil
		}
	}

	oc, err := s.loadOwner(ctx, ownerID, eventTypeID, from, to)
	if err != nil {
		return nil, err
	}

	resolved, err := oc.schedule.Resolve(from, to)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	open := availability.Apply(resolved, oc.policy, now, oc.eventType.Duration)

	busy, err := s.busyIntervals(ctx, ownerID, interval.Interval{Start: from, End: to})
	if err != nil {
		return nil, err
	}
	free := availability.DropShort(interval.SubtractAll(open, busy), oc.eventType.Duration)

	starts := slices.Collect(availability.Slots(free, oc.eventType.Duration, oc.eventType.SlotStep))

	if s.cache != nil {
		s.cache.Set(ctx, ownerID, cacheKey, starts)
	}
	return starts, nil
}

// CreateBooking validates a proposal against fresh availability and persists
// it. Expected business failures come back as a *Rejection; the error return
// is reserved for infrastructure faults. A zero end means "start plus the
// event type's duration".
func (s *Service) CreateBooking(ctx context.Context, ownerID, eventTypeID string, start, end time.Time) (Booking, *Rejection, error) {
	start = start.UTC()
	now := s.now().UTC()

	et, err := s.settings.EventType(ctx, ownerID, eventTypeID)
	if err != nil {
		return Booking{}, nil, err
	}
	if !et.Active {
		return Booking{}, nil, settings.ErrNotFound
	}
	if end.IsZero() {
		end = start.Add(et.Duration)
	}
	end = end.UTC()

	if end.Sub(start) != et.Duration {
		return Booking{}, reject(ReasonDurationMismatch,
			fmt.Sprintf("booking must last exactly %s", et.Duration)), nil
	}

	// Resolve a window padded by a day on each side so buffers and windows
	// crossing local midnight are never clipped at the proposal's edges.
	oc, err := s.loadOwner(ctx, ownerID, eventTypeID, start.Add(-24*time.Hour), end.Add(24*time.Hour))
	if err != nil {
		return Booking{}, nil, err
	}
	resolved, err := oc.schedule.Resolve(start.Add(-24*time.Hour), end.Add(24*time.Hour))
	if err != nil {
		return Booking{}, nil, err
	}

	proposal := interval.Interval{Start: start, End: end}
	if !interval.CoveredBy(proposal, resolved) {
		return Booking{}, reject(ReasonOutsideAvailability, "requested time is outside working hours"), nil
	}
	buffered := availability.ShrinkBuffers(resolved, oc.policy.PreBuffer, oc.policy.PostBuffer)
	if !interval.CoveredBy(proposal, buffered) {
		return Booking{}, reject(ReasonBufferViolation, "requested time violates buffer policy"), nil
	}
	if start.Before(now.Add(oc.policy.MinNotice)) {
		return Booking{}, reject(ReasonNoticeViolation,
			fmt.Sprintf("bookings require at least %s notice", oc.policy.MinNotice)), nil
	}
	if oc.policy.MaxAdvance > 0 && end.After(now.Add(oc.policy.MaxAdvance)) {
		return Booking{}, reject(ReasonAdvanceWindowViolation,
			fmt.Sprintf("bookings may be made at most %s ahead", oc.policy.MaxAdvance)), nil
	}

	// Cheap pre-check for a precise rejection; the insert below remains the
	// authoritative cross-process guard.
	busy, err := s.busyIntervals(ctx, ownerID, proposal)
	if err != nil {
		return Booking{}, nil, err
	}
	for _, b := range busy {
		if b.Overlaps(proposal) {
			return Booking{}, reject(ReasonDoubleBooking, "slot already booked"), nil
		}
	}

	created, err := s.store.Create(ctx, Booking{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		EventTypeID: eventTypeID,
		StartAt:     start,
		EndAt:       end,
		Status:      StatusConfirmed,
		CreatedAt:   now,
	})
	if err != nil {
		if IsOverlap(err) {
			// Lost a race after the pre-check passed.
			return Booking{}, reject(ReasonDoubleBooking, "slot already booked"), nil
		}
		return Booking{}, nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateOwner(ctx, ownerID)
	}
	s.logger.Info("booking confirmed",
		"booking_id", created.ID,
		"owner_id", ownerID,
		"event_type_id", eventTypeID,
		"start_at", created.StartAt.Format(time.RFC3339),
	)
	return created, nil, nil
}

// CancelBooking transitions a booking to cancelled. Idempotent: cancelling
// an already-cancelled booking succeeds without side effects.
func (s *Service) CancelBooking(ctx context.Context, ownerID, bookingID, reason string) (Booking, error) {
	b, err := s.store.Cancel(ctx, ownerID, bookingID, reason)
	if err != nil {
		return Booking{}, err
	}
	if s.cache != nil {
		s.cache.InvalidateOwner(ctx, ownerID)
	}
	return b, nil
}

func (s *Service) busyIntervals(ctx context.Context, ownerID string, span interval.Interval) ([]interval.Interval, error) {
	confirmed, err := s.store.ListConfirmed(ctx, ownerID, span)
	if err != nil {
		return nil, err
	}
	busy := make([]interval.Interval, 0, len(confirmed))
	for _, b := range confirmed {
		busy = append(busy, interval.Interval{Start: b.StartAt, End: b.EndAt})
	}
	return busy, nil
}
