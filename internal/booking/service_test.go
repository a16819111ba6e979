package booking

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/slotwise/slotwise/internal/interval"
	"github.com/slotwise/slotwise/internal/settings"
)

// monday is 2026-01-26, a Monday.
var monday = time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)

func mondayAt(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type fakeProvider struct {
	profile    settings.Profile
	rules      []settings.WorkingHourRule
	exceptions []settings.AvailabilityException
	policy     settings.BufferPolicy
	eventTypes map[string]settings.EventType
}

func (f *fakeProvider) Profile(_ context.Context, ownerID string) (settings.Profile, error) {
	if ownerID != f.profile.OwnerID {
		return settings.Profile{}, settings.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeProvider) WorkingHours(_ context.Context, _ string) ([]settings.WorkingHourRule, error) {
	return f.rules, nil
}

func (f *fakeProvider) Exceptions(_ context.Context, _ string, _, _ time.Time) ([]settings.AvailabilityException, error) {
	return f.exceptions, nil
}

func (f *fakeProvider) BufferPolicy(_ context.Context, _ string) (settings.BufferPolicy, error) {
	return f.policy, nil
}

func (f *fakeProvider) EventType(_ context.Context, _, eventTypeID string) (settings.EventType, error) {
	et, ok := f.eventTypes[eventTypeID]
	if !ok {
		return settings.EventType{}, settings.ErrNotFound
	}
	return et, nil
}

// memStore mimics the storage contract, including the no-overlap guarantee
// on insert: racing overlapping creates cannot both succeed.
type memStore struct {
	bookings map[string]Booking
}

func newMemStore() *memStore {
	return &memStore{bookings: make(map[string]Booking)}
}

func (m *memStore) ListConfirmed(_ context.Context, ownerID string, span interval.Interval) ([]Booking, error) {
	var out []Booking
	for _, b := range m.bookings {
		if b.OwnerID != ownerID || b.Status != StatusConfirmed {
			continue
		}
		if (interval.Interval{Start: b.StartAt, End: b.EndAt}).Overlaps(span) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, b Booking) (Booking, error) {
	proposal := interval.Interval{Start: b.StartAt, End: b.EndAt}
	for _, existing := range m.bookings {
		if existing.OwnerID != b.OwnerID || existing.Status != StatusConfirmed {
			continue
		}
		if (interval.Interval{Start: existing.StartAt, End: existing.EndAt}).Overlaps(proposal) {
			return Booking{}, ErrOverlap
		}
	}
	m.bookings[b.ID] = b
	return b, nil
}

func (m *memStore) Get(_ context.Context, ownerID, bookingID string) (Booking, error) {
	b, ok := m.bookings[bookingID]
	if !ok || b.OwnerID != ownerID {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (m *memStore) Cancel(_ context.Context, ownerID, bookingID, reason string) (Booking, error) {
	b, ok := m.bookings[bookingID]
	if !ok || b.OwnerID != ownerID {
		return Booking{}, ErrNotFound
	}
	if b.Status == StatusCancelled {
		return b, nil
	}
	now := time.Now().UTC()
	b.Status = StatusCancelled
	b.CancelledAt = &now
	b.CancelReason = reason
	m.bookings[bookingID] = b
	return b, nil
}

const (
	testOwner     = "owner-1"
	testEventType = "et-1"
)

func newTestService(store Store, policy settings.BufferPolicy, now time.Time) *Service {
	provider := &fakeProvider{
		profile: settings.Profile{OwnerID: testOwner, Timezone: "UTC"},
		rules: []settings.WorkingHourRule{
			{OwnerID: testOwner, Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60},
		},
		policy: policy,
		eventTypes: map[string]settings.EventType{
			testEventType: {
				ID:       testEventType,
				OwnerID:  testOwner,
				Name:     "Intro call",
				Duration: 30 * time.Minute,
				SlotStep: 30 * time.Minute,
				Active:   true,
			},
		},
	}
	logger := slog.New(slog.DiscardHandler)
	return NewService(provider, store, nil, logger, func() time.Time { return now })
}

func TestListSlots_ExcludesBookedSlot(t *testing.T) {
	store := newMemStore()
	store.bookings["b1"] = Booking{
		ID: "b1", OwnerID: testOwner, EventTypeID: testEventType,
		StartAt: mondayAt(10, 0), EndAt: mondayAt(10, 30), Status: StatusConfirmed,
	}
	svc := newTestService(store, settings.BufferPolicy{}, monday)

	starts, err := svc.ListSlots(context.Background(), testOwner, testEventType, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}

	// 09:00 through 16:30 on the half hour, minus the booked 10:00.
	if len(starts) != 15 {
		t.Fatalf("expected 15 slots, got %d: %v", len(starts), starts)
	}
	seen := make(map[time.Time]bool, len(starts))
	for _, s := range starts {
		seen[s] = true
	}
	for _, want := range []time.Time{mondayAt(9, 0), mondayAt(9, 30), mondayAt(10, 30), mondayAt(16, 30)} {
		if !seen[want] {
			t.Fatalf("expected slot %v to be listed", want)
		}
	}
	if seen[mondayAt(10, 0)] {
		t.Fatal("booked 10:00 slot must not be listed")
	}
	if seen[mondayAt(17, 0)] {
		t.Fatal("slot starting at closing time must not be listed")
	}
}

func TestListSlots_MinimumNotice(t *testing.T) {
	svc := newTestService(newMemStore(), settings.BufferPolicy{MinNotice: 2 * time.Hour}, mondayAt(8, 0))

	starts, err := svc.ListSlots(context.Background(), testOwner, testEventType, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(starts) == 0 {
		t.Fatal("expected slots")
	}
	if !starts[0].Equal(mondayAt(10, 0)) {
		t.Fatalf("first slot = %v, want 10:00 (two hours past 08:00)", starts[0])
	}
}

func TestListSlots_InvalidRange(t *testing.T) {
	svc := newTestService(newMemStore(), settings.BufferPolicy{}, monday)

	if _, err := svc.ListSlots(context.Background(), testOwner, testEventType, monday, monday); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("empty range should be ErrInvalidRange, got %v", err)
	}
	if _, err := svc.ListSlots(context.Background(), testOwner, testEventType, monday, monday.AddDate(0, 6, 0)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("oversized range should be ErrInvalidRange, got %v", err)
	}
}

func TestCreateBooking_Success(t *testing.T) {
	store := newMemStore()
	store.bookings["b1"] = Booking{
		ID: "b1", OwnerID: testOwner, EventTypeID: testEventType,
		StartAt: mondayAt(10, 0), EndAt: mondayAt(10, 30), Status: StatusConfirmed,
	}
	svc := newTestService(store, settings.BufferPolicy{}, monday)

	created, rejection, err := svc.CreateBooking(context.Background(), testOwner, testEventType, mondayAt(9, 30), time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rejection != nil {
		t.Fatalf("unexpected rejection: %v", rejection)
	}
	if created.ID == "" {
		t.Fatal("created booking must carry an id")
	}
	if !created.EndAt.Equal(mondayAt(10, 0)) {
		t.Fatalf("zero end should default to start+duration, got %v", created.EndAt)
	}
	if created.Status != StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", created.Status)
	}
}

func TestCreateBooking_DoubleBooking(t *testing.T) {
	store := newMemStore()
	store.bookings["b1"] = Booking{
		ID: "b1", OwnerID: testOwner, EventTypeID: testEventType,
		StartAt: mondayAt(10, 0), EndAt: mondayAt(10, 30), Status: StatusConfirmed,
	}
	svc := newTestService(store, settings.BufferPolicy{}, monday)

	_, rejection, err := svc.CreateBooking(context.Background(), testOwner, testEventType, mondayAt(10, 0), time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rejection == nil || rejection.Reason != ReasonDoubleBooking {
		t.Fatalf("expected double_booking rejection, got %v", rejection)
	}
}

func TestCreateBooking_AbuttingBookingAccepted(t *testing.T) {
	store := newMemStore()
	store.bookings["b1"] = Booking{
		ID: "b1", OwnerID: testOwner, EventTypeID: testEventType,
		StartAt: mondayAt(10, 0), EndAt: mondayAt(10, 30), Status: StatusConfirmed,
	}
	svc := newTestService(store, settings.BufferPolicy{}, monday)

	_, rejection, err := svc.CreateBooking(context.Background(), testOwner, testEventType, mondayAt(10, 30), time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rejection != nil {
		t.Fatalf("a booking starting exactly at another's end must succeed, got %v", rejection)
	}
}

func TestCreateBooking_DurationMismatch(t *testing.T) {
	svc := newTestService(newMemStore(), settings.BufferPolicy{}, monday)

	_, rejection, err := svc.CreateBooking(context.Background(), testOwner, testEventType, mondayAt(9, 0), mondayAt(9, 45))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rejection == nil || rejection.Reason != ReasonDurationMismatch {
		t.Fatalf("expected duration_mismatch rejection, got %v", rejection)
	}
}

func TestCreateBooking_OutsideAvailability(t *testing.T) {
	svc := newTestService(newMemStore(), settings.BufferPolicy{}, monday)

	// Tuesday has no working-hour rule.
	tuesday := monday.AddDate(0, 0, 1)
	_, rejection, err := svc.CreateBooking(context.Background(), testOwner, testEventType, tuesday.Add(10*time.Hour), time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rejection == nil || rejection.Reason != ReasonOutsideAvailability {
		t.Fatalf("expected outside_availability rejection, got %v", rejection)
	}
}

func TestCreateBooking_BufferViolation(t *testing.T) {
	policy := settings.BufferPolicy{PreBuffer: 15 * time.Minute, PostBuffer: 15 * time.Minute}
	svc := newTestService(newMemStore(), policy, monday)

	// 09:00 sits inside working hours but inside the leading buffer.
	_, rejection, err := svc.CreateBooking(context.Background(), testOwner, testEventType, mondayAt(9, 0), time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rejection == nil || rejection.Reason != ReasonBufferViolation {
		t.Fatalf("expected buffer_violation rejection, got %v", rejection)
	}
}

func TestCreateBooking_NoticeViolation(t *testing.T) {
	svc := newTestService(newMemStore(), settings.BufferPolicy{MinNotice: 2 * time.Hour}, mondayAt(8, 0))

	_, rejection, err := svc.CreateBooking(context.Background(), testOwner, testEventType, mondayAt(9, 0), time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rejection == nil || rejection.Reason != ReasonNoticeViolation {
		t.Fatalf("expected notice_violation rejection, got %v", rejection)
	}
}

func TestCreateBooking_AdvanceWindowViolation(t *testing.T) {
	svc := newTestService(newMemStore(), settings.BufferPolicy{MaxAdvance: 24 * time.Hour}, mondayAt(8, 0))

	nextMonday := monday.AddDate(0, 0, 7)
	_, rejection, err := svc.CreateBooking(context.Background(), testOwner, testEventType, nextMonday.Add(9*time.Hour), time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rejection == nil || rejection.Reason != ReasonAdvanceWindowViolation {
		t.Fatalf("expected advance_window_violation rejection, got %v", rejection)
	}
}

func TestCreateBooking_InactiveEventType(t *testing.T) {
	svc := newTestService(newMemStore(), settings.BufferPolicy{}, monday)
	provider := svc.settings.(*fakeProvider)
	et := provider.eventTypes[testEventType]
	et.Active = false
	provider.eventTypes[testEventType] = et

	_, _, err := svc.CreateBooking(context.Background(), testOwner, testEventType, mondayAt(9, 0), time.Time{})
	if !errors.Is(err, settings.ErrNotFound) {
		t.Fatalf("inactive event type should be not-found, got %v", err)
	}
}

// raceStore passes the pre-check (no confirmed bookings visible) but fails
// the insert, mimicking a concurrent writer landing first.
type raceStore struct {
	*memStore
}

func (r *raceStore) ListConfirmed(context.Context, string, interval.Interval) ([]Booking, error) {
	return nil, nil
}

func TestCreateBooking_LostInsertRace(t *testing.T) {
	store := newMemStore()
	store.bookings["b1"] = Booking{
		ID: "b1", OwnerID: testOwner, EventTypeID: testEventType,
		StartAt: mondayAt(9, 0), EndAt: mondayAt(9, 30), Status: StatusConfirmed,
	}
	svc := newTestService(&raceStore{store}, settings.BufferPolicy{}, monday)

	_, rejection, err := svc.CreateBooking(context.Background(), testOwner, testEventType, mondayAt(9, 0), time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rejection == nil || rejection.Reason != ReasonDoubleBooking {
		t.Fatalf("insert-level overlap must surface as double_booking, got %v", rejection)
	}
}

func TestCancelBooking_IdempotentAndFreesSlot(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, settings.BufferPolicy{}, monday)

	created, rejection, err := svc.CreateBooking(context.Background(), testOwner, testEventType, mondayAt(9, 0), time.Time{})
	if err != nil || rejection != nil {
		t.Fatalf("create: err=%v rejection=%v", err, rejection)
	}

	first, err := svc.CancelBooking(context.Background(), testOwner, created.ID, "client request")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if first.Status != StatusCancelled || first.CancelledAt == nil {
		t.Fatalf("booking not cancelled: %+v", first)
	}

	second, err := svc.CancelBooking(context.Background(), testOwner, created.ID, "again")
	if err != nil {
		t.Fatalf("repeat cancel must succeed, got %v", err)
	}
	if second.Status != StatusCancelled {
		t.Fatalf("repeat cancel status = %s", second.Status)
	}
	if second.CancelReason != "client request" {
		t.Fatalf("repeat cancel must not overwrite the original reason, got %q", second.CancelReason)
	}

	// The freed slot is bookable again.
	_, rejection, err = svc.CreateBooking(context.Background(), testOwner, testEventType, mondayAt(9, 0), time.Time{})
	if err != nil {
		t.Fatalf("rebook: %v", err)
	}
	if rejection != nil {
		t.Fatalf("cancelled slot should be rebookable, got %v", rejection)
	}
}

func TestCancelBooking_UnknownID(t *testing.T) {
	svc := newTestService(newMemStore(), settings.BufferPolicy{}, monday)

	_, err := svc.CancelBooking(context.Background(), testOwner, "missing", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type countingCache struct {
	entries     map[string][]time.Time
	invalidated int
}

func (c *countingCache) Get(_ context.Context, ownerID, key string) ([]time.Time, bool) {
	starts, ok := c.entries[ownerID+"/"+key]
	return starts, ok
}

func (c *countingCache) Set(_ context.Context, ownerID, key string, starts []time.Time) {
	c.entries[ownerID+"/"+key] = starts
}

func (c *countingCache) InvalidateOwner(context.Context, string) {
	c.invalidated++
}

func TestListSlots_UsesCache(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, settings.BufferPolicy{}, monday)
	cache := &countingCache{entries: make(map[string][]time.Time)}
	svc.cache = cache

	first, err := svc.ListSlots(context.Background(), testOwner, testEventType, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(cache.entries) != 1 {
		t.Fatalf("expected one cache entry, got %d", len(cache.entries))
	}

	// A write behind the cache's back is invisible until invalidation, which
	// is fine: booking revalidates against the store.
	store.bookings["b1"] = Booking{
		ID: "b1", OwnerID: testOwner, EventTypeID: testEventType,
		StartAt: mondayAt(9, 0), EndAt: mondayAt(9, 30), Status: StatusConfirmed,
	}
	second, err := svc.ListSlots(context.Background(), testOwner, testEventType, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("cached read returned %d slots, want %d", len(second), len(first))
	}

	if _, _, err := svc.CreateBooking(context.Background(), testOwner, testEventType, mondayAt(10, 0), time.Time{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if cache.invalidated != 1 {
		t.Fatalf("create must invalidate the owner's cache, got %d invalidations", cache.invalidated)
	}
}
