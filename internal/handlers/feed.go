package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	ics "github.com/arran4/golang-ical"

	"github.com/slotwise/slotwise/internal/booking"
	"github.com/slotwise/slotwise/internal/settings"
)

const feedLimit = 500

// FeedHandler serves an owner's confirmed bookings as an iCalendar document,
// suitable for subscribing from any calendar client.
type FeedHandler struct {
	provider settings.Provider
	lister   BookingLister
	logger   *slog.Logger
}

func NewFeedHandler(provider settings.Provider, lister BookingLister, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{provider: provider, lister: lister, logger: logger}
}

func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if ownerID == "" {
		http.Error(w, "owner_id required", http.StatusBadRequest)
		return
	}

	profile, err := h.provider.Profile(r.Context(), ownerID)
	if err != nil {
		if err == settings.ErrNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load profile for feed", "err", err)
		http.Error(w, "failed to build feed", http.StatusInternalServerError)
		return
	}

	bookings, err := h.lister.ListByOwner(r.Context(), ownerID, feedLimit)
	if err != nil {
		h.logger.Error("failed to list bookings for feed", "err", err)
		http.Error(w, "failed to build feed", http.StatusInternalServerError)
		return
	}

	name := profile.CalendarName
	if name == "" {
		name = "Bookings"
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//slotwise//bookings//EN")
	cal.SetName(name)

	for _, b := range bookings {
		if b.Status != booking.StatusConfirmed {
			continue
		}
		ev := cal.AddEvent(b.ID)
		ev.SetStartAt(b.StartAt.UTC())
		ev.SetEndAt(b.EndAt.UTC())
		ev.SetSummary(name)
		if !b.CreatedAt.IsZero() {
			ev.SetDtStampTime(b.CreatedAt.UTC())
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	_, _ = w.Write([]byte(cal.Serialize()))
}
