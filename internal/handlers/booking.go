package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slotwise/slotwise/internal/booking"
	"github.com/slotwise/slotwise/internal/settings"
)

// BookingLister is the audit read the list and feed endpoints need,
// cancelled bookings included.
type BookingLister interface {
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]booking.Booking, error)
}

type BookingHandler struct {
	svc    *booking.Service
	lister BookingLister
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, lister BookingLister, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, lister: lister, logger: logger}
}

type slotItem struct {
	StartAt string `json:"start_at"`
}

type createBookingRequest struct {
	OwnerID     string `json:"owner_id"`
	EventTypeID string `json:"event_type_id"`
	StartAt     string `json:"start_at"`
	EndAt       string `json:"end_at,omitempty"`
}

type bookingResponse struct {
	BookingID   string `json:"booking_id"`
	OwnerID     string `json:"owner_id"`
	EventTypeID string `json:"event_type_id"`
	StartAt     string `json:"start_at"`
	EndAt       string `json:"end_at"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type rejectionResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

type cancelBookingRequest struct {
	OwnerID   string `json:"owner_id"`
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

// Slots lists candidate start instants for an event type over a UTC range.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	ownerID := strings.TrimSpace(q.Get("owner_id"))
	eventTypeID := strings.TrimSpace(q.Get("event_type_id"))
	if ownerID == "" || eventTypeID == "" {
		http.Error(w, "owner_id and event_type_id are required", http.StatusBadRequest)
		return
	}
	from, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get("from")))
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get("to")))
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}

	starts, err := h.svc.ListSlots(r.Context(), ownerID, eventTypeID, from, to)
	if err != nil {
		h.writeServiceError(w, err, "failed to list slots")
		return
	}

	items := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		items = append(items, slotItem{StartAt: s.UTC().Format(time.RFC3339)})
	}
	writeJSON(w, http.StatusOK, items)
}

// Create validates and persists a booking. Business rejections come back as
// 409 (double booking) or 422 (availability violations) with a stable reason
// code; callers are expected to re-list slots and retry.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.EventTypeID = strings.TrimSpace(req.EventTypeID)
	if req.OwnerID == "" || req.EventTypeID == "" {
		http.Error(w, "owner_id and event_type_id are required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartAt))
	if err != nil {
		http.Error(w, "invalid start_at", http.StatusBadRequest)
		return
	}
	var end time.Time
	if strings.TrimSpace(req.EndAt) != "" {
		end, err = time.Parse(time.RFC3339, strings.TrimSpace(req.EndAt))
		if err != nil {
			http.Error(w, "invalid end_at", http.StatusBadRequest)
			return
		}
	}

	created, rejection, err := h.svc.CreateBooking(r.Context(), req.OwnerID, req.EventTypeID, start, end)
	if err != nil {
		h.writeServiceError(w, err, "failed to create booking")
		return
	}
	if rejection != nil {
		status := http.StatusUnprocessableEntity
		if rejection.Reason == booking.ReasonDoubleBooking {
			status = http.StatusConflict
		}
		writeJSON(w, status, rejectionResponse{Error: rejection.Message, Reason: string(rejection.Reason)})
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(created))
}

// Cancel transitions a booking to cancelled. Repeat cancellations return 200
// with the same body.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.OwnerID == "" || req.BookingID == "" {
		http.Error(w, "owner_id and booking_id are required", http.StatusBadRequest)
		return
	}

	cancelled, err := h.svc.CancelBooking(r.Context(), req.OwnerID, req.BookingID, strings.TrimSpace(req.Reason))
	if err != nil {
		h.writeServiceError(w, err, "failed to cancel booking")
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(cancelled))
}

// List returns recent bookings for an owner, cancelled ones included.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if ownerID == "" {
		http.Error(w, "owner_id required", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.lister.ListByOwner(r.Context(), ownerID, limit)
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	items := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) writeServiceError(w http.ResponseWriter, err error, generic string) {
	switch {
	case errors.Is(err, booking.ErrInvalidRange):
		http.Error(w, "invalid date range", http.StatusBadRequest)
	case errors.Is(err, settings.ErrNotFound), errors.Is(err, booking.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		h.logger.Error(generic, "err", err)
		http.Error(w, generic, http.StatusInternalServerError)
	}
}

func toBookingResponse(b booking.Booking) bookingResponse {
	resp := bookingResponse{
		BookingID:   b.ID,
		OwnerID:     b.OwnerID,
		EventTypeID: b.EventTypeID,
		StartAt:     b.StartAt.UTC().Format(time.RFC3339),
		EndAt:       b.EndAt.UTC().Format(time.RFC3339),
		Status:      string(b.Status),
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	if !b.CreatedAt.IsZero() {
		resp.CreatedAt = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
