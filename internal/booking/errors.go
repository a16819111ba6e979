package booking

import "errors"

var (
	// ErrNotFound means the booking (or its owner/event type) is unknown.
	ErrNotFound = errors.New("booking: not found")
	// ErrOverlap is the storage layer's signal that the atomic insert lost to
	// an overlapping confirmed booking.
	ErrOverlap = errors.New("booking: overlapping confirmed booking")
	// ErrInvalidRange rejects malformed query ranges before any availability
	// work happens.
	ErrInvalidRange = errors.New("booking: invalid date range")
)

func IsOverlap(err error) bool {
	return errors.Is(err, ErrOverlap)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// RejectReason is the closed set of business rejections a booking attempt
// can produce. Rejections are outcomes, not errors: the caller is expected
// to re-list slots and retry with a different one.
type RejectReason string

const (
	ReasonDurationMismatch       RejectReason = "duration_mismatch"
	ReasonOutsideAvailability    RejectReason = "outside_availability"
	ReasonBufferViolation        RejectReason = "buffer_violation"
	ReasonNoticeViolation        RejectReason = "notice_violation"
	ReasonAdvanceWindowViolation RejectReason = "advance_window_violation"
	ReasonDoubleBooking          RejectReason = "double_booking"
)

type Rejection struct {
	Reason  RejectReason
	Message string
}

func reject(reason RejectReason, msg string) *Rejection {
	return &Rejection{Reason: reason, Message: msg}
}
