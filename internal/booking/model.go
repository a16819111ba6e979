package booking

import "time"

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Booking is a confirmed (or cancelled-but-retained) reservation of one
// event-type slot. Instants are absolute UTC; local time never reaches
// storage.
type Booking struct {
	ID           string
	OwnerID      string
	EventTypeID  string
	StartAt      time.Time
	EndAt        time.Time
	Status       Status
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
}
