// Package queue carries booking lifecycle events over RabbitMQ: the
// payload, a publisher used after a transition commits and the
// consumer that appends every event to logs/booking.log.
package queue

// BookingQueueName is the durable queue every booking event goes to.
const BookingQueueName = "booking.events"

// Event types.
const (
	EventBookingRequested   = "booking.requested"
	EventBookingConfirmed   = "booking.confirmed"
	EventBookingDeclined    = "booking.declined"
	EventBookingCancelled   = "booking.cancelled"
	EventBookingRescheduled = "booking.rescheduled"
)

// BookingEvent is published once a booking is created or changes state.
// It contains enough information for downstream consumers to log or run
// analytics without querying the primary database. Dates use
// YYYY-MM-DD and timestamps RFC 3339.
type BookingEvent struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	BookingID  uint64 `json:"booking_id"`
	ListingID  uint64 `json:"listing_id"`
	TenantID   uint64 `json:"tenant_id"`
	OwnerID    uint64 `json:"owner_id"`
	ActorID    uint64 `json:"actor_id"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	OccurredAt string `json:"occurred_at"`
}
