// Package queue defines the message payloads exchanged with the broker
// and the publishers/consumers that move them. The payment bridge is
// reached exclusively through these queues: charge requests go out on
// payment.requests and the provider's outcomes come back on
// payment.outcomes.
package queue

// Queue names used on the broker. All queues are declared durable.
const (
	PaymentRequestQueue   = "payment.requests"
	PaymentOutcomeQueue   = "payment.outcomes"
	BookingConfirmedQueue = "booking.confirmed"
)

// PaymentRequestedEvent asks the payment provider to charge a pending
// booking. PaymentRef correlates the eventual outcome with the booking.
type PaymentRequestedEvent struct {
	BookingID   uint64   `json:"booking_id"`
	UserID      uint64   `json:"user_id"`
	ShowtimeID  uint64   `json:"showtime_id"`
	PaymentRef  string   `json:"payment_ref"`
	AmountCents uint32   `json:"amount_cents"`
	SeatLabels  []string `json:"seats"`
	RequestedAt string   `json:"requested_at"`
}

// PaymentOutcomeEvent reports the provider's verdict on a charge. The
// consumer translates it into a FinalizeBooking call.
type PaymentOutcomeEvent struct {
	BookingID  uint64 `json:"booking_id"`
	PaymentRef string `json:"payment_ref"`
	Success    bool   `json:"success"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// BookingConfirmedEvent is published when a booking settles to
// CONFIRMED. It carries enough information for downstream consumers to
// log or notify without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID        uint64   `json:"booking_id"`
	UserID           uint64   `json:"user_id"`
	ShowtimeID       uint64   `json:"showtime_id"`
	SeatLabels       []string `json:"seats"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	ConfirmedAt      string   `json:"confirmed_at"`
}
