package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/clock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

const defaultPaymentWindow = 15 * time.Minute

// BookingOrchestrator converts a set of held seats into a durable
// booking and settles it when the payment bridge reports an outcome.
// Creation is a saga: insert the pending booking, flip each seat from
// held to booked through the compare-and-set primitive, then write the
// booking_seats rows. When any step fails, every earlier step is
// compensated before the error is returned, so no partial booking is
// ever visible.
type BookingOrchestrator struct {
	seats         SeatStore
	bookings      BookingStore
	ledger        *CouponLedger     // optional; used to revert coupons on cancellation
	bridge        PaymentBridge     // optional; nil skips the charge request
	notifier      ConfirmedNotifier // optional; nil skips confirmation events
	clk           clock.Clock
	paymentWindow time.Duration
}

// BookingOption customises a BookingOrchestrator.
type BookingOption func(*BookingOrchestrator)

// WithPaymentBridge sets the collaborator that charge requests go to.
func WithPaymentBridge(b PaymentBridge) BookingOption {
	return func(o *BookingOrchestrator) { o.bridge = b }
}

// WithCouponLedger sets the ledger consulted when a cancelled booking
// may carry a coupon.
func WithCouponLedger(l *CouponLedger) BookingOption {
	return func(o *BookingOrchestrator) { o.ledger = l }
}

// WithConfirmedNotifier sets the notifier invoked after a booking is
// confirmed.
func WithConfirmedNotifier(n ConfirmedNotifier) BookingOption {
	return func(o *BookingOrchestrator) { o.notifier = n }
}

// WithPaymentWindow overrides the reserved_until window applied to a
// pending booking.
func WithPaymentWindow(d time.Duration) BookingOption {
	return func(o *BookingOrchestrator) {
		if d > 0 {
			o.paymentWindow = d
		}
	}
}

// NewBookingOrchestrator constructs a BookingOrchestrator. Seat store,
// booking store and clock must be non-nil.
func NewBookingOrchestrator(seats SeatStore, bookings BookingStore, clk clock.Clock, opts ...BookingOption) *BookingOrchestrator {
	if seats == nil || bookings == nil || clk == nil {
		panic("nil dependency passed to NewBookingOrchestrator")
	}
	o := &BookingOrchestrator{
		seats:         seats,
		bookings:      bookings,
		clk:           clk,
		paymentWindow: defaultPaymentWindow,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateBooking turns the caller's held seats into a PENDING booking.
// Every requested seat must currently be held by the caller; merely
// available seats are rejected with NotHeldByCallerError. On success a
// charge is requested from the payment bridge and the booking is
// returned with status PENDING.
func (o *BookingOrchestrator) CreateBooking(ctx context.Context, userID, showtimeID uint64, seatLabels []string) (*model.Booking, error) {
	labels := dedupeLabels(seatLabels)
	if len(labels) == 0 {
		return nil, ErrNoSeats
	}
	now := o.clk.Now()

	// Pre-check the caller's holds. The compare-and-set below is what
	// actually guarantees exclusivity; this pass rejects obviously
	// stale requests before a booking row is written.
	prices := make(map[string]uint32, len(labels))
	var notHeld []string
	for _, label := range labels {
		seat, err := o.seats.Get(ctx, model.SeatKey{ShowtimeID: showtimeID, SeatLabel: label})
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if !seat.HeldAndLive(now) || seat.HeldBy == nil || *seat.HeldBy != userID {
			notHeld = append(notHeld, label)
			continue
		}
		prices[label] = seat.PriceCents
	}
	if len(notHeld) > 0 {
		return nil, &NotHeldByCallerError{Seats: notHeld}
	}

	var total uint32
	for _, p := range prices {
		total += p
	}
	reservedUntil := now.Add(o.paymentWindow)
	booking := &model.Booking{
		UserID:           userID,
		ShowtimeID:       showtimeID,
		Status:           model.BookingStatusPending,
		TotalAmountCents: total,
		ReservedUntil:    &reservedUntil,
	}
	if err := o.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	// Flip each seat held(by caller) -> booked. A failure here means a
	// lost race, typically a hold that expired mid-flight.
	var booked []string
	for _, label := range labels {
		key := model.SeatKey{ShowtimeID: showtimeID, SeatLabel: label}
		ok, err := o.seats.CompareAndSet(ctx, key,
			model.SeatExpect{Status: model.SeatStatusHeld, HeldBy: &userID, LiveAt: &now},
			model.SeatChange{Status: model.SeatStatusBooked, BookingID: &booking.ID},
		)
		if err != nil {
			o.compensateCreate(ctx, booking, showtimeID, userID, labels, booked)
			return nil, err
		}
		if !ok {
			o.compensateCreate(ctx, booking, showtimeID, userID, labels, booked)
			return nil, &BookingFailedError{Seats: []string{label}}
		}
		booked = append(booked, label)
	}

	bookingSeats := make([]model.BookingSeat, 0, len(labels))
	for _, label := range labels {
		bookingSeats = append(bookingSeats, model.BookingSeat{
			BookingID:  booking.ID,
			ShowtimeID: showtimeID,
			SeatLabel:  label,
			PriceCents: prices[label],
		})
	}
	if err := o.bookings.CreateSeats(ctx, bookingSeats); err != nil {
		o.compensateCreate(ctx, booking, showtimeID, userID, labels, booked)
		return nil, err
	}

	if o.bridge != nil {
		ref, err := o.bridge.RequestCharge(ctx, booking, bookingSeats)
		if err != nil {
			// The booking stays PENDING; the bridge owns retries and
			// will deliver an outcome eventually.
			log.Printf("booking %d: charge request failed: %v", booking.ID, err)
		} else {
			if err := o.bookings.SetPaymentRef(ctx, booking.ID, ref); err != nil {
				log.Printf("booking %d: storing payment ref failed: %v", booking.ID, err)
			} else {
				booking.PaymentRef = &ref
			}
		}
	}
	return booking, nil
}

// compensateCreate undoes a partially executed CreateBooking: seats
// already flipped to booked go back to AVAILABLE, the caller's
// remaining holds on the requested seats are released so the whole
// selection can be retried, and the pending booking row is deleted.
func (o *BookingOrchestrator) compensateCreate(ctx context.Context, booking *model.Booking, showtimeID, userID uint64, requested, booked []string) {
	bookedSet := make(map[string]struct{}, len(booked))
	for _, label := range booked {
		bookedSet[label] = struct{}{}
		_, _ = o.seats.CompareAndSet(ctx, model.SeatKey{ShowtimeID: showtimeID, SeatLabel: label},
			model.SeatExpect{Status: model.SeatStatusBooked, BookingID: &booking.ID},
			model.SeatChange{Status: model.SeatStatusAvailable},
		)
	}
	for _, label := range requested {
		if _, ok := bookedSet[label]; ok {
			continue
		}
		_, _ = o.seats.CompareAndSet(ctx, model.SeatKey{ShowtimeID: showtimeID, SeatLabel: label},
			model.SeatExpect{Status: model.SeatStatusHeld, HeldBy: &userID},
			model.SeatChange{Status: model.SeatStatusAvailable},
		)
	}
	if err := o.bookings.DeleteSeats(ctx, booking.ID); err != nil {
		log.Printf("booking %d: compensation could not delete seat rows: %v", booking.ID, err)
	}
	if err := o.bookings.Delete(ctx, booking.ID); err != nil {
		log.Printf("booking %d: compensation could not delete booking: %v", booking.ID, err)
	}
}

// FinalizeBooking settles a pending booking after the payment bridge
// reported an outcome. Success confirms the booking; failure cancels it
// and rolls the inventory back: seats return to AVAILABLE, the
// booking_seats rows are removed and an attached coupon is reverted.
// Finalizing an already terminal booking is a no-op that returns the
// booking as-is.
func (o *BookingOrchestrator) FinalizeBooking(ctx context.Context, bookingID uint64, success bool) (*model.Booking, error) {
	booking, err := o.bookings.Get(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if booking.Terminal() {
		return booking, nil
	}

	if success {
		ok, err := o.bookings.UpdateStatusIfPending(ctx, bookingID, model.BookingStatusConfirmed)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Lost the race against a concurrent finalize; report the
			// settled state.
			return o.bookings.Get(ctx, bookingID)
		}
		booking.Status = model.BookingStatusConfirmed
		if o.notifier != nil {
			seats, err := o.bookings.ListSeats(ctx, bookingID)
			if err != nil {
				log.Printf("booking %d: listing seats for notification failed: %v", bookingID, err)
			} else if err := o.notifier.BookingConfirmed(ctx, booking, seats); err != nil {
				log.Printf("booking %d: confirmation notify failed: %v", bookingID, err)
			}
		}
		return booking, nil
	}

	ok, err := o.bookings.UpdateStatusIfPending(ctx, bookingID, model.BookingStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return o.bookings.Get(ctx, bookingID)
	}
	booking.Status = model.BookingStatusCancelled

	// Full inventory rollback. Seat rows are read before the join rows
	// are deleted; conflicts on individual seats are ignored since a
	// concurrent sweep cannot own a BOOKED seat of this booking.
	seats, err := o.bookings.ListSeats(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	for _, s := range seats {
		_, _ = o.seats.CompareAndSet(ctx, model.SeatKey{ShowtimeID: s.ShowtimeID, SeatLabel: s.SeatLabel},
			model.SeatExpect{Status: model.SeatStatusBooked, BookingID: &bookingID},
			model.SeatChange{Status: model.SeatStatusAvailable},
		)
	}
	if err := o.bookings.DeleteSeats(ctx, bookingID); err != nil {
		return nil, err
	}
	if o.ledger != nil {
		if err := o.ledger.RevokeAttached(ctx, bookingID, booking.UserID); err != nil {
			log.Printf("booking %d: coupon reversal failed: %v", bookingID, err)
		}
	}
	return booking, nil
}

// GetBooking returns a booking owned by the given user together with
// its seats. ErrNotFound hides bookings of other users.
func (o *BookingOrchestrator) GetBooking(ctx context.Context, bookingID, userID uint64) (*model.Booking, []model.BookingSeat, error) {
	booking, err := o.bookings.Get(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if booking.UserID != userID {
		return nil, nil, ErrNotFound
	}
	seats, err := o.bookings.ListSeats(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	return booking, seats, nil
}

// ListBookings returns all bookings of a user, newest first.
func (o *BookingOrchestrator) ListBookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return o.bookings.ListByUser(ctx, userID)
}
