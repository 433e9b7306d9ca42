package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// BookingFinalizer settles a pending booking after a payment outcome.
// It is implemented by the booking orchestrator.
type BookingFinalizer interface {
	FinalizeBooking(ctx context.Context, bookingID uint64, success bool) (*model.Booking, error)
}

// StartPaymentOutcomeConsumer connects to RabbitMQ, declares the
// payment.outcomes queue (durable) and feeds every outcome into the
// finalizer. The function runs a reconnect loop with exponential
// backoff and keeps running across broker failures. Messages that can
// never succeed (malformed payloads, unknown bookings) are rejected
// without requeue; transient finalize failures requeue the message so
// the outcome is not lost.
func StartPaymentOutcomeConsumer(finalizer BookingFinalizer) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("payment-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeOutcomes(conn, finalizer); err != nil {
			log.Printf("payment-consumer: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeOutcomes(conn *amqp.Connection, finalizer BookingFinalizer) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("payment-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(PaymentOutcomeQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(PaymentOutcomeQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		requeue, err := handleOutcome(d.Body, finalizer)
		if err != nil {
			log.Printf("payment-consumer: handle message failed (requeue=%t): %v", requeue, err)
			if requeue {
				// A transient failure, e.g. the database being away.
				// Pause before redelivery so a dead dependency does not
				// spin the consumer.
				time.Sleep(time.Second)
			}
			_ = d.Nack(false, requeue)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// handleOutcome settles one payment outcome. The returned flag reports
// whether a failed message is worth redelivering: malformed payloads
// and outcomes for bookings that do not exist can never succeed and
// are discarded, while transient finalize errors keep the message on
// the queue.
func handleOutcome(body []byte, finalizer BookingFinalizer) (bool, error) {
	var ev PaymentOutcomeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return false, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == 0 {
		return false, errors.New("outcome without booking id")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	booking, err := finalizer.FinalizeBooking(ctx, ev.BookingID, ev.Success)
	if errors.Is(err, service.ErrNotFound) {
		return false, fmt.Errorf("finalize booking %d: %w", ev.BookingID, err)
	}
	if err != nil {
		return true, fmt.Errorf("finalize booking %d: %w", ev.BookingID, err)
	}
	log.Printf("payment-consumer: booking %d settled to %s (ref=%s)", booking.ID, booking.Status, ev.PaymentRef)
	return false, nil
}

// StartBookingLogConsumer consumes booking.confirmed and appends each
// confirmation to logs/booking.log in a single-line, human-friendly
// format. It runs the same reconnect loop as the payment consumer.
func StartBookingLogConsumer() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeConfirmed(conn); err != nil {
			log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeConfirmed(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(BookingConfirmedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for d := range msgs {
		if err := logConfirmed(d.Body); err != nil {
			log.Printf("booking-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func logConfirmed(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "booking.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	seats := "[]"
	if len(ev.SeatLabels) > 0 {
		seats = fmt.Sprintf("[%s]", strings.Join(ev.SeatLabels, ","))
	}
	line := fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | user_id=%d | showtime_id=%d | total=%d cents | seats=%s\n",
		ev.ConfirmedAt, ev.BookingID, ev.UserID, ev.ShowtimeID, ev.TotalAmountCents, seats)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
