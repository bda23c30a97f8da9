package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer drains the booking queue and appends one line per event to
// LogPath.
type Consumer struct {
	URL     string
	LogPath string
}

// NewConsumer returns a consumer writing to logs/booking.log.
func NewConsumer(url string) *Consumer {
	return &Consumer{URL: url, LogPath: filepath.Join("logs", "booking.log")}
}

// Run connects to RabbitMQ, declares the booking queue and consumes it
// until ctx is cancelled. Broker failures are logged and retried with
// exponential backoff capped at 30s; a message that cannot be handled
// is rejected without requeue so the loop keeps moving.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Printf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if err != nil {
			log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
			if !sleepCtx(ctx, 2*time.Second) {
				return nil
			}
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("booking-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(BookingQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(BookingQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				log.Printf("booking-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	return writeLine(f, ev)
}

// writeLine formats ev as a single human-friendly log line.
func writeLine(w io.Writer, ev BookingEvent) error {
	from := ev.FromStatus
	if from == "" {
		from = "-"
	}
	_, err := fmt.Fprintf(w, "[%s] %s | event_id=%s | booking_id=%d | listing_id=%d | tenant_id=%d | owner_id=%d | actor_id=%d | status=%s->%s | stay=%s..%s\n",
		ev.OccurredAt, ev.Type, ev.EventID, ev.BookingID, ev.ListingID, ev.TenantID, ev.OwnerID, ev.ActorID, from, ev.ToStatus, ev.CheckIn, ev.CheckOut)
	if err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
