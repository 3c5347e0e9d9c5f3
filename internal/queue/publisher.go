package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-reservation/internal/logger"
	"github.com/iliyamo/showtime-reservation/internal/model"
	"github.com/iliyamo/showtime-reservation/internal/service"
)

// Publisher sends reservation events to RabbitMQ. It keeps one
// connection and channel and redials lazily after a failure.
type Publisher struct {
	url     string
	log     *logger.Logger
	timeout time.Duration

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	now  func() time.Time
}

func NewPublisher(url string, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{
		url:     url,
		log:     log,
		timeout: 5 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Notify implements service.Notifier.
func (p *Publisher) Notify(ctx context.Context, typ service.EventType, r model.Reservation, show model.Show) error {
	return p.Publish(ctx, NewReservationEvent(typ, r, show, p.now()))
}

// NewReservationEvent builds the wire payload for a committed change.
func NewReservationEvent(typ service.EventType, r model.Reservation, show model.Show, at time.Time) ReservationEvent {
	return ReservationEvent{
		ID:               uuid.NewString(),
		Type:             string(typ),
		ReservationID:    r.ID,
		UserID:           r.UserID,
		ShowID:           r.ShowID,
		MovieID:          show.MovieID,
		Seats:            r.Seats,
		TotalAmountCents: r.TotalAmountCents,
		AvailableSeats:   show.AvailableSeats,
		StartsAt:         show.StartsAt,
		OccurredAt:       at,
	}
}

// Publish sends ev to the reservation events queue. The request context
// may end right after the response, so publishing runs on a detached
// context bounded by the publisher timeout.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("queue.Publish: marshal: %w", err)
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return fmt.Errorf("queue.Publish: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(pctx, "", ReservationEventsQueue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("queue.Publish: %w", err)
	}
	return nil
}

// channel returns the open channel, dialing first if needed. p.mu is held.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	// The dial and handshake share the publish timeout so an unreachable
	// broker cannot stall post-commit notifications.
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(ReservationEventsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.log.Info("publisher connected", zap.String("queue", ReservationEventsQueue))
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}
