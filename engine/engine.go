// Package engine is the only writer of event ticket counters and booking
// status. Every mutation runs inside one inventory store transaction that
// locks the event row first; cache invalidation happens after commit.
package engine

import (
	"errors"
	"time"

	"github.com/arunvm123/ticketinventory/metrics"
	"github.com/arunvm123/ticketinventory/model"
	"github.com/arunvm123/ticketinventory/repository"
	"github.com/google/uuid"
)

// Notifier is told about writes after they commit.
type Notifier interface {
	OnWriteCommitted(ev model.DomainEvent)
}

type Engine struct {
	store    repository.InventoryStore
	notifier Notifier

	now   func() time.Time
	newID func() string

	maxAttempts int
	baseBackoff time.Duration
	txTimeout   time.Duration
	maxTickets  int
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithRetry sets how many times a transaction is attempted on version
// conflicts and the base of the jittered exponential backoff between tries.
func WithRetry(attempts int, base time.Duration) Option {
	return func(e *Engine) {
		if attempts > 0 {
			e.maxAttempts = attempts
		}
		e.baseBackoff = base
	}
}

func WithTxTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.txTimeout = d
		}
	}
}

// WithMaxTicketsPerBooking caps a single booking. Zero disables the cap.
func WithMaxTicketsPerBooking(n int) Option {
	return func(e *Engine) { e.maxTickets = n }
}

func New(store repository.InventoryStore, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		notifier:    notifier,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		maxAttempts: 3,
		baseBackoff: 20 * time.Millisecond,
		txTimeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

const (
	opReserve = "reserve"
	opCancel  = "cancel"
	opUpdate  = "update_ticket_count"
	opResize  = "resize_capacity"
)

func (e *Engine) validateCount(n int) error {
	if n <= 0 {
		return model.ErrInvalidTicketCount
	}
	if e.maxTickets > 0 && n > e.maxTickets {
		return model.ErrTooManyTickets
	}
	return nil
}

func (e *Engine) notify(ev model.DomainEvent) {
	if e.notifier == nil {
		return
	}
	ev.OccurredAt = e.now()
	e.notifier.OnWriteCommitted(ev)
}

func (e *Engine) record(op string, err error) {
	metrics.RecordBookingOperation(op, outcome(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case model.IsValidation(err):
		return "invalid"
	case errors.Is(err, model.ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, model.ErrEventNotFound), errors.Is(err, model.ErrBookingNotFound):
		return "not_found"
	case errors.Is(err, model.ErrEventInactive):
		return "inactive"
	case errors.Is(err, model.ErrForbidden):
		return "forbidden"
	case errors.Is(err, model.ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, model.ErrCapacityBelowSold):
		return "capacity_below_sold"
	case errors.Is(err, model.ErrConcurrentModification):
		return "contention"
	case errors.Is(err, model.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
