package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/arunvm123/ticketinventory/model"
	zlog "github.com/rs/zerolog/log"
)

// CancelBooking returns a confirmed booking's tickets to its event. Cancelling
// twice returns the cancelled booking together with model.ErrAlreadyCancelled
// and changes nothing.
//
// Ownership is checked before the cancelled state, so a caller who does not
// own the booking gets model.ErrForbidden and learns nothing about its status.
func (e *Engine) CancelBooking(ctx context.Context, bookingID, userID string) (*model.Booking, error) {
	if bookingID == "" || userID == "" {
		e.record(opCancel, model.ErrInvalidID)
		return nil, model.ErrInvalidID
	}

	var booking *model.Booking
	err := e.runTx(ctx, opCancel, func(ctx context.Context) error {
		event, b, err := e.lockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return model.ErrForbidden
		}
		if b.IsCancelled() {
			booking = b
			return model.ErrAlreadyCancelled
		}

		expected := event.Version
		event.AvailableTickets += b.TicketCount
		if event.AvailableTickets > event.Capacity {
			return fmt.Errorf("%w: event %s would have %d of %d available",
				model.ErrInventoryCorrupt, event.ID, event.AvailableTickets, event.Capacity)
		}
		if err := e.store.SaveEvent(ctx, event, expected); err != nil {
			return err
		}

		now := e.now()
		b.Status = model.BookingStatusCancelled
		b.CancelledAt = &now
		b.UpdatedAt = now
		if err := e.store.SaveBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	e.record(opCancel, err)
	if errors.Is(err, model.ErrAlreadyCancelled) {
		return booking, err
	}
	if err != nil {
		return nil, err
	}

	zlog.Info().Str("booking_id", bookingID).Str("event_id", booking.EventID).
		Int("tickets", booking.TicketCount).Msg("booking cancelled")

	e.notify(model.DomainEvent{Type: model.BookingCancelled, EventID: booking.EventID, BookingID: bookingID})
	return booking, nil
}

// lockBooking locks the booking's event row and then re-reads the booking, so
// status checks see every change committed before the lock was granted.
// Event row before booking row, always.
func (e *Engine) lockBooking(ctx context.Context, bookingID string) (*model.Event, *model.Booking, error) {
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	event, err := e.store.GetEventForUpdate(ctx, b.EventID)
	if err != nil {
		return nil, nil, err
	}
	b, err = e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	return event, b, nil
}
