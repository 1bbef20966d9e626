package engine

import (
	"context"
	"fmt"

	"github.com/arunvm123/ticketinventory/model"
	zlog "github.com/rs/zerolog/log"
)

// UpdateBookingTicketCount changes the size of a confirmed booking, taking or
// returning the difference from the event. Asking for the current count is a
// successful no-op.
func (e *Engine) UpdateBookingTicketCount(ctx context.Context, bookingID, userID string, newCount int) (*model.Booking, error) {
	if err := e.validateCount(newCount); err != nil {
		e.record(opUpdate, err)
		return nil, err
	}
	if bookingID == "" || userID == "" {
		e.record(opUpdate, model.ErrInvalidID)
		return nil, model.ErrInvalidID
	}

	var (
		booking *model.Booking
		changed bool
	)
	err := e.runTx(ctx, opUpdate, func(ctx context.Context) error {
		changed = false
		event, b, err := e.lockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return model.ErrForbidden
		}
		if b.IsCancelled() {
			return model.ErrAlreadyCancelled
		}

		delta := newCount - b.TicketCount
		if delta == 0 {
			booking = b
			return nil
		}
		if delta > 0 {
			if !event.IsActive {
				return model.ErrEventInactive
			}
			if event.AvailableTickets < delta {
				return fmt.Errorf("%w: requested %d more, available %d",
					model.ErrInsufficientInventory, delta, event.AvailableTickets)
			}
		}

		expected := event.Version
		event.AvailableTickets -= delta
		if event.AvailableTickets > event.Capacity {
			return fmt.Errorf("%w: event %s would have %d of %d available",
				model.ErrInventoryCorrupt, event.ID, event.AvailableTickets, event.Capacity)
		}
		if err := e.store.SaveEvent(ctx, event, expected); err != nil {
			return err
		}

		b.TicketCount = newCount
		b.TotalPriceMinor = event.PriceMinor * int64(newCount)
		b.UpdatedAt = e.now()
		if err := e.store.SaveBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		changed = true
		return nil
	})
	e.record(opUpdate, err)
	if err != nil {
		return nil, err
	}
	if !changed {
		return booking, nil
	}

	zlog.Info().Str("booking_id", bookingID).Str("event_id", booking.EventID).
		Int("tickets", newCount).Msg("booking ticket count updated")

	e.notify(model.DomainEvent{Type: model.BookingUpdated, EventID: booking.EventID, BookingID: bookingID})
	return booking, nil
}

// ResizeEventCapacity sets a new capacity and moves availability by the same
// amount. Capacity may not drop below what confirmed bookings already hold.
func (e *Engine) ResizeEventCapacity(ctx context.Context, eventID string, newCapacity int) (*model.Event, error) {
	if newCapacity <= 0 {
		e.record(opResize, model.ErrInvalidCapacity)
		return nil, model.ErrInvalidCapacity
	}
	if eventID == "" {
		e.record(opResize, model.ErrInvalidID)
		return nil, model.ErrInvalidID
	}

	var event *model.Event
	err := e.runTx(ctx, opResize, func(ctx context.Context) error {
		ev, err := e.store.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		sold := ev.SoldTickets()
		if sold < 0 || sold > ev.Capacity {
			return fmt.Errorf("%w: event %s has %d of %d available",
				model.ErrInventoryCorrupt, ev.ID, ev.AvailableTickets, ev.Capacity)
		}
		if newCapacity < sold {
			return fmt.Errorf("%w: %d tickets sold", model.ErrCapacityBelowSold, sold)
		}

		expected := ev.Version
		ev.Capacity = newCapacity
		ev.AvailableTickets = newCapacity - sold
		if err := e.store.SaveEvent(ctx, ev, expected); err != nil {
			return err
		}
		event = ev
		return nil
	})
	e.record(opResize, err)
	if err != nil {
		return nil, err
	}

	zlog.Info().Str("event_id", eventID).Int("capacity", newCapacity).Msg("event capacity resized")

	e.notify(model.DomainEvent{Type: model.EventUpdated, EventID: eventID})
	return event, nil
}
