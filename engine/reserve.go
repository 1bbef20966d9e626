package engine

import (
	"context"
	"fmt"

	"github.com/arunvm123/ticketinventory/model"
	zlog "github.com/rs/zerolog/log"
)

// ReserveTickets takes ticketCount tickets from an active event and records a
// confirmed booking for userID. Either both happen or neither does.
func (e *Engine) ReserveTickets(ctx context.Context, eventID, userID string, ticketCount int) (*model.Booking, error) {
	if err := e.validateCount(ticketCount); err != nil {
		e.record(opReserve, err)
		return nil, err
	}
	if eventID == "" || userID == "" {
		e.record(opReserve, model.ErrInvalidID)
		return nil, model.ErrInvalidID
	}

	var booking *model.Booking
	err := e.runTx(ctx, opReserve, func(ctx context.Context) error {
		event, err := e.store.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if !event.IsActive {
			return model.ErrEventInactive
		}
		if event.AvailableTickets < ticketCount {
			return fmt.Errorf("%w: requested %d, available %d",
				model.ErrInsufficientInventory, ticketCount, event.AvailableTickets)
		}

		expected := event.Version
		event.AvailableTickets -= ticketCount
		if err := e.store.SaveEvent(ctx, event, expected); err != nil {
			return err
		}

		now := e.now()
		booking, err = e.store.InsertBooking(ctx, &model.Booking{
			ID:              e.newID(),
			EventID:         event.ID,
			UserID:          userID,
			TicketCount:     ticketCount,
			TotalPriceMinor: event.PriceMinor * int64(ticketCount),
			Status:          model.BookingStatusConfirmed,
			BookingDate:     now,
			UpdatedAt:       now,
		})
		return err
	})
	e.record(opReserve, err)
	if err != nil {
		return nil, err
	}

	zlog.Info().Str("booking_id", booking.ID).Str("event_id", eventID).Str("user_id", userID).
		Int("tickets", ticketCount).Msg("tickets reserved")

	e.notify(model.DomainEvent{Type: model.BookingCreated, EventID: eventID, BookingID: booking.ID})
	return booking, nil
}
