package model

import "errors"

// Validation errors. These are returned before any transaction starts.
var (
	ErrInvalidTicketCount = errors.New("ticket count must be positive")
	ErrTooManyTickets     = errors.New("ticket count exceeds per-booking limit")
	ErrInvalidID          = errors.New("identifier is required")
	ErrInvalidCapacity    = errors.New("capacity must be positive")
	ErrInvalidPrice       = errors.New("price must not be negative")
	ErrInvalidName        = errors.New("name is required")
)

// Business rule errors.
var (
	ErrEventNotFound         = errors.New("event not found")
	ErrEventInactive         = errors.New("event is not active")
	ErrInsufficientInventory = errors.New("insufficient tickets available")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrForbidden             = errors.New("booking belongs to another user")
	ErrAlreadyCancelled      = errors.New("booking already cancelled")
	ErrEventHasBookings      = errors.New("event has bookings")
	ErrCapacityBelowSold     = errors.New("capacity is below tickets already sold")
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryInUse         = errors.New("category is referenced by events")
	ErrTagNotFound           = errors.New("tag not found")
	ErrTagInUse              = errors.New("tag is referenced by events")
	ErrDuplicateName         = errors.New("name already exists")
)

// Contention and infrastructure errors.
var (
	// ErrConflict is a store-level compare-and-swap miss or serialization
	// failure. The engine retries it and never returns it to callers.
	ErrConflict               = errors.New("version conflict")
	ErrConcurrentModification = errors.New("concurrent modification, retry later")
	ErrStoreUnavailable       = errors.New("inventory store unavailable")
	ErrTimeout                = errors.New("inventory store timeout")

	// ErrInventoryCorrupt means stored counters break 0 <= available <= capacity.
	// It signals a bug or manual tampering, never contention.
	ErrInventoryCorrupt = errors.New("inventory counters inconsistent")
)

// IsRetryable reports whether the caller may safely repeat the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrTimeout)
}

// IsValidation reports errors raised before touching the store.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidTicketCount, ErrTooManyTickets, ErrInvalidID,
		ErrInvalidCapacity, ErrInvalidPrice, ErrInvalidName,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var known = []error{
	ErrInvalidTicketCount, ErrTooManyTickets, ErrInvalidID, ErrInvalidCapacity, ErrInvalidPrice, ErrInvalidName,
	ErrEventNotFound, ErrEventInactive, ErrInsufficientInventory, ErrBookingNotFound, ErrForbidden,
	ErrAlreadyCancelled, ErrEventHasBookings, ErrCapacityBelowSold, ErrCategoryNotFound, ErrCategoryInUse,
	ErrTagNotFound, ErrTagInUse, ErrDuplicateName,
	ErrConflict, ErrConcurrentModification, ErrStoreUnavailable, ErrTimeout, ErrInventoryCorrupt,
}

// IsKnown reports whether err already carries one of the errors above.
// Store adapters use it to avoid re-wrapping classified errors.
func IsKnown(err error) bool {
	for _, target := range known {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
