package model

import (
	"time"
)

// ============================================================================
// DATABASE ENTITIES (Internal - GORM only, no JSON tags)
// ============================================================================

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "Confirmed"
	BookingStatusCancelled BookingStatus = "Cancelled"
)

// Booking represents the database model for bookings.
// Status moves Confirmed -> Cancelled once and never back.
type Booking struct {
	ID              string        `gorm:"type:text;primary_key"`
	EventID         string        `gorm:"type:text;not null;index"`
	UserID          string        `gorm:"type:text;not null;index"`
	TicketCount     int           `gorm:"not null;check:ticket_count > 0"`
	TotalPriceMinor int64         `gorm:"not null"`
	Status          BookingStatus `gorm:"type:varchar(20);not null"`
	BookingDate     time.Time     `gorm:"not null"`
	CancelledAt     *time.Time
	UpdatedAt       time.Time
}

// TableName sets the table name for GORM
func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}

// ============================================================================
// REPOSITORY DATA TRANSFER OBJECTS (Internal - no JSON tags)
// ============================================================================

// BookingFilter represents filtering options for booking queries
type BookingFilter struct {
	UserID string
	Status BookingStatus
	Limit  int
	Offset int
}

// ============================================================================
// API DATA TRANSFER OBJECTS (External - JSON tags for HTTP)
// ============================================================================

// ReserveTicketsRequest represents the API request to reserve tickets
type ReserveTicketsRequest struct {
	EventID     string `json:"event_id" binding:"required"`
	TicketCount int    `json:"ticket_count" binding:"required"`
}

// UpdateTicketCountRequest represents the API request to change a booking's size
type UpdateTicketCountRequest struct {
	TicketCount int `json:"ticket_count" binding:"required"`
}

// BookingResponse represents a booking in API responses
type BookingResponse struct {
	BookingID       string     `json:"booking_id"`
	EventID         string     `json:"event_id"`
	UserID          string     `json:"user_id"`
	TicketCount     int        `json:"ticket_count"`
	TotalPriceMinor int64      `json:"total_price_minor"`
	Status          string     `json:"status"`
	BookingDate     time.Time  `json:"booking_date"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	Message         string     `json:"message,omitempty"`
}

// UserBookingsResponse represents the response for listing user bookings
type UserBookingsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Total    int               `json:"total"`
}

// ============================================================================
// CONVERSION METHODS
// ============================================================================

func (b *Booking) ToBookingResponse() BookingResponse {
	return BookingResponse{
		BookingID:       b.ID,
		EventID:         b.EventID,
		UserID:          b.UserID,
		TicketCount:     b.TicketCount,
		TotalPriceMinor: b.TotalPriceMinor,
		Status:          string(b.Status),
		BookingDate:     b.BookingDate,
		CancelledAt:     b.CancelledAt,
	}
}
