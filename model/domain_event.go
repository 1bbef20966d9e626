package model

import "time"

// DomainEventType names a committed write.
type DomainEventType string

const (
	EventCreated     DomainEventType = "EventCreated"
	EventUpdated     DomainEventType = "EventUpdated"
	EventDeleted     DomainEventType = "EventDeleted"
	BookingCreated   DomainEventType = "BookingCreated"
	BookingCancelled DomainEventType = "BookingCancelled"
	BookingUpdated   DomainEventType = "BookingUpdated"
	CategoryChanged  DomainEventType = "CategoryChanged"
	TagChanged       DomainEventType = "TagChanged"
	// TagRenamed also rewrote the tag name inside events.
	TagRenamed DomainEventType = "TagRenamed"
)

// DomainEvent describes a write after its transaction committed.
type DomainEvent struct {
	Type            DomainEventType `json:"type"`
	EventID         string          `json:"event_id,omitempty"`
	BookingID       string          `json:"booking_id,omitempty"`
	CategoryChanged bool            `json:"category_changed,omitempty"`
	TagsChanged     bool            `json:"tags_changed,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// PurgeRequest is the kafka message carrying patterns whose purge failed.
type PurgeRequest struct {
	Patterns []string    `json:"patterns"`
	Cause    DomainEvent `json:"cause"`
	Attempts int         `json:"attempts"`
	FailedAt time.Time   `json:"failed_at"`
}
