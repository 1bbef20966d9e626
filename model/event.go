package model

import (
	"time"

	"github.com/lib/pq"
)

// ===============================
// Database Entities (Internal)
// ===============================

// Event represents the event entity in the database.
// AvailableTickets is owned by the booking engine; catalog updates never write it.
type Event struct {
	ID               string `gorm:"type:text;primary_key"`
	Name             string `gorm:"not null"`
	Description      string
	VenueInfo        string         `gorm:"not null"`
	CategoryID       string         `gorm:"type:text;index"`
	Tags             pq.StringArray `gorm:"type:text[]"`
	EventDate        time.Time      `gorm:"not null"`
	PriceMinor       int64          `gorm:"not null"`
	Capacity         int            `gorm:"not null"`
	AvailableTickets int            `gorm:"not null;check:available_tickets >= 0"`
	IsActive         bool           `gorm:"not null"`
	Version          int64          `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName sets the table name for GORM
func (Event) TableName() string {
	return "events"
}

// SoldTickets is the number of tickets held by confirmed bookings.
func (e *Event) SoldTickets() int {
	return e.Capacity - e.AvailableTickets
}

// Category groups events for browsing.
type Category struct {
	ID        string `gorm:"type:text;primary_key"`
	Name      string `gorm:"type:varchar(100);not null;uniqueIndex"`
	CreatedAt time.Time
}

func (Category) TableName() string {
	return "categories"
}

// Tag is a free-form label attached to events by name.
type Tag struct {
	ID        string `gorm:"type:text;primary_key"`
	Name      string `gorm:"type:varchar(100);not null;uniqueIndex"`
	CreatedAt time.Time
}

func (Tag) TableName() string {
	return "tags"
}

// Conversion methods to API DTOs
func (e *Event) ToEventResponse() *EventResponse {
	tags := make([]string, len(e.Tags))
	copy(tags, e.Tags)
	return &EventResponse{
		EventID:          e.ID,
		Name:             e.Name,
		Description:      e.Description,
		VenueInfo:        e.VenueInfo,
		CategoryID:       e.CategoryID,
		Tags:             tags,
		EventDate:        e.EventDate,
		PriceMinor:       e.PriceMinor,
		Capacity:         e.Capacity,
		AvailableTickets: e.AvailableTickets,
		IsActive:         e.IsActive,
		Version:          e.Version,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func (c *Category) ToCategoryResponse() CategoryResponse {
	return CategoryResponse{CategoryID: c.ID, Name: c.Name}
}

func (t *Tag) ToTagResponse() TagResponse {
	return TagResponse{TagID: t.ID, Name: t.Name}
}

// ===============================
// Repository DTOs (Internal)
// ===============================

// CreateEventRequest represents input for creating an event in repository layer
type CreateEventRequest struct {
	Name        string
	Description string
	VenueInfo   string
	CategoryID  string
	Tags        []string
	EventDate   time.Time
	PriceMinor  int64
	Capacity    int
	IsActive    bool
}

// UpdateEventDetailsRequest carries the descriptive fields of an event.
// Ticket counters are deliberately absent.
type UpdateEventDetailsRequest struct {
	ID          string
	Name        string
	Description string
	VenueInfo   string
	CategoryID  string
	Tags        []string
	EventDate   time.Time
	PriceMinor  int64
	IsActive    bool
}

// EventFilter represents filtering options for repository layer
type EventFilter struct {
	Search     string
	CategoryID string
	// Tag matches one entry of the event's tag names exactly.
	Tag        string
	Limit      int
	Offset     int
}

// EventQuery is a page request from the read path.
type EventQuery struct {
	Page     int
	PageSize int
	Search   string
	Category string
	Tag      string
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps the page request into its valid range.
func (q EventQuery) Normalize() EventQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

func (q EventQuery) ToEventFilter() EventFilter {
	return EventFilter{
		Search:     q.Search,
		CategoryID: q.Category,
		Tag:        q.Tag,
		Limit:      q.PageSize,
		Offset:     (q.Page - 1) * q.PageSize,
	}
}

// ===============================
// API DTOs (External)
// ===============================

// CreateEventAPIRequest represents the API request for creating an event
type CreateEventAPIRequest struct {
	Name        string    `json:"name" binding:"required"`
	Description string    `json:"description"`
	VenueInfo   string    `json:"venue_info" binding:"required"`
	CategoryID  string    `json:"category_id"`
	Tags        []string  `json:"tags"`
	EventDate   time.Time `json:"event_date" binding:"required"`
	PriceMinor  int64     `json:"price_minor" binding:"min=0"`
	Capacity    int       `json:"capacity" binding:"required,min=1,max=100000"`
	IsActive    *bool     `json:"is_active"`
}

// ToCreateEventRequest converts API request to repository request
func (r *CreateEventAPIRequest) ToCreateEventRequest() CreateEventRequest {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return CreateEventRequest{
		Name:        r.Name,
		Description: r.Description,
		VenueInfo:   r.VenueInfo,
		CategoryID:  r.CategoryID,
		Tags:        r.Tags,
		EventDate:   r.EventDate,
		PriceMinor:  r.PriceMinor,
		Capacity:    r.Capacity,
		IsActive:    active,
	}
}

// UpdateEventAPIRequest represents the API request for updating event details
type UpdateEventAPIRequest struct {
	Name        string    `json:"name" binding:"required"`
	Description string    `json:"description"`
	VenueInfo   string    `json:"venue_info" binding:"required"`
	CategoryID  string    `json:"category_id"`
	Tags        []string  `json:"tags"`
	EventDate   time.Time `json:"event_date" binding:"required"`
	PriceMinor  int64     `json:"price_minor" binding:"min=0"`
	IsActive    bool      `json:"is_active"`
}

func (r *UpdateEventAPIRequest) ToUpdateEventDetailsRequest(id string) UpdateEventDetailsRequest {
	return UpdateEventDetailsRequest{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		VenueInfo:   r.VenueInfo,
		CategoryID:  r.CategoryID,
		Tags:        r.Tags,
		EventDate:   r.EventDate,
		PriceMinor:  r.PriceMinor,
		IsActive:    r.IsActive,
	}
}

// ResizeCapacityRequest represents the API request for resizing an event
type ResizeCapacityRequest struct {
	Capacity int `json:"capacity" binding:"required,min=1,max=100000"`
}

// CreateNamedRequest is used for both categories and tags
type CreateNamedRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// EventResponse represents event data in API responses and in the cache
type EventResponse struct {
	EventID          string    `json:"event_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	VenueInfo        string    `json:"venue_info"`
	CategoryID       string    `json:"category_id,omitempty"`
	Tags             []string  `json:"tags"`
	EventDate        time.Time `json:"event_date"`
	PriceMinor       int64     `json:"price_minor"`
	Capacity         int       `json:"capacity"`
	AvailableTickets int       `json:"available_tickets"`
	IsActive         bool      `json:"is_active"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// EventListResponse represents one cached page of events
type EventListResponse struct {
	Events     []EventResponse `json:"events"`
	Pagination Pagination      `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// NewPagination derives page counts from a normalized query and a total.
func NewPagination(q EventQuery, total int) Pagination {
	pages := 0
	if q.PageSize > 0 {
		pages = (total + q.PageSize - 1) / q.PageSize
	}
	return Pagination{
		Page:       q.Page,
		PageSize:   q.PageSize,
		Total:      total,
		TotalPages: pages,
		HasMore:    q.Page < pages,
	}
}

type CategoryResponse struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

type TagResponse struct {
	TagID string `json:"tag_id"`
	Name  string `json:"name"`
}

// ErrorResponse represents error responses
type ErrorResponse struct {
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Cache     string    `json:"cache"`
	Timestamp time.Time `json:"timestamp"`
}
