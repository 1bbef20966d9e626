package repository

import (
	"context"

	"github.com/arunvm123/ticketinventory/model"
)

// InventoryStore defines the transactional contract used by the booking engine.
//
// Calls made with a context returned inside RunInTransaction join that
// transaction. GetEventForUpdate holds the event row until the transaction
// ends; SaveEvent succeeds only when the stored version still equals
// expectedVersion and returns model.ErrConflict otherwise.
type InventoryStore interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	GetEventForUpdate(ctx context.Context, eventID string) (*model.Event, error)
	SaveEvent(ctx context.Context, event *model.Event, expectedVersion int64) error

	InsertBooking(ctx context.Context, booking *model.Booking) (*model.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*model.Booking, error)
	SaveBooking(ctx context.Context, booking *model.Booking) error
}

// CatalogRepository defines admin writes and the queries behind the read path
type CatalogRepository interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Event operations
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEventByID(ctx context.Context, eventID string) (*model.Event, error)
	UpdateEventDetails(ctx context.Context, req model.UpdateEventDetailsRequest) (*model.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, int, error)

	// Booking queries
	CountBookingsForEvent(ctx context.Context, eventID string) (int64, error)
	ListEventBookings(ctx context.Context, eventID string) ([]model.Booking, error)
	ListUserBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, int, error)

	// Category operations
	CreateCategory(ctx context.Context, category *model.Category) error
	GetCategory(ctx context.Context, categoryID string) (*model.Category, error)
	UpdateCategoryName(ctx context.Context, categoryID, name string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
	CountEventsInCategory(ctx context.Context, categoryID string) (int64, error)

	// Tag operations
	CreateTag(ctx context.Context, tag *model.Tag) error
	GetTag(ctx context.Context, tagID string) (*model.Tag, error)
	UpdateTagName(ctx context.Context, tagID, name string) (*model.Tag, error)
	// RenameEventTag replaces oldName with newName in every event carrying it
	// and returns how many events changed.
	RenameEventTag(ctx context.Context, oldName, newName string) (int64, error)
	ListTags(ctx context.Context) ([]model.Tag, error)
	DeleteTag(ctx context.Context, tagID string) error
	CountEventsWithTag(ctx context.Context, tagName string) (int64, error)

	// Health check
	Ping(ctx context.Context) error
}

// Repository is satisfied by every concrete store in this module.
type Repository interface {
	InventoryStore
	CatalogRepository
}
