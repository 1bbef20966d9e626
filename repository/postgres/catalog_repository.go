package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/arunvm123/ticketinventory/model"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Event operations
func (r *PostgresRepository) CreateEvent(ctx context.Context, event *model.Event) error {
	return mapError(r.conn(ctx).Create(event).Error)
}

func (r *PostgresRepository) GetEventByID(ctx context.Context, eventID string) (*model.Event, error) {
	var event model.Event
	if err := r.conn(ctx).Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrEventNotFound
		}
		return nil, mapError(err)
	}
	return &event, nil
}

// UpdateEventDetails rewrites descriptive columns and bumps the version so an
// in-flight engine compare-and-swap on the same row fails and retries.
func (r *PostgresRepository) UpdateEventDetails(ctx context.Context, req model.UpdateEventDetailsRequest) (*model.Event, error) {
	result := r.conn(ctx).
		Model(&model.Event{}).
		Where("id = ?", req.ID).
		Updates(map[string]interface{}{
			"name":        req.Name,
			"description": req.Description,
			"venue_info":  req.VenueInfo,
			"category_id": req.CategoryID,
			"tags":        pq.StringArray(req.Tags),
			"event_date":  req.EventDate,
			"price_minor": req.PriceMinor,
			"is_active":   req.IsActive,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, model.ErrEventNotFound
	}
	return r.GetEventByID(ctx, req.ID)
}

func (r *PostgresRepository) DeleteEvent(ctx context.Context, eventID string) error {
	result := r.conn(ctx).Where("id = ?", eventID).Delete(&model.Event{})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

func (r *PostgresRepository) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, int, error) {
	var events []model.Event
	var total int64

	query := r.conn(ctx).Model(&model.Event{})

	// Apply filters
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", like, like)
	}
	if filter.CategoryID != "" {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Tag != "" {
		query = query.Where("? = ANY(tags)", filter.Tag)
	}

	// Get total count
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}

	// Apply pagination and get results
	if err := query.Offset(filter.Offset).Limit(filter.Limit).Order("event_date ASC, id ASC").Find(&events).Error; err != nil {
		return nil, 0, mapError(err)
	}

	return events, int(total), nil
}

// Booking queries
func (r *PostgresRepository) CountBookingsForEvent(ctx context.Context, eventID string) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&model.Booking{}).Where("event_id = ?", eventID).Count(&count).Error
	return count, mapError(err)
}

func (r *PostgresRepository) ListEventBookings(ctx context.Context, eventID string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.conn(ctx).Where("event_id = ?", eventID).Order("booking_date ASC").Find(&bookings).Error
	return bookings, mapError(err)
}

func (r *PostgresRepository) ListUserBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, int, error) {
	var bookings []model.Booking
	var total int64

	query := r.conn(ctx).Model(&model.Booking{}).Where("user_id = ?", filter.UserID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}

	if err := query.Order("booking_date DESC").Offset(filter.Offset).Limit(filter.Limit).Find(&bookings).Error; err != nil {
		return nil, 0, mapError(err)
	}

	return bookings, int(total), nil
}

// Category operations
func (r *PostgresRepository) CreateCategory(ctx context.Context, category *model.Category) error {
	return mapError(r.conn(ctx).Create(category).Error)
}

func (r *PostgresRepository) GetCategory(ctx context.Context, categoryID string) (*model.Category, error) {
	var category model.Category
	if err := r.conn(ctx).Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrCategoryNotFound
		}
		return nil, mapError(err)
	}
	return &category, nil
}

// UpdateCategoryName relies on the unique index for duplicate names.
func (r *PostgresRepository) UpdateCategoryName(ctx context.Context, categoryID, name string) (*model.Category, error) {
	result := r.conn(ctx).Model(&model.Category{}).Where("id = ?", categoryID).Update("name", name)
	if result.Error != nil {
		return nil, mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, model.ErrCategoryNotFound
	}
	return r.GetCategory(ctx, categoryID)
}

func (r *PostgresRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := r.conn(ctx).Order("name ASC").Find(&categories).Error
	return categories, mapError(err)
}

func (r *PostgresRepository) DeleteCategory(ctx context.Context, categoryID string) error {
	result := r.conn(ctx).Where("id = ?", categoryID).Delete(&model.Category{})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrCategoryNotFound
	}
	return nil
}

func (r *PostgresRepository) CountEventsInCategory(ctx context.Context, categoryID string) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&model.Event{}).Where("category_id = ?", categoryID).Count(&count).Error
	return count, mapError(err)
}

// Tag operations
func (r *PostgresRepository) CreateTag(ctx context.Context, tag *model.Tag) error {
	return mapError(r.conn(ctx).Create(tag).Error)
}

func (r *PostgresRepository) GetTag(ctx context.Context, tagID string) (*model.Tag, error) {
	var tag model.Tag
	if err := r.conn(ctx).Where("id = ?", tagID).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrTagNotFound
		}
		return nil, mapError(err)
	}
	return &tag, nil
}

func (r *PostgresRepository) UpdateTagName(ctx context.Context, tagID, name string) (*model.Tag, error) {
	result := r.conn(ctx).Model(&model.Tag{}).Where("id = ?", tagID).Update("name", name)
	if result.Error != nil {
		return nil, mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, model.ErrTagNotFound
	}
	return r.GetTag(ctx, tagID)
}

// RenameEventTag rewrites the tags array in place. The UPDATE takes each row
// lock, and the version bump makes a concurrent engine CAS retry.
func (r *PostgresRepository) RenameEventTag(ctx context.Context, oldName, newName string) (int64, error) {
	result := r.conn(ctx).
		Model(&model.Event{}).
		Where("? = ANY(tags)", oldName).
		Updates(map[string]interface{}{
			"tags":       gorm.Expr("array_replace(tags, ?, ?)", oldName, newName),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, mapError(result.Error)
}

func (r *PostgresRepository) ListTags(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	err := r.conn(ctx).Order("name ASC").Find(&tags).Error
	return tags, mapError(err)
}

func (r *PostgresRepository) DeleteTag(ctx context.Context, tagID string) error {
	result := r.conn(ctx).Where("id = ?", tagID).Delete(&model.Tag{})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrTagNotFound
	}
	return nil
}

func (r *PostgresRepository) CountEventsWithTag(ctx context.Context, tagName string) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&model.Event{}).Where("? = ANY(tags)", tagName).Count(&count).Error
	return count, mapError(err)
}
