// Package service holds the catalog read path and the admin writes that are
// not ticket mutations. Reads go through the cache layer; writes notify the
// invalidation coordinator after they commit.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arunvm123/ticketinventory/cache"
	"github.com/arunvm123/ticketinventory/model"
	"github.com/arunvm123/ticketinventory/repository"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Notifier is told about writes after they commit.
type Notifier interface {
	OnWriteCommitted(ev model.DomainEvent)
}

type CatalogService struct {
	repo     repository.Repository
	cache    *cache.Layer
	notifier Notifier
	now      func() time.Time
}

func NewCatalogService(repo repository.Repository, layer *cache.Layer, notifier Notifier) *CatalogService {
	return &CatalogService{
		repo:     repo,
		cache:    layer,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *CatalogService) notify(ev model.DomainEvent) {
	if s.notifier == nil {
		return
	}
	ev.OccurredAt = s.now()
	s.notifier.OnWriteCommitted(ev)
}

// ============================================================================
// READ PATH
// ============================================================================

func (s *CatalogService) GetEvent(ctx context.Context, eventID string) (*model.EventResponse, error) {
	if eventID == "" {
		return nil, model.ErrInvalidID
	}
	return cache.GetOrCompute(ctx, s.cache, cache.EventByIDKey(eventID), s.cache.TTL(cache.ClassEvent),
		func(ctx context.Context) (*model.EventResponse, error) {
			event, err := s.repo.GetEventByID(ctx, eventID)
			if err != nil {
				return nil, err
			}
			return event.ToEventResponse(), nil
		})
}

// ListEvents returns one page of events. The query is normalized before the
// cache key is built so equivalent requests share an entry.
func (s *CatalogService) ListEvents(ctx context.Context, q model.EventQuery) (model.EventListResponse, error) {
	q = q.Normalize()
	q.Search = strings.TrimSpace(q.Search)
	q.Tag = strings.TrimSpace(q.Tag)
	key := cache.EventListKey(q.Page, q.PageSize, q.Search, q.Category, q.Tag)

	return cache.GetOrCompute(ctx, s.cache, key, s.cache.TTL(cache.ClassList),
		func(ctx context.Context) (model.EventListResponse, error) {
			events, total, err := s.repo.ListEvents(ctx, q.ToEventFilter())
			if err != nil {
				return model.EventListResponse{}, err
			}
			out := make([]model.EventResponse, 0, len(events))
			for i := range events {
				out = append(out, *events[i].ToEventResponse())
			}
			return model.EventListResponse{
				Events:     out,
				Pagination: model.NewPagination(q, total),
			}, nil
		})
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]model.CategoryResponse, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.CategoriesAllKey, s.cache.TTL(cache.ClassCatalog),
		func(ctx context.Context) ([]model.CategoryResponse, error) {
			categories, err := s.repo.ListCategories(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]model.CategoryResponse, 0, len(categories))
			for i := range categories {
				out = append(out, categories[i].ToCategoryResponse())
			}
			return out, nil
		})
}

func (s *CatalogService) ListTags(ctx context.Context) ([]model.TagResponse, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.TagsAllKey, s.cache.TTL(cache.ClassCatalog),
		func(ctx context.Context) ([]model.TagResponse, error) {
			tags, err := s.repo.ListTags(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]model.TagResponse, 0, len(tags))
			for i := range tags {
				out = append(out, tags[i].ToTagResponse())
			}
			return out, nil
		})
}

// ListEventsByTag resolves the tag and lists the events carrying its name.
func (s *CatalogService) ListEventsByTag(ctx context.Context, tagID string, q model.EventQuery) (model.EventListResponse, error) {
	if tagID == "" {
		return model.EventListResponse{}, model.ErrInvalidID
	}
	tag, err := s.repo.GetTag(ctx, tagID)
	if err != nil {
		return model.EventListResponse{}, err
	}
	q.Tag = tag.Name
	return s.ListEvents(ctx, q)
}

func (s *CatalogService) GetCategory(ctx context.Context, categoryID string) (*model.CategoryResponse, error) {
	if categoryID == "" {
		return nil, model.ErrInvalidID
	}
	category, err := s.repo.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	resp := category.ToCategoryResponse()
	return &resp, nil
}

func (s *CatalogService) GetTag(ctx context.Context, tagID string) (*model.TagResponse, error) {
	if tagID == "" {
		return nil, model.ErrInvalidID
	}
	tag, err := s.repo.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}
	resp := tag.ToTagResponse()
	return &resp, nil
}

// GetBooking returns a booking owned by userID. Bookings are never cached.
func (s *CatalogService) GetBooking(ctx context.Context, bookingID, userID string) (*model.Booking, error) {
	if bookingID == "" {
		return nil, model.ErrInvalidID
	}
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, model.ErrForbidden
	}
	return booking, nil
}

func (s *CatalogService) ListUserBookings(ctx context.Context, filter model.BookingFilter) (model.UserBookingsResponse, error) {
	if filter.Limit < 1 || filter.Limit > model.MaxPageSize {
		filter.Limit = model.MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	bookings, total, err := s.repo.ListUserBookings(ctx, filter)
	if err != nil {
		return model.UserBookingsResponse{}, err
	}
	out := make([]model.BookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookings[i].ToBookingResponse())
	}
	return model.UserBookingsResponse{Bookings: out, Total: total}, nil
}

// ============================================================================
// EVENT ADMIN
// ============================================================================

// ListEventBookings returns every booking of an event, cancelled ones included.
func (s *CatalogService) ListEventBookings(ctx context.Context, eventID string) ([]model.BookingResponse, error) {
	if eventID == "" {
		return nil, model.ErrInvalidID
	}
	if _, err := s.repo.GetEventByID(ctx, eventID); err != nil {
		return nil, err
	}
	bookings, err := s.repo.ListEventBookings(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]model.BookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookings[i].ToBookingResponse())
	}
	return out, nil
}

func validateEventFields(name string, priceMinor int64) error {
	if strings.TrimSpace(name) == "" {
		return model.ErrInvalidName
	}
	if priceMinor < 0 {
		return model.ErrInvalidPrice
	}
	return nil
}

// CreateEvent stores a new event with every ticket available.
func (s *CatalogService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	if err := validateEventFields(req.Name, req.PriceMinor); err != nil {
		return nil, err
	}
	if req.Capacity <= 0 {
		return nil, model.ErrInvalidCapacity
	}

	now := s.now()
	event := &model.Event{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		VenueInfo:        req.VenueInfo,
		CategoryID:       req.CategoryID,
		Tags:             req.Tags,
		EventDate:        req.EventDate,
		PriceMinor:       req.PriceMinor,
		Capacity:         req.Capacity,
		AvailableTickets: req.Capacity,
		IsActive:         req.IsActive,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	zlog.Info().Str("event_id", event.ID).Int("capacity", event.Capacity).Msg("event created")
	s.notify(model.DomainEvent{
		Type:            model.EventCreated,
		EventID:         event.ID,
		CategoryChanged: event.CategoryID != "",
		TagsChanged:     len(event.Tags) > 0,
	})
	return event, nil
}

// UpdateEventDetails rewrites descriptive fields. Capacity and availability
// only change through the booking engine.
func (s *CatalogService) UpdateEventDetails(ctx context.Context, req model.UpdateEventDetailsRequest) (*model.Event, error) {
	if req.ID == "" {
		return nil, model.ErrInvalidID
	}
	if err := validateEventFields(req.Name, req.PriceMinor); err != nil {
		return nil, err
	}

	var (
		before  *model.Event
		updated *model.Event
	)
	err := s.repo.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		before, err = s.repo.GetEventForUpdate(ctx, req.ID)
		if err != nil {
			return err
		}
		updated, err = s.repo.UpdateEventDetails(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	zlog.Info().Str("event_id", req.ID).Int64("version", updated.Version).Msg("event details updated")
	s.notify(model.DomainEvent{
		Type:            model.EventUpdated,
		EventID:         req.ID,
		CategoryChanged: before.CategoryID != updated.CategoryID,
		TagsChanged:     !sameTags(before.Tags, updated.Tags),
	})
	return updated, nil
}

// DeleteEvent removes an event that has never been booked. Bookings keep
// their event reference, so an event with any booking stays.
func (s *CatalogService) DeleteEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return model.ErrInvalidID
	}

	var event *model.Event
	err := s.repo.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		event, err = s.repo.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		n, err := s.repo.CountBookingsForEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d bookings", model.ErrEventHasBookings, n)
		}
		return s.repo.DeleteEvent(ctx, eventID)
	})
	if err != nil {
		return err
	}

	zlog.Info().Str("event_id", eventID).Msg("event deleted")
	s.notify(model.DomainEvent{
		Type:            model.EventDeleted,
		EventID:         eventID,
		CategoryChanged: event.CategoryID != "",
		TagsChanged:     len(event.Tags) > 0,
	})
	return nil
}

// sameTags compares tag lists as sets.
func sameTags(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if !set[t] {
			return false
		}
	}
	other := make(map[string]bool, len(b))
	for _, t := range b {
		other[t] = true
	}
	return len(set) == len(other)
}

// ============================================================================
// CATEGORIES AND TAGS
// ============================================================================

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return "", model.ErrInvalidName
	}
	return name, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	category := &model.Category{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	s.notify(model.DomainEvent{Type: model.CategoryChanged})
	return category, nil
}

// RenameCategory changes a category's display name. Events reference
// categories by id, so only the category and list caches go stale.
func (s *CatalogService) RenameCategory(ctx context.Context, categoryID, name string) (*model.Category, error) {
	if categoryID == "" {
		return nil, model.ErrInvalidID
	}
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	category, err := s.repo.UpdateCategoryName(ctx, categoryID, name)
	if err != nil {
		return nil, err
	}
	zlog.Info().Str("category_id", categoryID).Str("name", name).Msg("category renamed")
	s.notify(model.DomainEvent{Type: model.CategoryChanged})
	return category, nil
}

// DeleteCategory refuses while any event still references the category.
func (s *CatalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	if categoryID == "" {
		return model.ErrInvalidID
	}
	err := s.repo.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := s.repo.CountEventsInCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d events", model.ErrCategoryInUse, n)
		}
		return s.repo.DeleteCategory(ctx, categoryID)
	})
	if err != nil {
		return err
	}
	s.notify(model.DomainEvent{Type: model.CategoryChanged})
	return nil
}

func (s *CatalogService) CreateTag(ctx context.Context, name string) (*model.Tag, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	tag := &model.Tag{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	if err := s.repo.CreateTag(ctx, tag); err != nil {
		return nil, err
	}
	s.notify(model.DomainEvent{Type: model.TagChanged})
	return tag, nil
}

// RenameTag renames the tag and every event's copy of the name in one
// transaction.
func (s *CatalogService) RenameTag(ctx context.Context, tagID, name string) (*model.Tag, error) {
	if tagID == "" {
		return nil, model.ErrInvalidID
	}
	name, err := validName(name)
	if err != nil {
		return nil, err
	}

	var (
		tag     *model.Tag
		touched int64
	)
	err = s.repo.RunInTransaction(ctx, func(ctx context.Context) error {
		old, err := s.repo.GetTag(ctx, tagID)
		if err != nil {
			return err
		}
		tag, err = s.repo.UpdateTagName(ctx, tagID, name)
		if err != nil {
			return err
		}
		if old.Name == name {
			return nil
		}
		touched, err = s.repo.RenameEventTag(ctx, old.Name, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	zlog.Info().Str("tag_id", tagID).Str("name", name).Int64("events", touched).Msg("tag renamed")
	s.notify(model.DomainEvent{Type: model.TagRenamed})
	return tag, nil
}

// DeleteTag refuses while any event carries the tag's name.
func (s *CatalogService) DeleteTag(ctx context.Context, tagID string) error {
	if tagID == "" {
		return model.ErrInvalidID
	}
	err := s.repo.RunInTransaction(ctx, func(ctx context.Context) error {
		tag, err := s.repo.GetTag(ctx, tagID)
		if err != nil {
			return err
		}
		n, err := s.repo.CountEventsWithTag(ctx, tag.Name)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d events", model.ErrTagInUse, n)
		}
		return s.repo.DeleteTag(ctx, tagID)
	})
	if err != nil {
		return err
	}
	s.notify(model.DomainEvent{Type: model.TagChanged})
	return nil
}
