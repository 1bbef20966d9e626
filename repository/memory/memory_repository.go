// Package memory is an in-process store satisfying repository.Repository.
//
// Each transaction buffers its writes and applies them at commit under one
// mutex. GetEventForUpdate takes a per-event lock held until the transaction
// ends, mirroring SELECT ... FOR UPDATE. SaveEvent is additionally verified
// against the committed version at commit time, so callers that skip the row
// lock still get compare-and-swap semantics.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arunvm123/ticketinventory/model"
)

type Repository struct {
	mu         sync.RWMutex
	events     map[string]model.Event
	bookings   map[string]model.Booking
	categories map[string]model.Category
	tags       map[string]model.Tag

	lockMu   sync.Mutex
	rowLocks map[string]chan struct{}
}

func NewRepository() *Repository {
	return &Repository{
		events:     make(map[string]model.Event),
		bookings:   make(map[string]model.Booking),
		categories: make(map[string]model.Category),
		tags:       make(map[string]model.Tag),
		rowLocks:   make(map[string]chan struct{}),
	}
}

type txKey struct{}

type txn struct {
	held       map[string]chan struct{}
	events     overlay[model.Event]
	bookings   overlay[model.Booking]
	categories overlay[model.Category]
	tags       overlay[model.Tag]
	// expected versions recorded by SaveEvent, checked again at commit
	expected map[string]int64
}

func newTxn() *txn {
	return &txn{
		held:       make(map[string]chan struct{}),
		events:     newOverlay[model.Event](),
		bookings:   newOverlay[model.Booking](),
		categories: newOverlay[model.Category](),
		tags:       newOverlay[model.Tag](),
		expected:   make(map[string]int64),
	}
}

type overlay[T any] struct {
	puts map[string]T
	dels map[string]bool
}

func newOverlay[T any]() overlay[T] {
	return overlay[T]{puts: make(map[string]T), dels: make(map[string]bool)}
}

func (o overlay[T]) put(id string, v T) {
	delete(o.dels, id)
	o.puts[id] = v
}

func (o overlay[T]) del(id string) {
	delete(o.puts, id)
	o.dels[id] = true
}

// get resolves id through the overlay, then base.
func (o overlay[T]) get(base map[string]T, id string) (T, bool) {
	if o.dels[id] {
		var zero T
		return zero, false
	}
	if v, ok := o.puts[id]; ok {
		return v, true
	}
	v, ok := base[id]
	return v, ok
}

// merged returns base with the overlay applied.
func (o overlay[T]) merged(base map[string]T) map[string]T {
	out := make(map[string]T, len(base)+len(o.puts))
	for id, v := range base {
		if !o.dels[id] {
			out[id] = v
		}
	}
	for id, v := range o.puts {
		out[id] = v
	}
	return out
}

func (o overlay[T]) apply(base map[string]T) {
	for id := range o.dels {
		delete(base, id)
	}
	for id, v := range o.puts {
		base[id] = v
	}
}

// RunInTransaction runs fn with a fresh transaction bound to ctx. Nested calls
// join the outer transaction.
func (r *Repository) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txn); ok {
		return fn(ctx)
	}

	tx := newTxn()
	defer r.release(tx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrTimeout, err)
	}
	return r.commit(tx)
}

// within runs fn in the caller's transaction, or in a single-statement one.
func (r *Repository) within(ctx context.Context, fn func(tx *txn) error) error {
	if tx, ok := ctx.Value(txKey{}).(*txn); ok {
		return fn(tx)
	}
	tx := newTxn()
	defer r.release(tx)
	if err := fn(tx); err != nil {
		return err
	}
	return r.commit(tx)
}

func (r *Repository) commit(tx *txn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, want := range tx.expected {
		if current, ok := r.events[id]; ok && current.Version != want {
			return fmt.Errorf("%w: event %s at version %d, expected %d", model.ErrConflict, id, current.Version, want)
		}
	}
	if err := uniqueNames(tx.categories, r.categories, func(c model.Category) string { return c.Name }); err != nil {
		return fmt.Errorf("category: %w", err)
	}
	if err := uniqueNames(tx.tags, r.tags, func(t model.Tag) string { return t.Name }); err != nil {
		return fmt.Errorf("tag: %w", err)
	}

	tx.events.apply(r.events)
	tx.bookings.apply(r.bookings)
	tx.categories.apply(r.categories)
	tx.tags.apply(r.tags)
	return nil
}

// uniqueNames re-checks written names against committed rows, the way a
// unique index would. Checks made while the transaction ran saw a snapshot.
func uniqueNames[T any](o overlay[T], base map[string]T, name func(T) string) error {
	for id, v := range o.puts {
		for otherID, other := range base {
			if otherID == id || o.dels[otherID] {
				continue
			}
			if _, rewritten := o.puts[otherID]; rewritten {
				continue
			}
			if strings.EqualFold(name(v), name(other)) {
				return fmt.Errorf("%w: %q", model.ErrDuplicateName, name(v))
			}
		}
	}
	return nil
}

func (r *Repository) release(tx *txn) {
	for key, ch := range tx.held {
		<-ch
		delete(tx.held, key)
	}
}

// lockRow blocks until the row lock for key is free or ctx ends.
func (r *Repository) lockRow(ctx context.Context, tx *txn, key string) error {
	if _, ok := tx.held[key]; ok {
		return nil
	}

	r.lockMu.Lock()
	ch, ok := r.rowLocks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		r.rowLocks[key] = ch
	}
	r.lockMu.Unlock()

	select {
	case ch <- struct{}{}:
		tx.held[key] = ch
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for row %s: %v", model.ErrTimeout, key, ctx.Err())
	}
}

func eventLockKey(id string) string { return "events/" + id }

// ===============================
// InventoryStore
// ===============================

func (r *Repository) GetEventForUpdate(ctx context.Context, eventID string) (*model.Event, error) {
	var out *model.Event
	err := r.within(ctx, func(tx *txn) error {
		if err := r.lockRow(ctx, tx, eventLockKey(eventID)); err != nil {
			return err
		}
		r.mu.RLock()
		ev, ok := tx.events.get(r.events, eventID)
		r.mu.RUnlock()
		if !ok {
			return model.ErrEventNotFound
		}
		out = cloneEvent(ev)
		return nil
	})
	return out, err
}

func (r *Repository) SaveEvent(ctx context.Context, event *model.Event, expectedVersion int64) error {
	return r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		current, ok := tx.events.get(r.events, event.ID)
		committed, committedOK := r.events[event.ID]
		r.mu.RUnlock()
		if !ok {
			return model.ErrEventNotFound
		}
		if current.Version != expectedVersion {
			return fmt.Errorf("%w: event %s at version %d, expected %d", model.ErrConflict, event.ID, current.Version, expectedVersion)
		}

		// First write of this row in the transaction pins the committed version.
		if _, pinned := tx.expected[event.ID]; !pinned && committedOK {
			tx.expected[event.ID] = committed.Version
		}

		saved := current
		saved.Capacity = event.Capacity
		saved.AvailableTickets = event.AvailableTickets
		saved.Version = expectedVersion + 1
		saved.UpdatedAt = time.Now().UTC()
		tx.events.put(event.ID, saved)

		event.Version = saved.Version
		event.UpdatedAt = saved.UpdatedAt
		return nil
	})
}

func (r *Repository) InsertBooking(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		_, exists := tx.bookings.get(r.bookings, booking.ID)
		r.mu.RUnlock()
		if exists {
			return fmt.Errorf("%w: duplicate booking id %s", model.ErrStoreUnavailable, booking.ID)
		}
		tx.bookings.put(booking.ID, *booking)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (r *Repository) GetBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	var out *model.Booking
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		b, ok := tx.bookings.get(r.bookings, bookingID)
		r.mu.RUnlock()
		if !ok {
			return model.ErrBookingNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

func (r *Repository) SaveBooking(ctx context.Context, booking *model.Booking) error {
	return r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		_, ok := tx.bookings.get(r.bookings, booking.ID)
		r.mu.RUnlock()
		if !ok {
			return model.ErrBookingNotFound
		}
		booking.UpdatedAt = time.Now().UTC()
		tx.bookings.put(booking.ID, *booking)
		return nil
	})
}

// ===============================
// CatalogRepository
// ===============================

func (r *Repository) CreateEvent(ctx context.Context, event *model.Event) error {
	return r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		_, exists := tx.events.get(r.events, event.ID)
		r.mu.RUnlock()
		if exists {
			return fmt.Errorf("%w: duplicate event id %s", model.ErrStoreUnavailable, event.ID)
		}
		tx.events.put(event.ID, *cloneEvent(*event))
		return nil
	})
}

func (r *Repository) GetEventByID(ctx context.Context, eventID string) (*model.Event, error) {
	var out *model.Event
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		ev, ok := tx.events.get(r.events, eventID)
		r.mu.RUnlock()
		if !ok {
			return model.ErrEventNotFound
		}
		out = cloneEvent(ev)
		return nil
	})
	return out, err
}

func (r *Repository) UpdateEventDetails(ctx context.Context, req model.UpdateEventDetailsRequest) (*model.Event, error) {
	var out *model.Event
	err := r.within(ctx, func(tx *txn) error {
		if err := r.lockRow(ctx, tx, eventLockKey(req.ID)); err != nil {
			return err
		}
		r.mu.RLock()
		ev, ok := tx.events.get(r.events, req.ID)
		r.mu.RUnlock()
		if !ok {
			return model.ErrEventNotFound
		}

		ev.Name = req.Name
		ev.Description = req.Description
		ev.VenueInfo = req.VenueInfo
		ev.CategoryID = req.CategoryID
		ev.Tags = append([]string(nil), req.Tags...)
		ev.EventDate = req.EventDate
		ev.PriceMinor = req.PriceMinor
		ev.IsActive = req.IsActive
		ev.Version++
		ev.UpdatedAt = time.Now().UTC()
		tx.events.put(ev.ID, ev)
		out = cloneEvent(ev)
		return nil
	})
	return out, err
}

func (r *Repository) DeleteEvent(ctx context.Context, eventID string) error {
	return r.within(ctx, func(tx *txn) error {
		if err := r.lockRow(ctx, tx, eventLockKey(eventID)); err != nil {
			return err
		}
		r.mu.RLock()
		_, ok := tx.events.get(r.events, eventID)
		r.mu.RUnlock()
		if !ok {
			return model.ErrEventNotFound
		}
		tx.events.del(eventID)
		return nil
	})
}

func (r *Repository) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, int, error) {
	var page []model.Event
	var total int
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.events.merged(r.events)
		r.mu.RUnlock()

		search := strings.ToLower(filter.Search)
		matched := make([]model.Event, 0, len(all))
		for _, ev := range all {
			if filter.CategoryID != "" && ev.CategoryID != filter.CategoryID {
				continue
			}
			if filter.Tag != "" && !hasTag(ev.Tags, filter.Tag) {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(ev.Name), search) &&
				!strings.Contains(strings.ToLower(ev.Description), search) {
				continue
			}
			matched = append(matched, ev)
		}
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].EventDate.Equal(matched[j].EventDate) {
				return matched[i].ID < matched[j].ID
			}
			return matched[i].EventDate.Before(matched[j].EventDate)
		})

		total = len(matched)
		for _, ev := range window(matched, filter.Offset, filter.Limit) {
			page = append(page, *cloneEvent(ev))
		}
		return nil
	})
	return page, total, err
}

func (r *Repository) CountBookingsForEvent(ctx context.Context, eventID string) (int64, error) {
	bookings, err := r.ListEventBookings(ctx, eventID)
	return int64(len(bookings)), err
}

func (r *Repository) ListEventBookings(ctx context.Context, eventID string) ([]model.Booking, error) {
	var out []model.Booking
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.bookings.merged(r.bookings)
		r.mu.RUnlock()
		for _, b := range all {
			if b.EventID == eventID {
				out = append(out, b)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].BookingDate.Before(out[j].BookingDate) })
		return nil
	})
	return out, err
}

func (r *Repository) ListUserBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, int, error) {
	var page []model.Booking
	var total int
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.bookings.merged(r.bookings)
		r.mu.RUnlock()

		var matched []model.Booking
		for _, b := range all {
			if b.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && b.Status != filter.Status {
				continue
			}
			matched = append(matched, b)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].BookingDate.After(matched[j].BookingDate) })
		total = len(matched)
		page = window(matched, filter.Offset, filter.Limit)
		return nil
	})
	return page, total, err
}

func (r *Repository) CreateCategory(ctx context.Context, category *model.Category) error {
	return r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.categories.merged(r.categories)
		r.mu.RUnlock()
		for _, c := range all {
			if strings.EqualFold(c.Name, category.Name) {
				return fmt.Errorf("%w: category %q", model.ErrDuplicateName, category.Name)
			}
		}
		tx.categories.put(category.ID, *category)
		return nil
	})
}

func (r *Repository) GetCategory(ctx context.Context, categoryID string) (*model.Category, error) {
	var out *model.Category
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		c, ok := tx.categories.get(r.categories, categoryID)
		r.mu.RUnlock()
		if !ok {
			return model.ErrCategoryNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *Repository) UpdateCategoryName(ctx context.Context, categoryID, name string) (*model.Category, error) {
	var out *model.Category
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.categories.merged(r.categories)
		r.mu.RUnlock()
		c, ok := all[categoryID]
		if !ok {
			return model.ErrCategoryNotFound
		}
		for id, other := range all {
			if id != categoryID && strings.EqualFold(other.Name, name) {
				return fmt.Errorf("%w: category %q", model.ErrDuplicateName, name)
			}
		}
		c.Name = name
		tx.categories.put(categoryID, c)
		out = &c
		return nil
	})
	return out, err
}

func (r *Repository) ListCategories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.categories.merged(r.categories)
		r.mu.RUnlock()
		for _, c := range all {
			out = append(out, c)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

func (r *Repository) DeleteCategory(ctx context.Context, categoryID string) error {
	return r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		_, ok := tx.categories.get(r.categories, categoryID)
		r.mu.RUnlock()
		if !ok {
			return model.ErrCategoryNotFound
		}
		tx.categories.del(categoryID)
		return nil
	})
}

func (r *Repository) CountEventsInCategory(ctx context.Context, categoryID string) (int64, error) {
	var n int64
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.events.merged(r.events)
		r.mu.RUnlock()
		for _, ev := range all {
			if ev.CategoryID == categoryID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *Repository) CreateTag(ctx context.Context, tag *model.Tag) error {
	return r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.tags.merged(r.tags)
		r.mu.RUnlock()
		for _, t := range all {
			if strings.EqualFold(t.Name, tag.Name) {
				return fmt.Errorf("%w: tag %q", model.ErrDuplicateName, tag.Name)
			}
		}
		tx.tags.put(tag.ID, *tag)
		return nil
	})
}

func (r *Repository) GetTag(ctx context.Context, tagID string) (*model.Tag, error) {
	var out *model.Tag
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		t, ok := tx.tags.get(r.tags, tagID)
		r.mu.RUnlock()
		if !ok {
			return model.ErrTagNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *Repository) UpdateTagName(ctx context.Context, tagID, name string) (*model.Tag, error) {
	var out *model.Tag
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.tags.merged(r.tags)
		r.mu.RUnlock()
		t, ok := all[tagID]
		if !ok {
			return model.ErrTagNotFound
		}
		for id, other := range all {
			if id != tagID && strings.EqualFold(other.Name, name) {
				return fmt.Errorf("%w: tag %q", model.ErrDuplicateName, name)
			}
		}
		t.Name = name
		tx.tags.put(tagID, t)
		out = &t
		return nil
	})
	return out, err
}

// RenameEventTag locks every affected event row, in id order, before
// rewriting it, so engine writes on those events wait for this transaction.
func (r *Repository) RenameEventTag(ctx context.Context, oldName, newName string) (int64, error) {
	var n int64
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.events.merged(r.events)
		r.mu.RUnlock()

		var ids []string
		for id, ev := range all {
			if hasTag(ev.Tags, oldName) {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)

		for _, id := range ids {
			if err := r.lockRow(ctx, tx, eventLockKey(id)); err != nil {
				return err
			}
			r.mu.RLock()
			ev, ok := tx.events.get(r.events, id)
			r.mu.RUnlock()
			if !ok || !hasTag(ev.Tags, oldName) {
				continue
			}
			tags := make([]string, len(ev.Tags))
			for i, t := range ev.Tags {
				if t == oldName {
					t = newName
				}
				tags[i] = t
			}
			ev.Tags = tags
			ev.Version++
			ev.UpdatedAt = time.Now().UTC()
			tx.events.put(id, ev)
			n++
		}
		return nil
	})
	return n, err
}

func (r *Repository) ListTags(ctx context.Context) ([]model.Tag, error) {
	var out []model.Tag
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.tags.merged(r.tags)
		r.mu.RUnlock()
		for _, t := range all {
			out = append(out, t)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

func (r *Repository) DeleteTag(ctx context.Context, tagID string) error {
	return r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		_, ok := tx.tags.get(r.tags, tagID)
		r.mu.RUnlock()
		if !ok {
			return model.ErrTagNotFound
		}
		tx.tags.del(tagID)
		return nil
	})
}

func (r *Repository) CountEventsWithTag(ctx context.Context, tagName string) (int64, error) {
	var n int64
	err := r.within(ctx, func(tx *txn) error {
		r.mu.RLock()
		all := tx.events.merged(r.events)
		r.mu.RUnlock()
		for _, ev := range all {
			for _, t := range ev.Tags {
				if t == tagName {
					n++
					break
				}
			}
		}
		return nil
	})
	return n, err
}

func (r *Repository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func hasTag(tags []string, name string) bool {
	for _, t := range tags {
		if t == name {
			return true
		}
	}
	return false
}

func cloneEvent(ev model.Event) *model.Event {
	ev.Tags = append([]string(nil), ev.Tags...)
	return &ev
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
