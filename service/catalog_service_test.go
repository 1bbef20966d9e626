package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/arunvm123/ticketinventory/cache"
	rediscache "github.com/arunvm123/ticketinventory/cache/redis"
	"github.com/arunvm123/ticketinventory/engine"
	"github.com/arunvm123/ticketinventory/invalidation"
	"github.com/arunvm123/ticketinventory/model"
	"github.com/arunvm123/ticketinventory/repository/memory"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyPrefix = "eventbooking:"

type fixture struct {
	repo        *memory.Repository
	mr          *miniredis.Miniredis
	coordinator *invalidation.Coordinator
	catalog     *CatalogService
	engine      *engine.Engine
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	return setupFixtureWith(t, invalidation.Options{})
}

func setupFixtureWith(t *testing.T, opts invalidation.Options) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	client := goredis.NewClient(&goredis.Options{
		Addr:        mr.Addr(),
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { client.Close() })
	store := rediscache.NewWithClient(client, keyPrefix)

	repo := memory.NewRepository()
	if opts.Timeout == 0 {
		opts.Timeout = 200 * time.Millisecond
	}
	opts.Attempts = 2
	opts.Backoff = time.Millisecond
	coordinator := invalidation.NewCoordinator(store, opts)
	t.Cleanup(func() { _ = coordinator.Close(context.Background()) })

	layer := cache.NewLayer(store, cache.DefaultTTLPolicy())
	return &fixture{
		repo:        repo,
		mr:          mr,
		coordinator: coordinator,
		catalog:     NewCatalogService(repo, layer, coordinator),
		engine:      engine.New(repo, coordinator),
	}
}

func (f *fixture) createEvent(t *testing.T, name string, capacity int) *model.Event {
	t.Helper()
	ev, err := f.catalog.CreateEvent(context.Background(), model.CreateEventRequest{
		Name:       name,
		VenueInfo:  "Arena",
		EventDate:  time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC),
		PriceMinor: 1000,
		Capacity:   capacity,
		IsActive:   true,
	})
	require.NoError(t, err)
	return ev
}

func TestReadAfterReserve_ShowsNewAvailability(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Concert", 10)

	before, err := f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, before.AvailableTickets)
	page, err := f.catalog.ListEvents(ctx, model.EventQuery{})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.True(t, f.mr.Exists(keyPrefix+cache.EventByIDKey(ev.ID)))
	assert.True(t, f.mr.Exists(keyPrefix+cache.EventListKey(1, 10, "", "", "")))

	_, err = f.engine.ReserveTickets(ctx, ev.ID, "u1", 3)
	require.NoError(t, err)

	after, err := f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, after.AvailableTickets)

	page, err = f.catalog.ListEvents(ctx, model.EventQuery{})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Events[0].AvailableTickets)
}

func TestWriteSucceedsWhileCacheIsDown(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Concert", 10)

	f.mr.SetError("ERR simulated outage")

	start := time.Now()
	booking, err := f.engine.ReserveTickets(ctx, ev.ID, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, booking.Status)
	assert.Less(t, time.Since(start), 2*time.Second)

	// reads degrade to the store
	got, err := f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.AvailableTickets)

	f.coordinator.Wait()
	f.mr.SetError("")

	// the failed purge left nothing behind that hides the write
	got, err = f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.AvailableTickets)
}

func TestCachedEntryIsServedUntilInvalidated(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Concert", 10)

	_, err := f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)

	// a write that bypasses the coordinator stays invisible until TTL
	stored, err := f.repo.GetEventByID(ctx, ev.ID)
	require.NoError(t, err)
	stored.AvailableTickets = 1
	require.NoError(t, f.repo.SaveEvent(ctx, stored, stored.Version))

	cached, err := f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, cached.AvailableTickets)

	f.mr.FastForward(cache.DefaultTTLPolicy().Event + time.Second)
	fresh, err := f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.AvailableTickets)
}

func TestListEvents_NormalizesQuery(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	for _, name := range []string{"Rock Night", "Jazz Brunch", "Rock Opera"} {
		f.createEvent(t, name, 5)
	}

	page, err := f.catalog.ListEvents(ctx, model.EventQuery{Page: 0, PageSize: 500, Search: "  rock "})
	require.NoError(t, err)
	assert.Len(t, page.Events, 2)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, model.MaxPageSize, page.Pagination.PageSize)
	assert.Equal(t, 2, page.Pagination.Total)
	assert.False(t, page.Pagination.HasMore)
	assert.True(t, f.mr.Exists(keyPrefix+cache.EventListKey(1, model.MaxPageSize, "rock", "", "")))

	page, err = f.catalog.ListEvents(ctx, model.EventQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Events, 1)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	empty, err := f.catalog.ListEvents(ctx, model.EventQuery{Page: 9})
	require.NoError(t, err)
	assert.NotNil(t, empty.Events)
	assert.Empty(t, empty.Events)
}

func TestCreateEvent_Validation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.catalog.CreateEvent(ctx, model.CreateEventRequest{Name: " ", Capacity: 10})
	assert.ErrorIs(t, err, model.ErrInvalidName)
	_, err = f.catalog.CreateEvent(ctx, model.CreateEventRequest{Name: "x", Capacity: 0})
	assert.ErrorIs(t, err, model.ErrInvalidCapacity)
	_, err = f.catalog.CreateEvent(ctx, model.CreateEventRequest{Name: "x", Capacity: 1, PriceMinor: -1})
	assert.ErrorIs(t, err, model.ErrInvalidPrice)

	ev := f.createEvent(t, "Valid", 4)
	assert.Equal(t, 4, ev.AvailableTickets)
	assert.Equal(t, int64(1), ev.Version)
}

func TestUpdateEventDetails_KeepsCountersAndPurges(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Concert", 10)

	_, err := f.engine.ReserveTickets(ctx, ev.ID, "u1", 4)
	require.NoError(t, err)
	_, err = f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)

	updated, err := f.catalog.UpdateEventDetails(ctx, model.UpdateEventDetailsRequest{
		ID:         ev.ID,
		Name:       "Concert (moved)",
		VenueInfo:  "Stadium",
		EventDate:  ev.EventDate.Add(24 * time.Hour),
		PriceMinor: 1200,
		IsActive:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.AvailableTickets)
	assert.Equal(t, 10, updated.Capacity)

	got, err := f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Concert (moved)", got.Name)

	_, err = f.catalog.UpdateEventDetails(ctx, model.UpdateEventDetailsRequest{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestDeleteEvent_GuardedByBookings(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	booked := f.createEvent(t, "Booked", 10)
	free := f.createEvent(t, "Free", 10)

	b, err := f.engine.ReserveTickets(ctx, booked.ID, "u1", 1)
	require.NoError(t, err)
	_, err = f.engine.CancelBooking(ctx, b.ID, "u1")
	require.NoError(t, err)

	// cancelled bookings still reference the event
	assert.ErrorIs(t, f.catalog.DeleteEvent(ctx, booked.ID), model.ErrEventHasBookings)

	_, err = f.catalog.GetEvent(ctx, free.ID)
	require.NoError(t, err)
	require.NoError(t, f.catalog.DeleteEvent(ctx, free.ID))
	_, err = f.catalog.GetEvent(ctx, free.ID)
	assert.ErrorIs(t, err, model.ErrEventNotFound)

	assert.ErrorIs(t, f.catalog.DeleteEvent(ctx, free.ID), model.ErrEventNotFound)
}

func TestCategories(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	music, err := f.catalog.CreateCategory(ctx, "Music")
	require.NoError(t, err)

	list, err := f.catalog.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, f.mr.Exists(keyPrefix+cache.CategoriesAllKey))

	_, err = f.catalog.CreateCategory(ctx, "music")
	assert.ErrorIs(t, err, model.ErrDuplicateName)
	_, err = f.catalog.CreateCategory(ctx, "")
	assert.ErrorIs(t, err, model.ErrInvalidName)

	sports, err := f.catalog.CreateCategory(ctx, "Sports")
	require.NoError(t, err)
	list, err = f.catalog.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.catalog.CreateEvent(ctx, model.CreateEventRequest{Name: "Gig", Capacity: 5, CategoryID: music.ID, IsActive: true})
	require.NoError(t, err)
	assert.ErrorIs(t, f.catalog.DeleteCategory(ctx, music.ID), model.ErrCategoryInUse)

	require.NoError(t, f.catalog.DeleteCategory(ctx, sports.ID))
	list, err = f.catalog.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, f.catalog.DeleteCategory(ctx, sports.ID), model.ErrCategoryNotFound)
}

func TestTags(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	outdoor, err := f.catalog.CreateTag(ctx, "outdoor")
	require.NoError(t, err)
	family, err := f.catalog.CreateTag(ctx, "family")
	require.NoError(t, err)

	tags, err := f.catalog.ListTags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	_, err = f.catalog.CreateEvent(ctx, model.CreateEventRequest{Name: "Picnic", Capacity: 5, Tags: []string{"outdoor"}, IsActive: true})
	require.NoError(t, err)

	assert.ErrorIs(t, f.catalog.DeleteTag(ctx, outdoor.ID), model.ErrTagInUse)
	require.NoError(t, f.catalog.DeleteTag(ctx, family.ID))
	assert.ErrorIs(t, f.catalog.DeleteTag(ctx, family.ID), model.ErrTagNotFound)

	tags, err = f.catalog.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "outdoor", tags[0].Name)
}

func TestBookingsForUser(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Concert", 10)

	b1, err := f.engine.ReserveTickets(ctx, ev.ID, "u1", 1)
	require.NoError(t, err)
	_, err = f.engine.ReserveTickets(ctx, ev.ID, "u1", 2)
	require.NoError(t, err)
	_, err = f.engine.ReserveTickets(ctx, ev.ID, "u2", 1)
	require.NoError(t, err)

	resp, err := f.catalog.ListUserBookings(ctx, model.BookingFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Bookings, 2)

	got, err := f.catalog.GetBooking(ctx, b1.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, b1.ID, got.ID)

	_, err = f.catalog.GetBooking(ctx, b1.ID, "u2")
	assert.ErrorIs(t, err, model.ErrForbidden)
}

type countingNotifier struct {
	mu     sync.Mutex
	events []model.DomainEvent
}

func (n *countingNotifier) OnWriteCommitted(ev model.DomainEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func TestWritesNotifyAfterCommitOnly(t *testing.T) {
	repo := memory.NewRepository()
	notifier := &countingNotifier{}
	svc := NewCatalogService(repo, nil, notifier)
	ctx := context.Background()

	ev, err := svc.CreateEvent(ctx, model.CreateEventRequest{Name: "A", Capacity: 1, CategoryID: "c1", IsActive: true})
	require.NoError(t, err)

	_, err = svc.UpdateEventDetails(ctx, model.UpdateEventDetailsRequest{ID: ev.ID, Name: "A", CategoryID: "c2", Tags: []string{"x"}})
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, "")
	require.Error(t, err)

	require.Len(t, notifier.events, 2)
	assert.Equal(t, model.EventCreated, notifier.events[0].Type)
	assert.True(t, notifier.events[0].CategoryChanged)
	assert.Equal(t, model.EventUpdated, notifier.events[1].Type)
	assert.True(t, notifier.events[1].CategoryChanged)
	assert.True(t, notifier.events[1].TagsChanged)
}

func TestListEvents_QueriesWithSeparatorsDoNotShareEntries(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.createEvent(t, "rock:", 5)

	page, err := f.catalog.ListEvents(ctx, model.EventQuery{Search: "rock", Category: ":"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Pagination.Total)

	page, err = f.catalog.ListEvents(ctx, model.EventQuery{Search: "rock:"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Total)

	page, err = f.catalog.ListEvents(ctx, model.EventQuery{Search: "rock", Tag: ":"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Pagination.Total)
}

func TestReserve_PurgesListPagesAcrossScanBatches(t *testing.T) {
	f := setupFixtureWith(t, invalidation.Options{ScanBatchSize: 3})
	ctx := context.Background()
	ev := f.createEvent(t, "Concert", 10)

	for size := 1; size <= 40; size++ {
		page, err := f.catalog.ListEvents(ctx, model.EventQuery{PageSize: size, Search: "concert"})
		require.NoError(t, err)
		require.Len(t, page.Events, 1)
	}
	require.Len(t, listKeys(f.mr), 40)

	_, err := f.engine.ReserveTickets(ctx, ev.ID, "u1", 3)
	require.NoError(t, err)
	assert.Empty(t, listKeys(f.mr))

	page, err := f.catalog.ListEvents(ctx, model.EventQuery{PageSize: 17, Search: "concert"})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Events[0].AvailableTickets)
}

func listKeys(mr *miniredis.Miniredis) []string {
	var out []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, keyPrefix+cache.EventListPrefix) {
			out = append(out, k)
		}
	}
	return out
}

func TestListEventsByTag(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	outdoor, err := f.catalog.CreateTag(ctx, "outdoor")
	require.NoError(t, err)
	_, err = f.catalog.CreateEvent(ctx, model.CreateEventRequest{Name: "Picnic", Capacity: 5, Tags: []string{"outdoor", "family"}, IsActive: true})
	require.NoError(t, err)
	_, err = f.catalog.CreateEvent(ctx, model.CreateEventRequest{Name: "Opera", Capacity: 5, Tags: []string{"indoor"}, IsActive: true})
	require.NoError(t, err)

	page, err := f.catalog.ListEventsByTag(ctx, outdoor.ID, model.EventQuery{})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, "Picnic", page.Events[0].Name)
	assert.True(t, f.mr.Exists(keyPrefix+cache.EventListKey(1, model.DefaultPageSize, "", "", "outdoor")))

	_, err = f.catalog.ListEventsByTag(ctx, "missing", model.EventQuery{})
	assert.ErrorIs(t, err, model.ErrTagNotFound)
}

func TestRenameTag_RewritesEventsAndCaches(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	tag, err := f.catalog.CreateTag(ctx, "outdoor")
	require.NoError(t, err)
	_, err = f.catalog.CreateTag(ctx, "family")
	require.NoError(t, err)
	ev, err := f.catalog.CreateEvent(ctx, model.CreateEventRequest{Name: "Picnic", Capacity: 5, Tags: []string{"family", "outdoor"}, IsActive: true})
	require.NoError(t, err)

	// prime every cache the rename touches
	_, err = f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	_, err = f.catalog.ListEventsByTag(ctx, tag.ID, model.EventQuery{})
	require.NoError(t, err)
	_, err = f.catalog.ListTags(ctx)
	require.NoError(t, err)

	renamed, err := f.catalog.RenameTag(ctx, tag.ID, "  open-air ")
	require.NoError(t, err)
	assert.Equal(t, "open-air", renamed.Name)

	got, err := f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"family", "open-air"}, got.Tags)
	assert.Equal(t, ev.Version+1, got.Version)

	page, err := f.catalog.ListEventsByTag(ctx, tag.ID, model.EventQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Events, 1)
	page, err = f.catalog.ListEvents(ctx, model.EventQuery{Tag: "outdoor"})
	require.NoError(t, err)
	assert.Empty(t, page.Events)

	tags, err := f.catalog.ListTags(ctx)
	require.NoError(t, err)
	names := []string{tags[0].Name, tags[1].Name}
	assert.ElementsMatch(t, []string{"family", "open-air"}, names)

	_, err = f.catalog.RenameTag(ctx, tag.ID, "Family")
	assert.ErrorIs(t, err, model.ErrDuplicateName)
	_, err = f.catalog.RenameTag(ctx, "missing", "x")
	assert.ErrorIs(t, err, model.ErrTagNotFound)
	_, err = f.catalog.RenameTag(ctx, tag.ID, " ")
	assert.ErrorIs(t, err, model.ErrInvalidName)

	// the failed rename left events untouched
	n, err := f.repo.CountEventsWithTag(ctx, "open-air")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRenameTag_KeepsTicketCounters(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	tag, err := f.catalog.CreateTag(ctx, "outdoor")
	require.NoError(t, err)
	ev, err := f.catalog.CreateEvent(ctx, model.CreateEventRequest{Name: "Picnic", Capacity: 10, Tags: []string{"outdoor"}, IsActive: true})
	require.NoError(t, err)

	_, err = f.engine.ReserveTickets(ctx, ev.ID, "u1", 4)
	require.NoError(t, err)
	_, err = f.catalog.RenameTag(ctx, tag.ID, "garden")
	require.NoError(t, err)
	_, err = f.engine.ReserveTickets(ctx, ev.ID, "u2", 1)
	require.NoError(t, err)

	got, err := f.catalog.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.AvailableTickets)
	assert.Equal(t, []string{"garden"}, got.Tags)
}

func TestRenameCategory(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	music, err := f.catalog.CreateCategory(ctx, "Music")
	require.NoError(t, err)
	_, err = f.catalog.CreateCategory(ctx, "Sports")
	require.NoError(t, err)

	_, err = f.catalog.ListCategories(ctx)
	require.NoError(t, err)

	renamed, err := f.catalog.RenameCategory(ctx, music.ID, "Live Music")
	require.NoError(t, err)
	assert.Equal(t, "Live Music", renamed.Name)

	got, err := f.catalog.GetCategory(ctx, music.ID)
	require.NoError(t, err)
	assert.Equal(t, "Live Music", got.Name)

	list, err := f.catalog.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Live Music", list[0].Name)

	_, err = f.catalog.RenameCategory(ctx, music.ID, "sports")
	assert.ErrorIs(t, err, model.ErrDuplicateName)
	_, err = f.catalog.RenameCategory(ctx, "missing", "x")
	assert.ErrorIs(t, err, model.ErrCategoryNotFound)
	_, err = f.catalog.GetCategory(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrCategoryNotFound)
}

func TestGetTag(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	tag, err := f.catalog.CreateTag(ctx, "outdoor")
	require.NoError(t, err)

	got, err := f.catalog.GetTag(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TagResponse{TagID: tag.ID, Name: "outdoor"}, *got)

	_, err = f.catalog.GetTag(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrTagNotFound)
	_, err = f.catalog.GetTag(ctx, "")
	assert.ErrorIs(t, err, model.ErrInvalidID)
}

func TestListEventBookings(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	ev := f.createEvent(t, "Concert", 10)
	other := f.createEvent(t, "Other", 10)

	b1, err := f.engine.ReserveTickets(ctx, ev.ID, "u1", 2)
	require.NoError(t, err)
	_, err = f.engine.ReserveTickets(ctx, ev.ID, "u2", 1)
	require.NoError(t, err)
	_, err = f.engine.ReserveTickets(ctx, other.ID, "u1", 1)
	require.NoError(t, err)
	_, err = f.engine.CancelBooking(ctx, b1.ID, "u1")
	require.NoError(t, err)

	bookings, err := f.catalog.ListEventBookings(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	statuses := []string{bookings[0].Status, bookings[1].Status}
	assert.ElementsMatch(t, []string{"Cancelled", "Confirmed"}, statuses)

	empty, err := f.catalog.ListEventBookings(ctx, f.createEvent(t, "Empty", 1).ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = f.catalog.ListEventBookings(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestUpdateEventDetails_ReorderedTagsAreUnchanged(t *testing.T) {
	repo := memory.NewRepository()
	notifier := &countingNotifier{}
	svc := NewCatalogService(repo, nil, notifier)
	ctx := context.Background()

	ev, err := svc.CreateEvent(ctx, model.CreateEventRequest{Name: "A", Capacity: 1, Tags: []string{"x", "y"}, IsActive: true})
	require.NoError(t, err)

	_, err = svc.UpdateEventDetails(ctx, model.UpdateEventDetailsRequest{ID: ev.ID, Name: "A", Tags: []string{"y", "x"}, IsActive: true})
	require.NoError(t, err)
	_, err = svc.UpdateEventDetails(ctx, model.UpdateEventDetailsRequest{ID: ev.ID, Name: "A", Tags: []string{"y", "y"}, IsActive: true})
	require.NoError(t, err)

	require.Len(t, notifier.events, 3)
	assert.False(t, notifier.events[1].TagsChanged)
	assert.True(t, notifier.events[2].TagsChanged)
}

func TestSameTags(t *testing.T) {
	tests := []struct {
		a, b []string
		want bool
	}{
		{nil, nil, true},
		{[]string{"x", "y"}, []string{"y", "x"}, true},
		{[]string{"x", "x", "y"}, []string{"y", "x"}, true},
		{[]string{"x"}, []string{"x", "y"}, false},
		{[]string{"x", "y"}, []string{"x"}, false},
		{[]string{"x"}, nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sameTags(tt.a, tt.b), "%v vs %v", tt.a, tt.b)
	}
}
