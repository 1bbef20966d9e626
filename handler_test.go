package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arunvm123/ticketinventory/engine"
	"github.com/arunvm123/ticketinventory/model"
	"github.com/arunvm123/ticketinventory/repository/memory"
	"github.com/arunvm123/ticketinventory/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	router  *gin.Engine
	jwt     *JWTService
	catalog *service.CatalogService
}

func setupServer(t *testing.T, cache pinger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewRepository()
	catalog := service.NewCatalogService(repo, nil, nil)
	eng := engine.New(repo, nil, engine.WithRetry(3, time.Millisecond))
	jwtService := NewJWTService("test-secret")

	return &testServer{
		router:  NewRouter(NewHandler(eng, catalog, repo, cache), jwtService),
		jwt:     jwtService,
		catalog: catalog,
	}
}

func (s *testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := s.jwt.GenerateToken(userID, userID+"@example.com", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) seedEvent(t *testing.T, capacity int) string {
	t.Helper()
	ev, err := s.catalog.CreateEvent(context.Background(), model.CreateEventRequest{
		Name:       "Concert",
		VenueInfo:  "Arena",
		EventDate:  time.Now().Add(48 * time.Hour),
		PriceMinor: 5000,
		Capacity:   capacity,
		IsActive:   true,
	})
	require.NoError(t, err)
	return ev.ID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestReserveAndCancelFlow(t *testing.T) {
	s := setupServer(t, nil)
	eventID := s.seedEvent(t, 5)
	user := s.token(t, "u1", "user")

	w := s.do(t, http.MethodPost, "/api/bookings", user, model.ReserveTicketsRequest{EventID: eventID, TicketCount: 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode[model.BookingResponse](t, w)
	assert.Equal(t, int64(15000), booking.TotalPriceMinor)
	assert.Equal(t, "Confirmed", booking.Status)

	w = s.do(t, http.MethodGet, "/api/events/"+eventID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[model.EventResponse](t, w).AvailableTickets)

	w = s.do(t, http.MethodPost, "/api/bookings", user, model.ReserveTicketsRequest{EventID: eventID, TicketCount: 3})
	require.Equal(t, http.StatusConflict, w.Code)
	errResp := decode[model.ErrorResponse](t, w)
	assert.Equal(t, "insufficient_inventory", errResp.Error)
	assert.False(t, errResp.Retryable)

	w = s.do(t, http.MethodDelete, "/api/bookings/"+booking.BookingID, user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Booking cancelled successfully", decode[model.BookingResponse](t, w).Message)

	w = s.do(t, http.MethodDelete, "/api/bookings/"+booking.BookingID, user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cancelled := decode[model.BookingResponse](t, w)
	assert.Equal(t, "Booking already cancelled", cancelled.Message)
	assert.Equal(t, "Cancelled", cancelled.Status)

	w = s.do(t, http.MethodGet, "/api/events/"+eventID, "", nil)
	assert.Equal(t, 5, decode[model.EventResponse](t, w).AvailableTickets)
}

func TestBookingOwnership(t *testing.T) {
	s := setupServer(t, nil)
	eventID := s.seedEvent(t, 5)
	owner := s.token(t, "u1", "user")
	other := s.token(t, "u2", "user")

	w := s.do(t, http.MethodPost, "/api/bookings", owner, model.ReserveTicketsRequest{EventID: eventID, TicketCount: 1})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[model.BookingResponse](t, w).BookingID

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/bookings/"+id, other, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, "/api/bookings/"+id, other, nil).Code)
	assert.Equal(t, http.StatusForbidden,
		s.do(t, http.MethodPatch, "/api/bookings/"+id, other, model.UpdateTicketCountRequest{TicketCount: 2}).Code)

	w = s.do(t, http.MethodPatch, "/api/bookings/"+id, owner, model.UpdateTicketCountRequest{TicketCount: 4})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, decode[model.BookingResponse](t, w).TicketCount)

	w = s.do(t, http.MethodGet, "/api/bookings", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[model.UserBookingsResponse](t, w).Total)
}

func TestReserveTickets_BadRequests(t *testing.T) {
	s := setupServer(t, nil)
	eventID := s.seedEvent(t, 5)
	user := s.token(t, "u1", "user")

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"missing event", map[string]interface{}{"ticket_count": 1}, http.StatusBadRequest},
		{"negative count", model.ReserveTicketsRequest{EventID: eventID, TicketCount: -2}, http.StatusBadRequest},
		{"unknown event", model.ReserveTicketsRequest{EventID: "nope", TicketCount: 1}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/bookings", user, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestAuthRequired(t *testing.T) {
	s := setupServer(t, nil)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/bookings", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/bookings", "garbage", nil).Code)

	expired, err := s.jwt.GenerateToken("u1", "u1@example.com", "user", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/bookings", expired, nil).Code)

	forged, err := NewJWTService("other-secret").GenerateToken("u1", "u1@example.com", "admin", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/bookings", forged, nil).Code)
}

func TestAdminRoutes(t *testing.T) {
	s := setupServer(t, nil)
	user := s.token(t, "u1", "user")
	admin := s.token(t, "a1", "admin")

	create := map[string]interface{}{
		"name":        "Festival",
		"venue_info":  "Park",
		"event_date":  time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"price_minor": 1000,
		"capacity":    10,
	}
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/admin/events", user, create).Code)

	w := s.do(t, http.MethodPost, "/api/admin/events", admin, create)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ev := decode[model.EventResponse](t, w)
	assert.True(t, ev.IsActive)
	assert.Equal(t, 10, ev.AvailableTickets)

	w = s.do(t, http.MethodPost, "/api/bookings", user, model.ReserveTicketsRequest{EventID: ev.EventID, TicketCount: 4})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPut, "/api/admin/events/"+ev.EventID+"/capacity", admin, model.ResizeCapacityRequest{Capacity: 3})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(t, http.MethodPut, "/api/admin/events/"+ev.EventID+"/capacity", admin, model.ResizeCapacityRequest{Capacity: 20})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 16, decode[model.EventResponse](t, w).AvailableTickets)

	w = s.do(t, http.MethodDelete, "/api/admin/events/"+ev.EventID, admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "event_has_bookings", decode[model.ErrorResponse](t, w).Error)

	w = s.do(t, http.MethodPost, "/api/admin/categories", admin, model.CreateNamedRequest{Name: "Music"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodPost, "/api/admin/categories", admin, model.CreateNamedRequest{Name: "Music"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/tags", admin, model.CreateNamedRequest{Name: "outdoor"})
	require.Equal(t, http.StatusCreated, w.Code)
	tag := decode[model.TagResponse](t, w)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/admin/tags/"+tag.TagID, admin, nil).Code)

	w = s.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.CategoryResponse](t, w), 1)
}

func TestListEventsEndpoint(t *testing.T) {
	s := setupServer(t, nil)
	for i := 0; i < 3; i++ {
		s.seedEvent(t, 5)
	}

	w := s.do(t, http.MethodGet, "/api/events?page=1&page_size=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[model.EventListResponse](t, w)
	assert.Len(t, resp.Events, 2)
	assert.Equal(t, 3, resp.Pagination.Total)
	assert.True(t, resp.Pagination.HasMore)
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		cache  pinger
		status string
		cached string
	}{
		{"cache disabled", nil, "healthy", "disabled"},
		{"cache up", stubPinger{}, "healthy", "up"},
		{"cache down", stubPinger{err: errors.New("connection refused")}, "degraded", "down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupServer(t, tt.cache)
			w := s.do(t, http.MethodGet, "/health", "", nil)
			require.Equal(t, http.StatusOK, w.Code)
			resp := decode[model.HealthResponse](t, w)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.cached, resp.Cache)
		})
	}
}

func TestHealthCheck_StoreDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, stubPinger{err: errors.New("db gone")}, nil)
	r := gin.New()
	r.GET("/health", h.HealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{model.ErrInvalidTicketCount, http.StatusBadRequest},
		{model.ErrBookingNotFound, http.StatusNotFound},
		{model.ErrForbidden, http.StatusForbidden},
		{model.ErrInsufficientInventory, http.StatusConflict},
		{model.ErrConcurrentModification, http.StatusConflict},
		{model.ErrTimeout, http.StatusServiceUnavailable},
		{model.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestEventBookingsEndpoint(t *testing.T) {
	s := setupServer(t, nil)
	eventID := s.seedEvent(t, 5)
	user := s.token(t, "u1", "user")
	admin := s.token(t, "a1", "admin")

	w := s.do(t, http.MethodPost, "/api/bookings", user, model.ReserveTicketsRequest{EventID: eventID, TicketCount: 2})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[model.BookingResponse](t, w).BookingID
	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/bookings/"+id, user, nil).Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/admin/events/"+eventID+"/bookings", user, nil).Code)

	w = s.do(t, http.MethodGet, "/api/admin/events/"+eventID+"/bookings", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	bookings := decode[[]model.BookingResponse](t, w)
	require.Len(t, bookings, 1)
	assert.Equal(t, "Cancelled", bookings[0].Status)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/admin/events/missing/bookings", admin, nil).Code)
}

func TestCancelBooking_OtherUserSeesForbiddenAfterCancel(t *testing.T) {
	s := setupServer(t, nil)
	eventID := s.seedEvent(t, 5)
	owner := s.token(t, "u1", "user")
	other := s.token(t, "u2", "user")

	w := s.do(t, http.MethodPost, "/api/bookings", owner, model.ReserveTicketsRequest{EventID: eventID, TicketCount: 1})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[model.BookingResponse](t, w).BookingID
	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/bookings/"+id, owner, nil).Code)

	w = s.do(t, http.MethodDelete, "/api/bookings/"+id, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "Cancelled")
}

func TestRenameAndLookupCatalogEntries(t *testing.T) {
	s := setupServer(t, nil)
	admin := s.token(t, "a1", "admin")
	user := s.token(t, "u1", "user")

	w := s.do(t, http.MethodPost, "/api/admin/tags", admin, model.CreateNamedRequest{Name: "outdoor"})
	require.Equal(t, http.StatusCreated, w.Code)
	tag := decode[model.TagResponse](t, w)
	w = s.do(t, http.MethodPost, "/api/admin/categories", admin, model.CreateNamedRequest{Name: "Music"})
	require.Equal(t, http.StatusCreated, w.Code)
	category := decode[model.CategoryResponse](t, w)

	_, err := s.catalog.CreateEvent(context.Background(), model.CreateEventRequest{
		Name:      "Picnic",
		VenueInfo: "Park",
		EventDate: time.Now().Add(48 * time.Hour),
		Capacity:  5,
		Tags:      []string{"outdoor"},
		IsActive:  true,
	})
	require.NoError(t, err)
	s.seedEvent(t, 5)

	w = s.do(t, http.MethodGet, "/api/tags/"+tag.TagID+"/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[model.EventListResponse](t, w).Pagination.Total)

	w = s.do(t, http.MethodGet, "/api/events?tag=outdoor", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[model.EventListResponse](t, w).Pagination.Total)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPut, "/api/admin/tags/"+tag.TagID, user, model.CreateNamedRequest{Name: "garden"}).Code)
	w = s.do(t, http.MethodPut, "/api/admin/tags/"+tag.TagID, admin, model.CreateNamedRequest{Name: "garden"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "garden", decode[model.TagResponse](t, w).Name)

	w = s.do(t, http.MethodGet, "/api/tags/"+tag.TagID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "garden", decode[model.TagResponse](t, w).Name)

	w = s.do(t, http.MethodGet, "/api/events?tag=garden", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[model.EventListResponse](t, w)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, []string{"garden"}, resp.Events[0].Tags)

	w = s.do(t, http.MethodPut, "/api/admin/categories/"+category.CategoryID, admin, model.CreateNamedRequest{Name: "Live"})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/categories/"+category.CategoryID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Live", decode[model.CategoryResponse](t, w).Name)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/categories/missing", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/tags/missing/events", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/admin/tags/"+tag.TagID, admin, map[string]string{}).Code)
}
