package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/arunvm123/ticketinventory/engine"
	"github.com/arunvm123/ticketinventory/model"
	"github.com/arunvm123/ticketinventory/service"
	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	engine  *engine.Engine
	catalog *service.CatalogService
	store   pinger
	cache   pinger
}

func NewHandler(eng *engine.Engine, catalog *service.CatalogService, store, cache pinger) *Handler {
	return &Handler{
		engine:  eng,
		catalog: catalog,
		store:   store,
		cache:   cache,
	}
}

// errorStatus maps a domain error onto an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case model.IsValidation(err):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, model.ErrEventNotFound),
		errors.Is(err, model.ErrBookingNotFound),
		errors.Is(err, model.ErrCategoryNotFound),
		errors.Is(err, model.ErrTagNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, model.ErrInsufficientInventory):
		return http.StatusConflict, "insufficient_inventory"
	case errors.Is(err, model.ErrEventInactive):
		return http.StatusConflict, "event_inactive"
	case errors.Is(err, model.ErrEventHasBookings):
		return http.StatusConflict, "event_has_bookings"
	case errors.Is(err, model.ErrCategoryInUse), errors.Is(err, model.ErrTagInUse):
		return http.StatusConflict, "in_use"
	case errors.Is(err, model.ErrDuplicateName):
		return http.StatusConflict, "duplicate_name"
	case errors.Is(err, model.ErrCapacityBelowSold):
		return http.StatusConflict, "capacity_below_sold"
	case errors.Is(err, model.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, model.ErrTimeout), errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		zlog.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		if status == http.StatusInternalServerError {
			msg = "Internal server error"
		}
	}
	c.JSON(status, model.ErrorResponse{
		Error:     code,
		Message:   msg,
		Retryable: model.IsRetryable(err),
	})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Error:   "validation_failed",
		Message: err.Error(),
	})
}

// ============================================================================
// READ PATH
// ============================================================================

// ListEvents handles event listing with filtering and pagination
func (h *Handler) ListEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(model.DefaultPageSize)))

	resp, err := h.catalog.ListEvents(c.Request.Context(), model.EventQuery{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetEvent handles retrieving a single event by ID
func (h *Handler) GetEvent(c *gin.Context) {
	event, err := h.catalog.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) GetCategory(c *gin.Context) {
	category, err := h.catalog.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) GetTag(c *gin.Context) {
	tag, err := h.catalog.GetTag(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

// ListEventsByTag pages through the events carrying a tag
func (h *Handler) ListEventsByTag(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(model.DefaultPageSize)))

	resp, err := h.catalog.ListEventsByTag(c.Request.Context(), c.Param("id"), model.EventQuery{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.catalog.ListTags(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// ============================================================================
// BOOKINGS
// ============================================================================

// ReserveTickets handles a ticket reservation for the authenticated user
func (h *Handler) ReserveTickets(c *gin.Context) {
	var req model.ReserveTicketsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	booking, err := h.engine.ReserveTickets(c.Request.Context(), req.EventID, c.GetString("user_id"), req.TicketCount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking.ToBookingResponse())
}

func (h *Handler) GetBooking(c *gin.Context) {
	booking, err := h.catalog.GetBooking(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking.ToBookingResponse())
}

// ListUserBookings handles listing the authenticated user's bookings
func (h *Handler) ListUserBookings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := h.catalog.ListUserBookings(c.Request.Context(), model.BookingFilter{
		UserID: c.GetString("user_id"),
		Status: model.BookingStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdateBookingTicketCount(c *gin.Context) {
	var req model.UpdateTicketCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	booking, err := h.engine.UpdateBookingTicketCount(c.Request.Context(), c.Param("id"), c.GetString("user_id"), req.TicketCount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking.ToBookingResponse())
}

// CancelBooking is idempotent: cancelling a cancelled booking answers 200.
func (h *Handler) CancelBooking(c *gin.Context) {
	booking, err := h.engine.CancelBooking(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if errors.Is(err, model.ErrAlreadyCancelled) && booking != nil {
		resp := booking.ToBookingResponse()
		resp.Message = "Booking already cancelled"
		c.JSON(http.StatusOK, resp)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	resp := booking.ToBookingResponse()
	resp.Message = "Booking cancelled successfully"
	c.JSON(http.StatusOK, resp)
}

// ============================================================================
// ADMIN
// ============================================================================

func (h *Handler) CreateEvent(c *gin.Context) {
	var req model.CreateEventAPIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	event, err := h.catalog.CreateEvent(c.Request.Context(), req.ToCreateEventRequest())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event.ToEventResponse())
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	var req model.UpdateEventAPIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	event, err := h.catalog.UpdateEventDetails(c.Request.Context(), req.ToUpdateEventDetailsRequest(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event.ToEventResponse())
}

func (h *Handler) ListEventBookings(c *gin.Context) {
	bookings, err := h.catalog.ListEventBookings(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	if err := h.catalog.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ResizeEventCapacity(c *gin.Context) {
	var req model.ResizeCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	event, err := h.engine.ResizeEventCapacity(c.Request.Context(), c.Param("id"), req.Capacity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event.ToEventResponse())
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req model.CreateNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	category, err := h.catalog.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category.ToCategoryResponse())
}

func (h *Handler) RenameCategory(c *gin.Context) {
	var req model.CreateNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	category, err := h.catalog.RenameCategory(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category.ToCategoryResponse())
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.catalog.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateTag(c *gin.Context) {
	var req model.CreateNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	tag, err := h.catalog.CreateTag(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag.ToTagResponse())
}

func (h *Handler) RenameTag(c *gin.Context) {
	var req model.CreateNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	tag, err := h.catalog.RenameTag(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag.ToTagResponse())
}

func (h *Handler) DeleteTag(c *gin.Context) {
	if err := h.catalog.DeleteTag(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HealthCheck reports degraded when only the cache is down
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		zlog.Error().Err(err).Msg("store health check failed")
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error:   "service_unavailable",
			Message: "Inventory store unavailable",
		})
		return
	}

	response := model.HealthResponse{
		Status:    "healthy",
		Service:   "ticket-inventory",
		Cache:     "up",
		Timestamp: time.Now(),
	}
	if h.cache == nil {
		response.Cache = "disabled"
	} else if err := h.cache.Ping(ctx); err != nil {
		zlog.Warn().Err(err).Msg("cache health check failed")
		response.Status = "degraded"
		response.Cache = "down"
	}

	c.JSON(http.StatusOK, response)
}
