package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rental-marketplace/internal/middleware"
	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/service"
)

// BookingService is the part of service.BookingService the HTTP layer
// calls.
type BookingService interface {
	Create(ctx context.Context, actor model.Actor, in service.NewBooking) (*model.Booking, error)
	Confirm(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error)
	Decline(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error)
	Cancel(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error)
	Reschedule(ctx context.Context, actor model.Actor, id uint64, checkIn, checkOut time.Time) (*model.Booking, error)
	List(ctx context.Context, actor model.Actor, f model.BookingFilter) ([]model.Booking, error)
	Get(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error)
	History(ctx context.Context, actor model.Actor, id uint64) ([]model.BookingAudit, error)
}

type BookingHandler struct {
	Bookings BookingService
}

func NewBookingHandler(s BookingService) *BookingHandler { return &BookingHandler{Bookings: s} }

// ----- DTOs -----

type createBookingReq struct {
	ListingID uint64 `json:"listing_id" validate:"required"`
	CheckIn   string `json:"check_in" validate:"required"`
	CheckOut  string `json:"check_out" validate:"required"`
	// TenantID lets a superuser book on behalf of a tenant.
	TenantID uint64 `json:"tenant_id"`
}

type rescheduleReq struct {
	CheckIn  string `json:"check_in" validate:"required"`
	CheckOut string `json:"check_out" validate:"required"`
}

type bookingResp struct {
	ID        uint64              `json:"id"`
	ListingID uint64              `json:"listing_id"`
	TenantID  uint64              `json:"tenant_id"`
	CheckIn   string              `json:"check_in"`
	CheckOut  string              `json:"check_out"`
	Nights    int                 `json:"nights"`
	Status    model.BookingStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}

func toBookingResp(b *model.Booking) bookingResp {
	return bookingResp{
		ID:        b.ID,
		ListingID: b.ListingID,
		TenantID:  b.TenantID,
		CheckIn:   b.CheckIn.Format(model.DateLayout),
		CheckOut:  b.CheckOut.Format(model.DateLayout),
		Nights:    b.Nights(),
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
	}
}

type auditResp struct {
	ID        uint64              `json:"id"`
	ActorID   uint64              `json:"actor_id"`
	From      model.BookingStatus `json:"from_status,omitempty"`
	To        model.BookingStatus `json:"to_status"`
	Message   string              `json:"message"`
	CreatedAt time.Time           `json:"created_at"`
}

// parseRange parses a check-in/check-out pair; the message names the
// offending field.
func parseRange(in, out string) (time.Time, time.Time, string) {
	ci, err := model.ParseDate(in)
	if err != nil {
		return time.Time{}, time.Time{}, "check_in: " + err.Error()
	}
	co, err := model.ParseDate(out)
	if err != nil {
		return time.Time{}, time.Time{}, "check_out: " + err.Error()
	}
	return ci, co, ""
}

// List: GET /v1/bookings?status=&listing_id=
func (h *BookingHandler) List(c echo.Context) error {
	var f model.BookingFilter
	if s := c.QueryParam("status"); s != "" {
		st, ok := model.ParseBookingStatus(s)
		if !ok {
			return badRequest(c, "unknown status")
		}
		f.Status = st
	}
	if s := c.QueryParam("listing_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return badRequest(c, "invalid listing_id")
		}
		f.ListingID = id
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.Bookings.List(ctx, middleware.ActorFrom(c), f)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]bookingResp, 0, len(items))
	for i := range items {
		out = append(out, toBookingResp(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Create: POST /v1/bookings
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	ci, co, msg := parseRange(req.CheckIn, req.CheckOut)
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.Create(ctx, middleware.ActorFrom(c), service.NewBooking{
		ListingID: req.ListingID,
		TenantID:  req.TenantID,
		CheckIn:   ci,
		CheckOut:  co,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingResp(b))
}

// Get: GET /v1/bookings/:id
func (h *BookingHandler) Get(c echo.Context) error {
	return h.one(c, h.Bookings.Get)
}

// Confirm: POST /v1/bookings/:id/confirm
func (h *BookingHandler) Confirm(c echo.Context) error {
	return h.one(c, h.Bookings.Confirm)
}

// Decline: POST /v1/bookings/:id/decline
func (h *BookingHandler) Decline(c echo.Context) error {
	return h.one(c, h.Bookings.Decline)
}

// Cancel: POST /v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.one(c, h.Bookings.Cancel)
}

// one runs an id-only booking operation and renders the booking.
func (h *BookingHandler) one(c echo.Context, op func(context.Context, model.Actor, uint64) (*model.Booking, error)) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := op(ctx, middleware.ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(b))
}

// Reschedule: PATCH /v1/bookings/:id
func (h *BookingHandler) Reschedule(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req rescheduleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	ci, co, msg := parseRange(req.CheckIn, req.CheckOut)
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.Reschedule(ctx, middleware.ActorFrom(c), id, ci, co)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(b))
}

// History: GET /v1/bookings/:id/history
func (h *BookingHandler) History(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	entries, err := h.Bookings.History(ctx, middleware.ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]auditResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditResp{ID: e.ID, ActorID: e.ActorID, From: e.From, To: e.To, Message: e.Message, CreatedAt: e.CreatedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
