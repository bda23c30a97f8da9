package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rental-marketplace/internal/middleware"
	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/service"
)

// ListingService is the part of service.ListingService the HTTP layer
// calls.
type ListingService interface {
	Create(ctx context.Context, actor model.Actor, in service.NewListing) (*model.Listing, error)
	Update(ctx context.Context, actor model.Actor, id uint64, ch model.ListingChanges) (*model.Listing, error)
	Delete(ctx context.Context, actor model.Actor, id uint64) error
	Get(ctx context.Context, actor model.Actor, id uint64) (*model.Listing, error)
	List(ctx context.Context, actor model.Actor, f model.ListingFilter) ([]model.Listing, int, error)
	AverageRating(ctx context.Context, actor model.Actor, id uint64) (model.Rating, error)
}

type ListingHandler struct {
	Listings ListingService
}

func NewListingHandler(s ListingService) *ListingHandler { return &ListingHandler{Listings: s} }

// ----- DTOs -----

type createListingReq struct {
	Title       string         `json:"title" validate:"required,max=255"`
	Description string         `json:"description"`
	Address     string         `json:"address" validate:"required,max=255"`
	City        string         `json:"city" validate:"required,max=100"`
	Price       *model.Money   `json:"price" validate:"required"`
	RoomsCount  int            `json:"rooms_count" validate:"required,min=1"`
	RoomType    model.RoomType `json:"room_type" validate:"required"`
	IsActive    *bool          `json:"is_active"`
}

type updateListingReq struct {
	Title       *string         `json:"title" validate:"omitnil,min=1,max=255"`
	Description *string         `json:"description"`
	Address     *string         `json:"address" validate:"omitnil,min=1,max=255"`
	City        *string         `json:"city" validate:"omitnil,min=1,max=100"`
	Price       *model.Money    `json:"price"`
	RoomsCount  *int            `json:"rooms_count" validate:"omitnil,min=1"`
	RoomType    *model.RoomType `json:"room_type"`
	IsActive    *bool           `json:"is_active"`
}

type listingResp struct {
	ID            uint64         `json:"id"`
	OwnerID       uint64         `json:"owner_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Address       string         `json:"address"`
	City          string         `json:"city"`
	Price         model.Money    `json:"price"`
	PriceDisplay  string         `json:"price_display"`
	RoomsCount    int            `json:"rooms_count"`
	RoomType      model.RoomType `json:"room_type"`
	RoomTypeLabel string         `json:"room_type_label"`
	IsActive      bool           `json:"is_active"`
	AvgRating     model.Rating   `json:"avg_rating"`
	ReviewCount   int            `json:"review_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func toListingResp(l *model.Listing) listingResp {
	return listingResp{
		ID:            l.ID,
		OwnerID:       l.OwnerID,
		Title:         l.Title,
		Description:   l.Description,
		Address:       l.Address,
		City:          l.City,
		Price:         l.Price,
		PriceDisplay:  l.PriceDisplay(),
		RoomsCount:    l.RoomsCount,
		RoomType:      l.RoomType,
		RoomTypeLabel: l.RoomType.Label(),
		IsActive:      l.IsActive,
		AvgRating:     l.Rating,
		ReviewCount:   l.Rating.Count,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

type listingPage struct {
	Items    []listingResp `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int           `json:"total"`
}

type ratingResp struct {
	ListingID   uint64       `json:"listing_id"`
	AvgRating   model.Rating `json:"avg_rating"`
	ReviewCount int          `json:"review_count"`
}

// List: GET /v1/listings
func (h *ListingHandler) List(c echo.Context) error {
	f, msg := listingFilterFrom(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	items, total, err := h.Listings.List(ctx, middleware.ActorFrom(c), f)
	if err != nil {
		return respondError(c, err)
	}
	f.Normalize()
	out := listingPage{Items: make([]listingResp, 0, len(items)), Page: f.Page, PageSize: f.PageSize, Total: total}
	for i := range items {
		out.Items = append(out.Items, toListingResp(&items[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// Get: GET /v1/listings/:id
func (h *ListingHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	l, err := h.Listings.Get(ctx, middleware.ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toListingResp(l))
}

// Rating: GET /v1/listings/:id/rating
func (h *ListingHandler) Rating(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Listings.AverageRating(ctx, middleware.ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ratingResp{ListingID: id, AvgRating: r, ReviewCount: r.Count})
}

// Create: POST /v1/listings
func (h *ListingHandler) Create(c echo.Context) error {
	var req createListingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	rt, ok := model.ParseRoomType(string(req.RoomType))
	if !ok {
		return badRequest(c, "unknown room_type")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	l, err := h.Listings.Create(ctx, middleware.ActorFrom(c), service.NewListing{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		City:        req.City,
		Price:       *req.Price,
		RoomsCount:  req.RoomsCount,
		RoomType:    rt,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toListingResp(l))
}

// Update: PATCH /v1/listings/:id
func (h *ListingHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	var req updateListingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	ch := model.ListingChanges{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		City:        req.City,
		Price:       req.Price,
		RoomsCount:  req.RoomsCount,
		IsActive:    req.IsActive,
	}
	if req.RoomType != nil {
		rt, ok := model.ParseRoomType(string(*req.RoomType))
		if !ok {
			return badRequest(c, "unknown room_type")
		}
		ch.RoomType = &rt
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	l, err := h.Listings.Update(ctx, middleware.ActorFrom(c), id, ch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toListingResp(l))
}

// Delete: DELETE /v1/listings/:id
func (h *ListingHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Listings.Delete(ctx, middleware.ActorFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type roomTypeResp struct {
	Value model.RoomType `json:"value"`
	Label string         `json:"label"`
}

// RoomTypes: GET /v1/room-types
func RoomTypes(c echo.Context) error {
	out := make([]roomTypeResp, 0, len(model.RoomTypes))
	for _, t := range model.RoomTypes {
		out = append(out, roomTypeResp{Value: t, Label: t.Label()})
	}
	return c.JSON(http.StatusOK, out)
}

// listingFilterFrom reads the search query string. The second result is
// a client-facing message when a parameter is malformed.
func listingFilterFrom(c echo.Context) (model.ListingFilter, string) {
	q := c.QueryParams()
	f := model.ListingFilter{
		City:     q.Get("city"),
		Address:  q.Get("address"),
		Search:   q.Get("search"),
		Ordering: strings.TrimSpace(q.Get("ordering")),
	}
	for _, p := range []struct {
		name string
		dst  **model.Money
	}{{"min_price", &f.MinPrice}, {"max_price", &f.MaxPrice}} {
		if s := q.Get(p.name); s != "" {
			m, err := model.ParseMoney(s)
			if err != nil {
				return f, p.name + " must be a decimal amount"
			}
			*p.dst = &m
		}
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"min_rooms", &f.MinRooms}, {"max_rooms", &f.MaxRooms}, {"page", &f.Page}, {"page_size", &f.PageSize}} {
		if s := q.Get(p.name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return f, p.name + " must be a non-negative integer"
			}
			*p.dst = n
		}
	}
	if f.Page > model.MaxPage {
		return f, "page must be at most " + strconv.Itoa(model.MaxPage)
	}
	if s := q.Get("room_type"); s != "" {
		rt, ok := model.ParseRoomType(s)
		if !ok {
			return f, "unknown room_type"
		}
		f.RoomType = rt
	}
	return f, ""
}
