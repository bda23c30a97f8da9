package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rental-marketplace/internal/middleware"
	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/service"
)

// ReviewService is the part of service.ReviewService the HTTP layer
// calls.
type ReviewService interface {
	Create(ctx context.Context, actor model.Actor, listingID uint64, rating int, comment string) (*model.Review, error)
	List(ctx context.Context, actor model.Actor, listingID uint64) ([]model.Review, error)
	Get(ctx context.Context, actor model.Actor, id uint64) (*model.Review, error)
	Update(ctx context.Context, actor model.Actor, id uint64, ch service.ReviewChanges) (*model.Review, error)
	Delete(ctx context.Context, actor model.Actor, id uint64) error
}

type ReviewHandler struct {
	Reviews ReviewService
}

func NewReviewHandler(s ReviewService) *ReviewHandler { return &ReviewHandler{Reviews: s} }

// The rating range is enforced by the review gate so its message and
// check order stay in one place.
type createReviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment" validate:"max=2000"`
}

type updateReviewReq struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment" validate:"omitnil,max=2000"`
}

type reviewResp struct {
	ID        uint64    `json:"id"`
	ListingID uint64    `json:"listing_id"`
	AuthorID  uint64    `json:"author_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toReviewResp(r *model.Review) reviewResp {
	return reviewResp{
		ID:        r.ID,
		ListingID: r.ListingID,
		AuthorID:  r.AuthorID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// List: GET /v1/listings/:id/reviews
func (h *ReviewHandler) List(c echo.Context) error {
	listingID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.Reviews.List(ctx, middleware.ActorFrom(c), listingID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]reviewResp, 0, len(items))
	for i := range items {
		out = append(out, toReviewResp(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Create: POST /v1/listings/:id/reviews
func (h *ReviewHandler) Create(c echo.Context) error {
	listingID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	var req createReviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reviews.Create(ctx, middleware.ActorFrom(c), listingID, req.Rating, req.Comment)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toReviewResp(r))
}

// Get: GET /v1/reviews/:id
func (h *ReviewHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid review id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reviews.Get(ctx, middleware.ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toReviewResp(r))
}

// Update: PATCH /v1/reviews/:id
func (h *ReviewHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid review id")
	}
	var req updateReviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reviews.Update(ctx, middleware.ActorFrom(c), id, service.ReviewChanges{Rating: req.Rating, Comment: req.Comment})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toReviewResp(r))
}

// Delete: DELETE /v1/reviews/:id
func (h *ReviewHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid review id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Reviews.Delete(ctx, middleware.ActorFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
