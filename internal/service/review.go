package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/policy"
)

// ReviewService guards review creation behind the eligibility gate and
// enforces author-or-staff edits.
type ReviewService struct {
	store   Store
	clock   Clock
	reviews policy.ReviewPolicy
}

// NewReviewService wires a review service. A nil clock uses the system
// clock.
func NewReviewService(store Store, clock Clock) *ReviewService {
	if store == nil {
		panic("nil store passed to NewReviewService")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReviewService{store: store, clock: clock}
}

// Create stores the actor's review of a listing. The checks run in a
// fixed order and stop at the first failure:
//
//  1. rating within 1..5
//  2. no earlier review by the actor on the listing
//  3. the actor has at least one booking on the listing
//  4. at least one of those bookings is CONFIRMED
//
// The gate and the insert share a transaction; the unique key on
// (listing, author) still catches a concurrent duplicate, which is then
// reported as a conflict. A deactivated listing can still be reviewed
// by a tenant whose stay there was confirmed.
func (s *ReviewService) Create(ctx context.Context, actor model.Actor, listingID uint64, rating int, comment string) (*model.Review, error) {
	if !s.reviews.Can(actor, policy.Create, nil) {
		return nil, ErrForbidden
	}
	var out *model.Review
	err := s.store.WithinTx(ctx, func(r Repositories) error {
		if err := listingExists(ctx, r, listingID); err != nil {
			return err
		}
		if err := s.gate(ctx, r, actor.ID, listingID, rating); err != nil {
			return err
		}
		now := s.clock.Now()
		rv := &model.Review{
			ListingID: listingID,
			AuthorID:  actor.ID,
			Rating:    rating,
			Comment:   strings.TrimSpace(comment),
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := r.Reviews().InsertReview(ctx, rv)
		if errors.Is(err, ErrDuplicate) {
			return ErrReviewRace
		}
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
		out = rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ReviewService) gate(ctx context.Context, r Repositories, authorID, listingID uint64, rating int) error {
	if !model.ValidRating(rating) {
		return ErrRatingRange
	}
	exists, err := r.Reviews().ReviewExists(ctx, listingID, authorID)
	if err != nil {
		return fmt.Errorf("check review: %w", err)
	}
	if exists {
		return ErrDuplicateReview
	}
	statuses, err := r.Bookings().TenantBookingStatuses(ctx, listingID, authorID)
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}
	if len(statuses) == 0 {
		return ErrNoBooking
	}
	for _, st := range statuses {
		if st == model.StatusConfirmed {
			return nil
		}
	}
	return ErrBookingNotConfirmed
}

// List returns the reviews of a listing, newest first. Reviews are
// public regardless of the listing's state.
func (s *ReviewService) List(ctx context.Context, actor model.Actor, listingID uint64) ([]model.Review, error) {
	if !s.reviews.Can(actor, policy.View, nil) {
		return nil, ErrForbidden
	}
	if err := listingExists(ctx, s.store, listingID); err != nil {
		return nil, err
	}
	items, err := s.store.Reviews().ListReviews(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return items, nil
}

func (s *ReviewService) Get(ctx context.Context, actor model.Actor, id uint64) (*model.Review, error) {
	rv, err := s.load(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if !s.reviews.Can(actor, policy.View, rv) {
		return nil, ErrForbidden
	}
	return rv, nil
}

// ReviewChanges carries an edit. Nil fields are left untouched.
type ReviewChanges struct {
	Rating  *int
	Comment *string
}

// Update edits a review. Only its author or staff may do so.
func (s *ReviewService) Update(ctx context.Context, actor model.Actor, id uint64, ch ReviewChanges) (*model.Review, error) {
	var out *model.Review
	err := s.store.WithinTx(ctx, func(r Repositories) error {
		rv, err := s.load(ctx, r, id)
		if err != nil {
			return err
		}
		if !s.reviews.Can(actor, policy.Update, rv) {
			return ErrForbidden
		}
		if ch.Rating != nil {
			if !model.ValidRating(*ch.Rating) {
				return ErrRatingRange
			}
			rv.Rating = *ch.Rating
		}
		if ch.Comment != nil {
			rv.Comment = strings.TrimSpace(*ch.Comment)
		}
		rv.UpdatedAt = s.clock.Now()
		if err := r.Reviews().UpdateReview(ctx, rv); err != nil {
			return fmt.Errorf("update review: %w", err)
		}
		out = rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a review. Only its author or staff may do so.
func (s *ReviewService) Delete(ctx context.Context, actor model.Actor, id uint64) error {
	return s.store.WithinTx(ctx, func(r Repositories) error {
		rv, err := s.load(ctx, r, id)
		if err != nil {
			return err
		}
		if !s.reviews.Can(actor, policy.Delete, rv) {
			return ErrForbidden
		}
		if err := r.Reviews().DeleteReview(ctx, id); err != nil {
			return fmt.Errorf("delete review: %w", err)
		}
		return nil
	})
}

func (s *ReviewService) load(ctx context.Context, r Repositories, id uint64) (*model.Review, error) {
	rv, err := r.Reviews().GetReview(ctx, id)
	if errors.Is(err, ErrNoRecord) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load review: %w", err)
	}
	return rv, nil
}

// listingExists ignores listing visibility; it only tells a missing
// listing apart from one with no reviews.
func listingExists(ctx context.Context, r Repositories, id uint64) error {
	_, err := r.Listings().GetListing(ctx, id)
	if errors.Is(err, ErrNoRecord) {
		return ErrListingNotFound
	}
	if err != nil {
		return fmt.Errorf("load listing: %w", err)
	}
	return nil
}
