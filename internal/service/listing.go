package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/policy"
)

// ListingService owns listing CRUD and the average-rating projection.
type ListingService struct {
	store  Store
	clock  Clock
	policy policy.ListingPolicy
}

// NewListingService wires a listing service. A nil clock uses the
// system clock.
func NewListingService(store Store, clock Clock) *ListingService {
	if store == nil {
		panic("nil store passed to NewListingService")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ListingService{store: store, clock: clock}
}

// NewListing carries the attributes of a listing to create. IsActive
// defaults to true when nil.
type NewListing struct {
	Title       string
	Description string
	Address     string
	City        string
	Price       model.Money
	RoomsCount  int
	RoomType    model.RoomType
	IsActive    *bool
}

// Create stores a listing owned by the actor.
func (s *ListingService) Create(ctx context.Context, actor model.Actor, in NewListing) (*model.Listing, error) {
	if !s.policy.Can(actor, policy.Create, nil) {
		return nil, ErrForbidden
	}
	l := &model.Listing{
		OwnerID:     actor.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Address:     strings.TrimSpace(in.Address),
		City:        strings.TrimSpace(in.City),
		Price:       in.Price,
		RoomsCount:  in.RoomsCount,
		RoomType:    in.RoomType,
		IsActive:    true,
	}
	if in.IsActive != nil {
		l.IsActive = *in.IsActive
	}
	if err := validateListing(l); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	l.CreatedAt, l.UpdatedAt = now, now
	if err := s.store.Listings().InsertListing(ctx, l); err != nil {
		return nil, fmt.Errorf("insert listing: %w", err)
	}
	return l, nil
}

// Update applies changes to a listing the actor may modify. The owner
// is never changed.
func (s *ListingService) Update(ctx context.Context, actor model.Actor, id uint64, ch model.ListingChanges) (*model.Listing, error) {
	var out *model.Listing
	err := s.store.WithinTx(ctx, func(r Repositories) error {
		l, err := s.visible(ctx, r, actor, id, true)
		if err != nil {
			return err
		}
		if !s.policy.Can(actor, policy.Update, l) {
			return ErrForbidden
		}
		if ch.Title != nil {
			t := strings.TrimSpace(*ch.Title)
			ch.Title = &t
		}
		ch.Apply(l)
		if err := validateListing(l); err != nil {
			return err
		}
		l.UpdatedAt = s.clock.Now()
		if err := r.Listings().UpdateListing(ctx, l); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		if l.Rating, err = r.Listings().ListingRating(ctx, id); err != nil {
			return fmt.Errorf("listing rating: %w", err)
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a listing the actor may modify.
func (s *ListingService) Delete(ctx context.Context, actor model.Actor, id uint64) error {
	return s.store.WithinTx(ctx, func(r Repositories) error {
		l, err := s.visible(ctx, r, actor, id, true)
		if err != nil {
			return err
		}
		if !s.policy.Can(actor, policy.Delete, l) {
			return ErrForbidden
		}
		if err := r.Listings().DeleteListing(ctx, id); err != nil {
			return fmt.Errorf("delete listing: %w", err)
		}
		return nil
	})
}

// Get returns a listing visible to the actor, with its rating.
func (s *ListingService) Get(ctx context.Context, actor model.Actor, id uint64) (*model.Listing, error) {
	return s.visible(ctx, s.store, actor, id, false)
}

// List returns one page of the actor's visible listings and the total
// number of matches.
func (s *ListingService) List(ctx context.Context, actor model.Actor, f model.ListingFilter) ([]model.Listing, int, error) {
	if err := validateFilter(&f); err != nil {
		return nil, 0, err
	}
	items, total, err := s.store.Listings().ListListings(ctx, s.policy.Scope(actor), f)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	return items, total, nil
}

// AverageRating returns the rating of a listing visible to the actor.
func (s *ListingService) AverageRating(ctx context.Context, actor model.Actor, id uint64) (model.Rating, error) {
	if _, err := s.visible(ctx, s.store, actor, id, false); err != nil {
		return model.Rating{}, err
	}
	rating, err := s.store.Listings().ListingRating(ctx, id)
	if err != nil {
		return model.Rating{}, fmt.Errorf("listing rating: %w", err)
	}
	return rating, nil
}

// visible loads listing id and hides it when it falls outside the
// actor's scope. With lock set the row is locked for the transaction.
func (s *ListingService) visible(ctx context.Context, r Repositories, actor model.Actor, id uint64, lock bool) (*model.Listing, error) {
	return visibleListing(ctx, r, s.policy, actor, id, lock)
}

func visibleListing(ctx context.Context, r Repositories, p policy.ListingPolicy, actor model.Actor, id uint64, lock bool) (*model.Listing, error) {
	var (
		l   *model.Listing
		err error
	)
	if lock {
		l, err = r.Listings().LockListing(ctx, id)
	} else {
		l, err = r.Listings().GetListing(ctx, id)
	}
	if errors.Is(err, ErrNoRecord) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load listing: %w", err)
	}
	if !p.Can(actor, policy.View, l) {
		return nil, ErrListingNotFound
	}
	return l, nil
}

func validateListing(l *model.Listing) error {
	switch {
	case l.Title == "":
		return invalid("title is required")
	case len(l.Title) > 255:
		return invalid("title must be at most 255 characters")
	case l.Address == "":
		return invalid("address is required")
	case l.City == "":
		return invalid("city is required")
	case l.RoomsCount <= 0:
		return invalid("rooms_count must be a positive integer")
	case l.Price < 0 || l.Price > model.MaxMoney:
		return invalid("price is out of range")
	}
	if _, ok := model.ParseRoomType(string(l.RoomType)); !ok {
		return invalid("unknown room_type")
	}
	return nil
}

func validateFilter(f *model.ListingFilter) error {
	f.Normalize()
	if !model.ValidListingOrdering(f.Ordering) {
		return invalid("unknown ordering")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return invalid("min_price must not exceed max_price")
	}
	if f.MinRooms < 0 || f.MaxRooms < 0 {
		return invalid("room bounds must not be negative")
	}
	if f.MinRooms > 0 && f.MaxRooms > 0 && f.MinRooms > f.MaxRooms {
		return invalid("min_rooms must not exceed max_rooms")
	}
	if f.RoomType != "" {
		if _, ok := model.ParseRoomType(string(f.RoomType)); !ok {
			return invalid("unknown room_type")
		}
	}
	return nil
}
