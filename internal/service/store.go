package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/policy"
)

// Storage sentinels. Store implementations wrap these so services can
// classify failures without knowing the backing database.
var (
	// ErrNoRecord is returned when a lookup by id finds nothing.
	ErrNoRecord = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique key.
	ErrDuplicate = errors.New("duplicate record")
)

// ListingRepository persists listings. LockListing must hold a write
// lock on the row until the surrounding transaction ends; outside a
// transaction it behaves like GetListing.
type ListingRepository interface {
	InsertListing(ctx context.Context, l *model.Listing) error
	UpdateListing(ctx context.Context, l *model.Listing) error
	DeleteListing(ctx context.Context, id uint64) error
	GetListing(ctx context.Context, id uint64) (*model.Listing, error)
	LockListing(ctx context.Context, id uint64) (*model.Listing, error)
	ListListings(ctx context.Context, scope policy.ListingScope, f model.ListingFilter) ([]model.Listing, int, error)
	ListingRating(ctx context.Context, id uint64) (model.Rating, error)
}

// BookingRepository persists bookings and their audit trail. Bookings
// returned by Get/Lock/List carry the listing owner in OwnerID.
// BlockingBookings returns the PENDING and CONFIRMED bookings of a
// listing, skipping excludeID, reading the latest committed rows.
type BookingRepository interface {
	InsertBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	LockBooking(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateBooking(ctx context.Context, b *model.Booking) error
	BlockingBookings(ctx context.Context, listingID, excludeID uint64) ([]model.Booking, error)
	ListBookings(ctx context.Context, scope policy.BookingScope, f model.BookingFilter) ([]model.Booking, error)
	TenantBookingStatuses(ctx context.Context, listingID, tenantID uint64) ([]model.BookingStatus, error)
	AppendAudit(ctx context.Context, e *model.BookingAudit) error
	ListAudit(ctx context.Context, bookingID uint64) ([]model.BookingAudit, error)
}

// ReviewRepository persists reviews. InsertReview wraps ErrDuplicate
// when the (listing, author) key already exists.
type ReviewRepository interface {
	InsertReview(ctx context.Context, r *model.Review) error
	GetReview(ctx context.Context, id uint64) (*model.Review, error)
	UpdateReview(ctx context.Context, r *model.Review) error
	DeleteReview(ctx context.Context, id uint64) error
	ListReviews(ctx context.Context, listingID uint64) ([]model.Review, error)
	ReviewExists(ctx context.Context, listingID, authorID uint64) (bool, error)
}

// UserRepository is the read side of user accounts the core needs.
type UserRepository interface {
	GetUser(ctx context.Context, id uint64) (*model.User, error)
}

// Repositories groups the repositories sharing one connection or
// transaction.
type Repositories interface {
	Listings() ListingRepository
	Bookings() BookingRepository
	Reviews() ReviewRepository
	Users() UserRepository
}

// Store is the persistence collaborator. WithinTx runs fn against
// repositories bound to a single transaction, committing when fn
// returns nil and rolling back otherwise.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

// Clock supplies the current time. Tests inject a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
