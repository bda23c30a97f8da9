package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/policy"
	"github.com/iliyamo/rental-marketplace/internal/queue"
)

// memData is the full state of the fake store. WithinTx works on a copy
// and swaps it in on success, which gives all-or-nothing writes.
type memData struct {
	nextID   uint64
	users    map[uint64]model.User
	listings map[uint64]model.Listing
	bookings map[uint64]model.Booking
	reviews  map[uint64]model.Review
	audit    []model.BookingAudit
}

func (d *memData) clone() *memData {
	c := &memData{
		nextID:   d.nextID,
		users:    make(map[uint64]model.User, len(d.users)),
		listings: make(map[uint64]model.Listing, len(d.listings)),
		bookings: make(map[uint64]model.Booking, len(d.bookings)),
		reviews:  make(map[uint64]model.Review, len(d.reviews)),
		audit:    append([]model.BookingAudit(nil), d.audit...),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.listings {
		c.listings[k] = v
	}
	for k, v := range d.bookings {
		c.bookings[k] = v
	}
	for k, v := range d.reviews {
		c.reviews[k] = v
	}
	return c
}

func (d *memData) id() uint64 {
	d.nextID++
	return d.nextID
}

// memStore is a mutex-guarded Store. Transactions hold the mutex for
// their whole duration, so they are fully serialised.
type memStore struct {
	mu   sync.Mutex
	data *memData

	// duplicateOnReviewInsert simulates losing a unique-key race.
	duplicateOnReviewInsert bool
}

func newMemStore() *memStore {
	return &memStore{data: &memData{
		users:    map[uint64]model.User{},
		listings: map[uint64]model.Listing{},
		bookings: map[uint64]model.Booking{},
		reviews:  map[uint64]model.Review{},
	}}
}

func (s *memStore) Listings() ListingRepository { return &memRepo{store: s, auto: true} }
func (s *memStore) Bookings() BookingRepository { return &memRepo{store: s, auto: true} }
func (s *memStore) Reviews() ReviewRepository   { return &memRepo{store: s, auto: true} }
func (s *memStore) Users() UserRepository       { return &memRepo{store: s, auto: true} }

func (s *memStore) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{repo: &memRepo{store: s, data: s.data.clone()}}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.repo.data
	return nil
}

type memTx struct{ repo *memRepo }

func (t *memTx) Listings() ListingRepository { return t.repo }
func (t *memTx) Bookings() BookingRepository { return t.repo }
func (t *memTx) Reviews() ReviewRepository   { return t.repo }
func (t *memTx) Users() UserRepository       { return t.repo }

// memRepo implements every repository port. With auto set each call
// takes the store mutex and works on the committed data; otherwise it
// works on the transaction's private copy.
type memRepo struct {
	store *memStore
	data  *memData
	auto  bool
}

func (r *memRepo) begin() (*memData, func()) {
	if r.auto {
		r.store.mu.Lock()
		return r.store.data, r.store.mu.Unlock
	}
	return r.data, func() {}
}

func (r *memRepo) InsertListing(_ context.Context, l *model.Listing) error {
	d, done := r.begin()
	defer done()
	l.ID = d.id()
	d.listings[l.ID] = *l
	return nil
}

func (r *memRepo) UpdateListing(_ context.Context, l *model.Listing) error {
	d, done := r.begin()
	defer done()
	if _, ok := d.listings[l.ID]; !ok {
		return ErrNoRecord
	}
	cp := *l
	cp.Rating = model.Rating{}
	d.listings[l.ID] = cp
	return nil
}

func (r *memRepo) DeleteListing(_ context.Context, id uint64) error {
	d, done := r.begin()
	defer done()
	if _, ok := d.listings[id]; !ok {
		return ErrNoRecord
	}
	delete(d.listings, id)
	for bid, b := range d.bookings {
		if b.ListingID == id {
			delete(d.bookings, bid)
		}
	}
	for rid, rv := range d.reviews {
		if rv.ListingID == id {
			delete(d.reviews, rid)
		}
	}
	return nil
}

func (r *memRepo) GetListing(_ context.Context, id uint64) (*model.Listing, error) {
	d, done := r.begin()
	defer done()
	l, ok := d.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing %d: %w", id, ErrNoRecord)
	}
	l.Rating = ratingOf(d, id)
	return &l, nil
}

func (r *memRepo) LockListing(ctx context.Context, id uint64) (*model.Listing, error) {
	return r.GetListing(ctx, id)
}

func (r *memRepo) ListListings(_ context.Context, scope policy.ListingScope, f model.ListingFilter) ([]model.Listing, int, error) {
	d, done := r.begin()
	defer done()
	var out []model.Listing
	for _, l := range d.listings {
		if !scope.Allows(l) {
			continue
		}
		if f.City != "" && !strings.EqualFold(l.City, f.City) {
			continue
		}
		if f.RoomType != "" && l.RoomType != f.RoomType {
			continue
		}
		if f.MinPrice != nil && l.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && l.Price > *f.MaxPrice {
			continue
		}
		if f.MinRooms > 0 && l.RoomsCount < f.MinRooms {
			continue
		}
		if f.MaxRooms > 0 && l.RoomsCount > f.MaxRooms {
			continue
		}
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(l.Title), q) && !strings.Contains(strings.ToLower(l.Description), q) {
				continue
			}
		}
		l.Rating = ratingOf(d, l.ID)
		if (f.Ordering == model.OrderRatingAsc || f.Ordering == model.OrderRatingDesc) && !l.Rating.Valid {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch f.Ordering {
		case model.OrderPriceAsc:
			return a.Price < b.Price
		case model.OrderPriceDesc:
			return a.Price > b.Price
		case model.OrderRatingAsc:
			return a.Rating.Value < b.Rating.Value
		case model.OrderRatingDesc:
			return a.Rating.Value > b.Rating.Value
		case model.OrderCreatedAsc:
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
	total := len(out)
	start := (f.Page - 1) * f.PageSize
	if start > total {
		start = total
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (r *memRepo) ListingRating(_ context.Context, id uint64) (model.Rating, error) {
	d, done := r.begin()
	defer done()
	return ratingOf(d, id), nil
}

func ratingOf(d *memData, listingID uint64) model.Rating {
	var scores []int
	for _, rv := range d.reviews {
		if rv.ListingID == listingID {
			scores = append(scores, rv.Rating)
		}
	}
	return model.AverageOf(scores)
}

func (r *memRepo) InsertBooking(_ context.Context, b *model.Booking) error {
	d, done := r.begin()
	defer done()
	b.ID = d.id()
	d.bookings[b.ID] = *b
	return nil
}

func (r *memRepo) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	d, done := r.begin()
	defer done()
	b, ok := d.bookings[id]
	if !ok {
		return nil, ErrNoRecord
	}
	b.OwnerID = d.listings[b.ListingID].OwnerID
	return &b, nil
}

func (r *memRepo) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return r.GetBooking(ctx, id)
}

func (r *memRepo) UpdateBooking(_ context.Context, b *model.Booking) error {
	d, done := r.begin()
	defer done()
	if _, ok := d.bookings[b.ID]; !ok {
		return ErrNoRecord
	}
	d.bookings[b.ID] = *b
	return nil
}

func (r *memRepo) BlockingBookings(_ context.Context, listingID, excludeID uint64) ([]model.Booking, error) {
	d, done := r.begin()
	defer done()
	var out []model.Booking
	for _, b := range d.bookings {
		if b.ListingID == listingID && b.ID != excludeID && b.Status.Blocking() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memRepo) ListBookings(_ context.Context, scope policy.BookingScope, f model.BookingFilter) ([]model.Booking, error) {
	d, done := r.begin()
	defer done()
	out := []model.Booking{}
	for _, b := range d.bookings {
		b.OwnerID = d.listings[b.ListingID].OwnerID
		if !scope.Allows(b) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.ListingID != 0 && b.ListingID != f.ListingID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memRepo) TenantBookingStatuses(_ context.Context, listingID, tenantID uint64) ([]model.BookingStatus, error) {
	d, done := r.begin()
	defer done()
	var out []model.BookingStatus
	for _, b := range d.bookings {
		if b.ListingID == listingID && b.TenantID == tenantID {
			out = append(out, b.Status)
		}
	}
	return out, nil
}

func (r *memRepo) AppendAudit(_ context.Context, e *model.BookingAudit) error {
	d, done := r.begin()
	defer done()
	e.ID = d.id()
	d.audit = append(d.audit, *e)
	return nil
}

func (r *memRepo) ListAudit(_ context.Context, bookingID uint64) ([]model.BookingAudit, error) {
	d, done := r.begin()
	defer done()
	var out []model.BookingAudit
	for _, e := range d.audit {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) InsertReview(_ context.Context, rv *model.Review) error {
	d, done := r.begin()
	defer done()
	if r.store.duplicateOnReviewInsert {
		return fmt.Errorf("insert review: %w", ErrDuplicate)
	}
	for _, existing := range d.reviews {
		if existing.ListingID == rv.ListingID && existing.AuthorID == rv.AuthorID {
			return ErrDuplicate
		}
	}
	rv.ID = d.id()
	d.reviews[rv.ID] = *rv
	return nil
}

func (r *memRepo) GetReview(_ context.Context, id uint64) (*model.Review, error) {
	d, done := r.begin()
	defer done()
	rv, ok := d.reviews[id]
	if !ok {
		return nil, ErrNoRecord
	}
	return &rv, nil
}

func (r *memRepo) UpdateReview(_ context.Context, rv *model.Review) error {
	d, done := r.begin()
	defer done()
	if _, ok := d.reviews[rv.ID]; !ok {
		return ErrNoRecord
	}
	d.reviews[rv.ID] = *rv
	return nil
}

func (r *memRepo) DeleteReview(_ context.Context, id uint64) error {
	d, done := r.begin()
	defer done()
	if _, ok := d.reviews[id]; !ok {
		return ErrNoRecord
	}
	delete(d.reviews, id)
	return nil
}

func (r *memRepo) ListReviews(_ context.Context, listingID uint64) ([]model.Review, error) {
	d, done := r.begin()
	defer done()
	out := []model.Review{}
	for _, rv := range d.reviews {
		if rv.ListingID == listingID {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memRepo) ReviewExists(_ context.Context, listingID, authorID uint64) (bool, error) {
	d, done := r.begin()
	defer done()
	for _, rv := range d.reviews {
		if rv.ListingID == listingID && rv.AuthorID == authorID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) GetUser(_ context.Context, id uint64) (*model.User, error) {
	d, done := r.begin()
	defer done()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNoRecord
	}
	return &u, nil
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (p *recordingPublisher) PublishBookingEvent(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// fixture is a small marketplace: two landlords, two tenants, a
// superuser and a staff member, with one active and one hidden listing.
type fixture struct {
	store    *memStore
	now      time.Time
	clock    Clock
	events   *recordingPublisher
	listings *ListingService
	bookings *BookingService
	reviews  *ReviewService

	tenant, tenant2, landlord, landlord2, staff, root model.Actor
	active, hidden                                   *model.Listing
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newMemStore(),
		now:       time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC),
		events:    &recordingPublisher{},
		tenant:    model.Actor{ID: 1, Role: model.RoleTenant},
		tenant2:   model.Actor{ID: 2, Role: model.RoleTenant},
		landlord:  model.Actor{ID: 10, Role: model.RoleLandlord},
		landlord2: model.Actor{ID: 11, Role: model.RoleLandlord},
		staff:     model.Actor{ID: 20, Role: model.RoleAdmin, Staff: true},
		root:      model.Actor{ID: 30, Role: model.RoleAdmin, Staff: true, Superuser: true},
	}
	f.store.data.nextID = 100
	for _, a := range []model.Actor{f.tenant, f.tenant2, f.landlord, f.landlord2, f.staff, f.root} {
		f.store.data.users[a.ID] = model.User{ID: a.ID, Role: a.Role, IsActive: true, IsStaff: a.Staff, IsSuperuser: a.Superuser}
	}
	f.clock = ClockFunc(func() time.Time { return f.now })
	f.listings = NewListingService(f.store, f.clock)
	f.bookings = NewBookingService(f.store, f.clock, f.events)
	f.reviews = NewReviewService(f.store, f.clock)

	f.active = f.mustListing(t, f.landlord, "Sunny loft", true)
	f.hidden = f.mustListing(t, f.landlord, "Basement room", false)
	return f
}

func (f *fixture) mustListing(t *testing.T, owner model.Actor, title string, active bool) *model.Listing {
	t.Helper()
	l, err := f.listings.Create(context.Background(), owner, NewListing{
		Title:      title,
		Address:    "1 Main St",
		City:       "Lisbon",
		Price:      95000,
		RoomsCount: 2,
		RoomType:   model.RoomLoft,
		IsActive:   &active,
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return l
}

func (f *fixture) day(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (f *fixture) book(actor model.Actor, listingID uint64, in, out string) (*model.Booking, error) {
	return f.bookings.Create(context.Background(), actor, NewBooking{
		ListingID: listingID,
		CheckIn:   f.day(in),
		CheckOut:  f.day(out),
	})
}
