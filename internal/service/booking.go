package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/policy"
	"github.com/iliyamo/rental-marketplace/internal/queue"
)

// EventPublisher receives booking events after the change committed.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, ev queue.BookingEvent) error
}

// BookingService runs the booking state machine. Every write happens
// inside one transaction: the listing row is locked before the overlap
// check, so two requests for the same listing never both pass it.
type BookingService struct {
	store    Store
	clock    Clock
	events   EventPublisher
	bookings policy.BookingPolicy
	listings policy.ListingPolicy
}

// NewBookingService wires a booking service. A nil publisher skips
// RabbitMQ and a nil clock uses the system clock.
func NewBookingService(store Store, clock Clock, events EventPublisher) *BookingService {
	if store == nil {
		panic("nil store passed to NewBookingService")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &BookingService{store: store, clock: clock, events: events}
}

// NewBooking is a booking request. TenantID may be left zero, in which
// case the actor becomes the tenant; only privileged actors may name
// somebody else.
type NewBooking struct {
	ListingID uint64
	TenantID  uint64
	CheckIn   time.Time
	CheckOut  time.Time
}

// Create books a listing for the tenant in PENDING state.
func (s *BookingService) Create(ctx context.Context, actor model.Actor, in NewBooking) (*model.Booking, error) {
	if !s.bookings.Can(actor, policy.Create, nil) {
		return nil, ErrForbidden
	}
	tenantID := in.TenantID
	if tenantID == 0 {
		tenantID = actor.ID
	}
	if !s.bookings.CanBookFor(actor, tenantID) {
		return nil, ErrForbidden
	}
	checkIn, checkOut, err := validRange(in.CheckIn, in.CheckOut)
	if err != nil {
		return nil, err
	}

	var out *model.Booking
	err = s.store.WithinTx(ctx, func(r Repositories) error {
		if tenantID != actor.ID {
			if err := requireTenant(ctx, r, tenantID); err != nil {
				return err
			}
		}
		l, err := visibleListing(ctx, r, s.listings, actor, in.ListingID, true)
		if err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, r, l.ID, 0, checkIn, checkOut); err != nil {
			return err
		}
		b := &model.Booking{
			ListingID: l.ID,
			TenantID:  tenantID,
			OwnerID:   l.OwnerID,
			CheckIn:   checkIn,
			CheckOut:  checkOut,
			Status:    model.StatusPending,
			CreatedAt: s.clock.Now(),
		}
		if err := r.Bookings().InsertBooking(ctx, b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		if err := s.audit(ctx, r, actor, b, "", "booking requested"); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.EventBookingRequested, actor, out, "")
	return out, nil
}

// Confirm moves a PENDING booking to CONFIRMED. Only the listing owner
// or a superuser may confirm.
func (s *BookingService) Confirm(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error) {
	return s.transition(ctx, actor, id, policy.Confirm, model.StatusConfirmed, queue.EventBookingConfirmed)
}

// Decline moves a PENDING booking to DECLINED.
func (s *BookingService) Decline(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error) {
	return s.transition(ctx, actor, id, policy.Decline, model.StatusDeclined, queue.EventBookingDeclined)
}

// Cancel moves a PENDING or CONFIRMED booking to CANCELLED, as long as
// the cancellation window before check-in is still open. Cancelling a
// booking that is already terminal is reported as a conflict.
func (s *BookingService) Cancel(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error) {
	return s.transition(ctx, actor, id, policy.Cancel, model.StatusCancelled, queue.EventBookingCancelled)
}

func (s *BookingService) transition(ctx context.Context, actor model.Actor, id uint64, act policy.Action, to model.BookingStatus, event string) (*model.Booking, error) {
	var (
		out  *model.Booking
		from model.BookingStatus
	)
	err := s.store.WithinTx(ctx, func(r Repositories) error {
		b, err := s.visible(ctx, r, actor, id, true)
		if err != nil {
			return err
		}
		if !s.bookings.Can(actor, act, b) {
			return ErrForbidden
		}
		if !b.Status.CanTransition(to) {
			return ErrAlreadyProcessed
		}
		if to == model.StatusCancelled && !model.CanCancel(b.CheckIn, s.clock.Now()) {
			return ErrCancelWindow
		}
		from = b.Status
		b.Status = to
		if err := r.Bookings().UpdateBooking(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		if err := s.audit(ctx, r, actor, b, from, fmt.Sprintf("status changed from %s to %s", from, to)); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, event, actor, out, from)
	return out, nil
}

// Reschedule moves a PENDING booking to new dates. The overlap check
// runs again with the booking itself excluded.
func (s *BookingService) Reschedule(ctx context.Context, actor model.Actor, id uint64, checkIn, checkOut time.Time) (*model.Booking, error) {
	checkIn, checkOut, err := validRange(checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	var out *model.Booking
	err = s.store.WithinTx(ctx, func(r Repositories) error {
		current, err := s.visible(ctx, r, actor, id, false)
		if err != nil {
			return err
		}
		// listing before booking, the same lock order Create uses
		if _, err := r.Listings().LockListing(ctx, current.ListingID); err != nil {
			return fmt.Errorf("lock listing: %w", err)
		}
		b, err := s.visible(ctx, r, actor, id, true)
		if err != nil {
			return err
		}
		if !s.bookings.Can(actor, policy.Reschedule, b) {
			return ErrForbidden
		}
		if b.Status != model.StatusPending {
			return ErrNotPending
		}
		if err := s.checkOverlap(ctx, r, b.ListingID, b.ID, checkIn, checkOut); err != nil {
			return err
		}
		msg := fmt.Sprintf("dates changed from %s..%s to %s..%s",
			b.CheckIn.Format(model.DateLayout), b.CheckOut.Format(model.DateLayout),
			checkIn.Format(model.DateLayout), checkOut.Format(model.DateLayout))
		b.CheckIn, b.CheckOut = checkIn, checkOut
		if err := r.Bookings().UpdateBooking(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		if err := s.audit(ctx, r, actor, b, b.Status, msg); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.EventBookingRescheduled, actor, out, out.Status)
	return out, nil
}

// List returns the bookings visible to the actor. Anonymous callers get
// an empty list.
func (s *BookingService) List(ctx context.Context, actor model.Actor, f model.BookingFilter) ([]model.Booking, error) {
	if f.Status != "" {
		if _, ok := model.ParseBookingStatus(string(f.Status)); !ok {
			return nil, invalid("unknown status")
		}
	}
	scope := s.bookings.Scope(actor)
	if scope.None {
		return []model.Booking{}, nil
	}
	items, err := s.store.Bookings().ListBookings(ctx, scope, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return items, nil
}

// Get returns a booking visible to the actor.
func (s *BookingService) Get(ctx context.Context, actor model.Actor, id uint64) (*model.Booking, error) {
	return s.visible(ctx, s.store, actor, id, false)
}

// History returns the audit trail of a booking visible to the actor,
// oldest entry first.
func (s *BookingService) History(ctx context.Context, actor model.Actor, id uint64) ([]model.BookingAudit, error) {
	if _, err := s.visible(ctx, s.store, actor, id, false); err != nil {
		return nil, err
	}
	entries, err := s.store.Bookings().ListAudit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return entries, nil
}

func (s *BookingService) visible(ctx context.Context, r Repositories, actor model.Actor, id uint64, lock bool) (*model.Booking, error) {
	var (
		b   *model.Booking
		err error
	)
	if lock {
		b, err = r.Bookings().LockBooking(ctx, id)
	} else {
		b, err = r.Bookings().GetBooking(ctx, id)
	}
	if errors.Is(err, ErrNoRecord) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if !s.bookings.Can(actor, policy.View, b) {
		return nil, ErrBookingNotFound
	}
	return b, nil
}

// validRange normalises both dates and checks their order.
func validRange(checkIn, checkOut time.Time) (time.Time, time.Time, error) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return time.Time{}, time.Time{}, invalid("check_in and check_out are required")
	}
	checkIn, checkOut = model.DateOf(checkIn), model.DateOf(checkOut)
	if !checkIn.Before(checkOut) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return checkIn, checkOut, nil
}

// checkOverlap is the only place the overlap rule is enforced. It must
// run inside the transaction holding the listing lock.
func (s *BookingService) checkOverlap(ctx context.Context, r Repositories, listingID, excludeID uint64, checkIn, checkOut time.Time) error {
	existing, err := r.Bookings().BlockingBookings(ctx, listingID, excludeID)
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}
	for _, b := range existing {
		if b.ID != excludeID && b.Status.Blocking() && b.Overlaps(checkIn, checkOut) {
			return ErrBookingOverlap
		}
	}
	return nil
}

func (s *BookingService) audit(ctx context.Context, r Repositories, actor model.Actor, b *model.Booking, from model.BookingStatus, msg string) error {
	entry := &model.BookingAudit{
		BookingID: b.ID,
		ActorID:   actor.ID,
		From:      from,
		To:        b.Status,
		Message:   msg,
		CreatedAt: s.clock.Now(),
	}
	if err := r.Bookings().AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// publish is best effort: the change is already committed, so a broker
// failure is logged and otherwise ignored.
func (s *BookingService) publish(ctx context.Context, typ string, actor model.Actor, b *model.Booking, from model.BookingStatus) {
	if s.events == nil || b == nil {
		return
	}
	ev := queue.BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		ListingID:  b.ListingID,
		TenantID:   b.TenantID,
		OwnerID:    b.OwnerID,
		ActorID:    actor.ID,
		FromStatus: string(from),
		ToStatus:   string(b.Status),
		CheckIn:    b.CheckIn.Format(model.DateLayout),
		CheckOut:   b.CheckOut.Format(model.DateLayout),
		OccurredAt: s.clock.Now().Format(time.RFC3339),
	}
	if err := s.events.PublishBookingEvent(ctx, ev); err != nil {
		log.Printf("booking %d: publish %s failed: %v", b.ID, typ, err)
	}
}

func requireTenant(ctx context.Context, r Repositories, id uint64) error {
	u, err := r.Users().GetUser(ctx, id)
	if errors.Is(err, ErrNoRecord) {
		return invalid("tenant_id does not reference a user")
	}
	if err != nil {
		return fmt.Errorf("load tenant: %w", err)
	}
	if u.Role != model.RoleTenant || !u.IsActive {
		return invalid("tenant_id must reference an active tenant")
	}
	return nil
}
