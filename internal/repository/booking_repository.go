package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/policy"
)

// BookingRepo persists bookings and the `booking_audit` trail. Every
// read joins `listings` so the returned bookings carry OwnerID.
type BookingRepo struct{ q querier }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{q: db} }

const bookingSelect = "SELECT b.id, b.listing_id, b.tenant_id, b.check_in, b.check_out, b.status, l.owner_id, b.created_at FROM bookings b JOIN listings l ON l.id = b.listing_id"

// InsertBooking stores b and sets its ID.
func (r *BookingRepo) InsertBooking(ctx context.Context, b *model.Booking) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO bookings (listing_id, tenant_id, check_in, check_out, status, created_at) VALUES (?,?,?,?,?,?)",
		b.ListingID, b.TenantID, b.CheckIn.Format(model.DateLayout), b.CheckOut.Format(model.DateLayout), string(b.Status), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetBooking loads one booking.
func (r *BookingRepo) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.q.QueryRowContext(ctx, bookingSelect+" WHERE b.id=? LIMIT 1", id))
	if err != nil {
		return nil, notFound(err, "booking")
	}
	return b, nil
}

// LockBooking loads one booking and holds a write lock on its row (not
// on the joined listing) until the transaction ends.
func (r *BookingRepo) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.q.QueryRowContext(ctx, bookingSelect+" WHERE b.id=? FOR UPDATE OF b", id))
	if err != nil {
		return nil, notFound(err, "booking")
	}
	return b, nil
}

// UpdateBooking writes the dates and status of b.
func (r *BookingRepo) UpdateBooking(ctx context.Context, b *model.Booking) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE bookings SET check_in=?, check_out=?, status=? WHERE id=?",
		b.CheckIn.Format(model.DateLayout), b.CheckOut.Format(model.DateLayout), string(b.Status), b.ID)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	return requireMatched(ctx, r.q, res, "bookings", b.ID)
}

// BlockingBookings returns the PENDING and CONFIRMED bookings of a
// listing other than excludeID. The read is a locking read, so under
// REPEATABLE READ it sees rows committed after the transaction's
// snapshot was taken.
func (r *BookingRepo) BlockingBookings(ctx context.Context, listingID, excludeID uint64) ([]model.Booking, error) {
	rows, err := r.q.QueryContext(ctx,
		bookingSelect+" WHERE b.listing_id=? AND b.id<>? AND b.status IN (?,?) ORDER BY b.check_in FOR UPDATE OF b",
		listingID, excludeID, string(model.StatusPending), string(model.StatusConfirmed))
	if err != nil {
		return nil, fmt.Errorf("blocking bookings: %w", err)
	}
	return collectBookings(rows)
}

// ListBookings returns the bookings inside scope matching f, newest first.
func (r *BookingRepo) ListBookings(ctx context.Context, scope policy.BookingScope, f model.BookingFilter) ([]model.Booking, error) {
	where, args := buildBookingQuery(scope, f)
	rows, err := r.q.QueryContext(ctx, bookingSelect+where+" ORDER BY b.created_at DESC, b.id DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return collectBookings(rows)
}

// TenantBookingStatuses returns the status of every booking the tenant
// holds on the listing.
func (r *BookingRepo) TenantBookingStatuses(ctx context.Context, listingID, tenantID uint64) ([]model.BookingStatus, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT status FROM bookings WHERE listing_id=? AND tenant_id=?", listingID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant booking statuses: %w", err)
	}
	defer rows.Close()

	var out []model.BookingStatus
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, model.BookingStatus(s))
	}
	return out, rows.Err()
}

// AppendAudit stores one history entry and sets its ID.
func (r *BookingRepo) AppendAudit(ctx context.Context, e *model.BookingAudit) error {
	var from sql.NullString
	if e.From != "" {
		from = sql.NullString{String: string(e.From), Valid: true}
	}
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO booking_audit (booking_id, actor_id, from_status, to_status, message, created_at) VALUES (?,?,?,?,?,?)",
		e.BookingID, e.ActorID, from, string(e.To), e.Message, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append booking audit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// ListAudit returns the history of a booking, oldest first.
func (r *BookingRepo) ListAudit(ctx context.Context, bookingID uint64) ([]model.BookingAudit, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT id, booking_id, actor_id, from_status, to_status, message, created_at FROM booking_audit WHERE booking_id=? ORDER BY id",
		bookingID)
	if err != nil {
		return nil, fmt.Errorf("list booking audit: %w", err)
	}
	defer rows.Close()

	out := []model.BookingAudit{}
	for rows.Next() {
		var (
			e        model.BookingAudit
			from     sql.NullString
			to       string
			actorRaw sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.BookingID, &actorRaw, &from, &to, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorID = uint64(actorRaw.Int64)
		e.From = model.BookingStatus(from.String)
		e.To = model.BookingStatus(to)
		out = append(out, e)
	}
	return out, rows.Err()
}

// buildBookingQuery turns a scope and a filter into a WHERE clause with
// its arguments. A None scope matches nothing.
func buildBookingQuery(scope policy.BookingScope, f model.BookingFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	switch {
	case scope.None:
		where = append(where, "1=0")
	case scope.All:
	case scope.OwnerID != 0:
		where = append(where, "l.owner_id = ?")
		args = append(args, scope.OwnerID)
	case scope.TenantID != 0:
		where = append(where, "b.tenant_id = ?")
		args = append(args, scope.TenantID)
	default:
		where = append(where, "1=0")
	}
	if f.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, string(f.Status))
	}
	if f.ListingID != 0 {
		where = append(where, "b.listing_id = ?")
		args = append(args, f.ListingID)
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b      model.Booking
		status string
	)
	if err := row.Scan(&b.ID, &b.ListingID, &b.TenantID, &b.CheckIn, &b.CheckOut, &status, &b.OwnerID, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.CheckIn = model.DateOf(b.CheckIn)
	b.CheckOut = model.DateOf(b.CheckOut)
	b.Status = model.BookingStatus(status)
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
