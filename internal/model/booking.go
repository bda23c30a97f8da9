package model

import (
	"errors"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusDeclined  BookingStatus = "DECLINED"
	StatusCancelled BookingStatus = "CANCELLED"
)

// transitions is the whole state machine. Nothing ever leads back to
// PENDING, and DECLINED/CANCELLED have no outgoing edges.
var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusDeclined, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
}

// ParseBookingStatus reports whether s is a known status.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch st := BookingStatus(s); st {
	case StatusPending, StatusConfirmed, StatusDeclined, StatusCancelled:
		return st, true
	}
	return "", false
}

// CanTransition reports whether the state machine has an edge from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s BookingStatus) Terminal() bool { return len(transitions[s]) == 0 }

// Blocking reports whether a booking in state s occupies its date range.
// Declined and cancelled bookings free the range.
func (s BookingStatus) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

// DateLayout is the wire format of check-in and check-out dates.
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// ParseDate parses a calendar date in DateLayout as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// DateOf drops the clock part of t, keeping its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Overlaps applies the half-open interval test on [aIn, aOut) and
// [bIn, bOut). Ranges that only touch (aOut == bIn) do not overlap.
func Overlaps(aIn, aOut, bIn, bOut time.Time) bool {
	return aIn.Before(bOut) && aOut.After(bIn)
}

// CanCancel reports whether a stay starting on checkIn may still be
// cancelled on the given day: today must fall strictly before the day
// preceding check-in. It does not look at the booking status.
func CanCancel(checkIn, today time.Time) bool {
	return DateOf(today).Before(DateOf(checkIn).AddDate(0, 0, -1))
}

// Booking is a tenant's reservation of a listing over
// [CheckIn, CheckOut).
//
// Fields:
//
//	ID        – primary key identifier.
//	ListingID – listing being booked.
//	TenantID  – user the stay belongs to.
//	CheckIn   – first night, inclusive.
//	CheckOut  – departure day, exclusive.
//	Status    – lifecycle state.
//	OwnerID   – owner of the listing, joined on reads for policy checks.
type Booking struct {
	ID        uint64
	ListingID uint64
	TenantID  uint64
	CheckIn   time.Time
	CheckOut  time.Time
	Status    BookingStatus
	OwnerID   uint64
	CreatedAt time.Time
}

// Overlaps reports whether b occupies any night of [in, out).
func (b Booking) Overlaps(in, out time.Time) bool {
	return Overlaps(b.CheckIn, b.CheckOut, in, out)
}

// Nights returns the number of nights between check-in and check-out.
func (b Booking) Nights() int {
	return int(DateOf(b.CheckOut).Sub(DateOf(b.CheckIn)).Hours() / 24)
}

// BookingFilter narrows a booking listing. Zero values mean "any".
type BookingFilter struct {
	Status    BookingStatus
	ListingID uint64
}

// BookingAudit is one append-only entry in a booking's history.
// From is empty for the entry written on creation.
type BookingAudit struct {
	ID        uint64
	BookingID uint64
	ActorID   uint64
	From      BookingStatus
	To        BookingStatus
	Message   string
	CreatedAt time.Time
}
