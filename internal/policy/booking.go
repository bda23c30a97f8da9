package policy

import "github.com/iliyamo/rental-marketplace/internal/model"

// BookingScope describes the bookings an actor may see. A zero scope
// with None unset and no ids would match everything, so None is set
// explicitly for anonymous callers.
type BookingScope struct {
	All      bool
	None     bool
	TenantID uint64
	OwnerID  uint64
}

// Allows reports whether b falls inside the scope. b.OwnerID must be
// populated with the listing owner.
func (s BookingScope) Allows(b model.Booking) bool {
	switch {
	case s.None:
		return false
	case s.All:
		return true
	case s.OwnerID != 0:
		return b.OwnerID == s.OwnerID
	case s.TenantID != 0:
		return b.TenantID == s.TenantID
	}
	return false
}

// BookingPolicy governs bookings and their transitions.
type BookingPolicy struct{}

// Scope returns the visible set: superusers see all bookings, landlords
// the bookings on listings they own, tenants their own bookings and
// everyone else nothing.
func (BookingPolicy) Scope(a model.Actor) BookingScope {
	switch roleCapability(a) {
	case capSuperuser:
		return BookingScope{All: true}
	case capLandlord:
		return BookingScope{OwnerID: a.ID}
	case capTenant:
		return BookingScope{TenantID: a.ID}
	default:
		return BookingScope{None: true}
	}
}

// Can reports whether a may perform act on b. b may be nil for Create.
func (p BookingPolicy) Can(a model.Actor, act Action, b *model.Booking) bool {
	c := roleCapability(a)
	if act == Create {
		return c == capTenant || c == capSuperuser
	}
	if b == nil {
		return false
	}
	switch act {
	case View:
		return p.Scope(a).Allows(*b)
	case Confirm, Decline:
		return c == capSuperuser || (c == capLandlord && b.OwnerID == a.ID)
	case Cancel, Reschedule:
		return c == capSuperuser || (c == capTenant && b.TenantID == a.ID)
	}
	return false
}

// CanBookFor reports whether a may create a booking whose tenant is
// tenantID. Only privileged actors book on behalf of someone else.
func (p BookingPolicy) CanBookFor(a model.Actor, tenantID uint64) bool {
	if !p.Can(a, Create, nil) {
		return false
	}
	return tenantID == a.ID || roleCapability(a) == capSuperuser
}
