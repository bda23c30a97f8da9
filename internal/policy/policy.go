// Package policy decides what an actor may see and do. It is the only
// place that maps roles to permissions: repositories turn the scopes
// returned here into WHERE clauses, and services ask the Can* methods
// before every mutation. Handlers never inspect roles themselves.
//
// Every function is pure and takes the actor explicitly; nothing here
// touches storage or the request.
package policy

import "github.com/iliyamo/rental-marketplace/internal/model"

// Action names an operation checked by a resource policy.
type Action string

const (
	View       Action = "view"
	Create     Action = "create"
	Update     Action = "update"
	Delete     Action = "delete"
	Confirm    Action = "confirm"
	Decline    Action = "decline"
	Cancel     Action = "cancel"
	Reschedule Action = "reschedule"
)

// capability is the variant an actor is dispatched on. Flags win over
// the role: a superuser is never treated as a plain tenant.
type capability int

const (
	capAnonymous capability = iota
	capTenant
	capLandlord
	capStaff
	capSuperuser
)

func capabilityOf(a model.Actor) capability {
	switch {
	case !a.Authenticated():
		return capAnonymous
	case a.Privileged():
		return capSuperuser
	case a.IsStaff() || a.Role == model.RoleAdmin:
		return capStaff
	case a.Role == model.RoleLandlord:
		return capLandlord
	case a.Role == model.RoleTenant:
		return capTenant
	}
	return capAnonymous
}

// roleCapability dispatches on the role alone, ignoring the staff flag.
// Booking rights and authorship follow the role; staff access only
// widens what can be seen or edited on listings and reviews.
func roleCapability(a model.Actor) capability {
	switch {
	case !a.Authenticated():
		return capAnonymous
	case a.Privileged():
		return capSuperuser
	case a.Role == model.RoleLandlord:
		return capLandlord
	case a.Role == model.RoleTenant:
		return capTenant
	}
	return capStaff
}

// Policies bundles the per-resource policies so callers can take one
// dependency.
type Policies struct {
	Listings ListingPolicy
	Bookings BookingPolicy
	Reviews  ReviewPolicy
}
