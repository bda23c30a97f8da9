package policy

import "github.com/iliyamo/rental-marketplace/internal/model"

// ListingScope describes the listings an actor may see. When All is set
// the other fields are ignored.
type ListingScope struct {
	All        bool
	OwnerID    uint64
	ActiveOnly bool
}

// Allows reports whether l falls inside the scope.
func (s ListingScope) Allows(l model.Listing) bool {
	if s.All {
		return true
	}
	if s.OwnerID != 0 && l.OwnerID != s.OwnerID {
		return false
	}
	if s.ActiveOnly && !l.IsActive {
		return false
	}
	return true
}

// ListingPolicy governs listings.
type ListingPolicy struct{}

// Scope returns the visible set: staff see everything, landlords their
// own listings, everyone else only active ones.
func (ListingPolicy) Scope(a model.Actor) ListingScope {
	switch capabilityOf(a) {
	case capSuperuser, capStaff:
		return ListingScope{All: true}
	case capLandlord:
		return ListingScope{OwnerID: a.ID}
	default:
		return ListingScope{ActiveOnly: true}
	}
}

// Can reports whether a may perform act on l. l may be nil for Create.
func (p ListingPolicy) Can(a model.Actor, act Action, l *model.Listing) bool {
	c := capabilityOf(a)
	switch act {
	case Create:
		rc := roleCapability(a)
		return rc == capLandlord || rc == capSuperuser
	case View:
		return l != nil && p.Scope(a).Allows(*l)
	case Update, Delete:
		if l == nil {
			return false
		}
		if c == capSuperuser || c == capStaff {
			return true
		}
		return a.Is(model.RoleLandlord) && l.OwnerID == a.ID
	}
	return false
}
