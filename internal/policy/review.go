package policy

import "github.com/iliyamo/rental-marketplace/internal/model"

// ReviewPolicy governs reviews. Reading is open to everyone, including
// anonymous callers, whatever state the listing is in.
type ReviewPolicy struct{}

// Can reports whether a may perform act on r. r may be nil for Create.
func (ReviewPolicy) Can(a model.Actor, act Action, r *model.Review) bool {
	c := capabilityOf(a)
	switch act {
	case View:
		return true
	case Create:
		rc := roleCapability(a)
		return rc == capTenant || rc == capSuperuser
	case Update, Delete:
		if r == nil {
			return false
		}
		if c == capStaff || c == capSuperuser {
			return true
		}
		return a.Authenticated() && r.AuthorID == a.ID
	}
	return false
}
