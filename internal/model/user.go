package model

import (
	"strings"
	"time"
)

// Role is the single role a user account carries. The set is closed;
// anything else is rejected at the edges (registration, token parsing).
type Role string

const (
	RoleTenant   Role = "TENANT"
	RoleLandlord Role = "LANDLORD"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleTenant, RoleLandlord, RoleAdmin:
		return r, true
	}
	return "", false
}

// User represents an application user record as stored in the
// `users` table.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address, stored lower-case.
//	PasswordHash – bcrypt hashed password.
//	FirstName    – given name, may be empty.
//	LastName     – family name, may be empty.
//	Phone        – contact number, may be empty.
//	Role         – TENANT, LANDLORD or ADMIN.
//	IsActive     – whether the account may log in.
//	IsStaff      – staff accounts see and edit every listing and review.
//	IsSuperuser  – superusers bypass every role check.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	Role         Role
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the calling identity as seen by the policy and service
// layers. The zero value is the anonymous caller.
type Actor struct {
	ID        uint64
	Role      Role
	Staff     bool
	Superuser bool
}

// Anonymous returns the unauthenticated actor.
func Anonymous() Actor { return Actor{} }

// ActorFor builds the actor for an authenticated user.
func ActorFor(u User) Actor {
	return Actor{ID: u.ID, Role: u.Role, Staff: u.IsStaff, Superuser: u.IsSuperuser}
}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool { return a.ID != 0 }

// Privileged reports whether the actor escapes role checks entirely.
func (a Actor) Privileged() bool { return a.Authenticated() && a.Superuser }

// IsStaff reports staff-level access. Superusers are always staff.
func (a Actor) IsStaff() bool { return a.Authenticated() && (a.Staff || a.Superuser) }

// Is reports whether the authenticated actor has role r.
func (a Actor) Is(r Role) bool { return a.Authenticated() && a.Role == r }

// RefreshToken models an entry in the `refresh_tokens` table. The
// plain token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
