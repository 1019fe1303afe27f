// Package auth holds the capability check injected into every service
// that mutates owned resources. Authentication (credentials, sessions) is
// the middleware's business; services only ever see an Actor.
package auth

// Roles recognized by the capability check.
const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"
	RoleAttendee  = "attendee"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   int64
	Role string
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Authorizer decides whether an actor may mutate a resource owned by
// ownerID.
type Authorizer interface {
	CanMutate(actor Actor, ownerID int64) bool
}

// OwnerOrAdmin permits the resource owner and admins, the policy the
// whole catalog and registration flow uses.
type OwnerOrAdmin struct{}

func (OwnerOrAdmin) CanMutate(actor Actor, ownerID int64) bool {
	return actor.IsAdmin() || actor.ID == ownerID
}
