package types

// Actor is the authenticated caller of an operation. It is derived from a
// verified token and passed explicitly to every service call.
type Actor struct {
	ID   int  `json:"id"`
	Role Role `json:"role"`
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Privileged reports whether the actor is a moderator or an admin.
func (a Actor) Privileged() bool {
	return a.Role.Privileged()
}

// Owns reports whether the actor created the given report.
func (a Actor) Owns(report Report) bool {
	return a.ID != 0 && a.ID == report.OwnerID
}
