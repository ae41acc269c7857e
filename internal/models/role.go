package models

// Role is a participant's standing inside one conversation.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	// RoleUnassigned marks a participant of a conversation migrated from the
	// participants-only schema, where buyer and seller were never recorded.
	RoleUnassigned Role = "unassigned"
	RoleNone       Role = "none"
)

func (r Role) String() string {
	return string(r)
}

// IsParticipant is true for every role except RoleNone.
func (r Role) IsParticipant() bool {
	return r == RoleBuyer || r == RoleSeller || r == RoleUnassigned
}

// ParseListingRole accepts only the roles a conversation listing can filter on.
func ParseListingRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleBuyer, RoleSeller:
		return Role(s), true
	default:
		return RoleNone, false
	}
}

// Opposite returns the counterpart slot; buyer <-> seller.
func (r Role) Opposite() Role {
	switch r {
	case RoleBuyer:
		return RoleSeller
	case RoleSeller:
		return RoleBuyer
	default:
		return RoleNone
	}
}
