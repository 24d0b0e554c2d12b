package application

import "fmt"

// Role is the closed set of caller roles. Authorization sites switch
// exhaustively over it so an unknown role can never slip past a check.
type Role string

const (
	RoleVolunteer      Role = "volunteer"
	RoleOrganizer      Role = "organizer"
	RoleSuperOrganizer Role = "super_organizer"
)

// ParseRole validates a role string against the closed enum.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleVolunteer:
		return RoleVolunteer, nil
	case RoleOrganizer:
		return RoleOrganizer, nil
	case RoleSuperOrganizer:
		return RoleSuperOrganizer, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// Valid reports whether the role is a member of the closed enum.
func (r Role) Valid() bool {
	switch r {
	case RoleVolunteer, RoleOrganizer, RoleSuperOrganizer:
		return true
	default:
		return false
	}
}

// CanOrganize reports whether the role carries organizer privileges.
func (r Role) CanOrganize() bool {
	switch r {
	case RoleOrganizer, RoleSuperOrganizer:
		return true
	case RoleVolunteer:
		return false
	default:
		return false
	}
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   Role
}

// requireOrganizer gates operations reserved for organizer-level callers.
func requireOrganizer(principal Principal) error {
	if !principal.Role.CanOrganize() {
		return ErrForbidden
	}
	return nil
}
