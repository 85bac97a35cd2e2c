package enums

import "fmt"

// UserRole identifies what a caller is allowed to do.
type UserRole string

const (
	UserRoleCustomer  UserRole = "customer"
	UserRoleProducer  UserRole = "producer"
	UserRoleManager   UserRole = "manager"
	UserRoleVolunteer UserRole = "volunteer"
)

var validUserRoles = []UserRole{
	UserRoleCustomer,
	UserRoleProducer,
	UserRoleManager,
	UserRoleVolunteer,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role belongs to marketplace staff.
func (r UserRole) IsStaff() bool {
	return r == UserRoleManager || r == UserRoleVolunteer
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
