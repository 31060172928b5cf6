package model

import (
	"fmt"
	"strings"
)

// Role names recognised by the visibility policy.
const (
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleCompany    = "COMPANY"
	RoleApplicant  = "APPLICANT"
)

type Role struct {
	Name string `json:"name"`
}

// Identity is the decoded, pre-validated token the gateway operates on behalf of.
// The authentication collaborator owns token acquisition and refresh; everything
// past this constructor may assume the shape is sound.
type Identity struct {
	ID    int64  `json:"id"`
	Roles []Role `json:"roles"`
}

// NewIdentity validates the raw claim shape at the boundary.
// [SCHEMA_GATE] Duck-typed claims never cross into the core.
func NewIdentity(id int64, roleNames []string) (Identity, error) {
	if id <= 0 {
		return Identity{}, fmt.Errorf("identity: invalid user id %d", id)
	}

	roles := make([]Role, 0, len(roleNames))
	for _, name := range roleNames {
		name = strings.TrimSpace(name)
		if name == "" {
			return Identity{}, fmt.Errorf("identity: empty role name for user %d", id)
		}
		roles = append(roles, Role{Name: strings.ToUpper(name)})
	}

	return Identity{ID: id, Roles: roles}, nil
}

func (i Identity) HasRole(names ...string) bool {
	for _, r := range i.Roles {
		for _, name := range names {
			if r.Name == name {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether the identity carries an administrative role.
func (i Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin, RoleSuperAdmin)
}
