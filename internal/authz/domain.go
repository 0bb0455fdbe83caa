package authz

import "strings"

// Role is a named group of permissions assigned to an actor.
type Role uint8

// Known roles. RoleUnknown is the zero value and carries no permissions.
const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleFacturador
	RoleBodeguero
	RoleLiquidador
	RoleVendedorSistema
	RoleUser

	roleCount
)

var roleNames = [roleCount]string{
	RoleUnknown:         "",
	RoleAdmin:           "admin",
	RoleFacturador:      "facturador",
	RoleBodeguero:       "bodeguero",
	RoleLiquidador:      "liquidador",
	RoleVendedorSistema: "vendedor_sistema",
	RoleUser:            "user",
}

// String returns the storage tag of the role.
func (r Role) String() string {
	if r >= roleCount {
		return ""
	}
	return roleNames[r]
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r > RoleUnknown && r < roleCount
}

// MarshalText encodes the role as its tag.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a tag. Unknown tags decode to RoleUnknown.
func (r *Role) UnmarshalText(text []byte) error {
	*r, _ = ParseRole(string(text))
	return nil
}

// ParseRole maps a tag to a Role. The boolean is false for unknown tags.
func ParseRole(s string) (Role, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	for i := RoleAdmin; i < roleCount; i++ {
		if roleNames[i] == s {
			return i, true
		}
	}
	return RoleUnknown, false
}

// AllRoles returns every declared role in declaration order.
func AllRoles() []Role {
	roles := make([]Role, 0, roleCount-1)
	for r := RoleAdmin; r < roleCount; r++ {
		roles = append(roles, r)
	}
	return roles
}

// Permission is an atomic named capability.
type Permission uint8

// Known permissions.
const (
	PermViewUsers Permission = iota
	PermCreateUsers
	PermEditUsers
	PermDeleteUsers
	PermAssignBasicRoles
	PermAssignAdminRole
	PermCreateInvoices
	PermViewInvoices
	PermManageInventory
	PermManageSettlements
	PermAccessAdminPanel

	permissionCount
)

var permissionNames = [permissionCount]string{
	PermViewUsers:         "view_users",
	PermCreateUsers:       "create_users",
	PermEditUsers:         "edit_users",
	PermDeleteUsers:       "delete_users",
	PermAssignBasicRoles:  "assign_basic_roles",
	PermAssignAdminRole:   "assign_admin_role",
	PermCreateInvoices:    "create_invoices",
	PermViewInvoices:      "view_invoices",
	PermManageInventory:   "manage_inventory",
	PermManageSettlements: "manage_settlements",
	PermAccessAdminPanel:  "access_admin_panel",
}

func (p Permission) String() string {
	if p >= permissionCount {
		return ""
	}
	return permissionNames[p]
}

// MarshalText encodes the permission as its tag.
func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePermission maps a tag to a Permission.
func ParsePermission(s string) (Permission, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	for i := Permission(0); i < permissionCount; i++ {
		if permissionNames[i] == s {
			return i, true
		}
	}
	return 0, false
}

// AllPermissions returns every declared permission in declaration order.
func AllPermissions() []Permission {
	perms := make([]Permission, 0, permissionCount)
	for p := Permission(0); p < permissionCount; p++ {
		perms = append(perms, p)
	}
	return perms
}

// PermissionSet is a fixed-size set of permissions.
type PermissionSet uint16

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		if p < permissionCount {
			s |= 1 << p
		}
	}
	return s
}

// Has reports membership.
func (s PermissionSet) Has(p Permission) bool {
	return p < permissionCount && s&(1<<p) != 0
}

// Slice lists the members in declaration order.
func (s PermissionSet) Slice() []Permission {
	var out []Permission
	for p := Permission(0); p < permissionCount; p++ {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Actor is the identity performing a check. A nil *Actor means no identity.
type Actor struct {
	ID   int64
	Role Role
}

// Resource is the target of a check. Only user resources exist today.
type Resource struct {
	ID   int64
	Role Role
}

func (r *Resource) valid() bool {
	return r != nil && r.ID > 0
}

// Ability is one of the CRUD operations a policy answers for.
type Ability uint8

// Known abilities.
const (
	AbilityView Ability = iota + 1
	AbilityCreate
	AbilityUpdate
	AbilityDelete
)

func (a Ability) String() string {
	switch a {
	case AbilityView:
		return "view"
	case AbilityCreate:
		return "create"
	case AbilityUpdate:
		return "update"
	case AbilityDelete:
		return "delete"
	default:
		return ""
	}
}

// ParseAbility maps a string to an Ability.
func ParseAbility(s string) (Ability, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "view":
		return AbilityView, true
	case "create":
		return AbilityCreate, true
	case "update":
		return AbilityUpdate, true
	case "delete":
		return AbilityDelete, true
	default:
		return 0, false
	}
}

// ResourceType names a kind of resource a policy is registered for.
type ResourceType string

// ResourceUser is the user-account resource type.
const ResourceUser ResourceType = "user"
