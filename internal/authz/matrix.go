package authz

// rolePermissions is the role to permission matrix. It is filled once at
// init and never written afterwards.
var rolePermissions [roleCount]PermissionSet

func init() {
	rolePermissions[RoleAdmin] = NewPermissionSet(AllPermissions()...)
	rolePermissions[RoleFacturador] = NewPermissionSet(
		PermViewUsers,
		PermCreateInvoices,
		PermViewInvoices,
	)
	rolePermissions[RoleBodeguero] = NewPermissionSet(
		PermManageInventory,
	)
	rolePermissions[RoleLiquidador] = NewPermissionSet(
		PermViewInvoices,
		PermManageSettlements,
	)
	rolePermissions[RoleVendedorSistema] = NewPermissionSet(
		PermViewInvoices,
		PermCreateInvoices,
	)
	rolePermissions[RoleUser] = NewPermissionSet()
}

// PermissionsFor returns the permissions granted to role. Roles outside the
// matrix get the empty set.
func PermissionsFor(role Role) PermissionSet {
	if role >= roleCount {
		return 0
	}
	return rolePermissions[role]
}

// Matrix returns a copy of the full matrix keyed by role, for display.
func Matrix() map[Role][]Permission {
	out := make(map[Role][]Permission, roleCount-1)
	for _, role := range AllRoles() {
		out[role] = PermissionsFor(role).Slice()
	}
	return out
}
