package authz

// Policy answers the four abilities for one resource type. Implementations
// must be pure and must never panic on nil arguments.
type Policy interface {
	View(actor *Actor, resource *Resource) bool
	Create(actor *Actor) bool
	Update(actor *Actor, resource *Resource) bool
	Delete(actor *Actor, resource *Resource) bool
}

// UserPolicy guards user accounts.
type UserPolicy struct{}

// View requires view_users.
func (UserPolicy) View(actor *Actor, _ *Resource) bool {
	return actor != nil && PermissionsFor(actor.Role).Has(PermViewUsers)
}

// Create requires create_users.
func (UserPolicy) Create(actor *Actor) bool {
	return actor != nil && PermissionsFor(actor.Role).Has(PermCreateUsers)
}

// Update requires edit_users, and only admins may edit admins. Admins editing
// themselves are allowed here; guarding self-demotion is up to the caller.
func (UserPolicy) Update(actor *Actor, target *Resource) bool {
	if actor == nil {
		return false
	}
	if !target.valid() {
		return false
	}
	if !PermissionsFor(actor.Role).Has(PermEditUsers) {
		return false
	}
	if target.Role == RoleAdmin && actor.Role != RoleAdmin {
		return false
	}
	return true
}

// Delete requires delete_users. Admin accounts are never deletable and nobody
// may delete their own account.
func (UserPolicy) Delete(actor *Actor, target *Resource) bool {
	if actor == nil || !target.valid() {
		return false
	}
	if !PermissionsFor(actor.Role).Has(PermDeleteUsers) {
		return false
	}
	if target.Role == RoleAdmin {
		return false
	}
	if target.ID == actor.ID {
		return false
	}
	return true
}

var _ Policy = UserPolicy{}
