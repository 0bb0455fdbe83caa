package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// expectedUpdate mirrors the update ladder for a non-self target.
func expectedUpdate(actor, target Role) bool {
	if !PermissionsFor(actor).Has(PermEditUsers) {
		return false
	}
	return !(target == RoleAdmin && actor != RoleAdmin)
}

func expectedDelete(actor, target Role) bool {
	if !PermissionsFor(actor).Has(PermDeleteUsers) {
		return false
	}
	return target != RoleAdmin
}

func TestUserPolicyRolePairs(t *testing.T) {
	policy := UserPolicy{}
	for _, actorRole := range AllRoles() {
		for _, targetRole := range AllRoles() {
			actor := &Actor{ID: 10, Role: actorRole}
			target := &Resource{ID: 20, Role: targetRole}
			require.Equal(t, expectedUpdate(actorRole, targetRole), policy.Update(actor, target),
				"update %s -> %s", actorRole, targetRole)
			require.Equal(t, expectedDelete(actorRole, targetRole), policy.Delete(actor, target),
				"delete %s -> %s", actorRole, targetRole)
		}
	}
}

func TestUserPolicyNamedCases(t *testing.T) {
	policy := UserPolicy{}
	admin := &Actor{ID: 1, Role: RoleAdmin}
	facturador := &Actor{ID: 2, Role: RoleFacturador}
	otherAdmin := &Resource{ID: 3, Role: RoleAdmin}

	require.False(t, policy.Update(facturador, otherAdmin), "facturador edits admin")
	require.False(t, policy.Delete(facturador, otherAdmin), "facturador deletes admin")
	require.True(t, policy.Update(admin, otherAdmin), "admin edits admin")
	require.False(t, policy.Delete(admin, otherAdmin), "admin deletes admin")
	require.True(t, policy.Update(admin, &Resource{ID: 1, Role: RoleAdmin}), "admin edits self")
}

func TestUserPolicyNoSelfDeletion(t *testing.T) {
	policy := UserPolicy{}
	for _, role := range AllRoles() {
		actor := &Actor{ID: 7, Role: role}
		require.False(t, policy.Delete(actor, &Resource{ID: 7, Role: role}), "self delete as %s", role)
	}
	require.True(t, policy.Delete(&Actor{ID: 7, Role: RoleAdmin}, &Resource{ID: 8, Role: RoleUser}))
}

func TestUserPolicyInvalidInputs(t *testing.T) {
	policy := UserPolicy{}
	admin := &Actor{ID: 1, Role: RoleAdmin}

	require.False(t, policy.View(nil, nil))
	require.True(t, policy.View(admin, nil))
	require.False(t, policy.Create(nil))
	require.False(t, policy.Create(&Actor{ID: 2, Role: RoleFacturador}))

	require.False(t, policy.Update(nil, &Resource{ID: 2}))
	require.False(t, policy.Update(admin, nil))
	require.False(t, policy.Update(admin, &Resource{ID: 0, Role: RoleUser}))
	require.False(t, policy.Delete(nil, &Resource{ID: 2}))
	require.False(t, policy.Delete(admin, nil))
}

func TestUserPolicyViewByRole(t *testing.T) {
	policy := UserPolicy{}
	require.True(t, policy.View(&Actor{ID: 1, Role: RoleFacturador}, nil))
	require.False(t, policy.View(&Actor{ID: 1, Role: RoleBodeguero}, nil))
	require.False(t, policy.View(&Actor{ID: 1, Role: RoleUser}, nil))
}
