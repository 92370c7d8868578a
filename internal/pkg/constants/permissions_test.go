package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedRole(t *testing.T) {
	assert.True(t, AllowedRole(PurchasePrompts, Seller))
	assert.True(t, AllowedRole(ManagePrompts, Seller))
	assert.False(t, AllowedRole(ManagePrompts, Buyer))
	assert.False(t, AllowedRole(RefundPurchases, Seller))
	assert.False(t, AllowedRole("unknown_permission", Admin))
}

func TestEveryPermissionHasRoles(t *testing.T) {
	for perm, roles := range PermissionRoles {
		assert.NotEmpty(t, roles, perm)
		for _, r := range roles {
			assert.True(t, IsValidRole(r), "%s has unknown role %s", perm, r)
		}
	}
}
