package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Renter, Parse("renter"))
	assert.Equal(t, Owner, Parse("owner"))
	assert.Equal(t, Agent, Parse("agent"))
	assert.Equal(t, Admin, Parse("admin"))

	assert.Equal(t, Unknown, Parse(""))
	assert.Equal(t, Unknown, Parse("superuser"))
	assert.Equal(t, Unknown, Parse("Admin"))

	assert.False(t, Parse("nope").Valid())
	assert.True(t, Parse("agent").Valid())
}

func TestCapabilities(t *testing.T) {
	assert.True(t, Agent.CanDecideCheckout())
	assert.True(t, Admin.CanDecideCheckout())
	assert.False(t, Owner.CanDecideCheckout())
	assert.False(t, Renter.CanDecideCheckout())

	assert.True(t, Admin.CanOverrideCheckout())
	assert.False(t, Agent.CanOverrideCheckout())

	assert.True(t, Admin.CanAdministerWithdrawals())
	assert.False(t, Agent.CanAdministerWithdrawals())

	assert.True(t, Agent.IsStaff())
	assert.True(t, Admin.IsStaff())
	assert.False(t, Owner.IsStaff())
}
