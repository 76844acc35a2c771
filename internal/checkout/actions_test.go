package checkout

import (
	"testing"

	"github.com/renthavenhq/renthaven/internal/roles"
	"github.com/stretchr/testify/assert"
)

func TestUserActions_TerminalIsEmpty(t *testing.T) {
	for _, status := range []Status{StatusConfirmed, StatusAutoConfirmed} {
		ch := &Checkout{Status: status, OwnerConfirmation: OwnerConfirmed}

		assert.Empty(t, UserActions(ch, Relationship{Role: roles.Admin}))
		assert.Empty(t, UserActions(ch, Relationship{Role: roles.Owner, IsOwner: true}))
		assert.Empty(t, UserActions(ch, Relationship{Role: roles.Renter, IsRenter: true}))
	}
}

func TestUserActions_OwnerPending(t *testing.T) {
	ch := &Checkout{Status: StatusPending, OwnerConfirmation: OwnerPending}

	got := UserActions(ch, Relationship{Role: roles.Owner, IsOwner: true})
	assert.Equal(t, []string{"confirm", "reject"}, got)

	// Agents may not decide while the owner's confirmation is outstanding.
	got = UserActions(ch, Relationship{Role: roles.Agent})
	assert.Empty(t, got)

	// Admins can always override.
	got = UserActions(ch, Relationship{Role: roles.Admin})
	assert.Equal(t, []string{"override"}, got)
}

func TestUserActions_OwnerRejectedEscalatesToAgent(t *testing.T) {
	ch := &Checkout{Status: StatusPending, OwnerConfirmation: OwnerRejected}

	assert.Equal(t, []string{"decide"}, UserActions(ch, Relationship{Role: roles.Agent}))
	assert.Equal(t, []string{"decide", "override"}, UserActions(ch, Relationship{Role: roles.Admin}))
	assert.Empty(t, UserActions(ch, Relationship{Role: roles.Owner, IsOwner: true}))
	assert.Empty(t, UserActions(ch, Relationship{Role: roles.Renter, IsRenter: true}))
}

func TestAgentDecisionAllowed(t *testing.T) {
	cases := []struct {
		name string
		ch   Checkout
		want bool
	}{
		{"owner bypassed", Checkout{Status: StatusPending, OwnerConfirmation: OwnerNotRequired}, true},
		{"owner rejected", Checkout{Status: StatusPending, OwnerConfirmation: OwnerRejected}, true},
		{"owner still pending", Checkout{Status: StatusPending, OwnerConfirmation: OwnerPending}, false},
		{"already decided", Checkout{Status: StatusPending, OwnerConfirmation: OwnerRejected, DecidedBy: "agent-1"}, false},
		{"terminal", Checkout{Status: StatusConfirmed, OwnerConfirmation: OwnerNotRequired}, false},
		{"auto confirmed", Checkout{Status: StatusAutoConfirmed, OwnerConfirmation: OwnerNotRequired}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.ch.AgentDecisionAllowed())
		})
	}
}
