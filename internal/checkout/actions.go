package checkout

import "github.com/renthavenhq/renthaven/internal/roles"

// Relationship describes how the caller relates to the rent request
// behind a checkout.
type Relationship struct {
	Role     roles.Role
	IsRenter bool
	IsOwner  bool
}

// UserActions lists the actions the caller may take on a checkout in
// its current state. Terminal checkouts always return an empty set.
func UserActions(ch *Checkout, rel Relationship) []string {
	if ch.Status.Terminal() {
		return []string{}
	}

	actions := []string{}
	if rel.IsOwner && ch.OwnerConfirmation == OwnerPending {
		actions = append(actions, "confirm", "reject")
	}
	if rel.Role.CanDecideCheckout() && ch.AgentDecisionAllowed() {
		actions = append(actions, "decide")
	}
	if rel.Role.CanOverrideCheckout() {
		actions = append(actions, "override")
	}
	return actions
}
