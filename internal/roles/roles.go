package roles

// Role is the closed set of actor roles. String columns in the database
// always go through Parse so unknown values never reach authorization
// checks as silent no-matches.
type Role string

const (
	Renter  Role = "renter"
	Owner   Role = "owner"
	Agent   Role = "agent"
	Admin   Role = "admin"
	Unknown Role = ""
)

func Parse(s string) Role {
	switch Role(s) {
	case Renter, Owner, Agent, Admin:
		return Role(s)
	default:
		return Unknown
	}
}

func (r Role) Valid() bool { return r != Unknown }

// IsStaff reports whether the role may act on other users' transactions.
func (r Role) IsStaff() bool { return r == Agent || r == Admin }

// CanDecideCheckout reports whether the role may set an agent decision on
// a checkout (arbitrary deposit split).
func (r Role) CanDecideCheckout() bool { return r == Agent || r == Admin }

// CanOverrideCheckout reports whether the role may override a checkout
// regardless of its current state.
func (r Role) CanOverrideCheckout() bool { return r == Admin }

// CanAdministerWithdrawals reports whether the role may complete or fail
// withdrawal requests.
func (r Role) CanAdministerWithdrawals() bool { return r == Admin }
