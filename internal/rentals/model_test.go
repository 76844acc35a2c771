package rentals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name  string
		from  Status
		to    Status
		actor Actor
		want  bool
	}{
		{"owner confirms pending", StatusPending, StatusConfirmed, ActorOwner, true},
		{"owner rejects pending", StatusPending, StatusRejected, ActorOwner, true},
		{"renter cancels pending", StatusPending, StatusCancelled, ActorRenter, true},
		{"renter cannot confirm own request", StatusPending, StatusConfirmed, ActorRenter, false},
		{"owner cannot cancel as renter", StatusPending, StatusCancelled, ActorOwner, false},

		{"renter pays confirmed", StatusConfirmed, StatusPaid, ActorRenter, true},
		{"owner cannot pay", StatusConfirmed, StatusPaid, ActorOwner, false},
		{"renter cancels confirmed", StatusConfirmed, StatusCancelled, ActorRenter, true},
		{"system expires confirmed", StatusConfirmed, StatusCancelled, ActorSystem, true},
		{"owner cancels confirmed", StatusConfirmed, StatusCancelledByOwner, ActorOwner, true},
		{"system cannot pay", StatusConfirmed, StatusPaid, ActorSystem, false},

		{"system completes paid", StatusPaid, StatusCompleted, ActorSystem, true},
		{"renter cannot complete", StatusPaid, StatusCompleted, ActorRenter, false},
		{"paid cannot be cancelled", StatusPaid, StatusCancelled, ActorRenter, false},

		{"terminal states have no edges", StatusCompleted, StatusPending, ActorSystem, false},
		{"rejected has no edges", StatusRejected, StatusConfirmed, ActorOwner, false},
		{"cancelled has no edges", StatusCancelled, StatusPaid, ActorRenter, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to, tc.actor))
		})
	}
}

func TestNights(t *testing.T) {
	in := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, Nights(in, in.AddDate(0, 0, 1)))
	assert.Equal(t, 10, Nights(in, in.AddDate(0, 0, 10)))
	assert.Equal(t, 30, Nights(in, in.AddDate(0, 0, 30)))
	assert.Equal(t, 0, Nights(in, in))
}
