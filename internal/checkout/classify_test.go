package checkout

import (
	"testing"
	"time"

	"github.com/renthavenhq/renthaven/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	config.Load()

	checkIn := time.Date(2026, 6, 10, 14, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		now       time.Time
		checkOut  time.Time
		wantType  Type
		wantOwner OwnerConfirmation
		wantAuto  bool
	}{
		{
			name:      "one day before check-in",
			now:       checkIn.Add(-24 * time.Hour),
			checkOut:  checkIn.AddDate(0, 0, 10),
			wantType:  TypeBeforeCheckin,
			wantOwner: OwnerNotRequired,
			wantAuto:  true,
		},
		{
			name:      "twelve hours after check-in",
			now:       checkIn.Add(12 * time.Hour),
			checkOut:  checkIn.AddDate(0, 0, 10),
			wantType:  TypeWithin1Day,
			wantOwner: OwnerNotRequired,
		},
		{
			name:      "forty hours after check-in on a ten night stay",
			now:       checkIn.Add(40 * time.Hour),
			checkOut:  checkIn.AddDate(0, 0, 10),
			wantType:  TypeAfter1Day,
			wantOwner: OwnerPending,
		},
		{
			name:      "mid-contract on a long-term stay",
			now:       checkIn.Add(40 * time.Hour),
			checkOut:  checkIn.AddDate(0, 0, 45),
			wantType:  TypeMonthlyMidContract,
			wantOwner: OwnerPending,
		},
		{
			name:      "exactly 24h after check-in still bypasses the owner",
			now:       checkIn.Add(24 * time.Hour),
			checkOut:  checkIn.AddDate(0, 0, 5),
			wantType:  TypeWithin1Day,
			wantOwner: OwnerNotRequired,
		},
		{
			name:      "thirty nights is already long-term",
			now:       checkIn.Add(48 * time.Hour),
			checkOut:  checkIn.AddDate(0, 0, 30),
			wantType:  TypeMonthlyMidContract,
			wantOwner: OwnerPending,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.now, checkIn, tc.checkOut)
			assert.Equal(t, tc.wantType, got.Type)
			assert.Equal(t, tc.wantOwner, got.OwnerConfirmation)
			assert.Equal(t, tc.wantAuto, got.AutoConfirm)
		})
	}
}
