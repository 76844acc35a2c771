package checkout

import (
	"time"

	"github.com/renthavenhq/renthaven/internal/config"
)

// Classification is the outcome of classifying a checkout request
// against the stay's dates.
type Classification struct {
	Type              Type
	OwnerConfirmation OwnerConfirmation
	// AutoConfirm means the checkout resolves immediately with a full
	// deposit refund and no owner or agent involvement.
	AutoConfirm bool
}

// Classify types a checkout request by comparing the request time to
// check-in and the stay length:
//
//   - before check-in: auto-confirmed, 100% deposit back, rent forfeited
//   - within 24h after check-in: owner bypassed, an agent decides
//   - later than that: owner confirmation first; stays of at least
//     LongTermNights are flagged as monthly mid-contract terminations
func Classify(now, checkIn, checkOut time.Time) Classification {
	if now.Before(checkIn) {
		return Classification{
			Type:              TypeBeforeCheckin,
			OwnerConfirmation: OwnerNotRequired,
			AutoConfirm:       true,
		}
	}
	if now.Sub(checkIn) <= 24*time.Hour {
		return Classification{
			Type:              TypeWithin1Day,
			OwnerConfirmation: OwnerNotRequired,
		}
	}

	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	t := TypeAfter1Day
	if nights >= config.Current.LongTermNights {
		t = TypeMonthlyMidContract
	}
	return Classification{
		Type:              t,
		OwnerConfirmation: OwnerPending,
	}
}
