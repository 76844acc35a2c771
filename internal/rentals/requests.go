package rentals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/alerts"
	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/config"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/httpx"
	"github.com/renthavenhq/renthaven/internal/money"
)

// =========================
// CreateRequest - Renter asks to rent a property for a date range
// =========================
func CreateRequest(c echo.Context) error {
	renterID, _ := c.Get("user_id").(string)

	var req struct {
		PropertyID    string `json:"property_id"`
		CheckIn       string `json:"check_in"`
		CheckOut      string `json:"check_out"`
		ExpectedTotal string `json:"expected_total"`
	}
	if err := c.Bind(&req); err != nil || req.PropertyID == "" {
		return httpx.Fail(c, apperr.Validation("property_id, check_in and check_out are required"))
	}

	checkIn, err1 := time.Parse("2006-01-02", req.CheckIn)
	checkOut, err2 := time.Parse("2006-01-02", req.CheckOut)
	if err1 != nil || err2 != nil {
		return httpx.Fail(c, apperr.Validation("dates must be YYYY-MM-DD"))
	}
	if !checkOut.After(checkIn) {
		return httpx.Fail(c, apperr.Validation("check_out must be after check_in"))
	}
	if checkIn.Before(time.Now().Truncate(24 * time.Hour)) {
		return httpx.Fail(c, apperr.Validation("check_in must not be in the past"))
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	// Lock the property first; property before rent requests is the fixed
	// lock order across all rental paths.
	var ownerID, listingType, propStatus string
	pricing := PropertyPricing{}
	var nightly, monthly, deposit string
	err = tx.QueryRow(ctx,
		`SELECT owner_id, listing_type, status, nightly_price::text, monthly_price::text, deposit::text
         FROM properties WHERE id = $1 FOR UPDATE`,
		req.PropertyID,
	).Scan(&ownerID, &listingType, &propStatus, &nightly, &monthly, &deposit)
	if errors.Is(err, pgx.ErrNoRows) {
		return httpx.Fail(c, apperr.NotFound("property not found"))
	}
	if err != nil {
		return httpx.Fail(c, apperr.Internal("property lookup failed", err))
	}
	if listingType != "rent" || propStatus != "valid" {
		return httpx.Fail(c, apperr.StateConflict("property is not available for rent"))
	}
	if ownerID == renterID {
		return httpx.Fail(c, apperr.Validation("you cannot rent your own property"))
	}
	pricing.NightlyPrice, _ = decimal.NewFromString(nightly)
	pricing.MonthlyPrice, _ = decimal.NewFromString(monthly)
	pricing.Deposit, _ = decimal.NewFromString(deposit)

	// Renter block / cooldown from earlier rejections or cancellations.
	var restricted bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (
            SELECT 1 FROM rent_requests
            WHERE user_id = $1 AND property_id = $2
              AND (blocked_until > NOW() OR cooldown_expires_at > NOW())
         )`,
		renterID, req.PropertyID,
	).Scan(&restricted)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("restriction check failed", err))
	}
	if restricted {
		return httpx.Fail(c, apperr.StateConflict("you are temporarily blocked from requesting this property"))
	}

	// Several renters may request or even hold confirmations for
	// overlapping dates; only a paid stay takes the dates off the market.
	if err := lockPaidOverlapping(ctx, tx, req.PropertyID, checkIn, checkOut, ""); err != nil {
		return httpx.Fail(c, err)
	}

	quote := ComputeQuote(pricing, checkIn, checkOut)
	if req.ExpectedTotal != "" {
		expected, ok := money.FromString(req.ExpectedTotal)
		if !ok || !money.EqualWithin(expected, quote.Total, StaleTolerance) {
			return httpx.Fail(c, apperr.Validation("price has changed, refresh and retry"))
		}
	}

	id := uuid.New().String()
	_, err = tx.Exec(ctx,
		`INSERT INTO rent_requests
            (id, user_id, property_id, check_in, check_out, rent_amount, deposit_amount, total_amount, status)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, renterID, req.PropertyID, checkIn, checkOut,
		quote.Rent.String(), quote.Deposit.String(), quote.Total.String(), string(StatusPending),
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("rent request create failed", err))
	}

	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	_ = alerts.Notify(ownerID, alerts.PurposeRentRequested, "New rent request for your property", id, renterID)

	return httpx.Created(c, echo.Map{"rent_request_id": id, "quote": quote})
}

// lockPaidOverlapping fails with StateConflict when another paid request
// overlaps [checkIn, checkOut). Two confirmed requests may race; first
// to pay wins and the loser fails here. Locking the candidate rows, not
// just the property, closes the query-then-lock race between two payers.
func lockPaidOverlapping(ctx context.Context, tx pgx.Tx, propertyID string, checkIn, checkOut time.Time, excludeID string) error {
	rows, err := tx.Query(ctx,
		`SELECT id FROM rent_requests
         WHERE property_id = $1
           AND id::text <> $2
           AND status = 'paid'
           AND check_in < $4 AND check_out > $3
         FOR UPDATE`,
		propertyID, excludeID, checkIn, checkOut,
	)
	if err != nil {
		return apperr.Internal("overlap check failed", err)
	}
	defer rows.Close()
	if rows.Next() {
		return apperr.StateConflict("the requested dates were already paid for by another renter")
	}
	return rows.Err()
}

// forUpdate locks a rent request row and resolves the property owner.
func forUpdate(ctx context.Context, tx pgx.Tx, id string) (*RentRequest, string, error) {
	r := &RentRequest{}
	var ownerID string
	var rent, deposit, total, status string
	err := tx.QueryRow(ctx,
		`SELECT rr.id, rr.user_id, rr.property_id, rr.check_in, rr.check_out,
                rr.rent_amount::text, rr.deposit_amount::text, rr.total_amount::text,
                rr.status, rr.payment_deadline, rr.blocked_until, rr.cooldown_expires_at,
                rr.created_at, p.owner_id
         FROM rent_requests rr
         JOIN properties p ON p.id = rr.property_id
         WHERE rr.id = $1
         FOR UPDATE OF rr`,
		id,
	).Scan(&r.ID, &r.UserID, &r.PropertyID, &r.CheckIn, &r.CheckOut,
		&rent, &deposit, &total, &status,
		&r.PaymentDeadline, &r.BlockedUntil, &r.CooldownExpiresAt,
		&r.CreatedAt, &ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", apperr.NotFound("rent request not found")
	}
	if err != nil {
		return nil, "", apperr.Internal("rent request lookup failed", err)
	}
	r.Status = Status(status)
	r.RentAmount, _ = decimal.NewFromString(rent)
	r.DepositAmount, _ = decimal.NewFromString(deposit)
	r.TotalAmount, _ = decimal.NewFromString(total)
	return r, ownerID, nil
}

// =========================
// Confirm - Owner accepts a pending request
// =========================
func Confirm(c echo.Context) error {
	actorID, _ := c.Get("user_id").(string)
	id := c.Param("id")

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	r, ownerID, err := forUpdate(ctx, tx, id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if actorID != ownerID {
		return httpx.Fail(c, apperr.Authorization("only the property owner may confirm"))
	}
	if !CanTransition(r.Status, StatusConfirmed, ActorOwner) {
		return httpx.Fail(c, apperr.StateConflict("request is not pending"))
	}

	deadline := time.Now().Add(config.Current.PaymentDeadline)
	_, err = tx.Exec(ctx,
		`UPDATE rent_requests SET status = $1, payment_deadline = $2, updated_at = NOW() WHERE id = $3`,
		string(StatusConfirmed), deadline, id,
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("confirm failed", err))
	}
	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	_ = alerts.Notify(r.UserID, alerts.PurposeRentConfirmed, "Your rent request was confirmed; pay before the deadline", id, actorID)

	return httpx.OK(c, echo.Map{"status": StatusConfirmed, "payment_deadline": deadline})
}

// =========================
// Reject - Owner rejects a pending request (renter is blocked for a while)
// =========================
func Reject(c echo.Context) error {
	actorID, _ := c.Get("user_id").(string)
	id := c.Param("id")

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	r, ownerID, err := forUpdate(ctx, tx, id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if actorID != ownerID {
		return httpx.Fail(c, apperr.Authorization("only the property owner may reject"))
	}
	if !CanTransition(r.Status, StatusRejected, ActorOwner) {
		return httpx.Fail(c, apperr.StateConflict("request is not pending"))
	}

	blockedUntil := time.Now().Add(config.Current.RenterBlock)
	_, err = tx.Exec(ctx,
		`UPDATE rent_requests SET status = $1, blocked_until = $2, updated_at = NOW() WHERE id = $3`,
		string(StatusRejected), blockedUntil, id,
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("reject failed", err))
	}
	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	_ = alerts.Notify(r.UserID, alerts.PurposeRentRejected, "Your rent request was rejected", id, actorID)

	return httpx.OK(c, echo.Map{"status": StatusRejected})
}

// =========================
// Cancel - Renter cancels their own request
// =========================
func Cancel(c echo.Context) error {
	actorID, _ := c.Get("user_id").(string)
	id := c.Param("id")

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	r, ownerID, err := forUpdate(ctx, tx, id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if actorID != r.UserID {
		return httpx.Fail(c, apperr.Authorization("only the requester may cancel"))
	}
	if !CanTransition(r.Status, StatusCancelled, ActorRenter) {
		return httpx.Fail(c, apperr.StateConflict("request cannot be cancelled in its current state"))
	}

	// Cancelling a confirmed request earns a cooldown before the renter
	// can request this property again.
	var cooldown *time.Time
	if r.Status == StatusConfirmed {
		t := time.Now().Add(config.Current.CancelCooldown)
		cooldown = &t
	}
	_, err = tx.Exec(ctx,
		`UPDATE rent_requests SET status = $1, cooldown_expires_at = $2, updated_at = NOW() WHERE id = $3`,
		string(StatusCancelled), cooldown, id,
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("cancel failed", err))
	}
	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	_ = alerts.Notify(ownerID, alerts.PurposeRentCancelled, "A rent request for your property was cancelled", id, actorID)

	return httpx.OK(c, echo.Map{"status": StatusCancelled})
}

// =========================
// CancelByOwner - Owner cancels a confirmed request
// =========================
func CancelByOwner(c echo.Context) error {
	actorID, _ := c.Get("user_id").(string)
	id := c.Param("id")

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	r, ownerID, err := forUpdate(ctx, tx, id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if actorID != ownerID {
		return httpx.Fail(c, apperr.Authorization("only the property owner may cancel"))
	}
	if !CanTransition(r.Status, StatusCancelledByOwner, ActorOwner) {
		return httpx.Fail(c, apperr.StateConflict("request is not confirmed"))
	}

	_, err = tx.Exec(ctx,
		`UPDATE rent_requests SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(StatusCancelledByOwner), id,
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("cancel failed", err))
	}
	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	_ = alerts.Notify(r.UserID, alerts.PurposeRentCancelled, "The owner cancelled your confirmed rent request", id, actorID)

	return httpx.OK(c, echo.Map{"status": StatusCancelledByOwner})
}

// =========================
// GetUserRequests - Fetch requests where the user is renter or owner
// =========================
func GetUserRequests(c echo.Context) error {
	uid, _ := c.Get("user_id").(string)

	rows, err := db.Conn.Query(context.Background(),
		`SELECT rr.id, rr.user_id, rr.property_id, rr.check_in, rr.check_out,
                rr.rent_amount::text, rr.deposit_amount::text, rr.total_amount::text,
                rr.status, rr.payment_deadline, rr.created_at
         FROM rent_requests rr
         JOIN properties p ON p.id = rr.property_id
         WHERE rr.user_id = $1 OR p.owner_id = $1
         ORDER BY rr.created_at DESC`, uid)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("failed to fetch rent requests", err))
	}
	defer rows.Close()

	var out []RentRequest
	for rows.Next() {
		var r RentRequest
		var rent, deposit, total, status string
		if err := rows.Scan(&r.ID, &r.UserID, &r.PropertyID, &r.CheckIn, &r.CheckOut,
			&rent, &deposit, &total, &status, &r.PaymentDeadline, &r.CreatedAt); err != nil {
			return httpx.Fail(c, apperr.Internal("failed to parse record", err))
		}
		r.Status = Status(status)
		r.RentAmount, _ = decimal.NewFromString(rent)
		r.DepositAmount, _ = decimal.NewFromString(deposit)
		r.TotalAmount, _ = decimal.NewFromString(total)
		out = append(out, r)
	}

	return httpx.OK(c, echo.Map{"rent_requests": out})
}
