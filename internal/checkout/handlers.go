package checkout

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
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/httpx"
	"github.com/renthavenhq/renthaven/internal/roles"
	"github.com/renthavenhq/renthaven/internal/settlement"
)

// =========================
// Request - Renter opens a checkout on a paid rental
// =========================
func Request(c echo.Context) error {
	actorID, _ := c.Get("user_id").(string)
	rentRequestID := c.Param("id")

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	var renterID, ownerID, rrStatus string
	var checkIn, checkOut time.Time
	err = tx.QueryRow(ctx,
		`SELECT rr.user_id, p.owner_id, rr.status, rr.check_in, rr.check_out
         FROM rent_requests rr
         JOIN properties p ON p.id = rr.property_id
         WHERE rr.id = $1
         FOR UPDATE OF rr`,
		rentRequestID,
	).Scan(&renterID, &ownerID, &rrStatus, &checkIn, &checkOut)
	if errors.Is(err, pgx.ErrNoRows) {
		return httpx.Fail(c, apperr.NotFound("rent request not found"))
	}
	if err != nil {
		return httpx.Fail(c, apperr.Internal("rent request lookup failed", err))
	}
	if actorID != renterID {
		return httpx.Fail(c, apperr.Authorization("only the renter may request checkout"))
	}
	if rrStatus != "paid" {
		return httpx.Fail(c, apperr.StateConflict("rent request is not paid"))
	}

	// One checkout per rent request.
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM checkouts WHERE rent_request_id = $1)`,
		rentRequestID,
	).Scan(&exists); err != nil {
		return httpx.Fail(c, apperr.Internal("checkout lookup failed", err))
	}
	if exists {
		return httpx.Fail(c, apperr.StateConflict("a checkout already exists for this rent request"))
	}

	cl := Classify(time.Now(), checkIn, checkOut)

	checkoutID := uuid.New().String()
	if _, err := tx.Exec(ctx,
		`INSERT INTO checkouts (id, rent_request_id, requester_id, status, type, owner_confirmation)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		checkoutID, rentRequestID, actorID, string(StatusPending), string(cl.Type), string(cl.OwnerConfirmation),
	); err != nil {
		return httpx.Fail(c, apperr.Internal("checkout create failed", err))
	}

	// Before check-in: resolve immediately, full deposit back, rent
	// forfeited to the owner.
	if cl.AutoConfirm {
		if _, err := tx.Exec(ctx,
			`UPDATE checkouts SET deposit_return_percent = 100, rent_returned = FALSE, updated_at = NOW()
             WHERE id = $1`,
			checkoutID,
		); err != nil {
			return httpx.Fail(c, apperr.Internal("checkout update failed", err))
		}
		res, err := settlement.Finalize(ctx, tx, settlement.Input{
			CheckoutID:           checkoutID,
			RentRequestID:        rentRequestID,
			DepositReturnPercent: 100,
			RentReturned:         false,
			FinalStatus:          string(StatusAutoConfirmed),
		})
		if err != nil {
			return httpx.Fail(c, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return httpx.Fail(c, apperr.Internal("commit failed", err))
		}
		notifySettled(checkoutID, res)
		return httpx.Created(c, echo.Map{
			"checkout_id": checkoutID,
			"type":        cl.Type,
			"status":      StatusAutoConfirmed,
			"refund":      res.RefundAmount,
			"payout":      res.PayoutAmount,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	if cl.OwnerConfirmation == OwnerPending {
		_ = alerts.Notify(ownerID, alerts.PurposeCheckoutOpened, "The renter requested checkout; confirm or report damages", checkoutID, actorID)
	} else {
		_ = alerts.EnqueueAdminAlert(actorID, "info", "Checkout awaiting agent decision: "+checkoutID)
	}

	return httpx.Created(c, echo.Map{
		"checkout_id":        checkoutID,
		"type":               cl.Type,
		"status":             StatusPending,
		"owner_confirmation": cl.OwnerConfirmation,
	})
}

// forUpdate locks a checkout together with its rent request and
// resolves the parties.
func forUpdate(ctx context.Context, tx pgx.Tx, checkoutID string) (*Checkout, string, string, error) {
	ch := &Checkout{}
	var renterID, ownerID string
	var status, typ, ownerConf string
	var decidedBy, ownerNotes, adminNote, txRef *string
	var refund, payout *string
	err := tx.QueryRow(ctx,
		`SELECT ch.id, ch.rent_request_id, ch.requester_id, ch.status, ch.type, ch.owner_confirmation,
                ch.deposit_return_percent, ch.rent_returned, ch.decided_by, ch.decided_at,
                ch.decision_override, ch.owner_notes, ch.admin_note,
                ch.final_refund_amount::text, ch.final_payout_amount::text, ch.transaction_ref,
                ch.requested_at, rr.user_id, p.owner_id
         FROM checkouts ch
         JOIN rent_requests rr ON rr.id = ch.rent_request_id
         JOIN properties p ON p.id = rr.property_id
         WHERE ch.id = $1
         FOR UPDATE OF ch, rr`,
		checkoutID,
	).Scan(&ch.ID, &ch.RentRequestID, &ch.RequesterID, &status, &typ, &ownerConf,
		&ch.DepositReturnPercent, &ch.RentReturned, &decidedBy, &ch.DecidedAt,
		&ch.DecisionOverride, &ownerNotes, &adminNote,
		&refund, &payout, &txRef,
		&ch.RequestedAt, &renterID, &ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", "", apperr.NotFound("checkout not found")
	}
	if err != nil {
		return nil, "", "", apperr.Internal("checkout lookup failed", err)
	}
	ch.Status = Status(status)
	ch.Type = Type(typ)
	ch.OwnerConfirmation = OwnerConfirmation(ownerConf)
	if decidedBy != nil {
		ch.DecidedBy = *decidedBy
	}
	if ownerNotes != nil {
		ch.OwnerNotes = *ownerNotes
	}
	if adminNote != nil {
		ch.AdminNote = *adminNote
	}
	if txRef != nil {
		ch.TransactionRef = *txRef
	}
	if refund != nil {
		d, _ := decimal.NewFromString(*refund)
		ch.FinalRefundAmount = &d
	}
	if payout != nil {
		d, _ := decimal.NewFromString(*payout)
		ch.FinalPayoutAmount = &d
	}
	return ch, renterID, ownerID, nil
}

// =========================
// OwnerConfirm - Owner signs off: full deposit back to the renter
// =========================
func OwnerConfirm(c echo.Context) error {
	actorID, _ := c.Get("user_id").(string)
	checkoutID := c.Param("id")

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	ch, _, ownerID, err := forUpdate(ctx, tx, checkoutID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if actorID != ownerID {
		return httpx.Fail(c, apperr.Authorization("only the property owner may confirm"))
	}
	if ch.Status.Terminal() {
		return httpx.Fail(c, apperr.StateConflict("checkout is already settled"))
	}
	if ch.OwnerConfirmation != OwnerPending {
		return httpx.Fail(c, apperr.StateConflict("owner confirmation is not pending"))
	}

	// Owner confirming always means the full deposit goes back; partial
	// deductions require rejecting and escalating to an agent.
	if _, err := tx.Exec(ctx,
		`UPDATE checkouts
         SET owner_confirmation = $1, deposit_return_percent = 100, rent_returned = FALSE,
             decided_by = $2, decided_at = NOW(), updated_at = NOW()
         WHERE id = $3`,
		string(OwnerConfirmed), actorID, checkoutID,
	); err != nil {
		return httpx.Fail(c, apperr.Internal("checkout update failed", err))
	}

	res, err := settlement.Finalize(ctx, tx, settlement.Input{
		CheckoutID:           checkoutID,
		RentRequestID:        ch.RentRequestID,
		DepositReturnPercent: 100,
		RentReturned:         false,
		FinalStatus:          string(StatusConfirmed),
	})
	if err != nil {
		return httpx.Fail(c, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	notifySettled(checkoutID, res)
	return httpx.OK(c, echo.Map{"status": StatusConfirmed, "refund": res.RefundAmount, "payout": res.PayoutAmount})
}

// =========================
// OwnerReject - Owner reports damages; an agent must now decide
// =========================
func OwnerReject(c echo.Context) error {
	actorID, _ := c.Get("user_id").(string)
	checkoutID := c.Param("id")

	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil || req.Notes == "" {
		return httpx.Fail(c, apperr.Validation("notes describing the damages are required"))
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	ch, renterID, ownerID, err := forUpdate(ctx, tx, checkoutID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if actorID != ownerID {
		return httpx.Fail(c, apperr.Authorization("only the property owner may reject"))
	}
	if ch.Status.Terminal() {
		return httpx.Fail(c, apperr.StateConflict("checkout is already settled"))
	}
	if ch.OwnerConfirmation != OwnerPending {
		return httpx.Fail(c, apperr.StateConflict("owner confirmation is not pending"))
	}

	// Rejection escalates, it does not terminate: status stays pending
	// until an agent or admin decides the split.
	if _, err := tx.Exec(ctx,
		`UPDATE checkouts SET owner_confirmation = $1, owner_notes = $2, updated_at = NOW() WHERE id = $3`,
		string(OwnerRejected), req.Notes, checkoutID,
	); err != nil {
		return httpx.Fail(c, apperr.Internal("checkout update failed", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	_ = alerts.Notify(renterID, alerts.PurposeCheckoutDecided, "The owner reported damages; an agent will review", checkoutID, actorID)
	_ = alerts.EnqueueAdminAlert(actorID, "warning", "Checkout escalated by owner rejection: "+checkoutID)

	return httpx.OK(c, echo.Map{"status": StatusPending, "owner_confirmation": OwnerRejected})
}

// =========================
// AgentDecide - Agent/admin sets the refund split after bypass or rejection
// =========================
func AgentDecide(c echo.Context) error {
	actorID, _ := c.Get("user_id").(string)
	rawRole, _ := c.Get("role").(string)
	role := roles.Parse(rawRole)
	checkoutID := c.Param("id")

	if !role.CanDecideCheckout() {
		return httpx.Fail(c, apperr.Authorization("only an agent or admin may decide"))
	}

	var req struct {
		DepositReturnPercent *int   `json:"deposit_return_percent"`
		RentReturned         bool   `json:"rent_returned"`
		Note                 string `json:"note"`
	}
	if err := c.Bind(&req); err != nil || req.DepositReturnPercent == nil {
		return httpx.Fail(c, apperr.Validation("deposit_return_percent is required"))
	}
	pct := *req.DepositReturnPercent
	if pct < 0 || pct > 100 {
		return httpx.Fail(c, apperr.Validation("deposit_return_percent must be between 0 and 100"))
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	ch, _, _, err := forUpdate(ctx, tx, checkoutID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if !ch.AgentDecisionAllowed() {
		return httpx.Fail(c, apperr.StateConflict("checkout is not awaiting an agent decision"))
	}

	if _, err := tx.Exec(ctx,
		`UPDATE checkouts
         SET deposit_return_percent = $1, rent_returned = $2, decided_by = $3, decided_at = NOW(),
             admin_note = NULLIF($4, ''), updated_at = NOW()
         WHERE id = $5`,
		pct, req.RentReturned, actorID, req.Note, checkoutID,
	); err != nil {
		return httpx.Fail(c, apperr.Internal("checkout update failed", err))
	}

	res, err := settlement.Finalize(ctx, tx, settlement.Input{
		CheckoutID:           checkoutID,
		RentRequestID:        ch.RentRequestID,
		DepositReturnPercent: pct,
		RentReturned:         req.RentReturned,
		FinalStatus:          string(StatusConfirmed),
	})
	if err != nil {
		return httpx.Fail(c, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	notifySettled(checkoutID, res)
	return httpx.OK(c, echo.Map{"status": StatusConfirmed, "refund": res.RefundAmount, "payout": res.PayoutAmount})
}

// =========================
// AdminOverride - Final authority; flagged for audit
// =========================
func AdminOverride(c echo.Context) error {
	actorID, _ := c.Get("user_id").(string)
	rawRole, _ := c.Get("role").(string)
	checkoutID := c.Param("id")

	if !roles.Parse(rawRole).CanOverrideCheckout() {
		return httpx.Fail(c, apperr.Authorization("only an admin may override"))
	}

	var req struct {
		DepositReturnPercent *int   `json:"deposit_return_percent"`
		RentReturned         bool   `json:"rent_returned"`
		Note                 string `json:"note"`
	}
	if err := c.Bind(&req); err != nil || req.DepositReturnPercent == nil {
		return httpx.Fail(c, apperr.Validation("deposit_return_percent is required"))
	}
	pct := *req.DepositReturnPercent
	if pct < 0 || pct > 100 {
		return httpx.Fail(c, apperr.Validation("deposit_return_percent must be between 0 and 100"))
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	ch, _, _, err := forUpdate(ctx, tx, checkoutID)
	if err != nil {
		return httpx.Fail(c, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE checkouts
         SET deposit_return_percent = $1, rent_returned = $2, decided_by = $3, decided_at = NOW(),
             decision_override = TRUE, admin_note = NULLIF($4, ''), updated_at = NOW()
         WHERE id = $5`,
		pct, req.RentReturned, actorID, req.Note, checkoutID,
	); err != nil {
		return httpx.Fail(c, apperr.Internal("checkout update failed", err))
	}

	// An override against an already-settled checkout hits the released
	// escrow and fails with InvalidEscrowState; it can never pay twice.
	res, err := settlement.Finalize(ctx, tx, settlement.Input{
		CheckoutID:           checkoutID,
		RentRequestID:        ch.RentRequestID,
		DepositReturnPercent: pct,
		RentReturned:         req.RentReturned,
		FinalStatus:          string(StatusConfirmed),
	})
	if err != nil {
		return httpx.Fail(c, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	_ = alerts.EnqueueAdminAlert(actorID, "warning", "Checkout settled by admin override: "+checkoutID)
	notifySettled(checkoutID, res)
	return httpx.OK(c, echo.Map{"status": StatusConfirmed, "override": true, "refund": res.RefundAmount, "payout": res.PayoutAmount})
}

// =========================
// Get - Checkout details plus the caller's available actions
// =========================
func Get(c echo.Context) error {
	actorID, _ := c.Get("user_id").(string)
	rawRole, _ := c.Get("role").(string)
	checkoutID := c.Param("id")

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	ch, renterID, ownerID, err := forUpdate(ctx, tx, checkoutID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	rel := Relationship{
		Role:     roles.Parse(rawRole),
		IsRenter: actorID == renterID,
		IsOwner:  actorID == ownerID,
	}
	if !rel.IsRenter && !rel.IsOwner && !rel.Role.IsStaff() {
		return httpx.Fail(c, apperr.Authorization("not a participant in this checkout"))
	}

	return httpx.OK(c, echo.Map{"checkout": ch, "actions": UserActions(ch, rel)})
}

func notifySettled(checkoutID string, res *settlement.Result) {
	if res.RefundAmount.Sign() > 0 {
		_ = alerts.Notify(res.RenterID, alerts.PurposeSettlementRefund, "Your checkout refund was credited to your wallet", checkoutID, "")
	}
	if res.PayoutAmount.Sign() > 0 {
		_ = alerts.Notify(res.OwnerID, alerts.PurposeSettlementPayout, "Your rental payout was credited to your wallet", checkoutID, "")
	}
}
