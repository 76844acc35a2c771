package rentals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/httpx"
	"github.com/renthavenhq/renthaven/internal/money"
)

// =========================
// CreateProperty - Owner lists a property for rent or sale
// =========================
func CreateProperty(c echo.Context) error {
	ownerID, _ := c.Get("user_id").(string)

	var req struct {
		Title        string `json:"title"`
		ListingType  string `json:"listing_type"`
		NightlyPrice string `json:"nightly_price"`
		MonthlyPrice string `json:"monthly_price"`
		Deposit      string `json:"deposit"`
		SalePrice    string `json:"sale_price"`
	}
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return httpx.Fail(c, apperr.Validation("title is required"))
	}
	if req.ListingType != "rent" && req.ListingType != "sale" {
		return httpx.Fail(c, apperr.Validation("listing_type must be rent or sale"))
	}

	parse := func(s string) (decimal.Decimal, bool) {
		if s == "" {
			return decimal.Zero, true
		}
		d, ok := money.FromString(s)
		return d, ok && d.Sign() >= 0
	}
	nightly, ok1 := parse(req.NightlyPrice)
	monthly, ok2 := parse(req.MonthlyPrice)
	deposit, ok3 := parse(req.Deposit)
	sale, ok4 := parse(req.SalePrice)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return httpx.Fail(c, apperr.Validation("prices must be non-negative numbers"))
	}
	if req.ListingType == "rent" && nightly.Sign() <= 0 && monthly.Sign() <= 0 {
		return httpx.Fail(c, apperr.Validation("a rental listing needs a nightly or monthly price"))
	}
	if req.ListingType == "sale" && sale.Sign() <= 0 {
		return httpx.Fail(c, apperr.Validation("a sale listing needs a sale price"))
	}

	id := uuid.New().String()
	_, err := db.Conn.Exec(context.Background(),
		`INSERT INTO properties (id, owner_id, title, listing_type, status, nightly_price, monthly_price, deposit, sale_price)
         VALUES ($1, $2, $3, $4, 'valid', $5, $6, $7, $8)`,
		id, ownerID, req.Title, req.ListingType,
		nightly.String(), monthly.String(), deposit.String(), sale.String(),
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("property create failed", err))
	}
	return httpx.Created(c, echo.Map{"id": id, "status": "valid"})
}

// =========================
// ListProperties - Public listing discovery
// =========================
func ListProperties(c echo.Context) error {
	listingType := c.QueryParam("type")

	query := `SELECT id, owner_id, title, listing_type, status,
                     nightly_price::text, monthly_price::text, deposit::text, sale_price::text, created_at
              FROM properties WHERE status = 'valid'`
	args := []any{}
	if listingType != "" {
		query += ` AND listing_type = $1`
		args = append(args, listingType)
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	rows, err := db.Conn.Query(context.Background(), query, args...)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("property query failed", err))
	}
	defer rows.Close()

	out := []echo.Map{}
	for rows.Next() {
		var id, ownerID, title, typ, status, nightly, monthly, deposit, sale string
		var createdAt time.Time
		if err := rows.Scan(&id, &ownerID, &title, &typ, &status, &nightly, &monthly, &deposit, &sale, &createdAt); err != nil {
			return httpx.Fail(c, apperr.Internal("property scan failed", err))
		}
		nightlyD, _ := decimal.NewFromString(nightly)
		monthlyD, _ := decimal.NewFromString(monthly)
		depositD, _ := decimal.NewFromString(deposit)
		saleD, _ := decimal.NewFromString(sale)
		out = append(out, echo.Map{
			"id":            id,
			"owner_id":      ownerID,
			"title":         title,
			"listing_type":  typ,
			"status":        status,
			"nightly_price": nightlyD,
			"monthly_price": monthlyD,
			"deposit":       depositD,
			"sale_price":    saleD,
			"created_at":    createdAt,
		})
	}
	return httpx.OK(c, echo.Map{"properties": out})
}
