package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/renthavenhq/renthaven/internal/admin"
	"github.com/renthavenhq/renthaven/internal/alerts"
	"github.com/renthavenhq/renthaven/internal/auth"
	"github.com/renthavenhq/renthaven/internal/checkout"
	"github.com/renthavenhq/renthaven/internal/config"
	"github.com/renthavenhq/renthaven/internal/db"
	appmw "github.com/renthavenhq/renthaven/internal/middleware"
	"github.com/renthavenhq/renthaven/internal/payments"
	"github.com/renthavenhq/renthaven/internal/purchase"
	"github.com/renthavenhq/renthaven/internal/rentals"
	"github.com/renthavenhq/renthaven/internal/roles"
	"github.com/renthavenhq/renthaven/internal/sweeps"
	"github.com/renthavenhq/renthaven/internal/wallet"
)

func main() {
	config.Load()
	db.Init()
	alerts.Init()
	defer alerts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeps.Start(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Health
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/ready", func(c echo.Context) error {
		if err := db.Conn.Ping(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, "db unreachable")
		}
		return c.String(http.StatusOK, "ready")
	})

	// Public auth routes, rate limited per IP
	authGroup := e.Group("")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/signup", auth.Signup)
	authGroup.POST("/login", auth.Login)

	// Gateway webhook: authenticated by HMAC signature, not JWT
	e.POST("/payments/callback", payments.Callback)

	// Public discovery
	e.GET("/properties", rentals.ListProperties)

	// Authenticated surface
	g := e.Group("")
	g.Use(appmw.JWTMiddleware)

	g.GET("/me", auth.Me)

	// Properties
	g.POST("/properties", rentals.CreateProperty, appmw.RequireRoles(roles.Owner, roles.Admin))

	// Wallet
	g.GET("/wallet/balance", wallet.Balance)
	g.GET("/wallet/transactions", wallet.GetUserTransactions)
	g.POST("/wallet/topups/init", wallet.TopupInit)
	g.POST("/wallet/withdrawals", wallet.Withdraw)
	g.GET("/wallet/withdrawals", wallet.GetUserWithdrawals)

	// Rent request lifecycle
	g.POST("/rentals/requests", rentals.CreateRequest)
	g.GET("/rentals/requests", rentals.GetUserRequests)
	g.POST("/rentals/requests/:id/confirm", rentals.Confirm)
	g.POST("/rentals/requests/:id/reject", rentals.Reject)
	g.POST("/rentals/requests/:id/cancel", rentals.Cancel)
	g.POST("/rentals/requests/:id/cancel_by_owner", rentals.CancelByOwner)
	g.POST("/rentals/requests/:id/pay", rentals.Pay)

	// Checkout / dispute engine
	g.POST("/rentals/requests/:id/checkout", checkout.Request)
	g.GET("/checkouts/:id", checkout.Get)
	g.POST("/checkouts/:id/owner_confirm", checkout.OwnerConfirm)
	g.POST("/checkouts/:id/owner_reject", checkout.OwnerReject)
	g.POST("/checkouts/:id/decide", checkout.AgentDecide, appmw.RequireRoles(roles.Agent, roles.Admin))
	g.POST("/checkouts/:id/override", checkout.AdminOverride, appmw.RequireRoles(roles.Admin))

	// Property purchases
	g.POST("/properties/:id/buy", purchase.Buy)
	g.POST("/purchases/:id/cancel", purchase.Cancel)
	g.GET("/purchases", purchase.GetUserPurchases)

	// Notifications
	g.GET("/notifications", alerts.GetUserNotifications)
	g.POST("/notifications/:id/read", alerts.MarkNotificationRead)

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(appmw.JWTMiddleware)
	adminGroup.Use(appmw.AdminGuard)
	adminGroup.GET("/stats", admin.Stats)
	adminGroup.GET("/wallets", admin.ListWallets)
	adminGroup.GET("/wallets/:userId/transactions", admin.ListUserTransactions)
	adminGroup.GET("/withdrawals", admin.ListWithdrawals)
	adminGroup.POST("/withdrawals/:id/complete", wallet.AdminCompleteWithdrawal)
	adminGroup.POST("/withdrawals/:id/fail", wallet.AdminFailWithdrawal)
	adminGroup.GET("/escrows/rentals", admin.ListRentalEscrows)
	adminGroup.GET("/escrows/purchases", admin.ListPurchaseEscrows)
	adminGroup.POST("/escrows/purchases/:id/release", purchase.AdminRelease)
	adminGroup.GET("/checkouts", admin.ListCheckouts)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("API server listening on :%s", port)
	if err := e.Start(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
