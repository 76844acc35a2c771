package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/renthavenhq/renthaven/internal/roles"
)

// AdminGuard ensures only admin users can access admin routes
func AdminGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, _ := c.Get("role").(string)
		if roles.Parse(raw) != roles.Admin {
			return c.JSON(http.StatusForbidden, echo.Map{
				"error": "admin access only",
			})
		}
		return next(c)
	}
}
