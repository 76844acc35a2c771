package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/renthavenhq/renthaven/internal/roles"
)

// RequireRoles ensures the requester's role is one of the allowed roles.
// Usage: route(..., RequireRoles(roles.Agent, roles.Admin))
func RequireRoles(allowed ...roles.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, _ := c.Get("role").(string)
			role := roles.Parse(raw)
			if !role.Valid() {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "role missing"})
			}

			for _, r := range allowed {
				if role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "access denied"})
		}
	}
}
