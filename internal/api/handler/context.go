package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bibliora/library-system/internal/core/ports"
)

// ctxCaller extracts the authenticated caller injected by the Auth middleware
// and performs a fast-fail check before any service call: both the subject
// and role claims must be present, otherwise the token is structurally valid
// but operationally unusable.
func ctxCaller(c echo.Context) (ports.Caller, error) {
	sub, _ := c.Get("sub").(string)
	role, _ := c.Get("role").(string)
	if sub == "" || role == "" {
		return ports.Caller{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return ports.Caller{UserID: sub, Role: role}, nil
}
