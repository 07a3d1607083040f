package handler // HTTP handlers for the reservation API

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and
// monitoring.  It returns plain "ok" with a 200 status.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
