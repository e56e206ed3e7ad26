package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/linkfix/internal/healthcheck"
)

// HealthHandler reports runtime checks to operators.
type HealthHandler struct {
	checkers []healthcheck.Checker
}

func NewHealthHandler(checkers ...healthcheck.Checker) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health/checks", h.Checks)
}

// Checks runs every checker. A failing check yields 503 so orchestrators can act on it.
func (h *HealthHandler) Checks(c echo.Context) error {
	report := healthcheck.Run(c.Request().Context(), h.checkers...)
	status := http.StatusOK
	if report.Status == healthcheck.StatusError {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}
