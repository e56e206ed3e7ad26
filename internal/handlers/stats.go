package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/linkfix/internal/events"
)

// StatsReader reads aggregated analytics events.
type StatsReader interface {
	Stats(ctx context.Context, since time.Time) ([]events.Stat, error)
}

type StatsHandler struct {
	store StatsReader
	now   func() time.Time
}

func NewStatsHandler(store StatsReader) *StatsHandler {
	return &StatsHandler{store: store, now: time.Now}
}

func (h *StatsHandler) Register(e *echo.Echo) {
	e.GET("/stats", h.List)
}

// StatsResponse wraps the event counts of a window.
type StatsResponse struct {
	Since time.Time     `json:"since"`
	Items []events.Stat `json:"items"`
}

// List godoc
// @Summary Event counts
// @Description Count analytics events, e.g. link_twitter, over the last days
// @Tags stats
// @Produce json
// @Param days query int false "Window in days (default 7)"
// @Success 200 {object} StatsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats [get]
func (h *StatsHandler) List(c echo.Context) error {
	days := 7
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
		days = n
	}
	since := h.now().UTC().AddDate(0, 0, -days)
	items, err := h.store.Stats(c.Request().Context(), since)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []events.Stat{}
	}
	return c.JSON(http.StatusOK, StatsResponse{Since: since, Items: items})
}
