package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/linkfix/internal/provider"
)

// ProvidersHandler exposes the provider catalog.
type ProvidersHandler struct {
	registry *provider.Registry
}

func NewProvidersHandler(registry *provider.Registry) *ProvidersHandler {
	return &ProvidersHandler{registry: registry}
}

func (h *ProvidersHandler) Register(e *echo.Echo) {
	group := e.Group("/providers")
	group.GET("", h.List)
	group.GET("/:id", h.Get)
}

// List godoc
// @Summary List providers
// @Description List the built-in providers in match order
// @Tags providers
// @Produce json
// @Success 200 {array} provider.Provider
// @Router /providers [get]
func (h *ProvidersHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.List())
}

// Get godoc
// @Summary Get provider by ID
// @Tags providers
// @Produce json
// @Param id path string true "Provider ID"
// @Success 200 {object} provider.Provider
// @Failure 404 {object} ErrorResponse
// @Router /providers/{id} [get]
func (h *ProvidersHandler) Get(c echo.Context) error {
	p, ok := h.registry.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "provider not found")
	}
	return c.JSON(http.StatusOK, p)
}
