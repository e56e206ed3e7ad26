package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/linkfix/internal/auth"
	"github.com/memohai/linkfix/internal/linkfix"
	"github.com/memohai/linkfix/internal/policy"
	"github.com/memohai/linkfix/internal/render"
)

// ErrorResponse is the body echo renders for HTTP errors.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Previewer dry-runs the link pipeline for a guild.
type Previewer interface {
	Preview(ctx context.Context, guildID, text string) (linkfix.Preview, error)
}

// GuildsHandler manages per-guild settings and filter lists.
type GuildsHandler struct {
	store     policy.Store
	previewer Previewer
	logger    *slog.Logger
}

func NewGuildsHandler(log *slog.Logger, store policy.Store, previewer Previewer) *GuildsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &GuildsHandler{
		store:     store,
		previewer: previewer,
		logger:    log.With(slog.String("handler", "guilds")),
	}
}

func (h *GuildsHandler) Register(e *echo.Echo) {
	group := e.Group("/guilds/:guild_id")
	group.GET("/settings", h.GetSettings)
	group.PUT("/settings", h.PutSettings)
	group.PUT("/entries/:kind/:entity_id", h.PutEntry)
	group.POST("/preview", h.Preview)
}

// GetSettings godoc
// @Summary Get guild settings
// @Description Unknown guilds return the defaults
// @Tags guilds
// @Produce json
// @Param guild_id path string true "Guild ID"
// @Success 200 {object} policy.GuildSettings
// @Failure 500 {object} ErrorResponse
// @Router /guilds/{guild_id}/settings [get]
func (h *GuildsHandler) GetSettings(c echo.Context) error {
	s, err := h.store.GuildSettings(c.Request().Context(), c.Param("guild_id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, s)
}

// PutSettings godoc
// @Summary Replace guild settings
// @Tags guilds
// @Accept json
// @Produce json
// @Param guild_id path string true "Guild ID"
// @Param request body policy.GuildSettings true "Settings"
// @Success 200 {object} policy.GuildSettings
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /guilds/{guild_id}/settings [put]
func (h *GuildsHandler) PutSettings(c echo.Context) error {
	guildID := c.Param("guild_id")
	req := policy.DefaultGuildSettings(guildID)
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.GuildID = guildID
	if tpl := strings.TrimSpace(req.LinkTemplate); tpl != "" {
		if _, err := render.ParseTemplate(tpl); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "link_template: "+err.Error())
		}
	}
	saved, err := h.store.SaveGuildSettings(c.Request().Context(), req)
	if err != nil {
		return storeError(err)
	}
	h.logger.Info("guild settings saved",
		slog.String("guild_id", guildID),
		slog.Any("operator", c.Get(auth.OperatorContextKey)),
	)
	return c.JSON(http.StatusOK, saved)
}

// PutEntry godoc
// @Summary Set a filter list entry
// @Tags guilds
// @Accept json
// @Param guild_id path string true "Guild ID"
// @Param kind path string true "text_channel, member or role"
// @Param entity_id path string true "Entity ID"
// @Param request body policy.ListEntry true "Entry"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /guilds/{guild_id}/entries/{kind}/{entity_id} [put]
func (h *GuildsHandler) PutEntry(c echo.Context) error {
	var entry policy.ListEntry
	if err := c.Bind(&entry); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := h.store.SetListEntry(c.Request().Context(),
		c.Param("guild_id"),
		policy.EntityKind(c.Param("kind")),
		c.Param("entity_id"),
		entry,
	)
	if err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PreviewRequest carries message text to dry-run.
type PreviewRequest struct {
	Text string `json:"text"`
}

// Preview godoc
// @Summary Preview fixed links
// @Description Match and render the links of a message with the guild's settings without sending anything
// @Tags guilds
// @Accept json
// @Produce json
// @Param guild_id path string true "Guild ID"
// @Param request body PreviewRequest true "Message"
// @Success 200 {object} linkfix.Preview
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /guilds/{guild_id}/preview [post]
func (h *GuildsHandler) Preview(c echo.Context) error {
	var req PreviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	p, err := h.previewer.Preview(c.Request().Context(), c.Param("guild_id"), req.Text)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func storeError(err error) error {
	switch {
	case errors.Is(err, policy.ErrInvalidGuild),
		errors.Is(err, policy.ErrInvalidEntity),
		errors.Is(err, policy.ErrInvalidCustomSite):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
