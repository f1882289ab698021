package notifications

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/trimed/hospital/internal/platform/auth"
	"github.com/trimed/hospital/pkg/apperror"
	"github.com/trimed/hospital/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With().Str("handler", "notifications").Logger()}
}

// Every authenticated user manages their own notifications, so no role
// guard here.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications")
	g.GET("", h.list)
	g.GET("/non_lues", h.unreadCount)
	g.POST("/marquer_tout_lu", h.markAllRead)
	g.POST("/:id/marquer_lu", h.markRead)
	g.GET("/preferences", h.preferences)
	g.PUT("/preferences", h.updatePreferences)
}

func actorID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	return id, nil
}

func (h *Handler) list(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	unreadOnly := c.QueryParam("non_lues") == "true"
	out, total, err := h.svc.List(c.Request().Context(), userID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, page))
}

func (h *Handler) unreadCount(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"non_lues": n})
}

func (h *Handler) markRead(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}
	n, err := h.svc.MarkRead(c.Request().Context(), id, userID)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) markAllRead(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"marquees": n})
}

func (h *Handler) preferences(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Preferences(c.Request().Context(), userID)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) updatePreferences(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	var in PreferenceInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdatePreferences(c.Request().Context(), userID, in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, p)
}
