package identity

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/trimed/hospital/internal/platform/auth"
	"github.com/trimed/hospital/internal/platform/db"
	"github.com/trimed/hospital/pkg/apperror"
	"github.com/trimed/hospital/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With().Str("handler", "identity").Logger()}
}

// RegisterPublicRoutes mounts the endpoints reachable without a token.
func (h *Handler) RegisterPublicRoutes(api *echo.Group) {
	api.POST("/auth/login", h.login)
}

// RegisterRoutes mounts the authenticated endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/auth/me", h.me)
	api.POST("/auth/changer_mot_de_passe", h.changePassword)

	users := api.Group("/utilisateurs", auth.RequireRole(auth.RoleHospitalOwner))
	users.GET("", h.list)
	users.POST("", h.register)
	users.GET("/:id", h.get)
	users.PUT("/:id", h.update)
	users.POST("/:id/desactiver", h.deactivate)
	users.POST("/:id/reactiver", h.reactivate)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

func (h *Handler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	tenantID := db.TenantFromContext(c.Request().Context())
	u, token, expiresAt, err := h.svc.Authenticate(c.Request().Context(), tenantID, req.Email, req.Password)
	if err != nil {
		if _, ok := err.(*apperror.PermissionError); ok {
			// map auth failures to 401, not the default 403
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, User: u})
}

func (h *Handler) me(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	id, err := uuid.Parse(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, u)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"mot_de_passe_actuel"`
	NewPassword     string `json:"nouveau_mot_de_passe"`
}

func (h *Handler) changePassword(c echo.Context) error {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ChangePassword(c.Request().Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) list(c echo.Context) error {
	page := pagination.FromContext(c)
	users, total, err := h.svc.List(c.Request().Context(), c.QueryParam("role"), page.Limit, page.Offset)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, page))
}

func (h *Handler) register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) reactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	if err := h.svc.Reactivate(c.Request().Context(), id); err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
