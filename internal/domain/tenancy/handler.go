package tenancy

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
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Tenant administration is restricted to the platform operator.
	admin := api.Group("/tenants", auth.RequireRole(auth.RoleSystemAdmin))
	admin.GET("", h.ListTenants)
	admin.POST("", h.CreateTenant)
	admin.GET("/:id", h.GetTenant)
	admin.POST("/:id/activer", h.ActivateTenant)
	admin.POST("/:id/suspendre", h.SuspendTenant)

	settings := api.Group("/parametres", auth.RequireRole(auth.RoleHospitalOwner))
	settings.GET("", h.GetSettings)
	settings.PUT("", h.UpdateSettings)
}

func (h *Handler) CreateTenant(c echo.Context) error {
	var t Tenant
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTenant(c.Request().Context(), &t); err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTenant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTenant(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTenants(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTenants(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ActivateTenant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.Activate(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) SuspendTenant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.Suspend(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) GetSettings(c echo.Context) error {
	s, err := h.svc.GetSettings(c.Request().Context())
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) UpdateSettings(c echo.Context) error {
	var in HospitalSettings
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := h.svc.UpdateSettings(c.Request().Context(), &in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, s)
}
