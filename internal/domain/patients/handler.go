package patients

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
	return &Handler{svc: svc, logger: logger.With().Str("handler", "patients").Logger()}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// patients consult their own record here; staff routes are below
	api.GET("/patients/moi", h.self)

	staff := api.Group("/patients", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleSecretary))
	staff.GET("", h.search)
	staff.POST("", h.create)
	staff.GET("/:id", h.get)
	staff.PUT("/:id", h.update)
	staff.DELETE("/:id", h.delete, auth.RequireRole(auth.RoleHospitalOwner))

	care := api.Group("/patients/:id/suivis", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	care.GET("", h.listFollowUps)
	care.POST("", h.recordFollowUp)
}

func (h *Handler) self(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	p, err := h.svc.GetByUserID(c.Request().Context(), userID)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) search(c echo.Context) error {
	page := pagination.FromContext(c)
	filter := SearchFilter{
		Name:  c.QueryParam("nom"),
		Phone: c.QueryParam("telephone"),
	}
	out, total, err := h.svc.Search(c.Request().Context(), filter, page.Limit, page.Offset)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, page))
}

func (h *Handler) create(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	created, err := h.svc.Create(c.Request().Context(), &p)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	updated, err := h.svc.Update(c.Request().Context(), id, &p)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listFollowUps(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	page := pagination.FromContext(c)
	out, total, err := h.svc.ListFollowUps(c.Request().Context(), id, page.Limit, page.Offset)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, page))
}

type followUpRequest struct {
	WeightKg     *float64 `json:"weight_kg,omitempty"`
	HeightCm     *float64 `json:"height_cm,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	SystolicBP   *int     `json:"systolic_bp,omitempty"`
	DiastolicBP  *int     `json:"diastolic_bp,omitempty"`
	HeartRate    *int     `json:"heart_rate,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
}

func (h *Handler) recordFollowUp(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	recordedBy, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	var req followUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	f := &FollowUp{
		WeightKg:     req.WeightKg,
		HeightCm:     req.HeightCm,
		TemperatureC: req.TemperatureC,
		SystolicBP:   req.SystolicBP,
		DiastolicBP:  req.DiastolicBP,
		HeartRate:    req.HeartRate,
		Notes:        req.Notes,
	}
	created, err := h.svc.RecordFollowUp(c.Request().Context(), id, recordedBy, f)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"suivi":              created,
		"imc":                created.BMI(),
		"imc_interpretation": created.BMIInterpretation(),
	})
}
