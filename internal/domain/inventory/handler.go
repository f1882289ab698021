package inventory

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
	return &Handler{svc: svc, logger: logger.With().Str("handler", "inventory").Logger()}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	pharmacy := auth.RequireRole(auth.RoleHospitalOwner, auth.RoleNurse, auth.RoleStaff)

	cats := api.Group("/categories_medicaments", pharmacy)
	cats.GET("", h.listCategories)
	cats.POST("", h.createCategory, auth.RequireRole(auth.RoleHospitalOwner))

	meds := api.Group("/medicaments", pharmacy)
	meds.GET("", h.list)
	meds.POST("", h.create, auth.RequireRole(auth.RoleHospitalOwner))
	meds.GET("/alertes_stock", h.lowStock)
	meds.GET("/:id", h.get)
	meds.PUT("/:id", h.update, auth.RequireRole(auth.RoleHospitalOwner))
	meds.GET("/:id/stock", h.stockHistory)
	meds.POST("/:id/stock", h.adjustStock)
}

type categoryRequest struct {
	Name string `json:"nom"`
}

func (h *Handler) createCategory(c echo.Context) error {
	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	created, err := h.svc.CreateCategory(c.Request().Context(), req.Name)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) listCategories(c echo.Context) error {
	out, err := h.svc.ListCategories(c.Request().Context())
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) create(c echo.Context) error {
	var in MedicationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	created, err := h.svc.CreateMedication(c.Request().Context(), in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medication id")
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medication id")
	}
	var in MedicationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	updated, err := h.svc.UpdateMedication(c.Request().Context(), id, in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) list(c echo.Context) error {
	page := pagination.FromContext(c)
	filter := MedicationFilter{Name: c.QueryParam("nom")}
	if raw := c.QueryParam("categorie"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid category id")
		}
		filter.CategoryID = &id
	}
	out, total, err := h.svc.ListMedications(c.Request().Context(), filter, page.Limit, page.Offset)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, page))
}

func (h *Handler) lowStock(c echo.Context) error {
	out, err := h.svc.LowStock(c.Request().Context())
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) adjustStock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medication id")
	}
	var in AdjustInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	updated, err := h.svc.AdjustStock(c.Request().Context(), id, actor, in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) stockHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medication id")
	}
	out, err := h.svc.StockHistory(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}
