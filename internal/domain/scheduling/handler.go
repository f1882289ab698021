package scheduling

import (
	"net/http"
	"time"

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
	return &Handler{svc: svc, logger: logger.With().Str("handler", "scheduling").Logger()}
}

// staff are the roles with appointment management access.
var staff = auth.RequireRole(auth.RoleHospitalOwner, auth.RoleDoctor, auth.RoleNurse, auth.RoleSecretary)

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/types_rendez_vous", h.listTypes)
	api.POST("/types_rendez_vous", h.createType, auth.RequireRole(auth.RoleHospitalOwner))
	api.GET("/statuts_rendez_vous", h.listStatuses)

	rdv := api.Group("/rendez-vous")
	rdv.GET("/creneaux_disponibles", h.availableSlots)
	rdv.GET("/agenda", h.agenda, staff)
	// any authenticated user books; the service scopes patients to
	// their own record
	rdv.GET("", h.list)
	rdv.POST("", h.create)
	rdv.GET("/:id", h.get, staff)
	rdv.PUT("/:id", h.reschedule, staff)
	// patients reach this route to cancel their own appointments
	rdv.POST("/:id/changer_statut", h.changeStatus)
	rdv.GET("/:id/historique", h.statusHistory, staff)
}

func (h *Handler) listTypes(c echo.Context) error {
	out, err := h.svc.ListTypes(c.Request().Context())
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) createType(c echo.Context) error {
	var t AppointmentType
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.CreateType(c.Request().Context(), &t)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) listStatuses(c echo.Context) error {
	out, err := h.svc.ListStatuses(c.Request().Context())
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) availableSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("medecin"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "medecin query parameter is required")
	}
	day, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
	}
	var typeID *uuid.UUID
	if raw := c.QueryParam("type"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment type id")
		}
		typeID = &id
	}
	slots, err := h.svc.ListAvailableSlots(c.Request().Context(), doctorID, day, typeID)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"creneaux": slots})
}

func parseAgendaFilter(c echo.Context) (AgendaFilter, error) {
	var f AgendaFilter
	if raw := c.QueryParam("medecin"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
		}
		f.DoctorID = &id
	}
	if raw := c.QueryParam("patient"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
		}
		f.PatientID = &id
	}
	if raw := c.QueryParam("debut"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "debut must be RFC 3339")
		}
		f.From = &t
	}
	if raw := c.QueryParam("fin"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "fin must be RFC 3339")
		}
		f.To = &t
	}
	return f, nil
}

func (h *Handler) list(c echo.Context) error {
	f, err := parseAgendaFilter(c)
	if err != nil {
		return err
	}
	actorID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	page := pagination.FromContext(c)
	out, total, err := h.svc.Agenda(c.Request().Context(), actorID,
		auth.RoleFromContext(c.Request().Context()), f, page.Limit, page.Offset)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, page))
}

func (h *Handler) agenda(c echo.Context) error {
	return h.list(c)
}

func (h *Handler) create(c echo.Context) error {
	createdBy, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Create(c.Request().Context(), createdBy,
		auth.RoleFromContext(c.Request().Context()), in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	var in RescheduleInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Reschedule(c.Request().Context(), id, in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, a)
}

type changeStatusRequest struct {
	Status string  `json:"statut"`
	Reason *string `json:"raison,omitempty"`
}

func (h *Handler) changeStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	actorID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	var req changeStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.ChangeStatus(c.Request().Context(), id, actorID,
		auth.RoleFromContext(c.Request().Context()), req.Status, req.Reason)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) statusHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	out, err := h.svc.StatusHistory(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}
