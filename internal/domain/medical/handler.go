package medical

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
	return &Handler{svc: svc, logger: logger.With().Str("handler", "medical").Logger()}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/specialites", h.listSpecialties)
	api.POST("/specialites", h.createSpecialty, auth.RequireRole(auth.RoleHospitalOwner))

	api.GET("/medecins", h.listDoctors)
	api.GET("/medecins/:id", h.getDoctor)
	api.POST("/medecins", h.registerDoctor, auth.RequireRole(auth.RoleHospitalOwner))
	api.POST("/medecins/:id/disponibilite", h.setAvailability, auth.RequireRole(auth.RoleHospitalOwner, auth.RoleDoctor))

	consults := api.Group("/consultations", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	consults.GET("", h.listConsultations)
	consults.GET("/:id", h.getConsultation)
	consults.POST("", h.createConsultation, auth.RequireRole(auth.RoleDoctor))
	consults.PUT("/:id", h.updateConsultation, auth.RequireRole(auth.RoleDoctor))
	consults.GET("/:id/ordonnances", h.listPrescriptions)
	consults.POST("/:id/ordonnances", h.issuePrescription, auth.RequireRole(auth.RoleDoctor))
}

// actorDoctor resolves the doctor profile of the logged-in user.
func (h *Handler) actorDoctor(c echo.Context) (*Doctor, error) {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	d, err := h.svc.GetDoctorByUser(c.Request().Context(), userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, echo.NewHTTPError(http.StatusForbidden, "no doctor profile for this account")
		}
		return nil, err
	}
	return d, nil
}

type specialtyRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

func (h *Handler) createSpecialty(c echo.Context) error {
	var req specialtyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sp, err := h.svc.CreateSpecialty(c.Request().Context(), req.Name, req.Description)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, sp)
}

func (h *Handler) listSpecialties(c echo.Context) error {
	out, err := h.svc.ListSpecialties(c.Request().Context())
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) registerDoctor(c echo.Context) error {
	var in RegisterDoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.RegisterDoctor(c.Request().Context(), in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) getDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) listDoctors(c echo.Context) error {
	page := pagination.FromContext(c)
	var filter DoctorFilter
	if raw := c.QueryParam("specialite"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid specialty id")
		}
		filter.SpecialtyID = &id
	}
	filter.AvailableOnly = c.QueryParam("disponible") == "true"

	out, total, err := h.svc.ListDoctors(c.Request().Context(), filter, page.Limit, page.Offset)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, page))
}

type availabilityRequest struct {
	Available bool `json:"disponible"`
}

func (h *Handler) setAvailability(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	// doctors may only toggle their own availability
	if auth.RoleFromContext(c.Request().Context()) == auth.RoleDoctor {
		self, err := h.actorDoctor(c)
		if err != nil {
			return err
		}
		if self.ID != id {
			return echo.NewHTTPError(http.StatusForbidden, "cannot change another doctor's availability")
		}
	}
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.SetAvailability(c.Request().Context(), id, req.Available)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) createConsultation(c echo.Context) error {
	doctor, err := h.actorDoctor(c)
	if err != nil {
		return err
	}
	var in ConsultationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.CreateConsultation(c.Request().Context(), doctor.ID, in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) getConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid consultation id")
	}
	out, err := h.svc.GetConsultation(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) listConsultations(c echo.Context) error {
	page := pagination.FromContext(c)
	var filter ConsultationFilter
	if raw := c.QueryParam("patient"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
		}
		filter.PatientID = &id
	}
	if raw := c.QueryParam("medecin"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
		}
		filter.DoctorID = &id
	}
	out, total, err := h.svc.ListConsultations(c.Request().Context(), filter, page.Limit, page.Offset)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, page))
}

func (h *Handler) updateConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid consultation id")
	}
	doctor, err := h.actorDoctor(c)
	if err != nil {
		return err
	}
	var in ConsultationUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.UpdateConsultation(c.Request().Context(), id, doctor.ID, in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) issuePrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid consultation id")
	}
	doctor, err := h.actorDoctor(c)
	if err != nil {
		return err
	}
	var in PrescriptionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.IssuePrescription(c.Request().Context(), id, doctor.ID, in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) listPrescriptions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid consultation id")
	}
	out, err := h.svc.ListPrescriptions(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}
