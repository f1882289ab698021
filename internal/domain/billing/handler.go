package billing

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
	return &Handler{svc: svc, logger: logger.With().Str("handler", "billing").Logger()}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	owner := auth.RequireRole(auth.RoleHospitalOwner)
	billing := auth.RequireRole(auth.RoleHospitalOwner, auth.RoleSecretary)

	api.GET("/abonnements/plans", h.listPlans, owner)
	api.POST("/abonnements/plans", h.createPlan, owner)
	api.GET("/abonnements/courant", h.currentSubscription, owner)
	api.POST("/abonnements/souscrire", h.subscribe, owner)
	api.POST("/abonnements/essai_gratuit", h.startFreeTrial, owner)

	invoices := api.Group("/factures", billing)
	invoices.GET("", h.listInvoices)
	invoices.POST("", h.createInvoice)
	invoices.GET("/:id", h.getInvoice)
	invoices.POST("/:id/emettre", h.issueInvoice)
	invoices.POST("/:id/annuler", h.cancelInvoice)
	invoices.GET("/:id/paiements", h.listPayments)
	invoices.POST("/:id/paiements", h.recordPayment)

	api.POST("/coupons", h.createCoupon, owner)
	api.POST("/coupons/valider", h.validateCoupon, billing)

	api.GET("/tarifs", h.listTariffs, billing)
	api.POST("/tarifs", h.createTariff, owner)
	api.GET("/tarifs/:id/devis", h.quoteTariff, billing)
}

func (h *Handler) createPlan(c echo.Context) error {
	var p Plan
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.CreatePlan(c.Request().Context(), &p)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) listPlans(c echo.Context) error {
	out, err := h.svc.ListPlans(c.Request().Context())
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

type subscribeRequest struct {
	PlanID uuid.UUID `json:"plan_id"`
	Months int       `json:"mois"`
}

func (h *Handler) subscribe(c echo.Context) error {
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sub, err := h.svc.Subscribe(c.Request().Context(), req.PlanID, req.Months)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, sub)
}

func (h *Handler) currentSubscription(c echo.Context) error {
	out, err := h.svc.CurrentSubscription(c.Request().Context())
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) startFreeTrial(c echo.Context) error {
	out, err := h.svc.StartFreeTrial(c.Request().Context())
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) createInvoice(c echo.Context) error {
	var in InvoiceInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	inv, err := h.svc.CreateInvoice(c.Request().Context(), in)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) listInvoices(c echo.Context) error {
	page := pagination.FromContext(c)
	var f InvoiceFilter
	if raw := c.QueryParam("patient"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
		}
		f.PatientID = &id
	}
	f.Status = c.QueryParam("statut")

	out, total, err := h.svc.ListInvoices(c.Request().Context(), f, page.Limit, page.Offset)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, page))
}

func (h *Handler) getInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) issueInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	inv, err := h.svc.IssueInvoice(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) cancelInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	inv, err := h.svc.CancelInvoice(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, inv)
}

type paymentRequest struct {
	Amount float64 `json:"montant"`
	Method string  `json:"methode"`
}

func (h *Handler) recordPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, inv, err := h.svc.RecordPayment(c.Request().Context(), id, req.Amount, req.Method)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"paiement": p,
		"facture":  inv,
	})
}

func (h *Handler) listPayments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	out, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

type couponRequest struct {
	Code       string    `json:"code"`
	Kind       string    `json:"kind"`
	Value      float64   `json:"value"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
	MaxUses    int       `json:"max_uses"`
}

func (h *Handler) createCoupon(c echo.Context) error {
	var req couponRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.CreateCoupon(c.Request().Context(), &Coupon{
		Code:       req.Code,
		Kind:       req.Kind,
		Value:      req.Value,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		MaxUses:    req.MaxUses,
	})
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, out)
}

type validateCouponRequest struct {
	Code   string  `json:"code"`
	Amount float64 `json:"montant"`
}

func (h *Handler) validateCoupon(c echo.Context) error {
	var req validateCouponRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	quote, err := h.svc.ValidateCoupon(c.Request().Context(), req.Code, req.Amount)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, quote)
}

func (h *Handler) createTariff(c echo.Context) error {
	var t ConsultationTariff
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.CreateTariff(c.Request().Context(), &t)
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) listTariffs(c echo.Context) error {
	out, err := h.svc.ListTariffs(c.Request().Context())
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) quoteTariff(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid tariff id")
	}
	rate, err := h.svc.QuoteTariff(c.Request().Context(), id,
		c.QueryParam("urgence") == "true",
		c.QueryParam("nuit") == "true",
		c.QueryParam("weekend") == "true")
	if err != nil {
		return apperror.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]float64{"montant": rate})
}
