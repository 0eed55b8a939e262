package patient

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/acilhq/acil/internal/platform/access"
	"github.com/acilhq/acil/internal/platform/auth"
	"github.com/acilhq/acil/pkg/pagination"
)

type Handler struct {
	svc      *Service
	resolver *access.Resolver
}

func NewHandler(svc *Service, resolver *access.Resolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	ws := api.Group("/workspaces/:workspace_id")
	ws.POST("/patients", h.Create, h.resolver.RequireRole(access.RoleResident))
	ws.GET("/patients", h.ListByWorkspace, h.resolver.RequireMember())

	pt := api.Group("/patients/:patient_id")
	pt.GET("", h.Get, h.resolver.RequirePatientAccess(""))
	pt.PUT("", h.Update, h.resolver.RequirePatientAccess(access.RoleResident))
	pt.PUT("/status", h.ChangeStatus, h.resolver.RequirePatientAccess(access.RoleResident))
	pt.GET("/status-history", h.StatusHistory, h.resolver.RequirePatientAccess(""))
	pt.POST("/vitals", h.RecordVitals, h.resolver.RequirePatientAccess(access.RoleResident))
	pt.GET("/vitals", h.ListVitals, h.resolver.RequirePatientAccess(""))
}

func (h *Handler) Create(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	wsID, _ := access.WorkspaceIDFromEcho(c)

	var pt Patient
	if err := c.Bind(&pt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	pt.WorkspaceID = wsID
	pt.CreatedBy = p.ID

	if err := h.svc.Create(c.Request().Context(), &pt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, pt)
}

func (h *Handler) ListByWorkspace(c echo.Context) error {
	wsID, _ := access.WorkspaceIDFromEcho(c)
	pg := pagination.FromContext(c)

	items, total, err := h.svc.ListByWorkspace(c.Request().Context(), wsID,
		Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	patientID, _ := access.PatientIDFromEcho(c)
	pt, err := h.svc.Get(c.Request().Context(), patientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pt)
}

func (h *Handler) Update(c echo.Context) error {
	patientID, _ := access.PatientIDFromEcho(c)

	existing, err := h.svc.Get(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}

	var req Patient
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	existing.FullName = req.FullName
	existing.BirthDate = req.BirthDate
	existing.Gender = req.Gender
	existing.Complaint = req.Complaint
	existing.Bed = req.Bed

	if err := h.svc.Update(c.Request().Context(), existing); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, existing)
}

type changeStatusRequest struct {
	Status Status  `json:"status"`
	Note   *string `json:"note"`
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	patientID, _ := access.PatientIDFromEcho(c)

	var req changeStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pt, err := h.svc.ChangeStatus(c.Request().Context(), patientID, req.Status, p.ID, req.Note)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pt)
}

func (h *Handler) StatusHistory(c echo.Context) error {
	patientID, _ := access.PatientIDFromEcho(c)
	history, err := h.svc.StatusHistory(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) RecordVitals(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	patientID, _ := access.PatientIDFromEcho(c)

	var v VitalsEntry
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v.PatientID = patientID
	v.RecordedBy = p.ID

	if err := h.svc.RecordVitals(c.Request().Context(), &v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) ListVitals(c echo.Context) error {
	patientID, _ := access.PatientIDFromEcho(c)
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListVitals(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
