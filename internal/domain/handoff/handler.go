package handoff

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/acilhq/acil/internal/domain/org"
	"github.com/acilhq/acil/internal/platform/access"
	"github.com/acilhq/acil/internal/platform/auth"
	"github.com/acilhq/acil/pkg/pagination"
)

type Handler struct {
	svc         *Service
	workspaces  org.WorkspaceRepository
	resolver    *access.Resolver
	notifyEmail string
}

func NewHandler(svc *Service, workspaces org.WorkspaceRepository, resolver *access.Resolver, notifyEmail string) *Handler {
	return &Handler{svc: svc, workspaces: workspaces, resolver: resolver, notifyEmail: notifyEmail}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	ws := api.Group("/workspaces/:workspace_id/handoffs")
	ws.POST("", h.Create, h.resolver.RequireRole(access.RoleResident))
	ws.GET("", h.List, h.resolver.RequireMember())
	ws.GET("/:handoff_id", h.Get, h.resolver.RequireMember())
	ws.POST("/:handoff_id/acknowledge", h.Acknowledge, h.resolver.RequireRole(access.RoleResident))
}

type createRequest struct {
	Shift          Shift  `json:"shift"`
	Situation      string `json:"situation"`
	Background     string `json:"background"`
	Assessment     string `json:"assessment"`
	Recommendation string `json:"recommendation"`
	PatientCount   int    `json:"patient_count"`
}

func (h *Handler) Create(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	wsID, _ := access.WorkspaceIDFromEcho(c)

	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	workspaceName := ""
	if w, err := h.workspaces.GetByID(c.Request().Context(), wsID); err == nil {
		workspaceName = w.Name
	}

	ho := &Handoff{
		WorkspaceID:    wsID,
		AuthorID:       p.ID,
		Shift:          req.Shift,
		Situation:      req.Situation,
		Background:     req.Background,
		Assessment:     req.Assessment,
		Recommendation: req.Recommendation,
		PatientCount:   req.PatientCount,
	}
	if err := h.svc.Create(c.Request().Context(), ho, workspaceName, p.Email, h.notifyEmail); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ho)
}

func (h *Handler) List(c echo.Context) error {
	wsID, _ := access.WorkspaceIDFromEcho(c)
	pg := pagination.FromContext(c)

	shift := Shift(c.QueryParam("shift"))
	items, total, err := h.svc.List(c.Request().Context(), wsID, shift, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	wsID, _ := access.WorkspaceIDFromEcho(c)
	id, err := uuid.Parse(c.Param("handoff_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid handoff id")
	}

	ho, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "handoff not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ho.WorkspaceID != wsID {
		return echo.NewHTTPError(http.StatusNotFound, "handoff not found")
	}
	return c.JSON(http.StatusOK, ho)
}

func (h *Handler) Acknowledge(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	wsID, _ := access.WorkspaceIDFromEcho(c)
	id, err := uuid.Parse(c.Param("handoff_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid handoff id")
	}

	existing, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "handoff not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if existing.WorkspaceID != wsID {
		return echo.NewHTTPError(http.StatusNotFound, "handoff not found")
	}

	ho, err := h.svc.Acknowledge(c.Request().Context(), id, p.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyAcknowledged), errors.Is(err, ErrOwnHandoff):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, ho)
}
