package notes

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
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
	ws := api.Group("/workspaces/:workspace_id/notes", h.resolver.RequireMember())
	ws.POST("", h.Create)
	ws.GET("", h.List)
	ws.PUT("/:note_id", h.Update)
	ws.DELETE("/:note_id", h.Delete)
}

type noteRequest struct {
	PatientID *uuid.UUID `json:"patient_id"`
	Body      string     `json:"body"`
	Color     *string    `json:"color"`
	Pinned    bool       `json:"pinned"`
}

func (h *Handler) Create(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	wsID, _ := access.WorkspaceIDFromEcho(c)

	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	n := &Note{
		WorkspaceID: wsID,
		PatientID:   req.PatientID,
		AuthorID:    p.ID,
		Body:        req.Body,
		Color:       req.Color,
		Pinned:      req.Pinned,
	}
	if err := h.svc.Create(c.Request().Context(), n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) List(c echo.Context) error {
	wsID, _ := access.WorkspaceIDFromEcho(c)
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByWorkspace(c.Request().Context(), wsID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	noteID, err := uuid.Parse(c.Param("note_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid note id")
	}
	m, _ := access.MembershipFromEcho(c)

	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	n, err := h.svc.Update(c.Request().Context(), noteID, m, req.Body, req.Color, req.Pinned)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return echo.NewHTTPError(http.StatusNotFound, "note not found")
		case errors.Is(err, ErrNotAuthor):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Delete(c echo.Context) error {
	noteID, err := uuid.Parse(c.Param("note_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid note id")
	}
	m, _ := access.MembershipFromEcho(c)

	if err := h.svc.Delete(c.Request().Context(), noteID, m); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return echo.NewHTTPError(http.StatusNotFound, "note not found")
		case errors.Is(err, ErrNotAuthor):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.NoContent(http.StatusNoContent)
}
