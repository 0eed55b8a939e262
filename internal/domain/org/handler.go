package org

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
	api.POST("/workspaces", h.CreateWorkspace)
	api.GET("/workspaces", h.ListWorkspaces)
	api.POST("/invitations/accept", h.AcceptInvitation)

	ws := api.Group("/workspaces/:workspace_id")
	ws.GET("", h.GetWorkspace, h.resolver.RequireMember())
	ws.PUT("", h.UpdateWorkspace, h.resolver.RequireRole(access.RoleAdmin))
	ws.GET("/members", h.ListMembers, h.resolver.RequireMember())
	ws.PUT("/members/:member_id/role", h.ChangeMemberRole, h.resolver.RequireRole(access.RoleAdmin))
	ws.DELETE("/members/:member_id", h.DisableMember, h.resolver.RequireRole(access.RoleAdmin))
	ws.POST("/invitations", h.CreateInvitation, h.resolver.RequireRole(access.RoleAdmin))
	ws.GET("/invitations", h.ListInvitations, h.resolver.RequireRole(access.RoleAdmin))
	ws.DELETE("/invitations/:token", h.RevokeInvitation, h.resolver.RequireRole(access.RoleAdmin))
}

type createWorkspaceRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (h *Handler) CreateWorkspace(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	var req createWorkspaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	w := &Workspace{Name: req.Name, Description: req.Description}
	if err := h.svc.CreateWorkspace(c.Request().Context(), w, p.ID, p.Email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) ListWorkspaces(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListWorkspacesForUser(c.Request().Context(), p.ID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetWorkspace(c echo.Context) error {
	wsID, _ := access.WorkspaceIDFromEcho(c)
	w, err := h.svc.GetWorkspace(c.Request().Context(), wsID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "workspace not found")
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) UpdateWorkspace(c echo.Context) error {
	wsID, _ := access.WorkspaceIDFromEcho(c)

	var req createWorkspaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	w, err := h.svc.GetWorkspace(c.Request().Context(), wsID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "workspace not found")
	}
	w.Name = req.Name
	w.Description = req.Description

	if err := h.svc.UpdateWorkspace(c.Request().Context(), w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) ListMembers(c echo.Context) error {
	wsID, _ := access.WorkspaceIDFromEcho(c)
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMembers(c.Request().Context(), wsID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type changeRoleRequest struct {
	Role access.Role `json:"role"`
}

func (h *Handler) ChangeMemberRole(c echo.Context) error {
	memberID, err := uuid.Parse(c.Param("member_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid member id")
	}

	var req changeRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	m, err := h.svc.ChangeRole(c.Request().Context(), memberID, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return echo.NewHTTPError(http.StatusNotFound, "member not found")
		case errors.Is(err, ErrLastOwner):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DisableMember(c echo.Context) error {
	memberID, err := uuid.Parse(c.Param("member_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid member id")
	}

	m, err := h.svc.DisableMember(c.Request().Context(), memberID)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return echo.NewHTTPError(http.StatusNotFound, "member not found")
		case errors.Is(err, ErrLastOwner):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, m)
}

type inviteRequest struct {
	Email string      `json:"email"`
	Role  access.Role `json:"role"`
}

func (h *Handler) CreateInvitation(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	wsID, _ := access.WorkspaceIDFromEcho(c)

	var req inviteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	inv, err := h.svc.Invite(c.Request().Context(), wsID, req.Email, req.Role, p.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) ListInvitations(c echo.Context) error {
	wsID, _ := access.WorkspaceIDFromEcho(c)
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListInvitations(c.Request().Context(), wsID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) RevokeInvitation(c echo.Context) error {
	if err := h.svc.Revoke(c.Request().Context(), c.Param("token")); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return echo.NewHTTPError(http.StatusNotFound, "invitation not found")
		case errors.Is(err, ErrInvitationUsed):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.NoContent(http.StatusNoContent)
}

type acceptRequest struct {
	Token string `json:"token"`
}

func (h *Handler) AcceptInvitation(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	var req acceptRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}

	m, err := h.svc.Accept(c.Request().Context(), req.Token, p.ID, p.Email)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return echo.NewHTTPError(http.StatusNotFound, "invitation not found")
		case errors.Is(err, ErrInvitationExpired), errors.Is(err, ErrInvitationUsed):
			return echo.NewHTTPError(http.StatusGone, err.Error())
		case errors.Is(err, ErrAlreadyMember):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, m)
}
