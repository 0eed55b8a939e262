package access

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/acilhq/acil/internal/platform/auth"
)

// MembershipFromEcho returns the membership resolved by the middleware for
// the current request, if any.
func MembershipFromEcho(c echo.Context) (*Membership, bool) {
	m, ok := c.Get("membership").(*Membership)
	return m, ok
}

// WorkspaceIDFromEcho returns the workspace id resolved by the middleware.
func WorkspaceIDFromEcho(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get("workspace_id").(uuid.UUID)
	return id, ok
}

// PatientIDFromEcho returns the patient id resolved by RequirePatientAccess.
func PatientIDFromEcho(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get("patient_id").(uuid.UUID)
	return id, ok
}

// RequireMember returns middleware for routes mounted under
// /workspaces/:workspace_id. It resolves the caller's active membership and
// stores it on the context. Non-members get 403: the caller already proved
// knowledge of the workspace id, so there is nothing to hide.
func (r *Resolver) RequireMember() echo.MiddlewareFunc {
	return r.RequireRole("")
}

// RequireRole is RequireMember plus a minimum-role check. An empty min role
// means any active member.
func (r *Resolver) RequireRole(min Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := auth.PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			wsID, err := uuid.Parse(c.Param("workspace_id"))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid workspace id")
			}

			m, err := r.CheckMembership(c.Request().Context(), p.ID, wsID)
			if err != nil {
				if errors.Is(err, ErrNotAMember) {
					return echo.NewHTTPError(http.StatusForbidden, "not a member of this workspace")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "membership lookup failed")
			}

			var d Decision
			if min == "" {
				d = Authorize(m)
			} else {
				d = AuthorizeMin(m, min)
			}
			if !d.Allowed {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role for this operation")
			}

			c.Set("membership", m)
			c.Set("workspace_id", wsID)
			return next(c)
		}
	}
}

// RequirePatientAccess returns middleware for routes mounted under
// /patients/:patient_id. The patient's workspace is resolved first; a
// missing patient and a patient in a workspace the caller does not belong
// to produce the same 404 so the response shape leaks no existence
// information. Members with a role below min get 403 — they can already
// see the patient exists.
func (r *Resolver) RequirePatientAccess(min Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := auth.PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			patientID, err := uuid.Parse(c.Param("patient_id"))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
			}

			ctx := c.Request().Context()
			wsID, err := r.ResolvePatientWorkspace(ctx, patientID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return echo.NewHTTPError(http.StatusNotFound, "patient not found")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "patient lookup failed")
			}

			m, err := r.CheckMembership(ctx, p.ID, wsID)
			if err != nil {
				if errors.Is(err, ErrNotAMember) {
					// Existence-hiding: identical to the missing-patient response.
					return echo.NewHTTPError(http.StatusNotFound, "patient not found")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "membership lookup failed")
			}

			var d Decision
			if min == "" {
				d = Authorize(m)
			} else {
				d = AuthorizeMin(m, min)
			}
			if !d.Allowed {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role for this operation")
			}

			c.Set("membership", m)
			c.Set("workspace_id", wsID)
			c.Set("patient_id", patientID)
			return next(c)
		}
	}
}
