package analysis

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/acilhq/acil/internal/platform/access"
	"github.com/acilhq/acil/internal/platform/ai"
	"github.com/acilhq/acil/internal/platform/auth"
	"github.com/acilhq/acil/internal/platform/middleware"
	"github.com/acilhq/acil/pkg/pagination"
)

type Handler struct {
	svc      *Service
	resolver *access.Resolver
	limiter  *middleware.RateLimiter
}

func NewHandler(svc *Service, resolver *access.Resolver, limiter *middleware.RateLimiter) *Handler {
	return &Handler{svc: svc, resolver: resolver, limiter: limiter}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	pt := api.Group("/patients/:patient_id")
	pt.POST("/analyses", h.Run,
		h.resolver.RequirePatientAccess(access.RoleDoctor),
		h.limiter.Middleware(middleware.ClassAIAnalysis))
	pt.GET("/analyses", h.ListByPatient, h.resolver.RequirePatientAccess(""))
	pt.GET("/analyses/:analysis_id", h.Get, h.resolver.RequirePatientAccess(""))
	pt.GET("/trends", h.Trends, h.resolver.RequirePatientAccess(""))
}

func (h *Handler) Run(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	patientID, _ := access.PatientIDFromEcho(c)

	a, err := h.svc.Run(c.Request().Context(), patientID, p.ID)
	if err != nil {
		if errors.Is(err, ai.ErrProviderUnavailable) {
			return echo.NewHTTPError(http.StatusBadGateway, "analysis provider unavailable")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	analysisID, err := uuid.Parse(c.Param("analysis_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid analysis id")
	}

	a, err := h.svc.Get(c.Request().Context(), analysisID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "analysis not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// The route already proved patient access; still refuse analyses that
	// belong to a different patient than the one in the path.
	patientID, _ := access.PatientIDFromEcho(c)
	if a.PatientID != patientID {
		return echo.NewHTTPError(http.StatusNotFound, "analysis not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, _ := access.PatientIDFromEcho(c)
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Trends(c echo.Context) error {
	patientID, _ := access.PatientIDFromEcho(c)
	trends, err := h.svc.TrendsForPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, trends)
}
