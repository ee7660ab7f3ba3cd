package handoff

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vigil/vigil/internal/platform/auth"
	"github.com/vigil/vigil/pkg/errs"
	"github.com/vigil/vigil/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("clinician", "supervisor"))
	g.POST("/handoffs", h.Initiate)
	g.GET("/handoffs/pending", h.ListPending)
	g.GET("/handoffs/:id", h.Get)
	g.PUT("/handoffs/:id/status", h.UpdateStatus)
	g.GET("/crisis/sessions/:id/handoffs", h.ListBySession)
}

type initiateRequest struct {
	SessionID   uuid.UUID `json:"session_id"`
	RiskScore   int       `json:"risk_score"`
	HandoffType string    `json:"handoff_type"`
}

func (h *Handler) Initiate(c echo.Context) error {
	var req initiateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SessionID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	operator := auth.UserIDFromContext(c.Request().Context())
	handoff, err := h.svc.Initiate(c.Request().Context(), req.SessionID, req.RiskScore, req.HandoffType, operator)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, handoff)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid handoff id")
	}
	handoff, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, handoff)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid handoff id")
	}
	var upd StatusUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	handoff, err := h.svc.UpdateStatus(c.Request().Context(), id, upd)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, handoff)
}

func (h *Handler) ListPending(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPending(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListBySession(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBySession(c.Request().Context(), sessionID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
