package message

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
	g := api.Group("", auth.RequireRole("clinician", "supervisor", "service"))
	g.POST("/sessions/:id/messages", h.Create)
	g.GET("/sessions/:id/messages", h.List)
}

type createRequest struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func (h *Handler) Create(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m := &SessionMessage{SessionID: sessionID, Role: req.Role, Text: req.Text}
	if err := h.svc.Record(c.Request().Context(), m); err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) List(c echo.Context) error {
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
