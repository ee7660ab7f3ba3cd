package crisis

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vigil/vigil/internal/domain/message"
	"github.com/vigil/vigil/internal/domain/risk"
	"github.com/vigil/vigil/internal/platform/auth"
	"github.com/vigil/vigil/pkg/errs"
	"github.com/vigil/vigil/pkg/pagination"
)

type Handler struct {
	messages    *message.Service
	analyzer    *risk.Analyzer
	svc         *Service
	executor    *Executor
	riskHistory risk.Repository
}

func NewHandler(messages *message.Service, analyzer *risk.Analyzer, svc *Service, executor *Executor, riskHistory risk.Repository) *Handler {
	return &Handler{
		messages:    messages,
		analyzer:    analyzer,
		svc:         svc,
		executor:    executor,
		riskHistory: riskHistory,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// The analyze endpoint is called by the ingestion pipeline.
	ingestGroup := api.Group("", auth.RequireRole("service", "clinician", "supervisor"))
	ingestGroup.POST("/crisis/analyze", h.Analyze)

	readGroup := api.Group("", auth.RequireRole("clinician", "supervisor"))
	readGroup.GET("/crisis/sessions/active", h.ListActive)
	readGroup.GET("/crisis/sessions/:id", h.GetState)
	readGroup.GET("/crisis/sessions/:id/events", h.ListEvents)
	readGroup.GET("/crisis/sessions/:id/risk-history", h.ListRiskHistory)
	readGroup.GET("/crisis/sessions/:id/interventions", h.ListInterventions)

	writeGroup := api.Group("", auth.RequireRole("clinician", "supervisor"))
	writeGroup.POST("/crisis/sessions/:id/flag", h.FlagSession)
	writeGroup.POST("/crisis/sessions/:id/unflag", h.UnflagSession)
	writeGroup.PUT("/crisis/sessions/:id/risk-score", h.UpdateRiskScore)
	writeGroup.POST("/crisis/sessions/:id/interventions", h.LogIntervention)
	writeGroup.PATCH("/crisis/interventions/:id/outcome", h.UpdateInterventionOutcome)
}

type analyzeRequest struct {
	SessionID uuid.UUID  `json:"session_id"`
	Role      string     `json:"role"`
	Text      string     `json:"text"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type analyzeResponse struct {
	Assessment   *risk.Assessment `json:"assessment"`
	Decision     *Decision        `json:"decision"`
	Intervention *Intervention    `json:"intervention,omitempty"`
}

// Analyze runs the full detection pipeline for one inbound message: record
// it, score it, let the dispatcher decide, and execute the intervention on
// escalation.
func (h *Handler) Analyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	msg := &message.SessionMessage{
		SessionID: req.SessionID,
		Role:      req.Role,
		Text:      req.Text,
	}
	if req.MessageID != nil {
		msg.ID = *req.MessageID
	}
	if req.Timestamp != nil {
		msg.CreatedAt = *req.Timestamp
	}
	if err := h.messages.Record(ctx, msg); err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}

	assessment := h.analyzer.AnalyzeMessage(ctx, msg)

	decision, err := h.svc.ProcessAssessment(ctx, msg.SessionID, assessment, &msg.ID)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}

	resp := analyzeResponse{Assessment: assessment, Decision: decision}
	if decision.Escalated {
		action, err := h.executor.Execute(ctx, msg.SessionID, decision.State.Severity, decision.State.RiskScore)
		if err != nil {
			return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
		}
		resp.Intervention = action
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListActive(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListActive(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetState(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	st, err := h.svc.GetState(c.Request().Context(), sessionID)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

type flagRequest struct {
	Severity   string     `json:"severity"`
	RiskScore  int        `json:"risk_score"`
	MessageRef *uuid.UUID `json:"message_ref,omitempty"`
	Factors    []string   `json:"factors,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

func (h *Handler) FlagSession(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	var req flagRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	operator := auth.UserIDFromContext(c.Request().Context())
	st, err := h.svc.FlagSession(c.Request().Context(), sessionID, req.Severity, req.RiskScore,
		operator, TriggerManual, req.MessageRef, req.Factors, req.Notes)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

type unflagRequest struct {
	Notes string `json:"notes,omitempty"`
}

func (h *Handler) UnflagSession(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	var req unflagRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	operator := auth.UserIDFromContext(c.Request().Context())
	st, err := h.svc.UnflagSession(c.Request().Context(), sessionID, operator, req.Notes)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

type riskScoreRequest struct {
	RiskScore int    `json:"risk_score"`
	Severity  string `json:"severity"`
	Notes     string `json:"notes,omitempty"`
}

func (h *Handler) UpdateRiskScore(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	var req riskScoreRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	operator := auth.UserIDFromContext(c.Request().Context())
	st, err := h.svc.UpdateRiskScore(c.Request().Context(), sessionID, req.RiskScore, req.Severity, operator, req.Notes)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListEvents(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListEvents(c.Request().Context(), sessionID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListRiskHistory(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.riskHistory.ListBySession(c.Request().Context(), sessionID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type logInterventionRequest struct {
	ActionType string                 `json:"action_type"`
	RiskScore  int                    `json:"risk_score"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

func (h *Handler) LogIntervention(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	var req logInterventionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	operator := auth.UserIDFromContext(c.Request().Context())
	action, err := h.executor.LogAction(c.Request().Context(), sessionID, req.ActionType, req.RiskScore, req.Details, operator)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, action)
}

func (h *Handler) ListInterventions(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.executor.ListBySession(c.Request().Context(), sessionID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type outcomeRequest struct {
	Outcome string `json:"outcome"`
	Notes   string `json:"notes,omitempty"`
}

func (h *Handler) UpdateInterventionOutcome(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid intervention id")
	}
	var req outcomeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.executor.UpdateOutcome(c.Request().Context(), id, req.Outcome, req.Notes); err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
