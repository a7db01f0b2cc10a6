package api

import (
	"net/http"
	"time"

	models "FlowRadar/internal/domain/models"
	domrepo "FlowRadar/internal/domain/repository"
	"FlowRadar/internal/service/ratelimit"
	"FlowRadar/internal/services/fusion"
	"FlowRadar/internal/usecase"
	xhttp "FlowRadar/pkg/http"
	xlogger "FlowRadar/pkg/logger"

	"github.com/labstack/echo/v4"
)

// FusionEchoHandler exposes the operational HTTP surface: signal ingest,
// top-ranked signals, recommendations and store statistics.
type FusionEchoHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.FusionPipeline
	priority *fusion.PriorityConfig
	audit    domrepo.AuditSink
	rl       *ratelimit.Limiter
}

func NewFusionEchoHandler(logger *xlogger.Logger, pipeline *usecase.FusionPipeline, priority *fusion.PriorityConfig) *FusionEchoHandler {
	return &FusionEchoHandler{
		logger:   logger,
		pipeline: pipeline,
		priority: priority,
		rl:       ratelimit.New(),
	}
}

// SetAudit attaches an audit sink for health reporting and ingest auditing.
func (h *FusionEchoHandler) SetAudit(sink domrepo.AuditSink) { h.audit = sink }

func (h *FusionEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals/top", h.TopSignals)
	g.GET("/recommendation", h.Recommendation)
	g.POST("/pipeline/run", h.RunPipeline)
	g.POST("/signals", h.IngestSignal)
	g.GET("/stats", h.Stats)
	g.GET("/health", h.Health)
}

// TopSignals returns up to n stored signals in priority order, optionally
// filtered to one symbol.
func (h *FusionEchoHandler) TopSignals(c echo.Context) error {
	req := &models.TopSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":top", 10, 5) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	var signals []*models.SignalEvent
	if req.Symbol != "" {
		signals = h.pipeline.Manager().Snapshot(req.Symbol)
		h.priority.Sort(signals)
		if len(signals) > req.N {
			signals = signals[:req.N]
		}
	} else {
		signals = h.pipeline.Manager().Top(req.N)
	}
	return xhttp.SuccessResponse(c, signals)
}

// Recommendation runs a read-only fused pass for the symbol. Nothing is
// published or throttled.
func (h *FusionEchoHandler) Recommendation(c echo.Context) error {
	req := &models.RecommendationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":rec", 5, 2) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	result := h.pipeline.Preview(req.Symbol)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, result)
}

// RunPipeline triggers a full publishing pass for the symbol.
func (h *FusionEchoHandler) RunPipeline(c echo.Context) error {
	req := &models.RunPipelineRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":run", 2, 1) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	h.pipeline.Manager().DedupeByWindow(float64(req.Window))
	result, err := h.pipeline.RunSymbol(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("pipeline run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, result)
}

// IngestSignal accepts a single detector signal over HTTP. The streaming
// paths (Kafka, WebSocket) are preferred; this exists for tooling and tests.
func (h *FusionEchoHandler) IngestSignal(c echo.Context) error {
	var ev models.SignalEvent
	if err := c.Bind(&ev); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if err := h.pipeline.Manager().Add(&ev); err != nil {
		h.logger.Warn("http ingest rejected", xlogger.String("key", ev.Key), xlogger.Error(err))
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if h.audit != nil {
		if err := h.audit.RecordSignal(c.Request().Context(), &ev); err != nil {
			h.logger.Warn("audit sink rejected signal", xlogger.Error(err))
		}
	}
	return xhttp.CreatedResponse(c, map[string]string{"key": ev.Key})
}

// Stats reports store counters and the counters of the most recent pass.
func (h *FusionEchoHandler) Stats(c echo.Context) error {
	fstats, cstats := h.pipeline.LastStats()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"store":    h.pipeline.Manager().Stats(),
		"fusion":   fstats,
		"conflict": cstats,
		"symbols":  h.pipeline.Manager().Symbols(),
	})
}

// Health reports process liveness and sink reachability.
func (h *FusionEchoHandler) Health(c echo.Context) error {
	status := map[string]interface{}{
		"status":     "ok",
		"store_size": h.pipeline.Manager().Size(),
		"time":       time.Now().UTC(),
	}
	if h.audit != nil {
		if err := h.audit.Health(c.Request().Context()); err != nil {
			status["status"] = "degraded"
			status["audit"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, status)
		}
		status["audit"] = "ok"
	}
	return xhttp.SuccessResponse(c, status)
}
