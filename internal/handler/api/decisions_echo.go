package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	models "Confluence/internal/domain/models"
	domrepo "Confluence/internal/domain/repository"
	"Confluence/internal/middleware"
	"Confluence/internal/replay"
	icache "Confluence/internal/service/cache"
	"Confluence/internal/service/metrics"
	"Confluence/internal/service/ratelimit"
	xhttp "Confluence/pkg/http"
	xlogger "Confluence/pkg/logger"
	xutil "Confluence/pkg/util"

	"github.com/labstack/echo/v4"
)

// DecisionQuerier reads recorded decisions for the HTTP surface. The
// durable query path may fail independently of the in-memory session
// buffer, so both are exposed.
type DecisionQuerier interface {
	QueryDecisions(ctx context.Context, sessionID string, limit int) ([]*models.DecisionRecord, error)
	SessionRecords(ctx context.Context, sessionID string) ([]*models.DecisionRecord, error)
}

// StatusSource reports live pipeline activity.
type StatusSource interface {
	Status() middleware.PipelineStatus
}

// SessionReplayer reruns a recorded session against realized outcomes.
type SessionReplayer interface {
	Replay(ctx context.Context, session string) (*replay.Report, error)
}

// DecisionsEchoHandler exposes the read-only API over the decision log,
// the knowledge store and the session outcome scores.
type DecisionsEchoHandler struct {
	logger   *xlogger.Logger
	recorder DecisionQuerier
	store    domrepo.KnowledgeStore
	status   StatusSource
	replayer SessionReplayer
	cache    icache.BytesCache
	rl       *ratelimit.Limiter
	loc      *time.Location
}

func NewDecisionsEchoHandler(logger *xlogger.Logger, recorder DecisionQuerier, store domrepo.KnowledgeStore, status StatusSource, replayer SessionReplayer, loc *time.Location) *DecisionsEchoHandler {
	metrics.Register()
	if loc == nil {
		loc = time.UTC
	}
	return &DecisionsEchoHandler{
		logger:   logger,
		recorder: recorder,
		store:    store,
		status:   status,
		replayer: replayer,
		cache:    icache.NewTTLCache(),
		rl:       ratelimit.New(5, 2),
		loc:      loc,
	}
}

// SetCache replaces the default in-process response cache.
func (h *DecisionsEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *DecisionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/decisions", h.Decisions)
	g.GET("/knowledge", h.Knowledge)
	g.GET("/outcomes", h.Outcomes)
	g.GET("/replay", h.Replay)
}

// Status reports pipeline counters and last cycle time per symbol.
func (h *DecisionsEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.status.Status())
}

// Decisions returns the decision log for one symbol and session. It
// prefers the durable store and falls back to the in-memory session
// buffer when the store is unreachable.
func (h *DecisionsEchoHandler) Decisions(c echo.Context) error {
	start := time.Now()
	endpoint := "decisions"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.DecisionLogRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP() + ":" + endpoint) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}
	session := req.Session
	if session == "" {
		session = xutil.TradingDay(time.Now(), h.loc)
	}

	cacheKey := fmt.Sprintf("decisions:%s:%s:%s:%s:%d", session, req.Symbol, req.From, req.To, req.Limit)
	if b, ok, _ := h.cache.GetBytes(cacheKey); ok {
		var items []models.DecisionLogItem
		if err := json.Unmarshal(b, &items); err == nil {
			return xhttp.ListResponse(c, items, int64(len(items)))
		}
	}

	ctx := c.Request().Context()
	recs, err := h.recorder.QueryDecisions(ctx, session, req.Limit)
	if err != nil {
		h.logger.Warn("decision log query fell back to buffer", xlogger.Error(err))
		recs, err = h.recorder.SessionRecords(ctx, session)
		if err != nil {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
			h.logger.Error("decision log error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
	}

	from, hasFrom := xutil.ParseTime(req.From)
	to, hasTo := xutil.ParseTime(req.To)

	items := make([]models.DecisionLogItem, 0, len(recs))
	for _, r := range recs {
		if r.Symbol != req.Symbol {
			continue
		}
		if hasFrom && r.CreatedAt.Before(from) {
			continue
		}
		if hasTo && r.CreatedAt.After(to) {
			continue
		}
		items = append(items, models.NewDecisionLogItem(r))
		if len(items) == req.Limit {
			break
		}
	}

	if b, err := json.Marshal(items); err == nil {
		_ = h.cache.SetBytes(cacheKey, b, 15*time.Second)
	}
	return xhttp.ListResponse(c, items, int64(len(items)))
}

// Knowledge previews the composed context a cycle would retrieve for the
// given symbol, regime and phase.
func (h *DecisionsEchoHandler) Knowledge(c echo.Context) error {
	start := time.Now()
	endpoint := "knowledge"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.KnowledgePreviewRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP() + ":" + endpoint) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	kc, err := h.store.Retrieve(c.Request().Context(), models.RetrievalQuery{
		Symbol:       req.Symbol,
		Regime:       models.Regime(req.Regime),
		Phase:        models.SessionPhase(req.Phase),
		SetupType:    req.Setup,
		MaxSummaries: req.Summaries,
	})
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("knowledge preview error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, kc)
}

// Outcomes aggregates skill and outcome scores over one session.
func (h *DecisionsEchoHandler) Outcomes(c echo.Context) error {
	start := time.Now()
	endpoint := "outcomes"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.OutcomeStatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	recs, err := h.recorder.SessionRecords(c.Request().Context(), req.Session)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("outcome stats error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, aggregateOutcomes(req.Session, recs))
}

// Replay reruns a recorded session's decisions against their realized
// outcomes and returns the performance report.
func (h *DecisionsEchoHandler) Replay(c echo.Context) error {
	start := time.Now()
	endpoint := "replay"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.SessionReplayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP() + ":" + endpoint) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	report, err := h.replayer.Replay(c.Request().Context(), req.Session)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("session replay error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if !req.Curve {
		report.Curve = nil
	}
	return xhttp.SuccessResponse(c, report)
}

func aggregateOutcomes(session string, recs []*models.DecisionRecord) models.OutcomeStats {
	stats := models.OutcomeStats{
		Session:   session,
		Records:   len(recs),
		Quadrants: make(map[models.Quadrant]int),
	}
	for _, r := range recs {
		if r.Score == nil {
			stats.Pending++
			continue
		}
		stats.Scored++
		stats.AvgSkill += r.Score.Skill
		stats.AvgOutcome += r.Score.Outcome
		stats.AvgCombined += r.Score.Combined
		stats.AvgLuck += r.Score.LuckFactor
		stats.Quadrants[r.Score.Quadrant]++
	}
	if stats.Scored > 0 {
		n := float64(stats.Scored)
		stats.AvgSkill /= n
		stats.AvgOutcome /= n
		stats.AvgCombined /= n
		stats.AvgLuck /= n
	}
	return stats
}
