package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Confluence/internal/domain/models"
	domrepo "Confluence/internal/domain/repository"
	"Confluence/internal/domain/service"
	pkgkafka "Confluence/pkg/kafka"
	"Confluence/pkg/logger"
)

// outcomeEvent is the wire shape consumed from the execution collaborator.
// kind "fill" carries execution facts; kind "outcome" carries the realized
// result that triggers scoring.
type outcomeEvent struct {
	Kind    string `json:"kind"`
	Session string `json:"session"`
	Cycle   string `json:"cycle"`
	Symbol  string `json:"symbol"`

	Quantity   float64   `json:"quantity,omitempty"`
	EntryPrice float64   `json:"entry_price,omitempty"`
	FilledAt   time.Time `json:"filled_at,omitempty"`

	PnL             float64   `json:"pnl,omitempty"`
	ReturnPct       float64   `json:"return_pct,omitempty"`
	BenchmarkReturn float64   `json:"benchmark_return,omitempty"`
	MaxDrawdownPct  float64   `json:"max_drawdown_pct,omitempty"`
	Closed          bool      `json:"closed,omitempty"`
	ClosedAt        time.Time `json:"closed_at,omitempty"`
}

// OutcomeHandler consumes execution fills and realized outcomes and runs
// the decoupled scoring pass. Cycles never wait on it.
type OutcomeHandler struct {
	topic     string
	recorder  domrepo.DecisionRecorder
	scorer    service.OutcomeScorer
	knowledge domrepo.KnowledgeStore
	metrics   domrepo.Metrics
	logger    *logger.Logger
}

func NewOutcomeHandler(
	topic string,
	recorder domrepo.DecisionRecorder,
	scorer service.OutcomeScorer,
	knowledge domrepo.KnowledgeStore,
	metrics domrepo.Metrics,
	lgr *logger.Logger,
) *OutcomeHandler {
	return &OutcomeHandler{
		topic:     topic,
		recorder:  recorder,
		scorer:    scorer,
		knowledge: knowledge,
		metrics:   metrics,
		logger:    lgr,
	}
}

func (h *OutcomeHandler) Topic() string { return h.topic }

func (h *OutcomeHandler) Handle(ctx context.Context, b []byte) error {
	var ev outcomeEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("outcome_unmarshal")
		return fmt.Errorf("decode outcome event: %w", err)
	}

	switch ev.Kind {
	case "fill":
		return h.handleFill(ctx, ev)
	case "outcome":
		return h.handleOutcome(ctx, ev)
	default:
		h.metrics.RecordError("outcome_unknown_kind")
		return fmt.Errorf("outcome event: unknown kind %q", ev.Kind)
	}
}

func (h *OutcomeHandler) handleFill(ctx context.Context, ev outcomeEvent) error {
	err := h.recorder.AttachExecution(ctx, ev.Session, ev.Cycle, ev.Symbol, models.ExecutionFact{
		Quantity:   ev.Quantity,
		EntryPrice: ev.EntryPrice,
		FilledAt:   ev.FilledAt,
	})
	if errors.Is(err, domrepo.ErrDuplicateRecord) {
		// Redelivery of an already-applied fill.
		return nil
	}
	if err != nil {
		h.metrics.RecordError("attach_execution")
		return err
	}
	h.logger.Debug("execution attached",
		logger.String("record", ev.Session+"/"+ev.Cycle+"/"+ev.Symbol))
	return nil
}

func (h *OutcomeHandler) handleOutcome(ctx context.Context, ev outcomeEvent) error {
	rec, err := h.recorder.Get(ctx, ev.Session, ev.Cycle, ev.Symbol)
	if err != nil {
		h.metrics.RecordError("outcome_record_lookup")
		return err
	}

	realized := models.RealizedOutcome{
		PnL:             ev.PnL,
		ReturnPct:       ev.ReturnPct,
		BenchmarkReturn: ev.BenchmarkReturn,
		MaxDrawdownPct:  ev.MaxDrawdownPct,
		Closed:          ev.Closed,
		ClosedAt:        ev.ClosedAt,
	}

	kc, err := h.knowledge.Retrieve(ctx, models.RetrievalQuery{
		Symbol: ev.Symbol,
		Regime: rec.Decision.Regime,
	})
	if err != nil {
		// Score without pattern history rather than stall the queue.
		h.metrics.RecordError("knowledge_retrieve")
		kc = nil
	}

	score, err := h.scorer.Score(rec, realized, kc)
	if errors.Is(err, domrepo.ErrOutcomeIncomplete) || errors.Is(err, domrepo.ErrScoringPending) {
		// Position still open or fill missing: stay pending, the next
		// event for this record retries.
		h.logger.Debug("scoring deferred",
			logger.String("record", rec.Key()),
			logger.Error(err))
		return nil
	}
	if err != nil {
		h.metrics.RecordError("score")
		return err
	}

	if err := h.recorder.AttachScore(ctx, ev.Session, ev.Cycle, ev.Symbol, realized, score); err != nil {
		if errors.Is(err, domrepo.ErrDuplicateRecord) {
			return nil
		}
		h.metrics.RecordError("attach_score")
		return err
	}

	h.metrics.RecordScore("skill", score.Skill)
	h.metrics.RecordScore("outcome", score.Outcome)
	h.metrics.RecordScore("combined", score.Combined)
	h.logger.Info("outcome scored",
		logger.String("record", rec.Key()),
		logger.Float64("skill", score.Skill),
		logger.Float64("outcome", score.Outcome),
		logger.Float64("luck_pct", score.LuckFactor),
		logger.String("quadrant", string(score.Quadrant)),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*OutcomeHandler)(nil)
