package usecase

import (
	"context"
	"fmt"
	"time"

	"Confluence/internal/domain/models"
	domrepo "Confluence/internal/domain/repository"
	"Confluence/internal/domain/service"
	"Confluence/pkg/logger"
)

// SignalRunner fans a snapshot out to the strategy evaluators and joins
// their signals.
type SignalRunner interface {
	Run(ctx context.Context, snap *models.MarketSnapshot, kc *models.KnowledgeContext) ([]models.Signal, error)
}

// CycleRunner drives one decision cycle: retrieve knowledge, evaluate
// strategies, synthesize, record, publish. Knowledge and persistence
// failures degrade the cycle but never withhold the decision; cancellation
// discards it entirely.
type CycleRunner struct {
	runner    SignalRunner
	policy    service.SynthesisPolicy
	recorder  domrepo.DecisionRecorder
	knowledge domrepo.KnowledgeStore
	publisher domrepo.DecisionPublisher
	metrics   domrepo.Metrics
	logger    *logger.Logger
	loc       *time.Location
}

func NewCycleRunner(
	runner SignalRunner,
	policy service.SynthesisPolicy,
	recorder domrepo.DecisionRecorder,
	knowledge domrepo.KnowledgeStore,
	publisher domrepo.DecisionPublisher,
	metrics domrepo.Metrics,
	lgr *logger.Logger,
	loc *time.Location,
) *CycleRunner {
	if loc == nil {
		loc = time.UTC
	}
	return &CycleRunner{
		runner:    runner,
		policy:    policy,
		recorder:  recorder,
		knowledge: knowledge,
		publisher: publisher,
		metrics:   metrics,
		logger:    lgr,
		loc:       loc,
	}
}

// Run executes one cycle for one snapshot. The returned decision is valid
// whenever err is nil or a persistence error; a cancellation error means no
// decision was produced or persisted.
func (c *CycleRunner) Run(ctx context.Context, snap *models.MarketSnapshot) (models.Decision, error) {
	if snap == nil {
		return models.Decision{}, fmt.Errorf("cycle: nil snapshot")
	}
	start := time.Now()
	session := models.NewSessionContext(snap.Timestamp, c.loc)
	if snap.Phase != "" {
		session.Phase = snap.Phase
	}

	kc := c.retrieveKnowledge(ctx, snap, session)

	signals, err := c.runner.Run(ctx, snap, kc)
	if err != nil {
		// Cancelled mid-evaluation: partial work is discarded, nothing
		// is recorded.
		c.metrics.RecordCycle(snap.Symbol, "cancelled")
		return models.Decision{}, fmt.Errorf("cycle %s: %w", session.RecordKey(snap.Symbol), err)
	}

	decision := c.policy.Synthesize(ctx, session, snap, signals, kc)
	c.metrics.RecordSlider(decision.Symbol, decision.Slider)

	status := "ok"
	var recordErr error
	if _, err := c.recorder.Record(ctx, session, decision); err != nil {
		// The decision still goes to the execution collaborator; the
		// failure is surfaced alongside it.
		status = "record_failed"
		recordErr = fmt.Errorf("record %s: %w", session.RecordKey(decision.Symbol), err)
		c.metrics.RecordError("record")
		c.logger.Error("failed to record decision",
			logger.String("record", session.RecordKey(decision.Symbol)),
			logger.Error(err),
		)
	}

	if err := c.publisher.Publish(ctx, session, decision); err != nil {
		status = "publish_failed"
		c.metrics.RecordError("publish")
		c.logger.Error("failed to publish decision",
			logger.String("record", session.RecordKey(decision.Symbol)),
			logger.Error(err),
		)
	}

	c.metrics.RecordCycle(snap.Symbol, status)
	c.metrics.RecordLatency("cycle", time.Since(start).Seconds())
	c.logger.Info("cycle complete",
		logger.String("symbol", snap.Symbol),
		logger.String("cycle", session.CycleID),
		logger.String("phase", string(session.Phase)),
		logger.Float64("slider", decision.Slider),
		logger.Float64("confidence", decision.Confidence),
		logger.String("regime", string(decision.Regime)),
		logger.Int("agreement", decision.Agreement),
	)
	return decision, recordErr
}

// retrieveKnowledge builds the cycle's context. A failed retrieval degrades
// to an empty context; trading does not halt because history is unreadable.
func (c *CycleRunner) retrieveKnowledge(ctx context.Context, snap *models.MarketSnapshot, session models.SessionContext) *models.KnowledgeContext {
	kc, err := c.knowledge.Retrieve(ctx, models.RetrievalQuery{
		Symbol: snap.Symbol,
		Phase:  session.Phase,
	})
	if err != nil {
		c.metrics.RecordError("knowledge_retrieve")
		c.logger.Warn("knowledge retrieval failed, continuing without context",
			logger.String("symbol", snap.Symbol),
			logger.Error(err),
		)
		return nil
	}
	return kc
}
