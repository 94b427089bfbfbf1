package usecase

import (
	"context"
	"fmt"

	"Confluence/internal/domain/models"
	domrepo "Confluence/internal/domain/repository"
	"Confluence/internal/knowledge"
	"Confluence/internal/outcome"
	"Confluence/pkg/logger"
)

// ReviewStore is the knowledge surface the end-of-session review writes to.
type ReviewStore interface {
	domrepo.KnowledgeStore
	WriteDecisionLog(ctx context.Context, session string, records []*models.DecisionRecord) error
}

// SessionReviewer runs the end-of-session pass: distill lessons from the
// day's extremes, write the daily summary (superseding any earlier draft),
// and flush the decision log.
type SessionReviewer struct {
	recorder  domrepo.DecisionRecorder
	store     ReviewStore
	distiller *outcome.Distiller
	metrics   domrepo.Metrics
	logger    *logger.Logger
}

func NewSessionReviewer(
	recorder domrepo.DecisionRecorder,
	store ReviewStore,
	distiller *outcome.Distiller,
	metrics domrepo.Metrics,
	lgr *logger.Logger,
) *SessionReviewer {
	return &SessionReviewer{
		recorder:  recorder,
		store:     store,
		distiller: distiller,
		metrics:   metrics,
		logger:    lgr,
	}
}

// Review closes out one session. Unscored records are left pending; they
// are picked up by a later review once their outcomes arrive.
func (r *SessionReviewer) Review(ctx context.Context, sessionID string) error {
	records, err := r.recorder.SessionRecords(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("review %s: load records: %w", sessionID, err)
	}
	if len(records) == 0 {
		r.logger.Info("no decisions to review", logger.String("session", sessionID))
		return nil
	}

	var pending int
	for _, rec := range records {
		if rec != nil && rec.Score == nil {
			pending++
		}
	}

	kc, err := r.store.Retrieve(ctx, models.RetrievalQuery{})
	if err != nil {
		return fmt.Errorf("review %s: retrieve lessons: %w", sessionID, err)
	}

	lessons := r.distiller.Distill(sessionID, records, kc.Entries())
	for _, lesson := range lessons {
		if err := r.store.Append(ctx, sessionID, lesson); err != nil {
			r.metrics.RecordKnowledgeWrite(string(lesson.Section), "error")
			return fmt.Errorf("review %s: append lesson: %w", sessionID, err)
		}
		r.metrics.RecordKnowledgeWrite(string(lesson.Section), "ok")
	}

	summary := knowledge.BuildDailySummary(sessionID, records, lessons)
	if err := r.store.Append(ctx, sessionID, summary); err != nil {
		r.metrics.RecordKnowledgeWrite(string(summary.Section), "error")
		return fmt.Errorf("review %s: append summary: %w", sessionID, err)
	}
	r.metrics.RecordKnowledgeWrite(string(summary.Section), "ok")

	if err := r.store.WriteDecisionLog(ctx, sessionID, records); err != nil {
		return fmt.Errorf("review %s: write decision log: %w", sessionID, err)
	}

	r.logger.Info("session reviewed",
		logger.String("session", sessionID),
		logger.Int("records", len(records)),
		logger.Int("pending_scores", pending),
		logger.Int("lessons", len(lessons)),
	)
	return nil
}
