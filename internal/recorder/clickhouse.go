package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"Confluence/internal/domain/models"
	pkgch "Confluence/pkg/clickhouse"
	applogger "Confluence/pkg/logger"
	"Confluence/pkg/queue"
)

// Schema returns the idempotent DDL for the recorder's tables.
func Schema() []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS confluence`,
		`CREATE TABLE IF NOT EXISTS confluence.decision_records (
            session      String,
            cycle        String,
            symbol       String,
            slider       Float64,
            confidence   Float64,
            regime       LowCardinality(String),
            agreement    UInt8,
            signals_json String,
            created_at   DateTime64(3)
        ) ENGINE = MergeTree()
        ORDER BY (session, cycle, symbol)`,
		`CREATE TABLE IF NOT EXISTS confluence.outcome_scores (
            session       String,
            cycle         String,
            symbol        String,
            quantity      Float64,
            entry_price   Float64,
            pnl           Float64,
            return_pct    Float64,
            benchmark_pct Float64,
            drawdown_pct  Float64,
            skill         Float64,
            outcome       Float64,
            combined      Float64,
            luck_pct      Float64,
            quadrant      LowCardinality(String),
            scored_at     DateTime64(3)
        ) ENGINE = MergeTree()
        ORDER BY (session, cycle, symbol)`,
	}
}

// recordPayload is the queued retry shape for a failed decision insert.
type recordPayload struct {
	Session     string    `json:"session"`
	Cycle       string    `json:"cycle"`
	Symbol      string    `json:"symbol"`
	Slider      float64   `json:"slider"`
	Confidence  float64   `json:"confidence"`
	Regime      string    `json:"regime"`
	Agreement   int       `json:"agreement"`
	SignalsJSON string    `json:"signals_json"`
	CreatedAt   time.Time `json:"created_at"`
}

// CHRecorder layers ClickHouse persistence over the in-memory session
// buffer. The buffer is the duplicate-key authority; ClickHouse is the
// durable log. A failed insert never fails the cycle: the row is queued
// for retry instead.
type CHRecorder struct {
	buffer *MemoryRecorder
	db     *sql.DB
	queue  queue.QueueService
	l      *applogger.Logger
}

func NewCHRecorder(ch *pkgch.Client, q queue.QueueService) *CHRecorder {
	return &CHRecorder{buffer: NewMemoryRecorder(), db: ch.DB(), queue: q}
}

// SetLogger injects a structured logger.
func (r *CHRecorder) SetLogger(l *applogger.Logger) { r.l = l }

// InitSchema ensures the recorder's tables exist.
func (r *CHRecorder) InitSchema(ctx context.Context, ch *pkgch.Client) error {
	return ch.InitSchema(ctx, Schema())
}

func (r *CHRecorder) Record(ctx context.Context, session models.SessionContext, decision models.Decision) (*models.DecisionRecord, error) {
	rec, err := r.buffer.Record(ctx, session, decision)
	if err != nil {
		return nil, err
	}

	payload, err := payloadFor(rec)
	if err != nil {
		return nil, err
	}
	if err := r.insertDecision(ctx, payload); err != nil {
		if r.l != nil {
			r.l.Error("clickhouse decision insert failed, queueing retry",
				applogger.String("record", rec.Key()),
				applogger.Error(err),
			)
		}
		r.enqueueRetry(ctx, payload)
	}
	return rec, nil
}

func (r *CHRecorder) AttachExecution(ctx context.Context, sessionID, cycleID, symbol string, exec models.ExecutionFact) error {
	return r.buffer.AttachExecution(ctx, sessionID, cycleID, symbol, exec)
}

func (r *CHRecorder) AttachScore(ctx context.Context, sessionID, cycleID, symbol string, outcome models.RealizedOutcome, score models.OutcomeScore) error {
	if err := r.buffer.AttachScore(ctx, sessionID, cycleID, symbol, outcome, score); err != nil {
		return err
	}
	rec, err := r.buffer.Get(ctx, sessionID, cycleID, symbol)
	if err != nil {
		return err
	}

	var qty, entry float64
	if rec.Execution != nil {
		qty, entry = rec.Execution.Quantity, rec.Execution.EntryPrice
	}
	const q = `
        INSERT INTO confluence.outcome_scores
        (session, cycle, symbol, quantity, entry_price, pnl, return_pct,
         benchmark_pct, drawdown_pct, skill, outcome, combined, luck_pct,
         quadrant, scored_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = r.db.ExecContext(ctx, q,
		sessionID, cycleID, symbol, qty, entry,
		outcome.PnL, outcome.ReturnPct, outcome.BenchmarkReturn, outcome.MaxDrawdownPct,
		score.Skill, score.Outcome, score.Combined, score.LuckFactor,
		string(score.Quadrant), score.ScoredAt,
	)
	if err != nil {
		if r.l != nil {
			r.l.Error("clickhouse score insert failed",
				applogger.String("record", rec.Key()),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert outcome score: %w", err)
	}
	return nil
}

func (r *CHRecorder) Get(ctx context.Context, sessionID, cycleID, symbol string) (*models.DecisionRecord, error) {
	return r.buffer.Get(ctx, sessionID, cycleID, symbol)
}

func (r *CHRecorder) SessionRecords(ctx context.Context, sessionID string) ([]*models.DecisionRecord, error) {
	return r.buffer.SessionRecords(ctx, sessionID)
}

func (r *CHRecorder) Close() error { return nil }

// QueryDecisions replays persisted decisions for a session from ClickHouse,
// oldest first. Used by the API surface; live cycles read the buffer.
func (r *CHRecorder) QueryDecisions(ctx context.Context, sessionID string, limit int) ([]*models.DecisionRecord, error) {
	start := time.Now()
	const q = `
        SELECT session, cycle, symbol, slider, confidence, regime, agreement,
               signals_json, created_at
        FROM confluence.decision_records
        WHERE session = ?
        ORDER BY created_at ASC
        LIMIT ?
    `
	rows, err := r.db.QueryContext(ctx, q, sessionID, limit)
	if err != nil {
		if r.l != nil {
			r.l.Error("clickhouse query_decisions error",
				applogger.String("session", sessionID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.DecisionRecord, 0, 64)
	for rows.Next() {
		var rec models.DecisionRecord
		var agreement uint8
		var regime, signalsJSON string
		if err := rows.Scan(&rec.Session, &rec.Cycle, &rec.Symbol,
			&rec.Decision.Slider, &rec.Decision.Confidence, &regime,
			&agreement, &signalsJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Decision.Symbol = rec.Symbol
		rec.Decision.Regime = models.Regime(regime)
		rec.Decision.Agreement = int(agreement)
		if signalsJSON != "" {
			if err := json.Unmarshal([]byte(signalsJSON), &rec.Decision.Signals); err != nil {
				return nil, fmt.Errorf("decode signals: %w", err)
			}
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if r.l != nil {
		r.l.Debug("clickhouse query_decisions ok",
			applogger.String("session", sessionID),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (r *CHRecorder) insertDecision(ctx context.Context, p recordPayload) error {
	const q = `
        INSERT INTO confluence.decision_records
        (session, cycle, symbol, slider, confidence, regime, agreement,
         signals_json, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, q,
		p.Session, p.Cycle, p.Symbol, p.Slider, p.Confidence,
		p.Regime, uint8(p.Agreement), p.SignalsJSON, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision record: %w", err)
	}
	return nil
}

func (r *CHRecorder) enqueueRetry(ctx context.Context, p recordPayload) {
	if r.queue == nil {
		return
	}
	if err := r.queue.PublishMessage(ctx, RetryMessageType, p); err != nil && r.l != nil {
		r.l.Error("failed to queue decision record retry",
			applogger.String("record", p.Session+"/"+p.Cycle+"/"+p.Symbol),
			applogger.Error(err),
		)
	}
}

func payloadFor(rec *models.DecisionRecord) (recordPayload, error) {
	signals, err := json.Marshal(rec.Decision.Signals)
	if err != nil {
		return recordPayload{}, fmt.Errorf("encode signals: %w", err)
	}
	return recordPayload{
		Session:     rec.Session,
		Cycle:       rec.Cycle,
		Symbol:      rec.Symbol,
		Slider:      rec.Decision.Slider,
		Confidence:  rec.Decision.Confidence,
		Regime:      string(rec.Decision.Regime),
		Agreement:   rec.Decision.Agreement,
		SignalsJSON: string(signals),
		CreatedAt:   rec.CreatedAt,
	}, nil
}
