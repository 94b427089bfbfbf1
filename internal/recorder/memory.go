package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Confluence/internal/domain/models"
	"Confluence/internal/domain/repository"
)

// MemoryRecorder is the in-process session buffer behind the recorder. It
// enforces the one-record-per-(session, cycle, symbol) invariant and keeps
// the day's records queryable for review. Also used standalone in tests.
type MemoryRecorder struct {
	mu      sync.RWMutex
	records map[string]*models.DecisionRecord
	order   map[string][]string // session id -> insertion-ordered keys
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		records: map[string]*models.DecisionRecord{},
		order:   map[string][]string{},
	}
}

func (r *MemoryRecorder) Record(_ context.Context, session models.SessionContext, decision models.Decision) (*models.DecisionRecord, error) {
	key := session.RecordKey(decision.Symbol)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[key]; exists {
		return nil, fmt.Errorf("record %s: %w", key, repository.ErrDuplicateRecord)
	}

	rec := &models.DecisionRecord{
		Session:   session.SessionID,
		Cycle:     session.CycleID,
		Symbol:    decision.Symbol,
		Decision:  decision,
		Status:    models.StatusPendingExecution,
		CreatedAt: time.Now(),
	}
	r.records[key] = rec
	r.order[session.SessionID] = append(r.order[session.SessionID], key)
	return rec, nil
}

func (r *MemoryRecorder) AttachExecution(_ context.Context, sessionID, cycleID, symbol string, exec models.ExecutionFact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.lookup(sessionID, cycleID, symbol)
	if err != nil {
		return err
	}
	if rec.Execution != nil {
		return fmt.Errorf("attach execution %s: %w", rec.Key(), repository.ErrDuplicateRecord)
	}
	rec.Execution = &exec
	rec.Status = models.StatusExecuted
	return nil
}

func (r *MemoryRecorder) AttachScore(_ context.Context, sessionID, cycleID, symbol string, outcome models.RealizedOutcome, score models.OutcomeScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.lookup(sessionID, cycleID, symbol)
	if err != nil {
		return err
	}
	if rec.Score != nil {
		return fmt.Errorf("attach score %s: %w", rec.Key(), repository.ErrDuplicateRecord)
	}
	rec.Outcome = &outcome
	rec.Score = &score
	rec.Status = models.StatusScored
	return nil
}

func (r *MemoryRecorder) Get(_ context.Context, sessionID, cycleID, symbol string) (*models.DecisionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(sessionID, cycleID, symbol)
}

func (r *MemoryRecorder) SessionRecords(_ context.Context, sessionID string) ([]*models.DecisionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.order[sessionID]
	out := make([]*models.DecisionRecord, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.records[key])
	}
	return out, nil
}

func (r *MemoryRecorder) Close() error { return nil }

// lookup requires r.mu held.
func (r *MemoryRecorder) lookup(sessionID, cycleID, symbol string) (*models.DecisionRecord, error) {
	key := sessionID + "/" + cycleID + "/" + symbol
	rec, ok := r.records[key]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", key, repository.ErrRecordNotFound)
	}
	return rec, nil
}
