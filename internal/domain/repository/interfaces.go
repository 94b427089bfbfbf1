package repository

import (
	"context"

	"Confluence/internal/domain/models"
)

// SnapshotStream delivers market snapshots from the data collaborator.
type SnapshotStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.MarketSnapshot, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// DecisionRecorder persists decisions with a single-writer-per-key invariant.
// Record rejects a second write for the same (session, cycle, symbol) with
// ErrDuplicateRecord.
type DecisionRecorder interface {
	Record(ctx context.Context, session models.SessionContext, decision models.Decision) (*models.DecisionRecord, error)
	AttachExecution(ctx context.Context, sessionID, cycleID, symbol string, exec models.ExecutionFact) error
	AttachScore(ctx context.Context, sessionID, cycleID, symbol string, outcome models.RealizedOutcome, score models.OutcomeScore) error
	Get(ctx context.Context, sessionID, cycleID, symbol string) (*models.DecisionRecord, error)
	SessionRecords(ctx context.Context, sessionID string) ([]*models.DecisionRecord, error)
	Close() error
}

// KnowledgeStore owns all persisted knowledge entries. Append with an
// existing (section, key) supersedes the previous entry. Writes for one
// session key are serialized; reads see a consistent snapshot.
type KnowledgeStore interface {
	Append(ctx context.Context, session string, entry models.KnowledgeEntry) error
	Retrieve(ctx context.Context, q models.RetrievalQuery) (*models.KnowledgeContext, error)
}

// DecisionPublisher hands decisions to the execution collaborator.
type DecisionPublisher interface {
	Publish(ctx context.Context, session models.SessionContext, decision models.Decision) error
	Close() error
}

// Metrics records operational metrics for the pipeline.
type Metrics interface {
	RecordCycle(symbol, status string)
	RecordSignal(strategy, direction string)
	RecordError(kind string)
	RecordSlider(symbol string, slider float64)
	RecordScore(component string, score float64)
	RecordLatency(op string, seconds float64)
	RecordKnowledgeWrite(section, result string)
}
