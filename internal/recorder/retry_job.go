package recorder

import (
	"context"
	"fmt"

	applogger "Confluence/pkg/logger"
	"Confluence/pkg/queue"
)

// RetryMessageType is the queue message type for failed decision inserts.
const RetryMessageType = "decision_record_retry"

// RetryJob re-attempts ClickHouse inserts that failed during a live cycle.
// Registered with the redis queue consumer; exhausted retries land in the
// dead letter queue.
type RetryJob struct {
	recorder *CHRecorder
	l        *applogger.Logger
}

func NewRetryJob(recorder *CHRecorder, l *applogger.Logger) *RetryJob {
	return &RetryJob{recorder: recorder, l: l}
}

func (j *RetryJob) Name() string { return "decision-record-retry" }

func (j *RetryJob) Type() string { return RetryMessageType }

func (j *RetryJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[recordPayload](payload)
	if err != nil {
		return fmt.Errorf("parse retry payload: %w", err)
	}
	if err := j.recorder.insertDecision(ctx, *p); err != nil {
		return err
	}
	if j.l != nil {
		j.l.Info("decision record persisted on retry",
			applogger.String("record", p.Session+"/"+p.Cycle+"/"+p.Symbol))
	}
	return nil
}
