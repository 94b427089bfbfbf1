package usecase

import (
	"context"
	"fmt"
	"time"

	"Confluence/internal/domain/models"
	pkgkafka "Confluence/pkg/kafka"
)

// decisionEvent is the wire shape published to the execution collaborator.
type decisionEvent struct {
	Session    string          `json:"session"`
	Cycle      string          `json:"cycle"`
	Symbol     string          `json:"symbol"`
	Slider     float64         `json:"slider"`
	Confidence float64         `json:"confidence"`
	Regime     string          `json:"regime"`
	Agreement  int             `json:"agreement"`
	Signals    []models.Signal `json:"signals"`
	EmittedAt  time.Time       `json:"emitted_at"`
}

// KafkaDecisionPublisher publishes decisions to the execution topic, keyed
// by symbol so one symbol's decisions stay ordered.
type KafkaDecisionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaDecisionPublisher(producer *pkgkafka.Producer, topic string) *KafkaDecisionPublisher {
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func (p *KafkaDecisionPublisher) Publish(ctx context.Context, session models.SessionContext, decision models.Decision) error {
	event := decisionEvent{
		Session:    session.SessionID,
		Cycle:      session.CycleID,
		Symbol:     decision.Symbol,
		Slider:     decision.Slider,
		Confidence: decision.Confidence,
		Regime:     string(decision.Regime),
		Agreement:  decision.Agreement,
		Signals:    decision.Signals,
		EmittedAt:  decision.SynthesizedAt,
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(decision.Symbol), event); err != nil {
		return fmt.Errorf("publish decision %s: %w", session.RecordKey(decision.Symbol), err)
	}
	return nil
}

func (p *KafkaDecisionPublisher) Close() error {
	return p.producer.Close()
}
