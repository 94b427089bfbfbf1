package strategy

import (
	"context"
	"sync"
	"time"

	"Confluence/internal/domain/models"
	"Confluence/internal/domain/repository"
	"Confluence/internal/domain/service"
	"Confluence/pkg/logger"
)

// Runner fans a snapshot out to all registered evaluators in parallel and
// joins their signals. A slow evaluator contributes a neutral signal after
// the per-evaluator timeout instead of blocking the cycle; a cancelled cycle
// discards all partial results.
type Runner struct {
	registry *Registry
	timeout  time.Duration
	logger   *logger.Logger
	metrics  repository.Metrics
}

func NewRunner(registry *Registry, timeout time.Duration, lgr *logger.Logger, metrics repository.Metrics) *Runner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Runner{
		registry: registry,
		timeout:  timeout,
		logger:   lgr,
		metrics:  metrics,
	}
}

// Run evaluates all strategies against the snapshot. The returned signals
// are ordered by registration order.
func (r *Runner) Run(ctx context.Context, snap *models.MarketSnapshot, kc *models.KnowledgeContext) ([]models.Signal, error) {
	evaluators := r.registry.Evaluators()
	signals := make([]models.Signal, len(evaluators))

	var wg sync.WaitGroup
	for i, ev := range evaluators {
		wg.Add(1)
		go func(idx int, ev service.Evaluator) {
			defer wg.Done()

			evalCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			start := time.Now()
			done := make(chan models.Signal, 1)
			go func() {
				done <- ev.Evaluate(evalCtx, snap, kc)
			}()

			select {
			case sig := <-done:
				signals[idx] = sig
			case <-evalCtx.Done():
				signals[idx] = models.NeutralSignal(ev.Name(), "evaluation timed out")
				r.logger.Warn("evaluator timed out",
					logger.String("strategy", ev.Name()),
					logger.String("symbol", snap.Symbol),
					logger.Duration("timeout", r.timeout))
				r.metrics.RecordError("evaluator_timeout")
			}
			r.metrics.RecordLatency("evaluate_"+ev.Name(), time.Since(start).Seconds())
		}(i, ev)
	}
	wg.Wait()

	// Cancelled cycles must not record or publish partial work.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range signals {
		if err := signals[i].Validate(); err != nil {
			r.logger.Warn("invalid signal degraded to neutral",
				logger.String("symbol", snap.Symbol),
				logger.Error(err))
			signals[i] = models.NeutralSignal(signals[i].Strategy, "invalid signal: "+err.Error())
		}
		r.metrics.RecordSignal(signals[i].Strategy, string(signals[i].Direction))
	}

	return signals, nil
}
