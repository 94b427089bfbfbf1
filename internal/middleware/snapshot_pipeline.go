package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Confluence/internal/domain/models"
	domrepo "Confluence/internal/domain/repository"
	"Confluence/pkg/logger"
)

// CycleProc runs one decision cycle for one snapshot.
type CycleProc interface {
	Run(ctx context.Context, snap *models.MarketSnapshot) (models.Decision, error)
}

// SnapshotPipeline sits between the market-data stream and the cycle
// runner. It validates incoming snapshots and throttles per symbol so a
// bursty feed cannot trigger more than one cycle per interval; snapshots
// are time-sensitive, so throttled or superseded ones are dropped, never
// queued.
type SnapshotPipeline struct {
	proc        CycleProc
	metrics     domrepo.Metrics
	logger      *logger.Logger
	minInterval time.Duration

	mu        sync.Mutex
	lastSeen  map[string]time.Time // per-symbol last accepted time
	processed int64
	dropped   int64
}

// PipelineStatus is a point-in-time view of pipeline activity.
type PipelineStatus struct {
	Processed int64                `json:"processed"`
	Dropped   int64                `json:"dropped"`
	LastCycle map[string]time.Time `json:"last_cycle"`
}

type PipelineOption func(*SnapshotPipeline)

// WithMinInterval sets the minimum spacing between cycles per symbol.
func WithMinInterval(d time.Duration) PipelineOption {
	return func(p *SnapshotPipeline) {
		if d > 0 {
			p.minInterval = d
		}
	}
}

// NewSnapshotPipeline creates a new pipeline.
func NewSnapshotPipeline(proc CycleProc, metrics domrepo.Metrics, lgr *logger.Logger, opts ...PipelineOption) *SnapshotPipeline {
	p := &SnapshotPipeline{
		proc:        proc,
		metrics:     metrics,
		logger:      lgr,
		minInterval: 30 * time.Second,
		lastSeen:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates and throttles one snapshot, then runs its cycle.
func (p *SnapshotPipeline) Process(ctx context.Context, snap *models.MarketSnapshot) error {
	start := time.Now()
	if err := validateSnapshot(snap); err != nil {
		p.metrics.RecordError("pipeline_validate")
		p.count(&p.dropped)
		return err
	}
	if !p.allow(snap.Symbol, start) {
		// throttled; the next fresh snapshot carries newer data anyway
		p.metrics.RecordError("pipeline_throttle")
		p.count(&p.dropped)
		return nil
	}

	if _, err := p.proc.Run(ctx, snap); err != nil {
		p.metrics.RecordError("pipeline_cycle")
		return fmt.Errorf("pipeline cycle: %w", err)
	}
	p.count(&p.processed)
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// Status reports counters and the last accepted snapshot time per symbol.
func (p *SnapshotPipeline) Status() PipelineStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	last := make(map[string]time.Time, len(p.lastSeen))
	for sym, t := range p.lastSeen {
		last[sym] = t
	}
	return PipelineStatus{Processed: p.processed, Dropped: p.dropped, LastCycle: last}
}

func (p *SnapshotPipeline) count(field *int64) {
	p.mu.Lock()
	*field++
	p.mu.Unlock()
}

// Consume drains the stream until the context ends, reconnecting on read
// errors.
func (p *SnapshotPipeline) Consume(ctx context.Context, stream domrepo.SnapshotStream) error {
	for {
		snaps, errs := stream.Read(ctx)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case snap, ok := <-snaps:
				if !ok {
					snaps = nil
					continue
				}
				if err := p.Process(ctx, snap); err != nil {
					p.logger.Warn("snapshot dropped",
						logger.String("symbol", symbolOf(snap)),
						logger.Error(err),
					)
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				p.metrics.RecordError("stream_read")
				p.logger.Error("stream read failed, reconnecting", logger.Error(err))
				if rerr := stream.Reconnect(ctx); rerr != nil {
					return fmt.Errorf("stream reconnect: %w", rerr)
				}
			}
			if snaps == nil && errs == nil {
				break
			}
		}
	}
}

func validateSnapshot(s *models.MarketSnapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot nil")
	}
	if s.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if len(s.Indicators) == 0 {
		return fmt.Errorf("no indicators")
	}
	return nil
}

func (p *SnapshotPipeline) allow(symbol string, now time.Time) bool {
	if p.minInterval <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	last := p.lastSeen[symbol]
	if !last.IsZero() && now.Sub(last) < p.minInterval {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}

func symbolOf(s *models.MarketSnapshot) string {
	if s == nil {
		return ""
	}
	return s.Symbol
}
