package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/forcing-engine/internal/domain"
	"github.com/couchcryptid/forcing-engine/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Processor runs a batch of file arrivals through the forcing stages.
type Processor interface {
	ProcessAll(ctx context.Context, arrivals []domain.FileArrival) []Result
}

// BatchLoader writes multiple outcome events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, outcomes []domain.Outcome) error
}

// Stats are cumulative file counts since the pipeline started.
type Stats struct {
	Done         int64 `json:"done"`
	Skipped      int64 `json:"skipped"`
	Failed       int64 `json:"failed"`
	DecodeErrors int64 `json:"decode_errors"`
}

// Pipeline consumes file arrivals, processes them and publishes outcomes.
type Pipeline struct {
	extractor BatchExtractor
	processor Processor
	loader    BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int

	done, skipped, failed, decodeErrors atomic.Int64
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, proc Processor, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		processor: proc,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has processed at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any files yet")
	}
	return nil
}

// Stats returns the cumulative file counts.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Done:         p.done.Load(),
		Skipped:      p.skipped.Load(),
		Failed:       p.failed.Load(),
		DecodeErrors: p.decodeErrors.Load(),
	}
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-process-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	loaded, ok := p.processAndLoad(ctx, rawBatch, backoff, maxBackoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// processAndLoad decodes each message, processes the decoded arrivals on the
// worker pool, publishes one outcome per arrival and commits offsets.
// Undecodable messages are committed and dropped. Returns the number of
// published outcomes and false if the pipeline should stop.
func (p *Pipeline) processAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	arrivals := make([]domain.FileArrival, 0, len(rawBatch))
	decoded := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		a, err := domain.ParseRawEvent(raw)
		if err != nil {
			p.logger.Warn("decode failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.DecodeErrors.Inc()
			p.decodeErrors.Add(1)
			p.commitOffset(ctx, raw)
			continue
		}
		arrivals = append(arrivals, a)
		decoded = append(decoded, raw)
	}

	if len(arrivals) == 0 {
		return 0, true
	}

	p.metrics.BatchSize.Observe(float64(len(arrivals)))
	results := p.processor.ProcessAll(ctx, arrivals)
	if ctx.Err() != nil {
		return 0, false
	}

	outcomes := make([]domain.Outcome, len(results))
	for i, r := range results {
		outcomes[i] = r.Outcome()
		p.count(r.Status)
	}

	if err := p.loader.LoadBatch(ctx, outcomes); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(outcomes))
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.MessagesProduced.Add(float64(len(outcomes)))

	for _, raw := range decoded {
		p.commitOffset(ctx, raw)
	}

	return len(outcomes), true
}

func (p *Pipeline) count(s Status) {
	switch s {
	case StatusDone:
		p.done.Add(1)
	case StatusSkipped:
		p.skipped.Add(1)
	case StatusFailed:
		p.failed.Add(1)
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
