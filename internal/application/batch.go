package application

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/attribly/attribution/internal/domain"
)

// DefaultBatchConcurrency bounds the number of journeys calculated in
// parallel during bulk recalculation.
const DefaultBatchConcurrency = 8

// BatchProcessor fans independent journeys out across a bounded worker set.
// Journeys carry no shared state and no ordering requirement, so each one
// is a separate dispatcher call; a failure in one journey's calculation
// never aborts the others. Errors are per-journey, not global.
type BatchProcessor struct {
	// dispatcher runs each journey's calculation.
	dispatcher *Dispatcher
	// concurrency bounds parallel calculations.
	concurrency int
	// limiter optionally throttles calculation starts, protecting shared
	// downstream collaborators during bulk recalculation.
	limiter *rate.Limiter
	// logger receives per-journey failure events.
	logger *zap.Logger
}

// BatchItem holds one journey's outcome. Exactly one of Results and Err is
// meaningful: Err carries the dispatcher's per-journey error taxonomy
// (configuration, validation, calculation, or no-valid-results).
type BatchItem struct {
	// Journey is the input journey, echoed for correlation.
	Journey domain.Journey

	// Results is the filtered result set for a successful calculation.
	Results []domain.AttributionResult

	// Err is the journey's failure, nil on success.
	Err error
}

// BatchOption customizes batch processor construction.
type BatchOption func(*BatchProcessor)

// WithConcurrency bounds the number of parallel calculations. Values below
// one fall back to the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRateLimit throttles calculation starts to r per second with the given
// burst.
func WithRateLimit(r rate.Limit, burst int) BatchOption {
	return func(b *BatchProcessor) { b.limiter = rate.NewLimiter(r, burst) }
}

// WithBatchLogger sets the logger receiving per-journey failure events.
func WithBatchLogger(logger *zap.Logger) BatchOption {
	return func(b *BatchProcessor) { b.logger = logger }
}

// NewBatchProcessor creates a BatchProcessor over the given dispatcher with
// default concurrency, no rate limit, and a no-op logger.
func NewBatchProcessor(dispatcher *Dispatcher, opts ...BatchOption) *BatchProcessor {
	b := &BatchProcessor{
		dispatcher:  dispatcher,
		concurrency: DefaultBatchConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Process runs one calculation per journey under the shared configuration
// and returns one BatchItem per input journey, in input order.
//
// Worker goroutines never return errors to the group: every failure is
// recorded on its journey's item, so a bad journey cannot cancel its
// siblings. Only context cancellation (surfaced through the rate limiter)
// stops the batch early, and even then every item is accounted for.
func (b *BatchProcessor) Process(
	ctx context.Context,
	journeys []domain.Journey,
	cfg domain.ModelConfiguration,
) []BatchItem {
	items := make([]BatchItem, len(journeys))
	batchID := uuid.NewString()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, journey := range journeys {
		g.Go(func() error {
			items[i] = BatchItem{Journey: journey}

			if b.limiter != nil {
				if err := b.limiter.Wait(ctx); err != nil {
					items[i].Err = err
					return nil
				}
			}

			results, err := b.dispatcher.Run(ctx, journey, cfg)
			items[i].Results = results
			items[i].Err = err

			if err != nil {
				b.logger.Warn("journey calculation failed",
					zap.String("batch_id", batchID),
					zap.String("conversion_id", journey.ConversionID),
					zap.Error(err))
			}
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes completion.
	_ = g.Wait()
	return items
}
