package repository

import (
	"context"
	"errors"

	"sun/internal/models"
	"sun/internal/observability"
)

// instrumentation bundles the logging, latency and tracing hooks for one table.
type instrumentation struct {
	backend string
	table   string
	log     *observability.RepoLogger
	metrics *observability.StoreMetrics
}

func newInstrumentation(backend, table string) *instrumentation {
	return &instrumentation{
		backend: backend,
		table:   table,
		log:     observability.NewRepoLogger(backend, table),
		metrics: observability.NewStoreMetrics(backend),
	}
}

// start opens a span for op and returns the finisher that records latency and failures.
// Client-facing application errors are not logged as failures; internal ones are.
func (in *instrumentation) start(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := observability.StartStoreSpan(ctx, in.backend, op, in.table)
	track := in.metrics.TrackQuery(op, in.table)
	return ctx, func(err error) {
		track()
		var appErr *models.AppError
		if err != nil && (!errors.As(err, &appErr) || appErr.Code == models.CodeInternal) {
			observability.RecordError(ctx, err)
			in.log.LogError(ctx, err, op)
		}
		span.End()
	}
}
