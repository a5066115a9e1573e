package harvest

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/adharvest/pkg/metrics"
	"github.com/ajitpratap0/adharvest/pkg/observability"
	"github.com/ajitpratap0/adharvest/pkg/sink"
)

// ForwardStats counts what the forwarder did
type ForwardStats struct {
	Batches       int
	FailedBatches int
	Inserted      int
	Failed        int
}

// Forwarder writes successful units to a sink, one batch per unit
type Forwarder struct {
	Sink            sink.Sink
	TimestampColumn string
	Logger          *zap.Logger
}

// Forward writes every success in order. A failing record is logged and
// skipped; a failing batch does not stop the others.
func (f *Forwarder) Forward(ctx context.Context, successes []Success) ForwardStats {
	log := f.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "forwarder"))

	var stats ForwardStats
	for _, s := range successes {
		inserted, failed, err := f.forwardOne(ctx, log, s)
		stats.Batches++
		stats.Inserted += inserted
		stats.Failed += failed
		if err != nil {
			stats.FailedBatches++
		}
	}
	log.Info("records forwarded",
		zap.Int("batches", stats.Batches),
		zap.Int("failed_batches", stats.FailedBatches),
		zap.Int("inserted", stats.Inserted),
		zap.Int("failed", stats.Failed))
	return stats
}

func (f *Forwarder) forwardOne(ctx context.Context, log *zap.Logger, s Success) (inserted, failed int, err error) {
	def := s.Unit.Definition
	target := sink.Target{
		Table:           def.Table,
		Columns:         def.Columns(),
		TimestampColumn: f.TimestampColumn,
		AccountID:       s.Unit.AccountID,
		Report:          def.Name,
	}
	log = log.With(
		zap.String("table", target.Table),
		zap.String("report", target.Report),
		zap.String("account_id", target.AccountID))

	ctx, span := observability.NewSpan(ctx, "sink.batch")
	span.SetAttribute("table", target.Table)
	span.SetAttribute("account_id", target.AccountID)
	defer span.End()

	batch, err := f.Sink.Begin(ctx, target)
	if err != nil {
		span.Fail(err)
		log.Error("failed to open batch", zap.Error(err))
		return 0, len(s.Rows), err
	}

	for i, rec := range s.Rows {
		if err := batch.Insert(ctx, rec); err != nil {
			failed++
			metrics.SinkRecords.WithLabelValues(target.Table, metrics.SinkFailed).Inc()
			log.Error("failed to insert record",
				zap.Error(err),
				zap.Int("row_index", i),
				zap.Any("values", []interface{}(rec)))
			continue
		}
		inserted++
		metrics.SinkRecords.WithLabelValues(target.Table, metrics.SinkInserted).Inc()
	}

	if err := batch.Commit(ctx); err != nil {
		span.Fail(err)
		log.Error("failed to commit batch", zap.Error(err))
		if rbErr := batch.Rollback(ctx); rbErr != nil {
			log.Warn("rollback failed", zap.Error(rbErr))
		}
		return 0, inserted + failed, err
	}

	span.SetAttribute("inserted", inserted)
	span.SetAttribute("failed", failed)
	log.Debug("batch committed", zap.Int("inserted", inserted), zap.Int("failed", failed))
	return inserted, failed, nil
}
