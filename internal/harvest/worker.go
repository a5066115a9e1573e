package harvest

import (
	"context"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/adharvest/pkg/ads"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/metrics"
	"github.com/ajitpratap0/adharvest/pkg/observability"
	"github.com/ajitpratap0/adharvest/pkg/report"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// FetchWorker executes work units against one Searcher
type FetchWorker struct {
	Searcher ads.Searcher
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// BackoffFactor is multiplied by the retry number: the n-th retry
	// waits n*BackoffFactor
	BackoffFactor time.Duration
	Sleep         SleepFunc
	Logger        *zap.Logger
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch runs one unit to completion. It never returns nil.
func (w *FetchWorker) Fetch(ctx context.Context, unit WorkUnit) Outcome {
	def := unit.Definition
	log := w.logger().With(
		zap.String("account_id", unit.AccountID),
		zap.String("report", def.Name),
		zap.Int("unit", unit.Index))

	timer := metrics.NewTimer()
	ctx, span := observability.NewSpan(ctx, "harvest.unit")
	span.SetAttribute("account_id", unit.AccountID)
	span.SetAttribute("report", def.Name)
	defer func() {
		metrics.UnitDuration.WithLabelValues(def.Name).Observe(timer.Stop().Seconds())
		span.End()
	}()

	if def.Query == "" {
		err := errors.Newf(errors.ErrorTypeConfig, "report %q has no query", def.Name)
		span.Fail(err)
		return Failure{Unit: unit, Err: err}
	}

	sleep := w.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	retries := 0
	for {
		attempts := retries + 1
		rows, err := w.attempt(ctx, unit)
		if err == nil {
			metrics.RowsFetched.WithLabelValues(def.Name).Add(float64(len(rows)))
			span.SetAttribute("rows", len(rows))
			span.SetAttribute("attempts", attempts)
			log.Debug("unit fetched", zap.Int("rows", len(rows)), zap.Int("attempts", attempts))
			return Success{Unit: unit, Rows: rows, Attempts: attempts}
		}

		span.Fail(err)
		if errors.IsType(err, errors.ErrorTypeStructural) {
			details := errors.DetailsOf(err)
			log.Error("response does not match the report definition",
				zap.Error(err),
				zap.Any("field", details["field"]),
				zap.Any("row_index", details["row_index"]),
				zap.Any("row", details["row"]),
				zap.String("query", def.Query))
			return Failure{Unit: unit, Err: err, Attempts: attempts}
		}

		if !errors.IsRetryable(err) {
			log.Error("unit failed", zap.Error(err))
			return Failure{Unit: unit, Err: err, Attempts: attempts}
		}
		last := lastFailure(err)

		if retries >= w.MaxRetries {
			log.Warn("unit failed, retries exhausted",
				append(requestFields(last), zap.Int("attempts", attempts))...)
			return Failure{Unit: unit, Err: last, Attempts: attempts}
		}

		retries++
		delay := time.Duration(retries) * w.BackoffFactor
		metrics.RetriesTotal.WithLabelValues(def.Name).Inc()
		log.Warn("request failed, retrying",
			append(requestFields(last), zap.Int("retry", retries), zap.Duration("backoff", delay))...)

		if err := sleep(ctx, delay); err != nil {
			return Failure{Unit: unit, Err: last, Attempts: attempts}
		}
	}
}

// lastFailure unwraps the API failure a Failure should carry, if there is one
func lastFailure(err error) error {
	var apiErr *ads.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return err
}

func requestFields(err error) []zap.Field {
	var apiErr *ads.APIError
	if errors.As(err, &apiErr) {
		return []zap.Field{zap.String("request_id", apiErr.RequestID), zap.String("code", apiErr.Code)}
	}
	return []zap.Field{zap.Error(err)}
}

// attempt runs the query once. Rows of a failed attempt are discarded.
func (w *FetchWorker) attempt(ctx context.Context, unit WorkUnit) ([]report.Record, error) {
	var rows []report.Record
	err := w.Searcher.SearchStream(ctx, unit.AccountID, unit.Definition.Query, func(batch []ads.Row) error {
		for _, row := range batch {
			rec, err := unit.Definition.Flatten(row)
			if err != nil {
				return withRowContext(err, unit, len(rows), row)
			}
			rows = append(rows, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func withRowContext(err error, unit WorkUnit, index int, row ads.Row) error {
	var e *errors.Error
	if !errors.As(err, &e) {
		return err
	}
	raw, mErr := gojson.Marshal(row)
	if mErr != nil {
		raw = []byte(mErr.Error())
	}
	return e.
		WithDetail("account_id", unit.AccountID).
		WithDetail("report", unit.Definition.Name).
		WithDetail("row_index", index).
		WithDetail("row", string(raw))
}

func (w *FetchWorker) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}
