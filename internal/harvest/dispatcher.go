package harvest

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/adharvest/pkg/ads"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/metrics"
)

// SearcherFactory builds the API handle of one worker. It is called once per
// worker goroutine, on that goroutine, so handles are never shared.
type SearcherFactory func(ctx context.Context) (ads.Searcher, error)

// ServiceFactory returns a SearcherFactory building an ads.Service from cfg.
// The request rate of cfg is split evenly between workers.
func ServiceFactory(cfg ads.Config, workers int) SearcherFactory {
	if workers > 1 && cfg.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond /= float64(workers)
	}
	return func(ctx context.Context) (ads.Searcher, error) {
		svc, err := ads.NewService(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}

// Dispatcher runs work units on a fixed pool of workers
type Dispatcher struct {
	Workers int
	Factory SearcherFactory
	// Template is copied for every worker; its Searcher is replaced by the
	// one the factory builds
	Template FetchWorker
	Logger   *zap.Logger
}

// Run blocks until every unit has produced exactly one outcome. Outcomes are
// returned in completion order.
func (d *Dispatcher) Run(ctx context.Context, units []WorkUnit) []Outcome {
	if len(units) == 0 {
		return nil
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	workers := d.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(units) {
		workers = len(units)
	}

	jobs := make(chan WorkUnit)
	results := make(chan Outcome, len(units))

	log.Info("dispatching work units", zap.Int("units", len(units)), zap.Int("workers", workers))

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		id := i
		g.Go(func() error {
			d.work(ctx, log.With(zap.Int("worker", id)), jobs, results)
			return nil
		})
	}

	for _, u := range units {
		jobs <- u
	}
	close(jobs)

	_ = g.Wait()
	close(results)

	outcomes := make([]Outcome, 0, len(units))
	for o := range results {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (d *Dispatcher) work(ctx context.Context, log *zap.Logger, jobs <-chan WorkUnit, results chan<- Outcome) {
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	searcher, err := d.Factory(ctx)
	if err != nil {
		log.Error("failed to create ads client", zap.Error(err))
		// the worker still drains its share of units so none is lost
		for unit := range jobs {
			results <- Failure{Unit: unit, Err: err}
		}
		return
	}
	if closer, ok := searcher.(interface{ Close() }); ok {
		defer closer.Close()
	}

	w := d.Template
	w.Searcher = searcher
	w.Logger = log

	for unit := range jobs {
		o := safeFetch(ctx, &w, unit, log)
		recordOutcome(o)
		results <- o
	}
}

// safeFetch keeps a panic inside one unit from taking the run down
func safeFetch(ctx context.Context, w *FetchWorker, unit WorkUnit, log *zap.Logger) (o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while fetching unit",
				zap.String("account_id", unit.AccountID),
				zap.String("report", unit.Definition.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			o = Failure{
				Unit: unit,
				Err: errors.New(errors.ErrorTypeStructural, fmt.Sprintf("panic while fetching: %v", r)).
					WithDetail("account_id", unit.AccountID).
					WithDetail("report", unit.Definition.Name),
				Attempts: 1,
			}
		}
	}()
	return w.Fetch(ctx, unit)
}

func recordOutcome(o Outcome) {
	name := o.WorkUnit().Definition.Name
	switch v := o.(type) {
	case Success:
		metrics.UnitsTotal.WithLabelValues(name, metrics.OutcomeSuccess).Inc()
	case Failure:
		if v.Structural() {
			metrics.UnitsTotal.WithLabelValues(name, metrics.OutcomeStructural).Inc()
		} else {
			metrics.UnitsTotal.WithLabelValues(name, metrics.OutcomeFailure).Inc()
		}
	}
}
