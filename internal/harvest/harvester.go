package harvest

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/notify"
	"github.com/ajitpratap0/adharvest/pkg/observability"
	"github.com/ajitpratap0/adharvest/pkg/report"
)

// Exit codes of a completed run
const (
	ExitOK         = 0
	ExitInvalid    = 1
	ExitStructural = 2
)

// Request is the input of one run
type Request struct {
	RunID       string
	Accounts    []string
	Definitions []report.Definition
	Query       report.QueryOptions
}

// Result is what a run produced
type Result struct {
	Units   int
	Summary Summary
	Forward ForwardStats
}

// ExitCode is ExitStructural when any unit met a response it could not
// interpret, ExitOK otherwise. API failures alone do not fail the run.
func (r Result) ExitCode() int {
	if r.Summary.StructuralFailures() > 0 {
		return ExitStructural
	}
	return ExitOK
}

// Harvester wires the generator, dispatcher, partitioner, forwarder and
// reporter into one run.
type Harvester struct {
	Dispatcher *Dispatcher
	// Forwarder is optional; without it successes are only reported
	Forwarder *Forwarder
	Reporter  *Reporter
	Publisher notify.Publisher
	Logger    *zap.Logger
	Now       func() time.Time
}

// Run executes every (account, definition) pair and hands the outcomes to
// the sink and the reporter. The error is only set when the run could not
// start.
func (h *Harvester) Run(ctx context.Context, req Request) (Result, error) {
	log := h.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("run_id", req.RunID))

	if len(req.Accounts) == 0 {
		return Result{}, errors.New(errors.ErrorTypeValidation, "at least one customer id is required")
	}
	if len(req.Definitions) == 0 {
		return Result{}, errors.New(errors.ErrorTypeValidation, "at least one report definition is required")
	}

	defs := make([]report.Definition, len(req.Definitions))
	for i, d := range req.Definitions {
		if err := d.Validate(); err != nil {
			return Result{}, err
		}
		defs[i] = d.Resolve(req.Query)
		log.Debug("report resolved", zap.String("report", defs[i].Name), zap.String("query", defs[i].Query))
	}

	ctx, span := observability.NewSpan(ctx, "harvest.run")
	span.SetAttribute("run_id", req.RunID)
	defer span.End()

	units := GenerateUnits(req.Accounts, defs)
	span.SetAttribute("units", len(units))
	log.Info("harvest started",
		zap.Int("accounts", len(req.Accounts)),
		zap.Int("reports", len(defs)),
		zap.Int("units", len(units)))

	outcomes := h.Dispatcher.Run(ctx, units)
	summary := Partition(outcomes)
	res := Result{Units: len(units), Summary: summary}

	log.Info("harvest fetched",
		zap.Int("successes", len(summary.Successes)),
		zap.Int("failures", len(summary.Failures)),
		zap.Int("structural_failures", summary.StructuralFailures()))

	reporter := h.Reporter
	if reporter == nil {
		reporter = &Reporter{}
	}
	reporter.ReportSummary(summary)

	if h.Forwarder != nil && len(summary.Successes) > 0 {
		res.Forward = h.Forwarder.Forward(ctx, summary.Successes)
	}

	reporter.ReportFailures(summary.Failures)

	if h.Publisher != nil && len(summary.Failures) > 0 {
		if err := h.Publisher.Publish(ctx, h.events(req.RunID, summary.Failures)); err != nil {
			log.Warn("failed to publish failure events", zap.Error(err))
		}
	}

	if res.ExitCode() != ExitOK {
		span.SetAttribute("structural_failures", summary.StructuralFailures())
	}
	return res, nil
}

func (h *Harvester) events(runID string, failures []Failure) []notify.Event {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	ts := now().UTC()

	events := make([]notify.Event, 0, len(failures))
	for _, f := range failures {
		ev := notify.Event{
			RunID:      runID,
			AccountID:  f.Unit.AccountID,
			Report:     f.Unit.Definition.Name,
			Attempts:   f.Attempts,
			Structural: f.Structural(),
			Time:       ts,
		}
		if apiErr, ok := f.APIError(); ok {
			ev.RequestID = apiErr.RequestID
			ev.Code = apiErr.Code
			ev.Message = apiErr.Message
			for _, e := range apiErr.Errors {
				ev.Errors = append(ev.Errors, notify.EventError{
					Message: e.Message,
					Field:   strings.Join(e.FieldPath, "."),
				})
			}
		} else {
			ev.Code = errorCode(f.Err)
			ev.Message = f.Err.Error()
		}
		events = append(events, ev)
	}
	return events
}

func errorCode(err error) string {
	var e *errors.Error
	if errors.As(err, &e) {
		return string(e.Type)
	}
	return "unknown"
}
