package harvest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajitpratap0/adharvest/pkg/ads"
	"github.com/ajitpratap0/adharvest/pkg/notify"
	"github.com/ajitpratap0/adharvest/pkg/report"
	"github.com/ajitpratap0/adharvest/pkg/sink"
)

func testDefinition() report.Definition {
	return report.Definition{
		Name:     "campaign_clicks",
		Resource: "campaign",
		Table:    "CAMPAIGN_CLICKS",
		Fields: []report.Field{
			{Path: report.MustParseFieldPath("campaign.id"), Column: "CAMPAIGN_ID"},
			{Path: report.MustParseFieldPath("metrics.clicks"), Column: "CLICKS"},
			{Column: "LEGACY"},
		},
		Query: "SELECT campaign.id, metrics.clicks FROM campaign",
	}
}

func row(id, clicks string) ads.Row {
	return ads.Row{
		"campaign": map[string]interface{}{"id": id},
		"metrics":  map[string]interface{}{"clicks": clicks},
	}
}

// scriptedSearcher answers every call through respond. call starts at 1
// and counts per account across all clones.
type scriptedSearcher struct {
	mu      *sync.Mutex
	calls   map[string]int
	queries []string
	respond func(account string, call int, fn func([]ads.Row) error) error
}

func newScriptedSearcher(respond func(account string, call int, fn func([]ads.Row) error) error) *scriptedSearcher {
	return &scriptedSearcher{
		mu:      &sync.Mutex{},
		calls:   make(map[string]int),
		respond: respond,
	}
}

func (s *scriptedSearcher) SearchStream(_ context.Context, customerID, query string, fn func([]ads.Row) error) error {
	s.mu.Lock()
	s.calls[customerID]++
	n := s.calls[customerID]
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return s.respond(customerID, n, fn)
}

func (s *scriptedSearcher) callsFor(account string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[account]
}

// countingFactory hands out the same searcher and counts how often it was
// asked for one
type countingFactory struct {
	mu       sync.Mutex
	searcher ads.Searcher
	built    int
	closed   int
	failFor  map[int]error
}

type closingSearcher struct {
	ads.Searcher
	onClose func()
}

func (c closingSearcher) Close() { c.onClose() }

func (f *countingFactory) factory(context.Context) (ads.Searcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built++
	if err, ok := f.failFor[f.built]; ok {
		return nil, err
	}
	return closingSearcher{Searcher: f.searcher, onClose: func() {
		f.mu.Lock()
		f.closed++
		f.mu.Unlock()
	}}, nil
}

func apiError(reqID, code string) *ads.APIError {
	return &ads.APIError{
		RequestID:  reqID,
		Code:       code,
		HTTPStatus: 400,
		Message:    "Request contains an invalid argument.",
		Errors: []ads.ErrorDetail{{
			Code:      "QUERY_ERROR",
			Message:   "Unrecognized field in the query: 'metrics.clickz'.",
			FieldPath: []string{"query"},
		}},
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

// memSink keeps batches in memory. Inserting a record that contains
// rejectValue fails.
type memSink struct {
	rejectValue string
	beginErr    error
	commitErr   error
	batches     []*memBatch
}

type memBatch struct {
	sink       *memSink
	target     sink.Target
	rows       [][]interface{}
	committed  bool
	rolledBack bool
}

func (s *memSink) Begin(_ context.Context, target sink.Target) (sink.Batch, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	b := &memBatch{sink: s, target: target}
	s.batches = append(s.batches, b)
	return b, nil
}

func (s *memSink) Close() error { return nil }

func (b *memBatch) Insert(_ context.Context, values []interface{}) error {
	for _, v := range values {
		if v == b.sink.rejectValue && b.sink.rejectValue != "" {
			return fmt.Errorf("value %v rejected", v)
		}
	}
	b.rows = append(b.rows, values)
	return nil
}

func (b *memBatch) Commit(context.Context) error {
	if b.sink.commitErr != nil {
		return b.sink.commitErr
	}
	b.committed = true
	return nil
}

func (b *memBatch) Rollback(context.Context) error {
	b.rolledBack = true
	return nil
}

type recordingPublisher struct {
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events []notify.Event) error {
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }
