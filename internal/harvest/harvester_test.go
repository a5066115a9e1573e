package harvest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/adharvest/pkg/ads"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/report"
	"github.com/ajitpratap0/adharvest/pkg/testutil"
)

type harness struct {
	searcher  *scriptedSearcher
	sink      *memSink
	publisher *recordingPublisher
	out       bytes.Buffer
	errOut    bytes.Buffer
	slept     []time.Duration
	harvester *Harvester
}

func newHarness(t *testing.T, respond func(account string, call int, fn func([]ads.Row) error) error) *harness {
	h := &harness{
		searcher:  newScriptedSearcher(respond),
		sink:      &memSink{},
		publisher: &recordingPublisher{},
	}
	f := &countingFactory{searcher: h.searcher}
	h.harvester = &Harvester{
		Dispatcher: &Dispatcher{
			Workers: 2,
			Factory: f.factory,
			Template: FetchWorker{
				MaxRetries:    2,
				BackoffFactor: 5 * time.Second,
				// workers run concurrently but only one account fails here
				Sleep: func(_ context.Context, d time.Duration) error {
					h.slept = append(h.slept, d)
					return nil
				},
			},
		},
		Forwarder: &Forwarder{Sink: h.sink, TimestampColumn: "FECHA_CREACION"},
		Reporter:  &Reporter{Out: &h.out, Err: &h.errOut},
		Publisher: h.publisher,
		Logger:    testutil.TestLogger(t),
		Now:       func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	return h
}

func TestHarvestSuccessAndExhaustedFailure(t *testing.T) {
	h := newHarness(t, func(account string, call int, fn func([]ads.Row) error) error {
		if account == "222" {
			return apiError(fmt.Sprintf("req-%d", call), "INVALID_ARGUMENT")
		}
		return fn([]ads.Row{row("10", "5"), row("11", "7")})
	})

	res, err := h.harvester.Run(testutil.TestContext(t), Request{
		RunID:       "run-1",
		Accounts:    []string{"111", "222"},
		Definitions: []report.Definition{testDefinition()},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Units)
	assert.Equal(t, ExitOK, res.ExitCode())
	require.Len(t, res.Summary.Successes, 1)
	require.Len(t, res.Summary.Failures, 1)
	assert.Equal(t, "111", res.Summary.Successes[0].Unit.AccountID)
	assert.Equal(t, "222", res.Summary.Failures[0].Unit.AccountID)
	assert.Equal(t, 3, res.Summary.Failures[0].Attempts)
	assert.Equal(t, 3, h.searcher.callsFor("222"))
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, h.slept)

	assert.Equal(t, ForwardStats{Batches: 1, Inserted: 2}, res.Forward)
	require.Len(t, h.sink.batches, 1)
	assert.Equal(t, "111", h.sink.batches[0].target.AccountID)

	assert.Contains(t, h.out.String(), "Total successful results: 1\n")
	assert.Contains(t, h.out.String(), "Total failed results: 1\n")
	assert.Contains(t, h.out.String(), "\tcustomer_id : 111 // query_name : campaign_clicks // # results : 2\n")
	assert.Contains(t, h.errOut.String(),
		"Request with ID \"req-3\" failed with status \"INVALID_ARGUMENT\" for customer_id 222 and query \"campaign_clicks\"")
	assert.Contains(t, h.errOut.String(), "\t\tOn field: query\n")

	require.Len(t, h.publisher.events, 1)
	ev := h.publisher.events[0]
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "222", ev.AccountID)
	assert.Equal(t, "req-3", ev.RequestID)
	assert.Equal(t, "INVALID_ARGUMENT", ev.Code)
	assert.Equal(t, 3, ev.Attempts)
	assert.False(t, ev.Structural)
	assert.Equal(t, "query", ev.Errors[0].Field)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), ev.Time)
}

func TestHarvestStructuralFailureExitCode(t *testing.T) {
	h := newHarness(t, func(account string, _ int, fn func([]ads.Row) error) error {
		if account == "333" {
			return fn([]ads.Row{{"metrics": []interface{}{"not", "an", "object"}}})
		}
		return fn([]ads.Row{row("10", "5")})
	})

	res, err := h.harvester.Run(testutil.TestContext(t), Request{
		Accounts:    []string{"111", "333"},
		Definitions: []report.Definition{testDefinition()},
	})
	require.NoError(t, err)

	assert.Equal(t, ExitStructural, res.ExitCode())
	assert.Equal(t, 1, res.Summary.StructuralFailures())
	assert.Equal(t, 1, h.searcher.callsFor("333"), "structural failures are not retried")
	assert.Empty(t, h.slept)
	assert.Contains(t, h.errOut.String(), "Unit for customer_id 333 and query \"campaign_clicks\" aborted: ")

	require.Len(t, h.publisher.events, 1)
	assert.True(t, h.publisher.events[0].Structural)
	assert.Equal(t, string(errors.ErrorTypeStructural), h.publisher.events[0].Code)
}

func TestHarvestAssemblesQueries(t *testing.T) {
	h := newHarness(t, func(string, int, func([]ads.Row) error) error { return nil })
	def := testDefinition()
	def.Query = ""
	def.OrderBy = "campaign.id"

	res, err := h.harvester.Run(testutil.TestContext(t), Request{
		Accounts:    []string{"111"},
		Definitions: []report.Definition{def},
		Query: report.QueryOptions{
			Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:            time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			CampaignStatus: "ENABLED",
			Today:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Summary.Successes, 1)

	require.Len(t, h.searcher.queries, 1)
	assert.Equal(t, "SELECT campaign.id, metrics.clicks FROM campaign "+
		"WHERE segments.date BETWEEN '2024-01-01' AND '2024-01-31' "+
		"AND campaign.status = ENABLED ORDER BY campaign.id", h.searcher.queries[0])
	assert.Empty(t, h.publisher.events)
}

func TestHarvestRejectsEmptyInput(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.harvester.Run(testutil.TestContext(t), Request{Definitions: []report.Definition{testDefinition()}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = h.harvester.Run(testutil.TestContext(t), Request{Accounts: []string{"1"}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	bad := testDefinition()
	bad.Fields = nil
	_, err = h.harvester.Run(testutil.TestContext(t), Request{Accounts: []string{"1"}, Definitions: []report.Definition{bad}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	assert.Empty(t, h.out.String(), "nothing runs before validation passes")
}

func TestHarvestWithoutForwarder(t *testing.T) {
	h := newHarness(t, func(_ string, _ int, fn func([]ads.Row) error) error {
		return fn([]ads.Row{row("1", "2")})
	})
	h.harvester.Forwarder = nil
	h.harvester.Publisher = nil

	res, err := h.harvester.Run(testutil.TestContext(t), Request{
		Accounts:    []string{"1", "2", "3"},
		Definitions: []report.Definition{testDefinition()},
	})
	require.NoError(t, err)
	assert.Len(t, res.Summary.Successes, 3)
	assert.Equal(t, ForwardStats{}, res.Forward)
	assert.Empty(t, h.sink.batches)
	assert.True(t, strings.HasPrefix(h.out.String(), "Total successful results: 3\n"))
}
