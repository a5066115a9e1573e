// Package bigquery streams records into the tables of one BigQuery dataset.
package bigquery

import (
	"context"
	"fmt"
	"time"

	bq "cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/logger"
	"github.com/ajitpratap0/adharvest/pkg/sink"
)

// Inserter is the part of *bigquery.Inserter the sink uses
type Inserter interface {
	Put(ctx context.Context, src interface{}) error
}

// Sink is a BigQuery sink. Rows are streamed, so a batch cannot be rolled
// back once a record is inserted.
type Sink struct {
	client *bq.Client
	table  func(name string) Inserter
	logger *zap.Logger
	now    func() time.Time
}

// New connects to the dataset db.Database of project db.Project
func New(ctx context.Context, db config.Database) (*Sink, error) {
	if db.Project == "" || db.Database == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "bigquery target needs a project and a dataset").
			WithDetail("database", db.String())
	}

	var opts []option.ClientOption
	if db.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(db.CredentialsFile))
	}
	client, err := bq.NewClient(ctx, db.Project, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create bigquery client").
			WithDetail("database", db.String())
	}

	dataset := client.Dataset(db.Database)
	if _, err := dataset.Metadata(ctx); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read bigquery dataset").
			WithDetail("project", db.Project).
			WithDetail("dataset", db.Database)
	}

	l := logger.With(zap.String("component", "bigquery_sink"))
	l.Info("connected to warehouse", zap.String("project", db.Project), zap.String("dataset", db.Database))

	s := NewFromInserters(func(name string) Inserter {
		return dataset.Table(name).Inserter()
	})
	s.client = client
	s.logger = l
	return s, nil
}

// NewFromInserters builds a sink over table, which returns the inserter of
// a table
func NewFromInserters(table func(name string) Inserter) *Sink {
	return &Sink{table: table, logger: zap.NewNop(), now: time.Now}
}

// Begin returns a batch streaming into the table of target. Commit has
// nothing to do.
func (s *Sink) Begin(_ context.Context, target sink.Target) (sink.Batch, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return &batch{ins: s.table(target.Table), target: target, now: s.now}, nil
}

// Close closes the client
func (s *Sink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

type batch struct {
	ins    Inserter
	target sink.Target
	now    func() time.Time
}

func (b *batch) Insert(ctx context.Context, values []interface{}) error {
	row, err := NewRow(b.target, values, b.now())
	if err != nil {
		return sink.InsertError(err, b.target, values)
	}
	if err := b.ins.Put(ctx, row); err != nil {
		return sink.InsertError(err, b.target, values)
	}
	return nil
}

func (b *batch) Commit(context.Context) error   { return nil }
func (b *batch) Rollback(context.Context) error { return nil }

// Row is one record keyed by column. It implements bigquery.ValueSaver.
type Row map[string]bq.Value

// Save implements bigquery.ValueSaver. The empty insert id leaves
// deduplication to the client, which generates one per row.
func (r Row) Save() (map[string]bq.Value, string, error) {
	return r, "", nil
}

// NewRow maps values onto the target columns and stamps the timestamp
// column with now
func NewRow(t sink.Target, values []interface{}, now time.Time) (Row, error) {
	if len(values) != len(t.Columns) {
		return nil, fmt.Errorf("got %d values for %d columns", len(values), len(t.Columns))
	}
	row := make(Row, len(values)+1)
	for i, c := range t.Columns {
		row[c] = values[i]
	}
	if t.TimestampColumn != "" {
		row[t.TimestampColumn] = now.UTC()
	}
	return row, nil
}
