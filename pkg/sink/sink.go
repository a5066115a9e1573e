// Package sink defines where flattened report records are written. A Sink
// opens one Batch per successful work unit; records are inserted one at a
// time so that a single bad record can be skipped, and the batch is
// committed once at the end.
package sink

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ajitpratap0/adharvest/pkg/errors"
)

// Target describes the destination of one batch
type Target struct {
	Table   string
	Columns []string
	// TimestampColumn receives the server time of the insert
	TimestampColumn string
	AccountID       string
	Report          string
}

// Sink opens batches against a destination
type Sink interface {
	Begin(ctx context.Context, target Target) (Batch, error)
	Close() error
}

// Batch is one unit of work against the destination. Insert failures leave
// the batch usable.
type Batch interface {
	Insert(ctx context.Context, values []interface{}) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Dialect is how a SQL destination spells placeholders and the current time
type Dialect struct {
	Name        string
	Placeholder func(n int) string
	Now         string
}

var (
	// Postgres uses $1.. placeholders
	Postgres = Dialect{
		Name:        "postgres",
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		Now:         "CURRENT_TIMESTAMP",
	}
	// MySQL uses ? placeholders
	MySQL = Dialect{
		Name:        "mysql",
		Placeholder: func(int) string { return "?" },
		Now:         "NOW()",
	}
	// Snowflake uses ? placeholders
	Snowflake = Dialect{
		Name:        "snowflake",
		Placeholder: func(int) string { return "?" },
		Now:         "CURRENT_TIMESTAMP()",
	}
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// Validate checks the target names. Table and column names end up in SQL
// text, so only plain identifiers are accepted.
func (t Target) Validate() error {
	if !identifier.MatchString(t.Table) {
		return errors.Newf(errors.ErrorTypeConfig, "invalid table name %q", t.Table).
			WithDetail("report", t.Report)
	}
	if len(t.Columns) == 0 {
		return errors.Newf(errors.ErrorTypeConfig, "table %s has no columns", t.Table)
	}
	for _, c := range append([]string{t.TimestampColumn}, t.Columns...) {
		if c == "" {
			continue
		}
		if !identifier.MatchString(c) || strings.Contains(c, ".") {
			return errors.Newf(errors.ErrorTypeConfig, "invalid column name %q", c).
				WithDetail("table", t.Table)
		}
	}
	return nil
}

// InsertStatement renders
//
//	INSERT INTO table (c1, .., cn, ts) VALUES (p1, .., pn, now)
//
// The timestamp column is left out when empty.
func InsertStatement(t Target, d Dialect) string {
	cols := make([]string, 0, len(t.Columns)+1)
	params := make([]string, 0, len(t.Columns)+1)
	for i, c := range t.Columns {
		cols = append(cols, c)
		params = append(params, d.Placeholder(i+1))
	}
	if t.TimestampColumn != "" {
		cols = append(cols, t.TimestampColumn)
		params = append(params, d.Now)
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Table, strings.Join(cols, ", "), strings.Join(params, ", "))
}

// InsertError wraps a failed record insert with its context
func InsertError(err error, t Target, values []interface{}) error {
	return errors.Wrap(err, errors.ErrorTypeSink, "failed to insert record").
		WithDetail("table", t.Table).
		WithDetail("report", t.Report).
		WithDetail("account_id", t.AccountID).
		WithDetail("values", values)
}
