package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/sink"
)

// recorder is a minimal database/sql driver that keeps executed statements
// and rejects any record containing the value "bad".
type recorder struct {
	mu        sync.Mutex
	execs     [][]driver.Value
	stmts     []string
	commits   int
	rollbacks int
}

func (r *recorder) Open(string) (driver.Conn, error) { return &fakeConn{r: r}, nil }

type fakeConn struct{ r *recorder }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) { return &fakeStmt{r: c.r, query: query}, nil }
func (c *fakeConn) Close() error                              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)                 { return &fakeTx{r: c.r}, nil }

type fakeStmt struct {
	r     *recorder
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }
func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	for _, a := range args {
		if a == "bad" {
			return nil, fmt.Errorf("value too long for column")
		}
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.execs = append(s.r.execs, args)
	s.r.stmts = append(s.r.stmts, s.query)
	return driver.RowsAffected(1), nil
}
func (s *fakeStmt) Query([]driver.Value) (driver.Rows, error) { return nil, fmt.Errorf("not supported") }

type fakeTx struct{ r *recorder }

func (t *fakeTx) Commit() error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.commits++
	return nil
}

func (t *fakeTx) Rollback() error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.rollbacks++
	return nil
}

var (
	registerOnce sync.Once
	rec          = &recorder{}
)

func openFake(t *testing.T) (*Sink, *recorder) {
	t.Helper()
	registerOnce.Do(func() { sql.Register("sqldb_recorder", rec) })
	rec.mu.Lock()
	rec.execs, rec.stmts, rec.commits, rec.rollbacks = nil, nil, 0, 0
	rec.mu.Unlock()

	db, err := sql.Open("sqldb_recorder", "")
	require.NoError(t, err)
	s := NewFromDB(db, sink.MySQL)
	t.Cleanup(func() { _ = s.Close() })
	return s, rec
}

func TestBatchSkipsFailedRecord(t *testing.T) {
	s, r := openFake(t)
	ctx := context.Background()
	target := sink.Target{
		Table:           "ITZ_MKT_ADS",
		Columns:         []string{"CUSTOMER_ID", "FINAL_URL"},
		TimestampColumn: "FECHA_CREACION",
		AccountID:       "111",
		Report:          "ad_performance",
	}

	b, err := s.Begin(ctx, target)
	require.NoError(t, err)

	require.NoError(t, b.Insert(ctx, []interface{}{"111", "https://a"}))
	err = b.Insert(ctx, []interface{}{"111", "bad"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
	assert.Equal(t, "ITZ_MKT_ADS", errors.DetailsOf(err)["table"])
	require.NoError(t, b.Insert(ctx, []interface{}{"111", nil}))
	require.NoError(t, b.Commit(ctx))

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Len(t, r.execs, 2)
	assert.Nil(t, r.execs[1][1])
	assert.Equal(t, 1, r.commits)
	assert.Equal(t, "INSERT INTO ITZ_MKT_ADS (CUSTOMER_ID, FINAL_URL, FECHA_CREACION) VALUES (?, ?, NOW())", r.stmts[0])
}

func TestBatchRejectsWrongArity(t *testing.T) {
	s, _ := openFake(t)
	ctx := context.Background()

	b, err := s.Begin(ctx, sink.Target{Table: "T", Columns: []string{"A", "B"}})
	require.NoError(t, err)
	assert.Error(t, b.Insert(ctx, []interface{}{"only one"}))
	require.NoError(t, b.Rollback(ctx))
	// rolling back twice is harmless
	require.NoError(t, b.Rollback(ctx))
}

func TestBeginRejectsUnsafeNames(t *testing.T) {
	s, _ := openFake(t)

	_, err := s.Begin(context.Background(), sink.Target{Table: "T; DROP TABLE X", Columns: []string{"A"}})
	require.Error(t, err)
	_, err = s.Begin(context.Background(), sink.Target{Table: "T", Columns: []string{"A B"}})
	require.Error(t, err)
}

func TestDSN(t *testing.T) {
	driverName, d, dsn, err := DSN(config.Database{
		Driver: "mysql", Host: "db", Database: "dwh", User: "u", Password: "p",
	})
	require.NoError(t, err)
	assert.Equal(t, "mysql", driverName)
	assert.Equal(t, "mysql", d.Name)
	assert.True(t, strings.HasPrefix(dsn, "u:p@tcp(db:3306)/dwh"), dsn)

	driverName, d, dsn, err = DSN(config.Database{
		Driver: "snowflake", Account: "acme-eu", User: "u", Password: "p",
		Database: "DWH", Schema: "MKT", Warehouse: "LOAD_WH",
	})
	require.NoError(t, err)
	assert.Equal(t, "snowflake", driverName)
	assert.Equal(t, "CURRENT_TIMESTAMP()", d.Now)
	assert.Contains(t, dsn, "warehouse=LOAD_WH")

	_, _, _, err = DSN(config.Database{Driver: "oracle"})
	assert.Error(t, err)
}
