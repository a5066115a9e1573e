// Package postgres writes records to PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/logger"
	"github.com/ajitpratap0/adharvest/pkg/sink"
)

// Sink is a PostgreSQL sink
type Sink struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// ConnString builds a connection URL from db
func ConnString(db config.Database) string {
	if db.DSN != "" {
		return db.DSN
	}

	port := db.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.User, db.Password),
		Host:   db.Host + ":" + strconv.Itoa(port),
		Path:   "/" + db.Database,
	}
	q := u.Query()
	for k, v := range db.Params {
		q.Set(k, v)
	}
	if db.Schema != "" && q.Get("search_path") == "" {
		q.Set("search_path", db.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// New connects to db with at most maxConns connections
func New(ctx context.Context, db config.Database, maxConns int) (*Sink, error) {
	poolConfig, err := pgxpool.ParseConfig(ConnString(db))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid postgres connection settings").
			WithDetail("database", db.String())
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns) //nolint:gosec // bounded by configuration
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create postgres pool").
			WithDetail("database", db.String())
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to postgres").
			WithDetail("database", db.String())
	}

	l := logger.With(zap.String("component", "postgres_sink"))
	l.Info("connected to warehouse",
		zap.String("database", db.String()),
		zap.Int32("max_connections", poolConfig.MaxConns))

	return &Sink{pool: pool, logger: l}, nil
}

// Begin opens a transaction for target
func (s *Sink) Begin(ctx context.Context, target sink.Target) (sink.Batch, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction").
			WithDetail("table", target.Table)
	}
	return &batch{tx: tx, target: target, stmt: sink.InsertStatement(target, sink.Postgres)}, nil
}

// Close closes the pool
func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}

// batch runs every insert inside its own savepoint. A failed statement
// aborts a PostgreSQL transaction, so without the savepoint one bad record
// would discard the whole batch.
type batch struct {
	tx     pgx.Tx
	target sink.Target
	stmt   string
}

func (b *batch) Insert(ctx context.Context, values []interface{}) error {
	if len(values) != len(b.target.Columns) {
		return sink.InsertError(
			fmt.Errorf("got %d values for %d columns", len(values), len(b.target.Columns)),
			b.target, values)
	}

	sp, err := b.tx.Begin(ctx)
	if err != nil {
		return sink.InsertError(err, b.target, values)
	}
	if _, err := sp.Exec(ctx, b.stmt, values...); err != nil {
		_ = sp.Rollback(ctx)
		return sink.InsertError(err, b.target, values)
	}
	if err := sp.Commit(ctx); err != nil {
		return sink.InsertError(err, b.target, values)
	}
	return nil
}

func (b *batch) Commit(ctx context.Context) error {
	if err := b.tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to commit batch").
			WithDetail("table", b.target.Table)
	}
	return nil
}

func (b *batch) Rollback(ctx context.Context) error {
	err := b.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
