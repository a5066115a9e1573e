// Package sqldb writes records through database/sql. It serves the MySQL
// and Snowflake targets.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/logger"
	"github.com/ajitpratap0/adharvest/pkg/sink"
)

// Sink is a database/sql backed sink
type Sink struct {
	db      *sql.DB
	dialect sink.Dialect
	logger  *zap.Logger
}

// DSN returns the driver name and data source name for db
func DSN(db config.Database) (string, sink.Dialect, string, error) {
	switch db.Driver {
	case "mysql":
		if db.DSN != "" {
			return "mysql", sink.MySQL, db.DSN, nil
		}
		port := db.Port
		if port == 0 {
			port = 3306
		}
		cfg := mysql.NewConfig()
		cfg.User = db.User
		cfg.Passwd = db.Password
		cfg.Net = "tcp"
		cfg.Addr = db.Host + ":" + strconv.Itoa(port)
		cfg.DBName = db.Database
		cfg.ParseTime = true
		if len(db.Params) > 0 {
			cfg.Params = db.Params
		}
		return "mysql", sink.MySQL, cfg.FormatDSN(), nil

	case "snowflake":
		if db.DSN != "" {
			return "snowflake", sink.Snowflake, db.DSN, nil
		}
		cfg := &gosnowflake.Config{
			Account:   db.Account,
			User:      db.User,
			Password:  db.Password,
			Database:  db.Database,
			Schema:    db.Schema,
			Warehouse: db.Warehouse,
			Host:      db.Host,
			Port:      db.Port,
		}
		if len(db.Params) > 0 {
			cfg.Params = make(map[string]*string, len(db.Params))
			for k, v := range db.Params {
				v := v
				cfg.Params[k] = &v
			}
		}
		dsn, err := gosnowflake.DSN(cfg)
		if err != nil {
			return "", sink.Dialect{}, "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid snowflake settings")
		}
		return "snowflake", sink.Snowflake, dsn, nil

	default:
		return "", sink.Dialect{}, "", errors.Newf(errors.ErrorTypeConfig, "driver %q is not served by database/sql", db.Driver)
	}
}

// New opens and pings db
func New(ctx context.Context, db config.Database, maxConns int) (*Sink, error) {
	driver, dialect, dsn, err := DSN(db)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database").
			WithDetail("database", db.String())
	}
	if maxConns > 0 {
		conn.SetMaxOpenConns(maxConns)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to database").
			WithDetail("database", db.String())
	}

	s := NewFromDB(conn, dialect)
	s.logger.Info("connected to warehouse", zap.String("database", db.String()))
	return s, nil
}

// NewFromDB wraps an open handle
func NewFromDB(db *sql.DB, dialect sink.Dialect) *Sink {
	return &Sink{
		db:      db,
		dialect: dialect,
		logger:  logger.With(zap.String("component", dialect.Name+"_sink")),
	}
}

// Begin opens a transaction for target
func (s *Sink) Begin(ctx context.Context, target sink.Target) (sink.Batch, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction").
			WithDetail("table", target.Table)
	}
	return &batch{tx: tx, target: target, stmt: sink.InsertStatement(target, s.dialect)}, nil
}

// Close closes the handle
func (s *Sink) Close() error {
	return s.db.Close()
}

type batch struct {
	tx     *sql.Tx
	target sink.Target
	stmt   string
}

func (b *batch) Insert(ctx context.Context, values []interface{}) error {
	if len(values) != len(b.target.Columns) {
		return sink.InsertError(
			fmt.Errorf("got %d values for %d columns", len(values), len(b.target.Columns)),
			b.target, values)
	}
	if _, err := b.tx.ExecContext(ctx, b.stmt, values...); err != nil {
		return sink.InsertError(err, b.target, values)
	}
	return nil
}

func (b *batch) Commit(context.Context) error {
	if err := b.tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to commit batch").
			WithDetail("table", b.target.Table)
	}
	return nil
}

func (b *batch) Rollback(context.Context) error {
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
