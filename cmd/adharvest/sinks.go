package main

import (
	"context"
	"strings"

	"github.com/ajitpratap0/adharvest/pkg/compression"
	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/sink"
	"github.com/ajitpratap0/adharvest/pkg/sink/bigquery"
	"github.com/ajitpratap0/adharvest/pkg/sink/file"
	"github.com/ajitpratap0/adharvest/pkg/sink/mongodb"
	"github.com/ajitpratap0/adharvest/pkg/sink/postgres"
	"github.com/ajitpratap0/adharvest/pkg/sink/sqldb"
)

// openSink connects the configured sink. target is only used by the
// warehouse sink.
func openSink(ctx context.Context, s *config.Settings, target config.Database) (sink.Sink, error) {
	if s.Output.Sink == config.SinkFile {
		return openFileSink(ctx, s.Output)
	}

	var (
		out sink.Sink
		err error
	)
	switch strings.ToLower(target.Driver) {
	case "postgres", "postgresql", "":
		out, err = postgres.New(ctx, target, s.Warehouse.MaxConns)
	case "mysql", "snowflake":
		out, err = sqldb.New(ctx, target, s.Warehouse.MaxConns)
	case "mongodb", "mongo":
		out, err = mongodb.New(ctx, target)
	case "bigquery":
		out, err = bigquery.New(ctx, target)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported warehouse driver %q", target.Driver).
			WithDetail("database", target.String())
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func openFileSink(ctx context.Context, o config.OutputConfig) (sink.Sink, error) {
	algo, err := compression.ParseAlgorithm(o.Compression)
	if err != nil {
		return nil, err
	}

	var store file.Store
	switch o.Backend {
	case "s3":
		store, err = file.NewS3Store(ctx, o.Bucket, o.Dir, o.Region)
	case "gcs":
		store, err = file.NewGCSStore(ctx, o.Bucket, o.Dir, o.CredentialsFile)
	default:
		store, err = file.NewLocalStore(o.Dir)
	}
	if err != nil {
		return nil, err
	}
	return file.New(store, algo), nil
}
