// Package file writes every successful work unit to its own listing object,
// named "{account} - {report}.lst", on a local directory, S3 or GCS.
package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/adharvest/pkg/compression"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/logger"
	"github.com/ajitpratap0/adharvest/pkg/sink"
)

// Separator is written between two rows
var Separator = "\n" + strings.Repeat("-", 80) + "\n"

// Store persists a finished object
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Close() error
}

// Sink renders batches into objects of a Store
type Sink struct {
	store  Store
	algo   compression.Algorithm
	logger *zap.Logger
}

// New returns a file sink over store
func New(store Store, algo compression.Algorithm) *Sink {
	return &Sink{
		store:  store,
		algo:   algo,
		logger: logger.With(zap.String("component", "file_sink")),
	}
}

// ObjectName returns the object name of a target
func ObjectName(t sink.Target, algo compression.Algorithm) string {
	return fmt.Sprintf("%s - %s.lst%s", t.AccountID, t.Report, algo.Extension())
}

// Begin starts buffering an object for target
func (s *Sink) Begin(_ context.Context, target sink.Target) (sink.Batch, error) {
	b := &batch{sink: s, target: target, name: ObjectName(target, s.algo)}
	w, err := compression.NewWriter(&b.buf, s.algo, compression.Default)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor")
	}
	b.w = w
	return b, nil
}

// Close closes the store
func (s *Sink) Close() error {
	return s.store.Close()
}

type batch struct {
	sink   *Sink
	target sink.Target
	name   string
	buf    bytes.Buffer
	w      io.WriteCloser
	rows   int
	done   bool
}

func (b *batch) Insert(_ context.Context, values []interface{}) error {
	line, err := RenderRow(b.target.Columns, values)
	if err != nil {
		return sink.InsertError(err, b.target, values)
	}
	if b.rows > 0 {
		if _, err := io.WriteString(b.w, Separator); err != nil {
			return sink.InsertError(err, b.target, values)
		}
	}
	if _, err := b.w.Write(line); err != nil {
		return sink.InsertError(err, b.target, values)
	}
	b.rows++
	return nil
}

func (b *batch) Commit(ctx context.Context) error {
	if b.done {
		return errors.New(errors.ErrorTypeSink, "batch already finished")
	}
	b.done = true

	if err := b.w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to flush compressor").
			WithDetail("object", b.name)
	}
	if err := b.sink.store.Put(ctx, b.name, bytes.NewReader(b.buf.Bytes())); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to store object").
			WithDetail("object", b.name)
	}

	b.sink.logger.Info("report written",
		zap.String("object", b.name),
		zap.Int("rows", b.rows),
		zap.Int("bytes", b.buf.Len()))
	return nil
}

func (b *batch) Rollback(context.Context) error {
	b.done = true
	b.buf.Reset()
	return nil
}

// RenderRow renders one record as a JSON object whose keys follow the
// column order.
func RenderRow(columns []string, values []interface{}) ([]byte, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("got %d values for %d columns", len(values), len(columns))
	}

	var b bytes.Buffer
	b.WriteByte('{')
	for i, c := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := gojson.Marshal(c)
		if err != nil {
			return nil, err
		}
		val, err := gojson.Marshal(values[i])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
