// Package mongodb writes records as documents, one collection per table.
package mongodb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/logger"
	"github.com/ajitpratap0/adharvest/pkg/sink"
)

// Sink is a MongoDB sink
type Sink struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
	now    func() time.Time
}

// URI builds a connection URI from db
func URI(db config.Database) string {
	if db.DSN != "" {
		return db.DSN
	}
	port := db.Port
	if port == 0 {
		port = 27017
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   db.Host + ":" + strconv.Itoa(port),
		Path:   "/",
	}
	if db.User != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	q := u.Query()
	for k, v := range db.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// New connects to db
func New(ctx context.Context, db config.Database) (*Sink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(URI(db)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to mongodb").
			WithDetail("database", db.String())
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to ping mongodb").
			WithDetail("database", db.String())
	}

	l := logger.With(zap.String("component", "mongodb_sink"))
	l.Info("connected to warehouse", zap.String("database", db.String()))

	return &Sink{client: client, db: client.Database(db.Database), logger: l, now: time.Now}, nil
}

// Begin returns a batch writing to the collection named after the table.
// Documents are written as they are inserted, so commit has nothing to do.
func (s *Sink) Begin(_ context.Context, target sink.Target) (sink.Batch, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return &batch{coll: s.db.Collection(target.Table), target: target, now: s.now}, nil
}

// Close disconnects the client
func (s *Sink) Close() error {
	return s.client.Disconnect(context.Background())
}

type batch struct {
	coll   *mongo.Collection
	target sink.Target
	now    func() time.Time
}

func (b *batch) Insert(ctx context.Context, values []interface{}) error {
	doc, err := Document(b.target, values, b.now())
	if err != nil {
		return sink.InsertError(err, b.target, values)
	}
	if _, err := b.coll.InsertOne(ctx, doc); err != nil {
		return sink.InsertError(err, b.target, values)
	}
	return nil
}

func (b *batch) Commit(context.Context) error   { return nil }
func (b *batch) Rollback(context.Context) error { return nil }

// Document keeps the column order of the table
func Document(t sink.Target, values []interface{}, now time.Time) (bson.D, error) {
	if len(values) != len(t.Columns) {
		return nil, fmt.Errorf("got %d values for %d columns", len(values), len(t.Columns))
	}
	doc := make(bson.D, 0, len(values)+1)
	for i, c := range t.Columns {
		doc = append(doc, bson.E{Key: c, Value: values[i]})
	}
	if t.TimestampColumn != "" {
		doc = append(doc, bson.E{Key: t.TimestampColumn, Value: now.UTC()})
	}
	return doc, nil
}
