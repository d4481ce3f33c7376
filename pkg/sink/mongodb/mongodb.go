// Package mongodb inserts rows as documents into a MongoDB collection.
package mongodb

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

func init() {
	sink.Register("mongodb", New)
}

// Sink inserts documents.
type Sink struct {
	client     *mongo.Client
	collection *mongo.Collection
	columns    []schema.ColumnSpec
	batch      *sink.Batcher
	logger     *zap.Logger
}

// New creates a MongoDB sink. dsn is the connection URI and table is
// "database.collection".
func New(ctx context.Context, p sink.Params) (sink.Sink, error) {
	if err := sink.Require("mongodb", "dsn", p.Config.DSN, "table", p.Config.Table); err != nil {
		return nil, err
	}
	db, coll, ok := strings.Cut(p.Config.Table, ".")
	if !ok || db == "" || coll == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "mongodb sink: table must be database.collection, got %q", p.Config.Table)
	}

	opts := options.Client().
		ApplyURI(p.Config.DSN).
		SetConnectTimeout(30 * time.Second).
		SetAppName("jira-extract")
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create MongoDB client")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, sink.SinkError(err, "MongoDB ping failed")
	}

	s := &Sink{
		client:     client,
		collection: client.Database(db).Collection(coll),
		columns:    p.Columns,
		logger:     p.Logger,
	}
	s.batch = &sink.Batcher{Size: p.Config.Batch(), Flush: s.insert}
	return s, nil
}

// Document converts a row to a BSON document in column order. Null values
// are kept as explicit nulls.
func Document(columns []schema.ColumnSpec, row schema.Row) bson.D {
	doc := make(bson.D, 0, row.Len())
	for i := 0; i < row.Len(); i++ {
		doc = append(doc, bson.E{Key: columns[i].Name, Value: row.Value(i)})
	}
	return doc
}

// Append implements core.RecordSink.
func (s *Sink) Append(ctx context.Context, row schema.Row) error {
	return s.batch.Add(ctx, row)
}

func (s *Sink) insert(ctx context.Context, rows []schema.Row) error {
	docs := make([]interface{}, len(rows))
	for i, row := range rows {
		docs[i] = Document(s.columns, row)
	}
	res, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return sink.SinkError(err, "InsertMany failed")
	}
	s.logger.Debug("documents inserted", zap.Int("count", len(res.InsertedIDs)))
	return nil
}

// Finish implements core.RecordSink.
func (s *Sink) Finish(ctx context.Context) error {
	return s.batch.Drain(ctx)
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
