package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/metrics"
)

// InstrumentedClient decorates a Client so every operation lands in metrics,
// the query log and a client span.
type InstrumentedClient struct {
	base    *Client
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewInstrumentedClient wraps an existing client.
func NewInstrumentedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *InstrumentedClient {
	return &InstrumentedClient{
		base:    client,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("mongodb"),
	}
}

// Collection returns an instrumented handle for the named collection.
func (c *InstrumentedClient) Collection(name string) *InstrumentedCollection {
	return &InstrumentedCollection{
		coll:     c.base.Collection(name),
		name:     name,
		database: c.base.Database().Name(),
		metrics:  c.metrics,
		logger:   c.logger,
		tracer:   c.tracer,
	}
}

// Close releases the underlying connection pool.
func (c *InstrumentedClient) Close(ctx context.Context) error {
	return c.base.Close(ctx)
}

// HealthCheck pings the primary inside a span.
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	return c.span(ctx, "mongodb.ping", func(ctx context.Context) error {
		return c.base.HealthCheck(ctx)
	})
}

// WithTransaction runs fn in a session transaction inside a span.
func (c *InstrumentedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	return c.span(ctx, "mongodb.transaction", func(ctx context.Context) error {
		return c.base.WithTransaction(ctx, fn)
	})
}

func (c *InstrumentedClient) span(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, name,
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.base.Database().Name()),
		),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// InstrumentedCollection mirrors the mongo.Collection operations the
// repositories use, adding per operation timing and spans.
type InstrumentedCollection struct {
	coll     *mongo.Collection
	name     string
	database string
	metrics  *metrics.Metrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// observe times one operation. run does the driver call and reports how many
// documents it touched plus any extra span attributes; mongo.ErrNoDocuments
// counts as a successful miss, not a failure.
func (c *InstrumentedCollection) observe(ctx context.Context, op string, run func(ctx context.Context) (int64, []attribute.KeyValue, error)) error {
	ctx, span := c.tracer.Start(ctx, "mongodb."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.database),
			semconv.DBOperationKey.String(op),
			attribute.String("db.collection", c.name),
		),
	)
	defer span.End()

	start := time.Now()
	affected, attrs, err := run(ctx)
	duration := time.Since(start)

	miss := errors.Is(err, mongo.ErrNoDocuments)
	success := err == nil || miss

	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation(c.name, op, success, duration)
	}
	if c.logger != nil {
		c.logger.DatabaseQuery(ctx, c.name, op, duration, success, affected)
	}

	if err != nil && !miss {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	span.SetAttributes(append(attrs, attribute.Int64("db.rows_affected", affected))...)
	return err
}

// InsertOne inserts a single document.
func (c *InstrumentedCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	var result *mongo.InsertOneResult
	err := c.observe(ctx, "insertOne", func(ctx context.Context) (int64, []attribute.KeyValue, error) {
		var err error
		result, err = c.coll.InsertOne(ctx, document, opts...)
		if err != nil {
			return 0, nil, err
		}
		return 1, nil, nil
	})
	return result, err
}

// InsertMany inserts a batch of documents.
func (c *InstrumentedCollection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	var result *mongo.InsertManyResult
	err := c.observe(ctx, "insertMany", func(ctx context.Context) (int64, []attribute.KeyValue, error) {
		attrs := []attribute.KeyValue{attribute.Int("db.batch_size", len(documents))}
		var err error
		result, err = c.coll.InsertMany(ctx, documents, opts...)
		if err != nil {
			return 0, attrs, err
		}
		return int64(len(result.InsertedIDs)), attrs, nil
	})
	return result, err
}

// FindOne fetches a single document. The no-document case is reported through
// the returned SingleResult, in line with the driver.
func (c *InstrumentedCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	var result *mongo.SingleResult
	_ = c.observe(ctx, "findOne", func(ctx context.Context) (int64, []attribute.KeyValue, error) {
		result = c.coll.FindOne(ctx, filter, opts...)
		if err := result.Err(); err != nil {
			return 0, nil, err
		}
		return 1, nil, nil
	})
	return result
}

// Find opens a cursor. Document counts are unknown until iteration, so the
// query log records zero rows.
func (c *InstrumentedCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	var cursor *mongo.Cursor
	err := c.observe(ctx, "find", func(ctx context.Context) (int64, []attribute.KeyValue, error) {
		var err error
		cursor, err = c.coll.Find(ctx, filter, opts...)
		return 0, nil, err
	})
	return cursor, err
}

// UpdateOne applies an update to the first matching document.
func (c *InstrumentedCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	var result *mongo.UpdateResult
	err := c.observe(ctx, "updateOne", func(ctx context.Context) (int64, []attribute.KeyValue, error) {
		var err error
		result, err = c.coll.UpdateOne(ctx, filter, update, opts...)
		if err != nil {
			return 0, nil, err
		}
		attrs := []attribute.KeyValue{
			attribute.Int64("db.matched_count", result.MatchedCount),
			attribute.Int64("db.upserted_count", result.UpsertedCount),
		}
		return result.ModifiedCount, attrs, nil
	})
	return result, err
}

// ReplaceOne swaps the first matching document. The ledger commit leans on
// the returned MatchedCount for its version check.
func (c *InstrumentedCollection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	var result *mongo.UpdateResult
	err := c.observe(ctx, "replaceOne", func(ctx context.Context) (int64, []attribute.KeyValue, error) {
		var err error
		result, err = c.coll.ReplaceOne(ctx, filter, replacement, opts...)
		if err != nil {
			return 0, nil, err
		}
		attrs := []attribute.KeyValue{attribute.Int64("db.matched_count", result.MatchedCount)}
		return result.ModifiedCount, attrs, nil
	})
	return result, err
}

// DeleteMany removes every matching document.
func (c *InstrumentedCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	var result *mongo.DeleteResult
	err := c.observe(ctx, "deleteMany", func(ctx context.Context) (int64, []attribute.KeyValue, error) {
		var err error
		result, err = c.coll.DeleteMany(ctx, filter, opts...)
		if err != nil {
			return 0, nil, err
		}
		return result.DeletedCount, nil, nil
	})
	return result, err
}

// CountDocuments counts matching documents.
func (c *InstrumentedCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	var count int64
	err := c.observe(ctx, "countDocuments", func(ctx context.Context) (int64, []attribute.KeyValue, error) {
		var err error
		count, err = c.coll.CountDocuments(ctx, filter, opts...)
		if err != nil {
			return 0, nil, err
		}
		return count, []attribute.KeyValue{attribute.Int64("db.count", count)}, nil
	})
	return count, err
}

// CreateIndex builds a single index.
func (c *InstrumentedCollection) CreateIndex(ctx context.Context, model mongo.IndexModel, opts ...*options.CreateIndexesOptions) (string, error) {
	var name string
	err := c.observe(ctx, "createIndex", func(ctx context.Context) (int64, []attribute.KeyValue, error) {
		var err error
		name, err = c.coll.Indexes().CreateOne(ctx, model, opts...)
		if err != nil {
			return 0, nil, err
		}
		return 0, []attribute.KeyValue{attribute.String("db.index_name", name)}, nil
	})
	return name, err
}
