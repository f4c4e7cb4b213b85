// Package mongodb stores outbox events in the same database as the ledger so
// they can share a transaction with stock commits.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	platformMongo "github.com/oms-platform/inventory-service/pkg/mongodb"
	"github.com/oms-platform/inventory-service/pkg/outbox"
)

const collectionName = "outbox_events"

// OutboxRepository implements outbox.Repository on MongoDB.
type OutboxRepository struct {
	collection *platformMongo.InstrumentedCollection
}

// NewOutboxRepository creates the repository on the outbox_events collection.
func NewOutboxRepository(client *platformMongo.InstrumentedClient) *OutboxRepository {
	return &OutboxRepository{collection: client.Collection(collectionName)}
}

// SaveAll inserts a batch of events. With a session in ctx the insert joins
// the caller's transaction.
func (r *OutboxRepository) SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(events))
	for _, event := range events {
		docs = append(docs, event)
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("save outbox events: %w", err)
	}
	return nil
}

// FindUnpublished returns undelivered events with retry budget left, oldest
// first. The retryCount $exists arm covers documents written before the field
// was introduced.
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	filter := bson.M{
		"publishedAt": bson.M{"$exists": false},
		"$or": []bson.M{
			{"retryCount": bson.M{"$lt": outbox.MaxAttempts}},
			{"retryCount": bson.M{"$exists": false}},
		},
	}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find unpublished events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*outbox.OutboxEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode outbox events: %w", err)
	}
	return events, nil
}

// MarkPublished stamps an event as delivered.
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	return r.stamp(ctx, eventID, bson.M{"$set": bson.M{"publishedAt": time.Now()}})
}

// IncrementRetry bumps the retry count and records the delivery error.
func (r *OutboxRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	return r.stamp(ctx, eventID, bson.M{
		"$inc": bson.M{"retryCount": 1},
		"$set": bson.M{"lastError": errorMsg},
	})
}

func (r *OutboxRepository) stamp(ctx context.Context, eventID string, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": eventID}, update)
	if err != nil {
		return fmt.Errorf("update outbox event: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("event not found: %s", eventID)
	}
	return nil
}

// publishedTTL is how long delivered events stay queryable before Mongo
// removes them.
const publishedTTL = 7 * 24 * time.Hour

// EnsureIndexes creates the drain index and the TTL cleanup index. The TTL
// index only touches documents with publishedAt set, so pending events are
// never expired.
func (r *OutboxRepository) EnsureIndexes(ctx context.Context) error {
	drain := mongo.IndexModel{
		Keys:    bson.D{{Key: "publishedAt", Value: 1}, {Key: "createdAt", Value: 1}},
		Options: options.Index().SetName("idx_publishedAt_createdAt"),
	}
	cleanup := mongo.IndexModel{
		Keys: bson.D{{Key: "publishedAt", Value: 1}},
		Options: options.Index().
			SetName("idx_publishedAt_ttl").
			SetExpireAfterSeconds(int32(publishedTTL / time.Second)),
	}

	for _, model := range []mongo.IndexModel{drain, cleanup} {
		if _, err := r.collection.CreateIndex(ctx, model); err != nil {
			return fmt.Errorf("create outbox index: %w", err)
		}
	}
	return nil
}
