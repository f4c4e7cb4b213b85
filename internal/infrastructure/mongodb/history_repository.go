package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oms-platform/inventory-service/internal/domain"
	platformMongo "github.com/oms-platform/inventory-service/pkg/mongodb"
)

// HistoryRepository reads the append-only audit trail. Writes only happen
// inside inventory transactions, so this repository has no insert path.
type HistoryRepository struct {
	history *platformMongo.InstrumentedCollection
}

// NewHistoryRepository creates a MongoDB-backed history repository
func NewHistoryRepository(client *platformMongo.InstrumentedClient) *HistoryRepository {
	return &HistoryRepository{
		history: client.Collection(historyCollection),
	}
}

// EnsureIndexes creates the history indexes
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "productId", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_productId_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_history_orderId"),
		},
	}

	for _, model := range indexes {
		if _, err := r.history.CreateIndex(ctx, model); err != nil {
			return fmt.Errorf("failed to create history index: %w", err)
		}
	}

	return nil
}

// FindByProductID retrieves audit entries newest first with the total count
// for the filter
func (r *HistoryRepository) FindByProductID(ctx context.Context, productID string, filter domain.HistoryFilter) ([]*domain.InventoryHistoryRecord, int64, error) {
	query := bson.M{"productId": productID}
	if filter.Action != nil {
		query["action"] = *filter.Action
	}
	if filter.Source != nil {
		query["source"] = *filter.Source
	}
	if filter.OrderID != "" {
		query["orderId"] = filter.OrderID
	}
	if filter.Since != nil || filter.Until != nil {
		timeRange := bson.M{}
		if filter.Since != nil {
			timeRange["$gte"] = *filter.Since
		}
		if filter.Until != nil {
			timeRange["$lte"] = *filter.Until
		}
		query["timestamp"] = timeRange
	}

	total, err := r.history.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count history records: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := r.history.Find(ctx, query, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find history records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*domain.InventoryHistoryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("failed to decode history records: %w", err)
	}

	return records, total, nil
}
