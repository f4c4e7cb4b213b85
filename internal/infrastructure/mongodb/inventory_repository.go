package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oms-platform/inventory-service/internal/domain"
	platformMongo "github.com/oms-platform/inventory-service/pkg/mongodb"
	"github.com/oms-platform/inventory-service/pkg/outbox"
	outboxMongo "github.com/oms-platform/inventory-service/pkg/outbox/mongodb"
)

const (
	inventoryCollection    = "inventory_records"
	reservationsCollection = "stock_reservations"
	historyCollection      = "inventory_history"
)

// InventoryRepository persists the ledger in MongoDB. Every mutation runs as a
// multi-document transaction so the record, its audit entry, the reservation
// write and the outbox batch land together.
type InventoryRepository struct {
	client       *platformMongo.InstrumentedClient
	records      *platformMongo.InstrumentedCollection
	reservations *platformMongo.InstrumentedCollection
	history      *platformMongo.InstrumentedCollection
	outboxRepo   *outboxMongo.OutboxRepository
}

// NewInventoryRepository creates a MongoDB-backed inventory repository
func NewInventoryRepository(client *platformMongo.InstrumentedClient, outboxRepo *outboxMongo.OutboxRepository) *InventoryRepository {
	return &InventoryRepository{
		client:       client,
		records:      client.Collection(inventoryCollection),
		reservations: client.Collection(reservationsCollection),
		history:      client.Collection(historyCollection),
		outboxRepo:   outboxRepo,
	}
}

// EnsureIndexes creates the indexes the ledger queries depend on. The unique
// productId index is what closes the duplicate-initialize race.
func (r *InventoryRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "productId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_productId_unique"),
		},
		{
			Keys: bson.D{
				{Key: "isLowStock", Value: 1},
				{Key: "quantity", Value: 1},
			},
			Options: options.Index().SetName("idx_lowStock_quantity"),
		},
		{
			Keys:    bson.D{{Key: "lastUpdatedAt", Value: -1}},
			Options: options.Index().SetName("idx_lastUpdatedAt"),
		},
	}

	for _, model := range indexes {
		if _, err := r.records.CreateIndex(ctx, model); err != nil {
			return fmt.Errorf("failed to create inventory index: %w", err)
		}
	}

	return nil
}

// Create inserts a new record, its initial history entry and the initialization
// events in one transaction
func (r *InventoryRepository) Create(ctx context.Context, record *domain.InventoryRecord, history *domain.InventoryHistoryRecord, events []*outbox.OutboxEvent) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.records.InsertOne(sessCtx, record); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domain.ErrRecordAlreadyExists
			}
			return fmt.Errorf("failed to insert inventory record: %w", err)
		}

		if history != nil {
			if _, err := r.history.InsertOne(sessCtx, history); err != nil {
				return fmt.Errorf("failed to insert history record: %w", err)
			}
		}

		if len(events) > 0 {
			if err := r.outboxRepo.SaveAll(sessCtx, events); err != nil {
				return fmt.Errorf("failed to save outbox events: %w", err)
			}
		}

		return nil
	})

	return err
}

// Commit persists one ledger mutation with an optimistic version check. The
// filter matches the version the caller loaded; a concurrent writer bumping it
// first leaves MatchedCount at zero and nothing in the transaction applies.
func (r *InventoryRepository) Commit(ctx context.Context, commit *domain.InventoryCommit) error {
	expectedVersion := commit.Record.Version

	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// Work on a copy so a transient-error retry of this callback
		// sees the original version
		replacement := *commit.Record
		replacement.Version = expectedVersion + 1

		filter := bson.M{
			"productId": commit.Record.ProductID,
			"version":   expectedVersion,
		}
		result, err := r.records.ReplaceOne(sessCtx, filter, &replacement)
		if err != nil {
			return fmt.Errorf("failed to replace inventory record: %w", err)
		}
		if result.MatchedCount == 0 {
			return domain.ErrVersionConflict
		}

		if commit.History != nil {
			if _, err := r.history.InsertOne(sessCtx, commit.History); err != nil {
				return fmt.Errorf("failed to insert history record: %w", err)
			}
		}

		if commit.NewReservation != nil {
			if _, err := r.reservations.InsertOne(sessCtx, commit.NewReservation); err != nil {
				return fmt.Errorf("failed to insert reservation: %w", err)
			}
		}

		if commit.ReservationUpdate != nil {
			update := commit.ReservationUpdate
			resFilter := bson.M{
				"reservationId": update.Reservation.ReservationID,
				"status":        update.ExpectedStatus,
			}
			resResult, err := r.reservations.ReplaceOne(sessCtx, resFilter, update.Reservation)
			if err != nil {
				return fmt.Errorf("failed to update reservation: %w", err)
			}
			if resResult.MatchedCount == 0 {
				return domain.ErrReservationNotActive
			}
		}

		if len(commit.OutboxEvents) > 0 {
			if err := r.outboxRepo.SaveAll(sessCtx, commit.OutboxEvents); err != nil {
				return fmt.Errorf("failed to save outbox events: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	commit.Record.Version = expectedVersion + 1

	return nil
}

// FindByProductID retrieves a record by product
func (r *InventoryRepository) FindByProductID(ctx context.Context, productID string) (*domain.InventoryRecord, error) {
	var record domain.InventoryRecord
	err := r.records.FindOne(ctx, bson.M{"productId": productID}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find inventory record: %w", err)
	}

	return &record, nil
}

// List retrieves records with pagination and the total count for the filter
func (r *InventoryRepository) List(ctx context.Context, opts domain.ListOptions) ([]*domain.InventoryRecord, int64, error) {
	filter := bson.M{}
	if opts.LowStockOnly {
		filter["isLowStock"] = true
	}

	total, err := r.records.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count inventory records: %w", err)
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	sortDir := 1
	if opts.SortDesc {
		sortDir = -1
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: sanitizeSortField(opts.SortBy), Value: sortDir}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := r.records.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find inventory records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*domain.InventoryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("failed to decode inventory records: %w", err)
	}

	return records, total, nil
}

// FindLowStock retrieves low stock records, most depleted first
func (r *InventoryRepository) FindLowStock(ctx context.Context, limit int) ([]*domain.InventoryRecord, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "quantity", Value: 1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := r.records.Find(ctx, bson.M{"isLowStock": true}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to find low stock records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*domain.InventoryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode low stock records: %w", err)
	}

	return records, nil
}

// ForEach streams every record through fn without loading the full set
func (r *InventoryRepository) ForEach(ctx context.Context, fn func(*domain.InventoryRecord) error) error {
	cursor, err := r.records.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to stream inventory records: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var record domain.InventoryRecord
		if err := cursor.Decode(&record); err != nil {
			return fmt.Errorf("failed to decode inventory record: %w", err)
		}
		if err := fn(&record); err != nil {
			return err
		}
	}

	return cursor.Err()
}

// sanitizeSortField maps requested sort fields onto known columns, anything
// unknown falls back to the update timestamp
func sanitizeSortField(field string) string {
	switch field {
	case "productId", "quantity", "reserved", "available", "createdAt", "lastUpdatedAt":
		return field
	default:
		return "lastUpdatedAt"
	}
}
