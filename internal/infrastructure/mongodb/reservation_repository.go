package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oms-platform/inventory-service/internal/domain"
	platformMongo "github.com/oms-platform/inventory-service/pkg/mongodb"
)

// ReservationRepository reads reservations and applies the few writes that do
// not move stock. Stock-moving reservation writes ride the inventory commit.
type ReservationRepository struct {
	reservations *platformMongo.InstrumentedCollection
}

// NewReservationRepository creates a MongoDB-backed reservation repository
func NewReservationRepository(client *platformMongo.InstrumentedClient) *ReservationRepository {
	return &ReservationRepository{
		reservations: client.Collection(reservationsCollection),
	}
}

// EnsureIndexes creates the reservation indexes. status+expiresAt is the
// sweeper's scan path.
func (r *ReservationRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reservationId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_reservationId_unique"),
		},
		{
			Keys: bson.D{
				{Key: "productId", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("idx_productId_status"),
		},
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetName("idx_orderId"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "expiresAt", Value: 1},
			},
			Options: options.Index().SetName("idx_status_expiresAt"),
		},
	}

	for _, model := range indexes {
		if _, err := r.reservations.CreateIndex(ctx, model); err != nil {
			return fmt.Errorf("failed to create reservation index: %w", err)
		}
	}

	return nil
}

// FindByReservationID retrieves a reservation by its public identifier
func (r *ReservationRepository) FindByReservationID(ctx context.Context, reservationID string) (*domain.StockReservation, error) {
	var reservation domain.StockReservation
	err := r.reservations.FindOne(ctx, bson.M{"reservationId": reservationID}).Decode(&reservation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

// FindByProductID retrieves reservations for a product, newest first,
// optionally narrowed to one status
func (r *ReservationRepository) FindByProductID(ctx context.Context, productID string, status *domain.ReservationStatus) ([]*domain.StockReservation, error) {
	filter := bson.M{"productId": productID}
	if status != nil {
		filter["status"] = *status
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.reservations.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*domain.StockReservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

// FindExpired retrieves active reservations past the cutoff, oldest expiry first
func (r *ReservationRepository) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]*domain.StockReservation, error) {
	filter := bson.M{
		"status":    domain.ReservationStatusActive,
		"expiresAt": bson.M{"$lt": cutoff},
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "expiresAt", Value: 1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := r.reservations.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*domain.StockReservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode expired reservations: %w", err)
	}

	return reservations, nil
}

// Update replaces a reservation while its stored status still matches expected.
// A concurrent transition winning the race yields ErrReservationNotActive.
func (r *ReservationRepository) Update(ctx context.Context, reservation *domain.StockReservation, expected domain.ReservationStatus) error {
	filter := bson.M{
		"reservationId": reservation.ReservationID,
		"status":        expected,
	}

	result, err := r.reservations.ReplaceOne(ctx, filter, reservation)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrReservationNotActive
	}

	return nil
}
