package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultLowStockThreshold is applied when a product is initialized without an explicit threshold
const DefaultLowStockThreshold = 10

// InventoryRecord is the per-product stock ledger aggregate. It is the single
// source of truth for on-hand quantity, reserved stock and the low stock flag.
// All mutations go through its methods so the reserved <= quantity invariant
// and the derived fields stay consistent.
type InventoryRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ProductID string             `bson:"productId"`

	Quantity  int `bson:"quantity"`
	Reserved  int `bson:"reserved"`
	Available int `bson:"available"`

	LowStockThreshold int  `bson:"lowStockThreshold"`
	IsLowStock        bool `bson:"isLowStock"`

	// Version backs the optimistic concurrency check on every write
	Version int64 `bson:"version"`

	CreatedAt     time.Time `bson:"createdAt"`
	LastUpdatedAt time.Time `bson:"lastUpdatedAt"`
	LastUpdatedBy string    `bson:"lastUpdatedBy,omitempty"`

	DomainEvents []DomainEvent `bson:"-"`
}

// NewInventoryRecord creates the ledger record for a product entering tracking
func NewInventoryRecord(productID string, initialQuantity, lowStockThreshold int, createdBy string) (*InventoryRecord, error) {
	if productID == "" {
		return nil, ErrInvalidProductID
	}
	if initialQuantity < 0 {
		return nil, ErrNegativeQuantity
	}
	if lowStockThreshold < 0 {
		return nil, ErrInvalidThreshold
	}

	now := time.Now()
	record := &InventoryRecord{
		ProductID:         productID,
		Quantity:          initialQuantity,
		Reserved:          0,
		LowStockThreshold: lowStockThreshold,
		Version:           1,
		CreatedAt:         now,
		LastUpdatedAt:     now,
		LastUpdatedBy:     createdBy,
		DomainEvents:      make([]DomainEvent, 0),
	}
	record.recompute()

	record.AddDomainEvent(&InventoryInitializedEvent{
		ProductID:         productID,
		Quantity:          initialQuantity,
		LowStockThreshold: lowStockThreshold,
		CreatedBy:         createdBy,
		InitializedAt:     now,
	})
	// A record can be born below its threshold
	record.emitLowStockTransition(false)

	return record, nil
}

// Adjust applies a signed quantity delta. allowNegative permits driving quantity
// below zero, but never below stock already promised to active reservations.
func (r *InventoryRecord) Adjust(delta int, reason string, source StockSource, orderID string, allowNegative bool, changedBy string) error {
	if delta == 0 {
		return ErrZeroAdjustment
	}
	if reason == "" {
		return ErrMissingReason
	}
	if !source.IsValid() {
		return ErrInvalidSource
	}

	newQuantity := r.Quantity + delta
	if newQuantity < 0 && !allowNegative {
		return ErrInsufficientStock
	}
	if r.Reserved > 0 && newQuantity < r.Reserved {
		return ErrReservedExceedsQuantity
	}

	wasLow := r.IsLowStock
	before := r.Quantity
	r.Quantity = newQuantity
	r.recompute()
	r.touch(changedBy)

	r.AddDomainEvent(&InventoryAdjustedEvent{
		ProductID:         r.ProductID,
		QuantityBefore:    before,
		QuantityAfter:     r.Quantity,
		QuantityChanged:   delta,
		Reserved:          r.Reserved,
		Available:         r.Available,
		LowStockThreshold: r.LowStockThreshold,
		IsLowStock:        r.IsLowStock,
		Reason:            reason,
		Source:            source.String(),
		OrderID:           orderID,
		AdjustedBy:        changedBy,
		AdjustedAt:        r.LastUpdatedAt,
	})
	r.emitLowStockTransition(wasLow)

	return nil
}

// SetLowStockThreshold changes the alerting threshold without touching quantities
func (r *InventoryRecord) SetLowStockThreshold(threshold int, reason, changedBy string) error {
	if threshold < 0 {
		return ErrInvalidThreshold
	}
	if reason == "" {
		reason = "Low stock threshold updated"
	}

	wasLow := r.IsLowStock
	r.LowStockThreshold = threshold
	r.recompute()
	r.touch(changedBy)

	r.AddDomainEvent(&InventoryAdjustedEvent{
		ProductID:         r.ProductID,
		QuantityBefore:    r.Quantity,
		QuantityAfter:     r.Quantity,
		QuantityChanged:   0,
		Reserved:          r.Reserved,
		Available:         r.Available,
		LowStockThreshold: r.LowStockThreshold,
		IsLowStock:        r.IsLowStock,
		Reason:            reason,
		Source:            SourceManual.String(),
		AdjustedBy:        changedBy,
		AdjustedAt:        r.LastUpdatedAt,
	})
	r.emitLowStockTransition(wasLow)

	return nil
}

// Reserve promises stock to an order. The availability check and the increment
// happen on the same in-memory state so a commit either persists both or neither.
func (r *InventoryRecord) Reserve(quantity int, changedBy string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if r.Available < quantity {
		return ErrInsufficientAvailable
	}

	r.Reserved += quantity
	r.recompute()
	r.touch(changedBy)

	return nil
}

// ReleaseReserved returns promised stock to the available pool, flooring at zero
// so a drifted reservation can never push reserved negative
func (r *InventoryRecord) ReleaseReserved(quantity int, changedBy string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	r.Reserved -= quantity
	if r.Reserved < 0 {
		r.Reserved = 0
	}
	r.recompute()
	r.touch(changedBy)

	return nil
}

// CommitReservation consumes promised stock on fulfillment: quantity and
// reserved drop together in a single mutation
func (r *InventoryRecord) CommitReservation(quantity int, changedBy string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	wasLow := r.IsLowStock
	r.Quantity -= quantity
	if r.Quantity < 0 {
		r.Quantity = 0
	}
	r.Reserved -= quantity
	if r.Reserved < 0 {
		r.Reserved = 0
	}
	r.recompute()
	r.touch(changedBy)
	r.emitLowStockTransition(wasLow)

	return nil
}

// recompute refreshes the derived fields after any mutation
func (r *InventoryRecord) recompute() {
	available := r.Quantity - r.Reserved
	if available < 0 {
		available = 0
	}
	r.Available = available
	r.IsLowStock = r.Quantity > 0 && r.Quantity <= r.LowStockThreshold
}

func (r *InventoryRecord) touch(changedBy string) {
	r.LastUpdatedAt = time.Now()
	if changedBy != "" {
		r.LastUpdatedBy = changedBy
	}
}

// emitLowStockTransition fires the alert event only on a not-low to low edge
func (r *InventoryRecord) emitLowStockTransition(wasLow bool) {
	if wasLow || !r.IsLowStock {
		return
	}
	r.AddDomainEvent(&LowStockAlertEvent{
		ProductID:         r.ProductID,
		CurrentQuantity:   r.Quantity,
		LowStockThreshold: r.LowStockThreshold,
		Available:         r.Available,
		AlertedAt:         time.Now(),
	})
}

// IsOutOfStock returns true when nothing is physically on hand
func (r *InventoryRecord) IsOutOfStock() bool {
	return r.Quantity == 0
}

// AddDomainEvent adds a domain event
func (r *InventoryRecord) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (r *InventoryRecord) ClearDomainEvents() {
	r.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (r *InventoryRecord) GetDomainEvents() []DomainEvent {
	return r.DomainEvents
}
