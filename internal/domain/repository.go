package domain

import (
	"context"
	"time"

	"github.com/oms-platform/inventory-service/pkg/outbox"
)

// ListOptions controls pagination and ordering for record listings
type ListOptions struct {
	Page         int
	PageSize     int
	SortBy       string
	SortDesc     bool
	LowStockOnly bool
}

// HistoryFilter narrows the audit trail query. Nil or zero fields are ignored.
type HistoryFilter struct {
	Action   *HistoryAction
	Source   *StockSource
	OrderID  string
	Since    *time.Time
	Until    *time.Time
	Page     int
	PageSize int
}

// ReservationUpdate is a guarded status transition: the write only applies
// while the stored reservation still has the expected status
type ReservationUpdate struct {
	Reservation    *StockReservation
	ExpectedStatus ReservationStatus
}

// InventoryCommit is the unit of work for one ledger mutation. The record
// replace, the history append, the reservation write and the outbox batch
// persist atomically or not at all.
type InventoryCommit struct {
	Record            *InventoryRecord
	History           *InventoryHistoryRecord
	NewReservation    *StockReservation
	ReservationUpdate *ReservationUpdate
	OutboxEvents      []*outbox.OutboxEvent
}

// InventoryRepository defines the port for ledger persistence
type InventoryRepository interface {
	// Create inserts a brand new record with its initial history and outbox
	// events in one transaction. A duplicate product yields ErrRecordAlreadyExists.
	Create(ctx context.Context, record *InventoryRecord, history *InventoryHistoryRecord, events []*outbox.OutboxEvent) error

	// Commit persists a mutation with an optimistic version check. A concurrent
	// writer winning the race yields ErrVersionConflict and nothing is written.
	Commit(ctx context.Context, commit *InventoryCommit) error

	// FindByProductID retrieves a record, ErrRecordNotFound when absent
	FindByProductID(ctx context.Context, productID string) (*InventoryRecord, error)

	// List retrieves records with pagination, returning the page and the total count
	List(ctx context.Context, opts ListOptions) ([]*InventoryRecord, int64, error)

	// FindLowStock retrieves low stock records ordered by quantity ascending
	FindLowStock(ctx context.Context, limit int) ([]*InventoryRecord, error)

	// ForEach streams every record through fn, stopping on the first error
	ForEach(ctx context.Context, fn func(*InventoryRecord) error) error
}

// ReservationRepository defines the port for reservation reads and
// record-independent writes. Reservation writes that move stock go through
// InventoryRepository.Commit instead.
type ReservationRepository interface {
	// FindByReservationID retrieves a reservation, ErrReservationNotFound when absent
	FindByReservationID(ctx context.Context, reservationID string) (*StockReservation, error)

	// FindByProductID retrieves reservations for a product, optionally filtered by status
	FindByProductID(ctx context.Context, productID string, status *ReservationStatus) ([]*StockReservation, error)

	// FindExpired retrieves active reservations whose expiration is before the cutoff
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]*StockReservation, error)

	// Update persists a reservation while its stored status still matches
	// expected, ErrReservationNotActive otherwise
	Update(ctx context.Context, reservation *StockReservation, expected ReservationStatus) error
}

// HistoryRepository defines the port for the append-only audit trail.
// Appends happen inside InventoryRepository transactions only.
type HistoryRepository interface {
	// FindByProductID retrieves audit entries newest first, returning the page and the total count
	FindByProductID(ctx context.Context, productID string, filter HistoryFilter) ([]*InventoryHistoryRecord, int64, error)
}
