package domain

import "time"

// DomainEvent is implemented by everything the ledger publishes. EventType
// doubles as the CloudEvents type attribute.
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// InventoryInitializedEvent is published when a product enters inventory tracking
type InventoryInitializedEvent struct {
	ProductID         string    `json:"productId"`
	Quantity          int       `json:"quantity"`
	LowStockThreshold int       `json:"lowStockThreshold"`
	CreatedBy         string    `json:"createdBy,omitempty"`
	InitializedAt     time.Time `json:"initializedAt"`
}

func (e *InventoryInitializedEvent) EventType() string     { return "oms.inventory.initialized" }
func (e *InventoryInitializedEvent) OccurredAt() time.Time { return e.InitializedAt }

// InventoryAdjustedEvent is published when quantity or threshold changes on a record
type InventoryAdjustedEvent struct {
	ProductID         string    `json:"productId"`
	QuantityBefore    int       `json:"quantityBefore"`
	QuantityAfter     int       `json:"quantityAfter"`
	QuantityChanged   int       `json:"quantityChanged"`
	Reserved          int       `json:"reserved"`
	Available         int       `json:"available"`
	LowStockThreshold int       `json:"lowStockThreshold"`
	IsLowStock        bool      `json:"isLowStock"`
	Reason            string    `json:"reason"`
	Source            string    `json:"source"`
	OrderID           string    `json:"orderId,omitempty"`
	AdjustedBy        string    `json:"adjustedBy,omitempty"`
	AdjustedAt        time.Time `json:"adjustedAt"`
}

func (e *InventoryAdjustedEvent) EventType() string     { return "oms.inventory.adjusted" }
func (e *InventoryAdjustedEvent) OccurredAt() time.Time { return e.AdjustedAt }

// StockReservedEvent is published when stock is reserved for an order
type StockReservedEvent struct {
	ReservationID string    `json:"reservationId"`
	ProductID     string    `json:"productId"`
	OrderID       string    `json:"orderId"`
	CustomerID    string    `json:"customerId,omitempty"`
	Quantity      int       `json:"quantity"`
	ExpiresAt     time.Time `json:"expiresAt"`
	ReservedAt    time.Time `json:"reservedAt"`
}

func (e *StockReservedEvent) EventType() string     { return "oms.inventory.reserved" }
func (e *StockReservedEvent) OccurredAt() time.Time { return e.ReservedAt }

// ReservationReleasedEvent is published when reserved stock is returned to the pool
type ReservationReleasedEvent struct {
	ReservationID string    `json:"reservationId"`
	ProductID     string    `json:"productId"`
	OrderID       string    `json:"orderId"`
	Quantity      int       `json:"quantity"`
	Reason        string    `json:"reason"`
	ReleasedAt    time.Time `json:"releasedAt"`
}

func (e *ReservationReleasedEvent) EventType() string     { return "oms.inventory.released" }
func (e *ReservationReleasedEvent) OccurredAt() time.Time { return e.ReleasedAt }

// ReservationCompletedEvent is published when a reservation is fulfilled and stock leaves inventory
type ReservationCompletedEvent struct {
	ReservationID string    `json:"reservationId"`
	ProductID     string    `json:"productId"`
	OrderID       string    `json:"orderId"`
	Quantity      int       `json:"quantity"`
	Reason        string    `json:"reason"`
	CompletedAt   time.Time `json:"completedAt"`
}

func (e *ReservationCompletedEvent) EventType() string     { return "oms.inventory.reservation-completed" }
func (e *ReservationCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// ReservationExpiredEvent is published when the sweeper releases an expired reservation
type ReservationExpiredEvent struct {
	ReservationID string    `json:"reservationId"`
	ProductID     string    `json:"productId"`
	OrderID       string    `json:"orderId"`
	Quantity      int       `json:"quantity"`
	ExpiredAt     time.Time `json:"expiredAt"`
}

func (e *ReservationExpiredEvent) EventType() string     { return "oms.inventory.reservation-expired" }
func (e *ReservationExpiredEvent) OccurredAt() time.Time { return e.ExpiredAt }

// LowStockAlertEvent is published when a record transitions into the low stock state
type LowStockAlertEvent struct {
	ProductID         string    `json:"productId"`
	CurrentQuantity   int       `json:"currentQuantity"`
	LowStockThreshold int       `json:"lowStockThreshold"`
	Available         int       `json:"available"`
	AlertedAt         time.Time `json:"alertedAt"`
}

func (e *LowStockAlertEvent) EventType() string     { return "oms.inventory.low-stock-alert" }
func (e *LowStockAlertEvent) OccurredAt() time.Time { return e.AlertedAt }
