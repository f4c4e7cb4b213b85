package application

import "time"

// InitializeInventoryCommand represents the command to start tracking a product
type InitializeInventoryCommand struct {
	ProductID         string
	InitialQuantity   int
	LowStockThreshold *int
	CreatedBy         string
}

// AdjustQuantityCommand represents the command to apply a signed quantity delta
type AdjustQuantityCommand struct {
	ProductID      string
	QuantityChange int
	Reason         string
	Source         string
	OrderID        string
	AllowNegative  bool
	ChangedBy      string
}

// UpdateThresholdCommand represents the command to change the low stock threshold
type UpdateThresholdCommand struct {
	ProductID         string
	LowStockThreshold int
	Reason            string
	ChangedBy         string
}

// ReserveStockCommand represents the command to reserve stock for an order
type ReserveStockCommand struct {
	ProductID         string
	OrderID           string
	CustomerID        string
	Quantity          int
	ExpirationMinutes int
	ChangedBy         string
}

// ReleaseReservationCommand represents the command to release a reservation
type ReleaseReservationCommand struct {
	ReservationID string
	Reason        string
	ChangedBy     string
}

// CompleteReservationCommand represents the command to fulfill a reservation
type CompleteReservationCommand struct {
	ReservationID string
	Reason        string
	ChangedBy     string
}

// ExtendReservationCommand represents the command to push a reservation's expiration forward
type ExtendReservationCommand struct {
	ReservationID     string
	AdditionalMinutes int
}

// GetInventoryQuery represents the query to get a record by product
type GetInventoryQuery struct {
	ProductID string
}

// ListInventoryQuery represents the query to list records with pagination
type ListInventoryQuery struct {
	Page         int
	PageSize     int
	SortBy       string
	SortDesc     bool
	LowStockOnly bool
}

// GetHistoryQuery represents the query for a product's audit trail
type GetHistoryQuery struct {
	ProductID string
	Action    string
	Source    string
	OrderID   string
	Since     *time.Time
	Until     *time.Time
	Page      int
	PageSize  int
}

// GetReservationQuery represents the query to get a reservation
type GetReservationQuery struct {
	ReservationID string
}

// ListReservationsQuery represents the query for a product's reservations
type ListReservationsQuery struct {
	ProductID string
	Status    string
}
