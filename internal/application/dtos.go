package application

import "time"

// InventoryRecordDTO represents an inventory record in responses
type InventoryRecordDTO struct {
	ProductID         string    `json:"productId"`
	Quantity          int       `json:"quantity"`
	Reserved          int       `json:"reserved"`
	Available         int       `json:"available"`
	LowStockThreshold int       `json:"lowStockThreshold"`
	IsLowStock        bool      `json:"isLowStock"`
	IsOutOfStock      bool      `json:"isOutOfStock"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"createdAt"`
	LastUpdatedAt     time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy     string    `json:"lastUpdatedBy,omitempty"`
}

// ReservationDTO represents a stock reservation in responses
type ReservationDTO struct {
	ReservationID string     `json:"reservationId"`
	ProductID     string     `json:"productId"`
	OrderID       string     `json:"orderId"`
	CustomerID    string     `json:"customerId,omitempty"`
	Quantity      int        `json:"quantity"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	ReleasedAt    *time.Time `json:"releasedAt,omitempty"`
	ReleaseReason string     `json:"releaseReason,omitempty"`
}

// HistoryRecordDTO represents one audit trail entry in responses
type HistoryRecordDTO struct {
	HistoryID       string    `json:"historyId"`
	ProductID       string    `json:"productId"`
	Action          string    `json:"action"`
	QuantityBefore  int       `json:"quantityBefore"`
	QuantityAfter   int       `json:"quantityAfter"`
	QuantityChanged int       `json:"quantityChanged"`
	ReservedBefore  int       `json:"reservedBefore"`
	ReservedAfter   int       `json:"reservedAfter"`
	Reason          string    `json:"reason"`
	Source          string    `json:"source"`
	OrderID         string    `json:"orderId,omitempty"`
	ChangedBy       string    `json:"changedBy,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// MoneyDTO represents a monetary value in responses, amount in cents
type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// LowStockProductDTO represents one product in the depletion ranking
type LowStockProductDTO struct {
	ProductID         string `json:"productId"`
	Quantity          int    `json:"quantity"`
	Available         int    `json:"available"`
	LowStockThreshold int    `json:"lowStockThreshold"`
}

// InventoryAnalyticsDTO represents the inventory-wide rollup
type InventoryAnalyticsDTO struct {
	TotalProducts        int                  `json:"totalProducts"`
	TotalQuantity        int                  `json:"totalQuantity"`
	TotalReserved        int                  `json:"totalReserved"`
	TotalAvailable       int                  `json:"totalAvailable"`
	LowStockCount        int                  `json:"lowStockCount"`
	LowStockPercentage   float64              `json:"lowStockPercentage"`
	OutOfStockCount      int                  `json:"outOfStockCount"`
	OutOfStockPercentage float64              `json:"outOfStockPercentage"`
	TotalValuation       *MoneyDTO            `json:"totalValuation,omitempty"`
	UnpricedProducts     int                  `json:"unpricedProducts"`
	MostDepleted         []LowStockProductDTO `json:"mostDepleted"`
	GeneratedAt          time.Time            `json:"generatedAt"`
}
