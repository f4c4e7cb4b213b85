package cloudevents

import (
	"time"
)

// EventType constants for inventory domain events
const (
	InventoryInitialized = "oms.inventory.initialized"
	InventoryAdjusted    = "oms.inventory.adjusted"
	StockReserved        = "oms.inventory.reserved"
	ReservationReleased  = "oms.inventory.released"
	ReservationCompleted = "oms.inventory.reservation-completed"
	ReservationExpired   = "oms.inventory.reservation-expired"
	LowStockAlert        = "oms.inventory.low-stock-alert"
)

// Source constants for event sources
const (
	SourceInventory = "/oms/inventory-service"
)

// CloudEvent represents a CloudEvents v1.0 compliant event
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// Business context extensions
	CorrelationID string `json:"omscorrelationid,omitempty"`
	OrderID       string `json:"omsorderid,omitempty"`
}

// InventoryInitializedData represents the data payload for InventoryInitialized event
type InventoryInitializedData struct {
	ProductID         string `json:"productId"`
	Quantity          int    `json:"quantity"`
	LowStockThreshold int    `json:"lowStockThreshold"`
	ChangedBy         string `json:"changedBy,omitempty"`
}

// InventoryAdjustedData represents the data payload for InventoryAdjusted event
type InventoryAdjustedData struct {
	ProductID        string `json:"productId"`
	PreviousQuantity int    `json:"previousQuantity"`
	NewQuantity      int    `json:"newQuantity"`
	QuantityChanged  int    `json:"quantityChanged"`
	Action           string `json:"action"` // "increase" | "decrease" | "adjust"
	Reason           string `json:"reason,omitempty"`
	Source           string `json:"source"`
	ChangedBy        string `json:"changedBy,omitempty"`
}

// StockReservedData represents the data payload for StockReserved event
type StockReservedData struct {
	ReservationID string    `json:"reservationId"`
	ProductID     string    `json:"productId"`
	OrderID       string    `json:"orderId"`
	CustomerID    string    `json:"customerId,omitempty"`
	Quantity      int       `json:"quantity"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// ReservationReleasedData represents the data payload for ReservationReleased event
type ReservationReleasedData struct {
	ReservationID string `json:"reservationId"`
	ProductID     string `json:"productId"`
	OrderID       string `json:"orderId"`
	Quantity      int    `json:"quantity"`
	Reason        string `json:"reason,omitempty"`
}

// ReservationCompletedData represents the data payload for ReservationCompleted event
type ReservationCompletedData struct {
	ReservationID string `json:"reservationId"`
	ProductID     string `json:"productId"`
	OrderID       string `json:"orderId"`
	Quantity      int    `json:"quantity"`
	Reason        string `json:"reason,omitempty"`
}

// ReservationExpiredData represents the data payload for ReservationExpired event
type ReservationExpiredData struct {
	ReservationID string    `json:"reservationId"`
	ProductID     string    `json:"productId"`
	OrderID       string    `json:"orderId"`
	Quantity      int       `json:"quantity"`
	ExpiredAt     time.Time `json:"expiredAt"`
}

// LowStockAlertData represents the data payload for LowStockAlert event
type LowStockAlertData struct {
	ProductID       string `json:"productId"`
	CurrentQuantity int    `json:"currentQuantity"`
	Threshold       int    `json:"threshold"`
}
