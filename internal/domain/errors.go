package domain

import "errors"

// Inventory ledger domain errors
var (
	// ErrRecordNotFound is returned when no inventory record exists for a product
	ErrRecordNotFound = errors.New("inventory record not found")

	// ErrRecordAlreadyExists is returned when initializing a product that is already tracked
	ErrRecordAlreadyExists = errors.New("inventory record already exists for this product")

	// ErrInvalidProductID is returned when a product ID is empty
	ErrInvalidProductID = errors.New("product ID is required")

	// ErrNegativeQuantity is returned when an initial quantity is negative
	ErrNegativeQuantity = errors.New("initial quantity cannot be negative")

	// ErrInvalidQuantity is returned when a quantity must be positive but is not
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrZeroAdjustment is returned when an adjustment delta is zero
	ErrZeroAdjustment = errors.New("adjustment delta cannot be zero")

	// ErrInvalidThreshold is returned when a low stock threshold is negative
	ErrInvalidThreshold = errors.New("low stock threshold cannot be negative")

	// ErrMissingReason is returned when a required reason is missing
	ErrMissingReason = errors.New("reason is required")

	// ErrMissingOrderID is returned when a required order ID is missing
	ErrMissingOrderID = errors.New("order ID is required")

	// ErrInvalidExpiration is returned when expiration minutes are not positive
	ErrInvalidExpiration = errors.New("expiration minutes must be positive")

	// ErrInsufficientStock is returned when an adjustment would drive quantity negative
	ErrInsufficientStock = errors.New("insufficient stock for adjustment")

	// ErrInsufficientAvailable is returned when a reservation exceeds available stock
	ErrInsufficientAvailable = errors.New("insufficient available stock for reservation")

	// ErrReservedExceedsQuantity is returned when an adjustment would shrink quantity below reserved stock
	ErrReservedExceedsQuantity = errors.New("reserved stock cannot exceed total quantity")

	// ErrReservationNotFound is returned when a reservation cannot be found
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrReservationNotActive is returned when operating on a terminal-state reservation
	ErrReservationNotActive = errors.New("reservation is not active")

	// ErrVersionConflict is returned when an inventory record was modified concurrently
	ErrVersionConflict = errors.New("inventory record was modified concurrently")

	// ErrInvalidSource is returned when an unknown stock source is used
	ErrInvalidSource = errors.New("invalid stock source")

	// ErrInvalidAction is returned when an unknown history action is used
	ErrInvalidAction = errors.New("invalid history action")

	// ErrInvalidStatus is returned when an unknown reservation status is used
	ErrInvalidStatus = errors.New("invalid reservation status")

	// ErrProductNotPriced is returned when the catalog has no unit price for a product
	ErrProductNotPriced = errors.New("product has no unit price in catalog")
)
