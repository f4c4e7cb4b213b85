package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewInventoryRecord tests ledger record creation
func TestNewInventoryRecord(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 100, 10, "tester")

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "PROD-001", record.ProductID)
	assert.Equal(t, 100, record.Quantity)
	assert.Equal(t, 0, record.Reserved)
	assert.Equal(t, 100, record.Available)
	assert.Equal(t, 10, record.LowStockThreshold)
	assert.False(t, record.IsLowStock)
	assert.Equal(t, int64(1), record.Version)
	assert.NotZero(t, record.CreatedAt)
	assert.Equal(t, "tester", record.LastUpdatedBy)

	events := record.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "oms.inventory.initialized", events[0].EventType())
}

func TestNewInventoryRecordValidation(t *testing.T) {
	tests := []struct {
		name        string
		productID   string
		quantity    int
		threshold   int
		expectError error
	}{
		{
			name:        "empty product ID",
			productID:   "",
			quantity:    10,
			threshold:   5,
			expectError: ErrInvalidProductID,
		},
		{
			name:        "negative initial quantity",
			productID:   "PROD-001",
			quantity:    -1,
			threshold:   5,
			expectError: ErrNegativeQuantity,
		},
		{
			name:        "negative threshold",
			productID:   "PROD-001",
			quantity:    10,
			threshold:   -1,
			expectError: ErrInvalidThreshold,
		},
		{
			name:        "zero quantity is valid",
			productID:   "PROD-001",
			quantity:    0,
			threshold:   5,
			expectError: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := NewInventoryRecord(tt.productID, tt.quantity, tt.threshold, "tester")

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, record)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, record)
			}
		})
	}
}

func TestNewInventoryRecordBornLowStock(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 5, 10, "tester")

	require.NoError(t, err)
	assert.True(t, record.IsLowStock)

	events := record.GetDomainEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "oms.inventory.initialized", events[0].EventType())
	assert.Equal(t, "oms.inventory.low-stock-alert", events[1].EventType())
}

func TestNewInventoryRecordZeroQuantityNotLowStock(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 0, 10, "tester")

	require.NoError(t, err)
	assert.False(t, record.IsLowStock)
	assert.True(t, record.IsOutOfStock())
	require.Len(t, record.GetDomainEvents(), 1)
}

// TestInventoryRecordAdjust tests signed quantity adjustments
func TestInventoryRecordAdjust(t *testing.T) {
	tests := []struct {
		name          string
		setupRecord   func() *InventoryRecord
		delta         int
		allowNegative bool
		expectError   error
		wantQuantity  int
		wantAvailable int
	}{
		{
			name: "increase stock",
			setupRecord: func() *InventoryRecord {
				record, _ := NewInventoryRecord("PROD-001", 100, 10, "tester")
				return record
			},
			delta:         50,
			expectError:   nil,
			wantQuantity:  150,
			wantAvailable: 150,
		},
		{
			name: "decrease stock",
			setupRecord: func() *InventoryRecord {
				record, _ := NewInventoryRecord("PROD-001", 100, 10, "tester")
				return record
			},
			delta:         -30,
			expectError:   nil,
			wantQuantity:  70,
			wantAvailable: 70,
		},
		{
			name: "decrease below zero without override",
			setupRecord: func() *InventoryRecord {
				record, _ := NewInventoryRecord("PROD-001", 70, 10, "tester")
				return record
			},
			delta:       -200,
			expectError: ErrInsufficientStock,
		},
		{
			name: "decrease below zero with override",
			setupRecord: func() *InventoryRecord {
				record, _ := NewInventoryRecord("PROD-001", 70, 10, "tester")
				return record
			},
			delta:         -200,
			allowNegative: true,
			expectError:   nil,
			wantQuantity:  -130,
			wantAvailable: 0,
		},
		{
			name: "cannot shrink below reserved stock",
			setupRecord: func() *InventoryRecord {
				record, _ := NewInventoryRecord("PROD-001", 100, 10, "tester")
				require.NoError(t, record.Reserve(40, "tester"))
				return record
			},
			delta:       -70,
			expectError: ErrReservedExceedsQuantity,
		},
		{
			name: "override never breaks reservation promises",
			setupRecord: func() *InventoryRecord {
				record, _ := NewInventoryRecord("PROD-001", 100, 10, "tester")
				require.NoError(t, record.Reserve(40, "tester"))
				return record
			},
			delta:         -200,
			allowNegative: true,
			expectError:   ErrReservedExceedsQuantity,
		},
		{
			name: "shrink exactly to reserved",
			setupRecord: func() *InventoryRecord {
				record, _ := NewInventoryRecord("PROD-001", 100, 10, "tester")
				require.NoError(t, record.Reserve(40, "tester"))
				return record
			},
			delta:         -60,
			expectError:   nil,
			wantQuantity:  40,
			wantAvailable: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := tt.setupRecord()
			quantityBefore := record.Quantity
			reservedBefore := record.Reserved

			err := record.Adjust(tt.delta, "cycle count", SourceAdjustment, "", tt.allowNegative, "tester")

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Equal(t, quantityBefore, record.Quantity)
				assert.Equal(t, reservedBefore, record.Reserved)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantQuantity, record.Quantity)
				assert.Equal(t, reservedBefore, record.Reserved)
				assert.Equal(t, tt.wantAvailable, record.Available)
			}
		})
	}
}

func TestInventoryRecordAdjustArguments(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 100, 10, "tester")
	require.NoError(t, err)

	assert.ErrorIs(t, record.Adjust(0, "reason", SourceManual, "", false, "tester"), ErrZeroAdjustment)
	assert.ErrorIs(t, record.Adjust(5, "", SourceManual, "", false, "tester"), ErrMissingReason)
	assert.ErrorIs(t, record.Adjust(5, "reason", StockSource("bogus"), "", false, "tester"), ErrInvalidSource)
	assert.Equal(t, 100, record.Quantity)
}

func TestInventoryRecordAdjustEmitsEvents(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 100, 10, "tester")
	require.NoError(t, err)
	record.ClearDomainEvents()

	require.NoError(t, record.Adjust(-60, "damaged in transit", SourceAdjustment, "", false, "ops"))

	events := record.GetDomainEvents()
	require.Len(t, events, 1)
	adjusted, ok := events[0].(*InventoryAdjustedEvent)
	require.True(t, ok)
	assert.Equal(t, 100, adjusted.QuantityBefore)
	assert.Equal(t, 40, adjusted.QuantityAfter)
	assert.Equal(t, -60, adjusted.QuantityChanged)
	assert.Equal(t, "damaged in transit", adjusted.Reason)
	assert.Equal(t, "adjustment", adjusted.Source)
}

func TestInventoryRecordLowStockTransition(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 100, 10, "tester")
	require.NoError(t, err)
	record.ClearDomainEvents()

	// Crossing the threshold fires the alert
	require.NoError(t, record.Adjust(-92, "shrinkage", SourceAdjustment, "", false, "tester"))
	require.True(t, record.IsLowStock)
	events := record.GetDomainEvents()
	require.Len(t, events, 2)
	alert, ok := events[1].(*LowStockAlertEvent)
	require.True(t, ok)
	assert.Equal(t, 8, alert.CurrentQuantity)
	assert.Equal(t, 10, alert.LowStockThreshold)

	// Already low, a further drop does not re-alert
	record.ClearDomainEvents()
	require.NoError(t, record.Adjust(-2, "shrinkage", SourceAdjustment, "", false, "tester"))
	require.True(t, record.IsLowStock)
	require.Len(t, record.GetDomainEvents(), 1)

	// Recovering above the threshold re-arms the alert
	record.ClearDomainEvents()
	require.NoError(t, record.Adjust(100, "restock", SourceReturn, "", false, "tester"))
	require.False(t, record.IsLowStock)
	require.NoError(t, record.Adjust(-100, "shrinkage", SourceAdjustment, "", false, "tester"))
	require.True(t, record.IsLowStock)
	require.Len(t, record.GetDomainEvents(), 3)
}

// TestInventoryRecordSetLowStockThreshold tests threshold changes
func TestInventoryRecordSetLowStockThreshold(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 50, 10, "tester")
	require.NoError(t, err)
	record.ClearDomainEvents()

	assert.ErrorIs(t, record.SetLowStockThreshold(-1, "", "tester"), ErrInvalidThreshold)

	// Raising the threshold over the current quantity flips the flag
	require.NoError(t, record.SetLowStockThreshold(60, "", "tester"))
	assert.Equal(t, 60, record.LowStockThreshold)
	assert.True(t, record.IsLowStock)
	assert.Equal(t, 50, record.Quantity)

	events := record.GetDomainEvents()
	require.Len(t, events, 2)
	adjusted, ok := events[0].(*InventoryAdjustedEvent)
	require.True(t, ok)
	assert.Equal(t, 0, adjusted.QuantityChanged)
	assert.Equal(t, 60, adjusted.LowStockThreshold)
	assert.Equal(t, "oms.inventory.low-stock-alert", events[1].EventType())
}

// TestInventoryRecordReserve tests promising stock to orders
func TestInventoryRecordReserve(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 100, 10, "tester")
	require.NoError(t, err)

	require.NoError(t, record.Reserve(30, "order-svc"))
	assert.Equal(t, 30, record.Reserved)
	assert.Equal(t, 70, record.Available)
	assert.Equal(t, 100, record.Quantity)

	require.NoError(t, record.Reserve(50, "order-svc"))
	assert.Equal(t, 80, record.Reserved)
	assert.Equal(t, 20, record.Available)

	// Only 20 available now
	assert.ErrorIs(t, record.Reserve(30, "order-svc"), ErrInsufficientAvailable)
	assert.Equal(t, 80, record.Reserved)

	assert.ErrorIs(t, record.Reserve(0, "order-svc"), ErrInvalidQuantity)
	assert.ErrorIs(t, record.Reserve(-5, "order-svc"), ErrInvalidQuantity)
}

func TestInventoryRecordReserveAllAvailable(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 100, 10, "tester")
	require.NoError(t, err)

	require.NoError(t, record.Reserve(100, "order-svc"))
	assert.Equal(t, 100, record.Reserved)
	assert.Equal(t, 0, record.Available)
	assert.False(t, record.IsLowStock)
	assert.ErrorIs(t, record.Reserve(1, "order-svc"), ErrInsufficientAvailable)
}

// TestInventoryRecordReleaseReserved tests returning promised stock
func TestInventoryRecordReleaseReserved(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 100, 10, "tester")
	require.NoError(t, err)
	require.NoError(t, record.Reserve(30, "order-svc"))

	require.NoError(t, record.ReleaseReserved(30, "order-svc"))
	assert.Equal(t, 0, record.Reserved)
	assert.Equal(t, 100, record.Available)
	assert.Equal(t, 100, record.Quantity)

	assert.ErrorIs(t, record.ReleaseReserved(0, "order-svc"), ErrInvalidQuantity)
}

func TestInventoryRecordReleaseReservedFloorsAtZero(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 100, 10, "tester")
	require.NoError(t, err)
	require.NoError(t, record.Reserve(10, "order-svc"))

	// A drifted reservation releasing more than reserved floors instead of going negative
	require.NoError(t, record.ReleaseReserved(25, "order-svc"))
	assert.Equal(t, 0, record.Reserved)
	assert.Equal(t, 100, record.Available)
}

// TestInventoryRecordCommitReservation tests fulfillment consuming stock
func TestInventoryRecordCommitReservation(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 100, 10, "tester")
	require.NoError(t, err)
	require.NoError(t, record.Reserve(80, "order-svc"))

	require.NoError(t, record.CommitReservation(30, "order-svc"))
	assert.Equal(t, 70, record.Quantity)
	assert.Equal(t, 50, record.Reserved)
	assert.Equal(t, 20, record.Available)

	assert.ErrorIs(t, record.CommitReservation(0, "order-svc"), ErrInvalidQuantity)
}

func TestInventoryRecordCommitReservationLowStockTransition(t *testing.T) {
	record, err := NewInventoryRecord("PROD-001", 40, 10, "tester")
	require.NoError(t, err)
	require.NoError(t, record.Reserve(35, "order-svc"))
	record.ClearDomainEvents()

	require.NoError(t, record.CommitReservation(35, "order-svc"))
	assert.Equal(t, 5, record.Quantity)
	assert.Equal(t, 0, record.Reserved)
	assert.True(t, record.IsLowStock)

	events := record.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "oms.inventory.low-stock-alert", events[0].EventType())
}
