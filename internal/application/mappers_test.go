package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/pkg/cloudevents"
	"github.com/oms-platform/inventory-service/pkg/kafka"
)

func TestToInventoryRecordDTO(t *testing.T) {
	record, err := domain.NewInventoryRecord("PROD-001", 0, 10, "tester")
	require.NoError(t, err)

	dto := ToInventoryRecordDTO(record)
	require.NotNil(t, dto)
	assert.Equal(t, "PROD-001", dto.ProductID)
	assert.True(t, dto.IsOutOfStock)
	assert.False(t, dto.IsLowStock)
	assert.Equal(t, int64(1), dto.Version)
	assert.Equal(t, "tester", dto.LastUpdatedBy)

	assert.Nil(t, ToInventoryRecordDTO(nil))
	assert.Empty(t, ToInventoryRecordDTOs(nil))
}

func TestToReservationDTO(t *testing.T) {
	reservation, err := domain.NewStockReservation("PROD-001", "ORD-1", "CUST-1", 5, 30)
	require.NoError(t, err)

	dto := ToReservationDTO(reservation)
	require.NotNil(t, dto)
	assert.Equal(t, "active", dto.Status)
	assert.Equal(t, "CUST-1", dto.CustomerID)
	assert.Nil(t, dto.ReleasedAt)

	require.NoError(t, reservation.MarkReleased(""))
	dto = ToReservationDTO(reservation)
	assert.Equal(t, "completed", dto.Status)
	assert.Equal(t, "Manual release", dto.ReleaseReason)
	assert.NotNil(t, dto.ReleasedAt)

	assert.Nil(t, ToReservationDTO(nil))
}

func TestToHistoryRecordDTO(t *testing.T) {
	record := domain.NewHistoryRecord("PROD-001", domain.ActionDecrease,
		100, 70, 30, 0, "Order fulfilled", domain.SourceOrder, "ORD-1", "picker")

	dto := ToHistoryRecordDTO(record)
	require.NotNil(t, dto)
	assert.Equal(t, "decrease", dto.Action)
	assert.Equal(t, -30, dto.QuantityChanged)
	assert.Equal(t, 30, dto.ReservedBefore)
	assert.Equal(t, 0, dto.ReservedAfter)
	assert.Equal(t, "order", dto.Source)
	assert.Equal(t, "ORD-1", dto.OrderID)

	assert.Nil(t, ToHistoryRecordDTO(nil))
}

func TestAdjustmentAction(t *testing.T) {
	assert.Equal(t, "increase", adjustmentAction(5))
	assert.Equal(t, "decrease", adjustmentAction(-5))
	assert.Equal(t, "adjust", adjustmentAction(0))
}

func TestToOutboxEventsRoutesByAggregate(t *testing.T) {
	factory := cloudevents.NewEventFactory(cloudevents.SourceInventory)
	now := time.Now()

	events := []domain.DomainEvent{
		&domain.InventoryInitializedEvent{ProductID: "PROD-001", Quantity: 10, LowStockThreshold: 5, InitializedAt: now},
		&domain.InventoryAdjustedEvent{ProductID: "PROD-001", QuantityBefore: 10, QuantityAfter: 8, QuantityChanged: -2, Reason: "Damage", Source: "manual", AdjustedAt: now},
		&domain.StockReservedEvent{ReservationID: "RES-1", ProductID: "PROD-001", OrderID: "ORD-1", Quantity: 2, ExpiresAt: now.Add(time.Hour), ReservedAt: now},
		&domain.ReservationReleasedEvent{ReservationID: "RES-1", ProductID: "PROD-001", OrderID: "ORD-1", Quantity: 2, Reason: "Manual release", ReleasedAt: now},
		&domain.ReservationCompletedEvent{ReservationID: "RES-1", ProductID: "PROD-001", OrderID: "ORD-1", Quantity: 2, Reason: "Reservation completed", CompletedAt: now},
		&domain.ReservationExpiredEvent{ReservationID: "RES-1", ProductID: "PROD-001", OrderID: "ORD-1", Quantity: 2, ExpiredAt: now},
	}

	outboxEvents, err := toOutboxEvents(context.Background(), factory, events)
	require.NoError(t, err)
	require.Len(t, outboxEvents, 6)

	assert.Equal(t, []string{
		cloudevents.InventoryInitialized,
		cloudevents.InventoryAdjusted,
		cloudevents.StockReserved,
		cloudevents.ReservationReleased,
		cloudevents.ReservationCompleted,
		cloudevents.ReservationExpired,
	}, outboxEventTypes(outboxEvents))

	for _, event := range outboxEvents {
		assert.Equal(t, kafka.Topics.InventoryEvents, event.Topic)
		assert.NotEmpty(t, event.ID)
		assert.NotEmpty(t, event.Payload)
	}

	assert.Equal(t, "inventory", outboxEvents[0].AggregateType)
	assert.Equal(t, "PROD-001", outboxEvents[0].AggregateID)
	assert.Equal(t, "inventory", outboxEvents[1].AggregateType)
	assert.Equal(t, "reservation", outboxEvents[2].AggregateType)
	assert.Equal(t, "RES-1", outboxEvents[2].AggregateID)
}

func TestToOutboxEventsSkipsLowStockAlerts(t *testing.T) {
	factory := cloudevents.NewEventFactory(cloudevents.SourceInventory)

	events := []domain.DomainEvent{
		&domain.InventoryAdjustedEvent{ProductID: "PROD-001", QuantityBefore: 20, QuantityAfter: 5, QuantityChanged: -15, Reason: "Sale", Source: "order", AdjustedAt: time.Now()},
		&domain.LowStockAlertEvent{ProductID: "PROD-001", CurrentQuantity: 5, LowStockThreshold: 10, AlertedAt: time.Now()},
	}

	outboxEvents, err := toOutboxEvents(context.Background(), factory, events)
	require.NoError(t, err)
	// The alert travels through the notifier, never the outbox
	require.Len(t, outboxEvents, 1)
	assert.Equal(t, cloudevents.InventoryAdjusted, outboxEvents[0].EventType)
}

func TestCombineEventsPreservesOrder(t *testing.T) {
	first := &domain.InventoryAdjustedEvent{ProductID: "PROD-001"}
	second := &domain.StockReservedEvent{ReservationID: "RES-1"}
	third := &domain.ReservationReleasedEvent{ReservationID: "RES-1"}

	combined := combineEvents([]domain.DomainEvent{first}, []domain.DomainEvent{second, third})
	require.Len(t, combined, 3)
	assert.Same(t, first, combined[0])
	assert.Same(t, second, combined[1])
	assert.Same(t, third, combined[2])

	assert.Empty(t, combineEvents())
	assert.Empty(t, combineEvents(nil, nil))
}
