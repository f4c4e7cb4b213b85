package events_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms-platform/inventory-service/pkg/cloudevents"
	"github.com/oms-platform/inventory-service/pkg/contracts/asyncapi"
)

const asyncAPISpecPath = "../../../docs/asyncapi.yaml"

func newValidator(t *testing.T) *asyncapi.EventValidator {
	t.Helper()

	absPath, err := filepath.Abs(asyncAPISpecPath)
	require.NoError(t, err)
	if _, err := os.Stat(absPath); err != nil {
		t.Skipf("AsyncAPI spec not found at %s", absPath)
	}

	validator, err := asyncapi.NewEventValidator(absPath)
	require.NoError(t, err)
	return validator
}

func validateFactoryEvent(t *testing.T, validator *asyncapi.EventValidator, event *cloudevents.CloudEvent) {
	t.Helper()

	eventJSON, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, validator.ValidateEventJSON(eventJSON))
}

func TestAllEventTypesHaveSchemas(t *testing.T) {
	validator := newValidator(t)

	expected := []string{
		cloudevents.InventoryInitialized,
		cloudevents.InventoryAdjusted,
		cloudevents.StockReserved,
		cloudevents.ReservationReleased,
		cloudevents.ReservationCompleted,
		cloudevents.ReservationExpired,
		cloudevents.LowStockAlert,
	}

	for _, eventType := range expected {
		assert.True(t, validator.HasSchema(eventType), "missing schema for %s", eventType)
	}

	assert.Len(t, validator.GetSupportedEventTypes(), len(expected))
}

func TestFactoryEventsMatchSchemas(t *testing.T) {
	validator := newValidator(t)
	factory := cloudevents.NewEventFactory(cloudevents.SourceInventory)
	ctx := context.Background()

	t.Run("InventoryInitialized", func(t *testing.T) {
		event := factory.CreateInventoryInitializedEvent(ctx, "prod-001", 100, 10, "warehouse-admin")
		validateFactoryEvent(t, validator, event)
	})

	t.Run("InventoryInitialized without changedBy", func(t *testing.T) {
		event := factory.CreateInventoryInitializedEvent(ctx, "prod-001", 0, 0, "")
		validateFactoryEvent(t, validator, event)
	})

	t.Run("InventoryAdjusted", func(t *testing.T) {
		event := factory.CreateInventoryAdjustedEvent(ctx, "prod-001", 100, 85,
			"decrease", "Order fulfillment", "order", "oms")
		validateFactoryEvent(t, validator, event)
	})

	t.Run("StockReserved", func(t *testing.T) {
		event := factory.CreateStockReservedEvent(ctx, "res-0001", "prod-001",
			"ord-123456", "cust-001", 5, time.Now().UTC().Add(30*time.Minute))
		validateFactoryEvent(t, validator, event)
	})

	t.Run("ReservationReleased", func(t *testing.T) {
		event := factory.CreateReservationReleasedEvent(ctx, "res-0001", "prod-001",
			"ord-123456", 5, "Order cancelled")
		validateFactoryEvent(t, validator, event)
	})

	t.Run("ReservationCompleted", func(t *testing.T) {
		event := factory.CreateReservationCompletedEvent(ctx, "res-0001", "prod-001",
			"ord-123456", 5, "Order shipped")
		validateFactoryEvent(t, validator, event)
	})

	t.Run("ReservationExpired", func(t *testing.T) {
		event := factory.CreateReservationExpiredEvent(ctx, "res-0001", "prod-001",
			"ord-123456", 5, time.Now().UTC())
		validateFactoryEvent(t, validator, event)
	})

	t.Run("LowStockAlert", func(t *testing.T) {
		event := factory.CreateLowStockAlertEvent(ctx, "prod-001", 3, 10)
		validateFactoryEvent(t, validator, event)
	})
}

func TestEventWithCorrelationMatchesSchema(t *testing.T) {
	validator := newValidator(t)
	factory := cloudevents.NewEventFactory(cloudevents.SourceInventory)

	event := factory.CreateEventWithCorrelation(context.Background(),
		cloudevents.LowStockAlert, "inventory/prod-001",
		cloudevents.LowStockAlertData{ProductID: "prod-001", CurrentQuantity: 3, Threshold: 10},
		"corr-123", "ord-123456")

	validateFactoryEvent(t, validator, event)
}

func TestEventMissingRequiredFieldFails(t *testing.T) {
	validator := newValidator(t)

	event := asyncapi.CloudEvent{
		SpecVersion:     "1.0",
		Type:            cloudevents.LowStockAlert,
		Source:          cloudevents.SourceInventory,
		ID:              "evt-123",
		Time:            time.Now().UTC().Format(time.RFC3339),
		DataContentType: "application/json",
		Data: map[string]interface{}{
			"productId": "prod-001",
			// currentQuantity and threshold missing
		},
	}

	err := validator.ValidateEvent(event)
	require.Error(t, err)
}

func TestUnknownEventTypeRejected(t *testing.T) {
	validator := newValidator(t)

	event := asyncapi.CloudEvent{
		SpecVersion: "1.0",
		Type:        "oms.inventory.unknown",
		Source:      cloudevents.SourceInventory,
		ID:          "evt-123",
		Data:        map[string]interface{}{},
	}

	err := validator.ValidateEvent(event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema found")
}

func TestRegisterCustomSchema(t *testing.T) {
	validator := newValidator(t)

	recountSchema := []byte(`{
		"type": "object",
		"properties": {
			"countedBy": {"type": "string"}
		},
		"required": ["countedBy"]
	}`)

	require.NoError(t, validator.RegisterSchema("oms.inventory.recounted", recountSchema))
	assert.True(t, validator.HasSchema("oms.inventory.recounted"))

	event := asyncapi.CloudEvent{
		SpecVersion: "1.0",
		Type:        "oms.inventory.recounted",
		Source:      cloudevents.SourceInventory,
		ID:          "evt-recount-1",
		Data: map[string]interface{}{
			"countedBy": "warehouse-audit",
		},
	}

	require.NoError(t, validator.ValidateEvent(event))
}
