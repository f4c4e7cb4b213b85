package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventFactory stamps inventory domain events with a fixed source URI.
type EventFactory struct {
	source string
}

func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

func (f *EventFactory) newEvent(eventType, subject string, data interface{}) *CloudEvent {
	return &CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		DataContentType: "application/json",
		Data:            data,
	}
}

// reservationEvent carries the order id as a context attribute as well as in
// the payload, so consumers can route without decoding data.
func (f *EventFactory) reservationEvent(eventType, reservationID, orderID string, data interface{}) *CloudEvent {
	event := f.newEvent(eventType, "reservation/"+reservationID, data)
	event.OrderID = orderID
	return event
}

// CreateEventWithCorrelation builds an event of any type with correlation and
// order context attributes set.
func (f *EventFactory) CreateEventWithCorrelation(ctx context.Context, eventType, subject string, data interface{}, correlationID, orderID string) *CloudEvent {
	event := f.newEvent(eventType, subject, data)
	event.CorrelationID = correlationID
	event.OrderID = orderID
	return event
}

func (f *EventFactory) CreateInventoryInitializedEvent(ctx context.Context, productID string, quantity, lowStockThreshold int, changedBy string) *CloudEvent {
	return f.newEvent(InventoryInitialized, "inventory/"+productID, InventoryInitializedData{
		ProductID:         productID,
		Quantity:          quantity,
		LowStockThreshold: lowStockThreshold,
		ChangedBy:         changedBy,
	})
}

func (f *EventFactory) CreateInventoryAdjustedEvent(ctx context.Context, productID string, previousQuantity, newQuantity int, action, reason, source, changedBy string) *CloudEvent {
	return f.newEvent(InventoryAdjusted, "inventory/"+productID, InventoryAdjustedData{
		ProductID:        productID,
		PreviousQuantity: previousQuantity,
		NewQuantity:      newQuantity,
		QuantityChanged:  newQuantity - previousQuantity,
		Action:           action,
		Reason:           reason,
		Source:           source,
		ChangedBy:        changedBy,
	})
}

func (f *EventFactory) CreateStockReservedEvent(ctx context.Context, reservationID, productID, orderID, customerID string, quantity int, expiresAt time.Time) *CloudEvent {
	return f.reservationEvent(StockReserved, reservationID, orderID, StockReservedData{
		ReservationID: reservationID,
		ProductID:     productID,
		OrderID:       orderID,
		CustomerID:    customerID,
		Quantity:      quantity,
		ExpiresAt:     expiresAt,
	})
}

func (f *EventFactory) CreateReservationReleasedEvent(ctx context.Context, reservationID, productID, orderID string, quantity int, reason string) *CloudEvent {
	return f.reservationEvent(ReservationReleased, reservationID, orderID, ReservationReleasedData{
		ReservationID: reservationID,
		ProductID:     productID,
		OrderID:       orderID,
		Quantity:      quantity,
		Reason:        reason,
	})
}

func (f *EventFactory) CreateReservationCompletedEvent(ctx context.Context, reservationID, productID, orderID string, quantity int, reason string) *CloudEvent {
	return f.reservationEvent(ReservationCompleted, reservationID, orderID, ReservationCompletedData{
		ReservationID: reservationID,
		ProductID:     productID,
		OrderID:       orderID,
		Quantity:      quantity,
		Reason:        reason,
	})
}

func (f *EventFactory) CreateReservationExpiredEvent(ctx context.Context, reservationID, productID, orderID string, quantity int, expiredAt time.Time) *CloudEvent {
	return f.reservationEvent(ReservationExpired, reservationID, orderID, ReservationExpiredData{
		ReservationID: reservationID,
		ProductID:     productID,
		OrderID:       orderID,
		Quantity:      quantity,
		ExpiredAt:     expiredAt,
	})
}

func (f *EventFactory) CreateLowStockAlertEvent(ctx context.Context, productID string, currentQuantity, threshold int) *CloudEvent {
	return f.newEvent(LowStockAlert, "inventory/"+productID, LowStockAlertData{
		ProductID:       productID,
		CurrentQuantity: currentQuantity,
		Threshold:       threshold,
	})
}
