package application

import (
	"context"
	"fmt"

	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/pkg/cloudevents"
	"github.com/oms-platform/inventory-service/pkg/kafka"
	"github.com/oms-platform/inventory-service/pkg/outbox"
)

// Aggregate types recorded on outbox events
const (
	aggregateTypeInventory   = "inventory"
	aggregateTypeReservation = "reservation"
)

// ToInventoryRecordDTO converts a domain InventoryRecord to InventoryRecordDTO
func ToInventoryRecordDTO(record *domain.InventoryRecord) *InventoryRecordDTO {
	if record == nil {
		return nil
	}

	return &InventoryRecordDTO{
		ProductID:         record.ProductID,
		Quantity:          record.Quantity,
		Reserved:          record.Reserved,
		Available:         record.Available,
		LowStockThreshold: record.LowStockThreshold,
		IsLowStock:        record.IsLowStock,
		IsOutOfStock:      record.IsOutOfStock(),
		Version:           record.Version,
		CreatedAt:         record.CreatedAt,
		LastUpdatedAt:     record.LastUpdatedAt,
		LastUpdatedBy:     record.LastUpdatedBy,
	}
}

// ToInventoryRecordDTOs converts a slice of domain records to DTOs
func ToInventoryRecordDTOs(records []*domain.InventoryRecord) []InventoryRecordDTO {
	dtos := make([]InventoryRecordDTO, 0, len(records))
	for _, record := range records {
		if dto := ToInventoryRecordDTO(record); dto != nil {
			dtos = append(dtos, *dto)
		}
	}
	return dtos
}

// ToReservationDTO converts a domain StockReservation to ReservationDTO
func ToReservationDTO(reservation *domain.StockReservation) *ReservationDTO {
	if reservation == nil {
		return nil
	}

	return &ReservationDTO{
		ReservationID: reservation.ReservationID,
		ProductID:     reservation.ProductID,
		OrderID:       reservation.OrderID,
		CustomerID:    reservation.CustomerID,
		Quantity:      reservation.Quantity,
		Status:        reservation.Status.String(),
		CreatedAt:     reservation.CreatedAt,
		ExpiresAt:     reservation.ExpiresAt,
		ReleasedAt:    reservation.ReleasedAt,
		ReleaseReason: reservation.ReleaseReason,
	}
}

// ToReservationDTOs converts a slice of domain reservations to DTOs
func ToReservationDTOs(reservations []*domain.StockReservation) []ReservationDTO {
	dtos := make([]ReservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		if dto := ToReservationDTO(reservation); dto != nil {
			dtos = append(dtos, *dto)
		}
	}
	return dtos
}

// ToHistoryRecordDTO converts a domain history record to HistoryRecordDTO
func ToHistoryRecordDTO(record *domain.InventoryHistoryRecord) *HistoryRecordDTO {
	if record == nil {
		return nil
	}

	return &HistoryRecordDTO{
		HistoryID:       record.HistoryID,
		ProductID:       record.ProductID,
		Action:          record.Action.String(),
		QuantityBefore:  record.QuantityBefore,
		QuantityAfter:   record.QuantityAfter,
		QuantityChanged: record.QuantityChanged,
		ReservedBefore:  record.ReservedBefore,
		ReservedAfter:   record.ReservedAfter,
		Reason:          record.Reason,
		Source:          record.Source.String(),
		OrderID:         record.OrderID,
		ChangedBy:       record.ChangedBy,
		Timestamp:       record.Timestamp,
	}
}

// ToHistoryRecordDTOs converts a slice of domain history records to DTOs
func ToHistoryRecordDTOs(records []*domain.InventoryHistoryRecord) []HistoryRecordDTO {
	dtos := make([]HistoryRecordDTO, 0, len(records))
	for _, record := range records {
		if dto := ToHistoryRecordDTO(record); dto != nil {
			dtos = append(dtos, *dto)
		}
	}
	return dtos
}

// adjustmentAction labels the direction of a quantity change for the event payload
func adjustmentAction(quantityChanged int) string {
	switch {
	case quantityChanged > 0:
		return "increase"
	case quantityChanged < 0:
		return "decrease"
	default:
		return "adjust"
	}
}

// toOutboxEvents converts domain events into outbox rows carrying CloudEvents
// bound for the inventory events topic. Low stock alerts are excluded: they
// travel through the LowStockNotifier instead of the outbox.
func toOutboxEvents(ctx context.Context, factory *cloudevents.EventFactory, events []domain.DomainEvent) ([]*outbox.OutboxEvent, error) {
	outboxEvents := make([]*outbox.OutboxEvent, 0, len(events))

	for _, event := range events {
		var (
			cloudEvent    *cloudevents.CloudEvent
			aggregateType string
			aggregateID   string
		)

		switch e := event.(type) {
		case *domain.InventoryInitializedEvent:
			cloudEvent = factory.CreateInventoryInitializedEvent(ctx, e.ProductID, e.Quantity, e.LowStockThreshold, e.CreatedBy)
			aggregateType, aggregateID = aggregateTypeInventory, e.ProductID
		case *domain.InventoryAdjustedEvent:
			cloudEvent = factory.CreateInventoryAdjustedEvent(ctx, e.ProductID, e.QuantityBefore, e.QuantityAfter,
				adjustmentAction(e.QuantityChanged), e.Reason, e.Source, e.AdjustedBy)
			aggregateType, aggregateID = aggregateTypeInventory, e.ProductID
		case *domain.StockReservedEvent:
			cloudEvent = factory.CreateStockReservedEvent(ctx, e.ReservationID, e.ProductID, e.OrderID, e.CustomerID, e.Quantity, e.ExpiresAt)
			aggregateType, aggregateID = aggregateTypeReservation, e.ReservationID
		case *domain.ReservationReleasedEvent:
			cloudEvent = factory.CreateReservationReleasedEvent(ctx, e.ReservationID, e.ProductID, e.OrderID, e.Quantity, e.Reason)
			aggregateType, aggregateID = aggregateTypeReservation, e.ReservationID
		case *domain.ReservationCompletedEvent:
			cloudEvent = factory.CreateReservationCompletedEvent(ctx, e.ReservationID, e.ProductID, e.OrderID, e.Quantity, e.Reason)
			aggregateType, aggregateID = aggregateTypeReservation, e.ReservationID
		case *domain.ReservationExpiredEvent:
			cloudEvent = factory.CreateReservationExpiredEvent(ctx, e.ReservationID, e.ProductID, e.OrderID, e.Quantity, e.ExpiredAt)
			aggregateType, aggregateID = aggregateTypeReservation, e.ReservationID
		default:
			continue
		}

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(aggregateID, aggregateType, kafka.Topics.InventoryEvents, cloudEvent)
		if err != nil {
			return nil, fmt.Errorf("failed to build outbox event for %s: %w", event.EventType(), err)
		}
		outboxEvents = append(outboxEvents, outboxEvent)
	}

	return outboxEvents, nil
}

// combineEvents merges the events of the record and reservation aggregates
// touched by one commit, preserving emission order
func combineEvents(batches ...[]domain.DomainEvent) []domain.DomainEvent {
	total := 0
	for _, batch := range batches {
		total += len(batch)
	}

	combined := make([]domain.DomainEvent, 0, total)
	for _, batch := range batches {
		combined = append(combined, batch...)
	}
	return combined
}
