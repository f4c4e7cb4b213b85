package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/pkg/cloudevents"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/metrics"
	"github.com/oms-platform/inventory-service/pkg/resilience"
)

// ReservationApplicationService handles the stock reservation lifecycle.
// Lifecycle steps that move stock commit through the inventory repository so
// the record, the reservation and the history entry change together.
type ReservationApplicationService struct {
	records      domain.InventoryRepository
	reservations domain.ReservationRepository
	eventFactory *cloudevents.EventFactory
	notifier     domain.LowStockNotifier
	metrics      *metrics.Metrics
	logger       *logging.Logger
	retry        *resilience.RetryConfig
}

// NewReservationApplicationService creates a new ReservationApplicationService
func NewReservationApplicationService(
	records domain.InventoryRepository,
	reservations domain.ReservationRepository,
	eventFactory *cloudevents.EventFactory,
	notifier domain.LowStockNotifier,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ReservationApplicationService {
	return &ReservationApplicationService{
		records:      records,
		reservations: reservations,
		eventFactory: eventFactory,
		notifier:     notifier,
		metrics:      m,
		logger:       logger,
		retry:        versionConflictRetry(),
	}
}

// reservationCommit carries both aggregates out of a retried commit attempt
type reservationCommit struct {
	record      *domain.InventoryRecord
	reservation *domain.StockReservation
}

// Reserve promises stock to an order for a limited time
func (s *ReservationApplicationService) Reserve(ctx context.Context, cmd ReserveStockCommand) (dto *ReservationDTO, err error) {
	defer func() { s.metrics.RecordStockMutation("reserve", err == nil) }()

	expirationMinutes := cmd.ExpirationMinutes
	if expirationMinutes == 0 {
		expirationMinutes = domain.DefaultExpirationMinutes
	}

	outcome, rerr := resilience.RetryWithResult(ctx, s.retry, func() (*reservationCommit, error) {
		return s.reserveOnce(ctx, cmd, expirationMinutes)
	})
	if rerr != nil {
		return nil, s.failLifecycle(ctx, "reserve", cmd.ProductID, rerr)
	}

	outcome.record.ClearDomainEvents()
	outcome.reservation.ClearDomainEvents()

	s.logger.Info("Reserved stock",
		"productId", cmd.ProductID,
		"reservationId", outcome.reservation.ReservationID,
		"orderId", cmd.OrderID,
		"quantity", cmd.Quantity,
		"expiresAt", outcome.reservation.ExpiresAt,
	)
	return ToReservationDTO(outcome.reservation), nil
}

func (s *ReservationApplicationService) reserveOnce(ctx context.Context, cmd ReserveStockCommand, expirationMinutes int) (*reservationCommit, error) {
	record, err := s.records.FindByProductID(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}

	reservation, err := domain.NewStockReservation(cmd.ProductID, cmd.OrderID, cmd.CustomerID, cmd.Quantity, expirationMinutes)
	if err != nil {
		return nil, err
	}

	reservedBefore := record.Reserved
	if err := record.Reserve(cmd.Quantity, cmd.ChangedBy); err != nil {
		return nil, err
	}

	history := domain.NewHistoryRecord(cmd.ProductID, domain.ActionReserve,
		record.Quantity, record.Quantity, reservedBefore, record.Reserved,
		fmt.Sprintf("Reserved for order %s", cmd.OrderID), domain.SourceOrder, cmd.OrderID, cmd.ChangedBy)

	outboxEvents, err := toOutboxEvents(ctx, s.eventFactory,
		combineEvents(record.GetDomainEvents(), reservation.GetDomainEvents()))
	if err != nil {
		return nil, err
	}

	commit := &domain.InventoryCommit{
		Record:         record,
		History:        history,
		NewReservation: reservation,
		OutboxEvents:   outboxEvents,
	}
	if err := s.records.Commit(ctx, commit); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			s.metrics.RecordVersionConflict("reserve")
		}
		return nil, err
	}

	return &reservationCommit{record: record, reservation: reservation}, nil
}

// Release returns a reservation's stock to the available pool
func (s *ReservationApplicationService) Release(ctx context.Context, cmd ReleaseReservationCommand) (dto *ReservationDTO, err error) {
	defer func() { s.metrics.RecordStockMutation("release", err == nil) }()

	outcome, rerr := resilience.RetryWithResult(ctx, s.retry, func() (*reservationCommit, error) {
		return s.releaseOnce(ctx, cmd)
	})
	if rerr != nil {
		return nil, s.failLifecycle(ctx, "release", cmd.ReservationID, rerr)
	}

	outcome.record.ClearDomainEvents()
	outcome.reservation.ClearDomainEvents()

	s.logger.Info("Released reservation",
		"reservationId", cmd.ReservationID,
		"productId", outcome.reservation.ProductID,
		"orderId", outcome.reservation.OrderID,
		"quantity", outcome.reservation.Quantity,
		"reason", outcome.reservation.ReleaseReason,
	)
	return ToReservationDTO(outcome.reservation), nil
}

func (s *ReservationApplicationService) releaseOnce(ctx context.Context, cmd ReleaseReservationCommand) (*reservationCommit, error) {
	reservation, err := s.reservations.FindByReservationID(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}

	record, err := s.records.FindByProductID(ctx, reservation.ProductID)
	if err != nil {
		return nil, err
	}

	if err := reservation.MarkReleased(cmd.Reason); err != nil {
		return nil, err
	}

	reservedBefore := record.Reserved
	if err := record.ReleaseReserved(reservation.Quantity, cmd.ChangedBy); err != nil {
		return nil, err
	}

	history := domain.NewHistoryRecord(record.ProductID, domain.ActionRelease,
		record.Quantity, record.Quantity, reservedBefore, record.Reserved,
		reservation.ReleaseReason, domain.SourceOrder, reservation.OrderID, cmd.ChangedBy)

	outboxEvents, err := toOutboxEvents(ctx, s.eventFactory,
		combineEvents(record.GetDomainEvents(), reservation.GetDomainEvents()))
	if err != nil {
		return nil, err
	}

	commit := &domain.InventoryCommit{
		Record:  record,
		History: history,
		ReservationUpdate: &domain.ReservationUpdate{
			Reservation:    reservation,
			ExpectedStatus: domain.ReservationStatusActive,
		},
		OutboxEvents: outboxEvents,
	}
	if err := s.records.Commit(ctx, commit); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			s.metrics.RecordVersionConflict("release")
		}
		return nil, err
	}

	return &reservationCommit{record: record, reservation: reservation}, nil
}

// Complete fulfills a reservation: the promised stock leaves inventory for good
func (s *ReservationApplicationService) Complete(ctx context.Context, cmd CompleteReservationCommand) (dto *ReservationDTO, err error) {
	defer func() { s.metrics.RecordStockMutation("complete", err == nil) }()

	outcome, rerr := resilience.RetryWithResult(ctx, s.retry, func() (*reservationCommit, error) {
		return s.completeOnce(ctx, cmd)
	})
	if rerr != nil {
		return nil, s.failLifecycle(ctx, "complete", cmd.ReservationID, rerr)
	}

	notifyLowStock(ctx, s.notifier, s.logger, outcome.record.GetDomainEvents())
	outcome.record.ClearDomainEvents()
	outcome.reservation.ClearDomainEvents()

	s.logger.Audit(ctx, "reservation.completed", outcome.reservation.ProductID, cmd.ChangedBy, map[string]any{
		"reservationId": cmd.ReservationID,
		"orderId":       outcome.reservation.OrderID,
		"quantity":      outcome.reservation.Quantity,
	})
	return ToReservationDTO(outcome.reservation), nil
}

func (s *ReservationApplicationService) completeOnce(ctx context.Context, cmd CompleteReservationCommand) (*reservationCommit, error) {
	reservation, err := s.reservations.FindByReservationID(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}

	record, err := s.records.FindByProductID(ctx, reservation.ProductID)
	if err != nil {
		return nil, err
	}

	if err := reservation.MarkCompleted(); err != nil {
		return nil, err
	}

	quantityBefore := record.Quantity
	reservedBefore := record.Reserved
	if err := record.CommitReservation(reservation.Quantity, cmd.ChangedBy); err != nil {
		return nil, err
	}

	reason := cmd.Reason
	if reason == "" {
		reason = reservation.ReleaseReason
	}
	history := domain.NewHistoryRecord(record.ProductID, domain.ActionDecrease,
		quantityBefore, record.Quantity, reservedBefore, record.Reserved,
		reason, domain.SourceOrder, reservation.OrderID, cmd.ChangedBy)

	outboxEvents, err := toOutboxEvents(ctx, s.eventFactory,
		combineEvents(record.GetDomainEvents(), reservation.GetDomainEvents()))
	if err != nil {
		return nil, err
	}

	commit := &domain.InventoryCommit{
		Record:  record,
		History: history,
		ReservationUpdate: &domain.ReservationUpdate{
			Reservation:    reservation,
			ExpectedStatus: domain.ReservationStatusActive,
		},
		OutboxEvents: outboxEvents,
	}
	if err := s.records.Commit(ctx, commit); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			s.metrics.RecordVersionConflict("complete")
		}
		return nil, err
	}

	return &reservationCommit{record: record, reservation: reservation}, nil
}

// ExtendExpiration pushes an active reservation's expiration forward. No stock
// moves, so this bypasses the inventory commit and writes no history.
func (s *ReservationApplicationService) ExtendExpiration(ctx context.Context, cmd ExtendReservationCommand) (*ReservationDTO, error) {
	reservation, err := s.reservations.FindByReservationID(ctx, cmd.ReservationID)
	if err != nil {
		return nil, MapDomainError(err)
	}

	if err := reservation.ExtendExpiration(cmd.AdditionalMinutes); err != nil {
		return nil, MapDomainError(err)
	}

	if err := s.reservations.Update(ctx, reservation, domain.ReservationStatusActive); err != nil {
		return nil, s.failLifecycle(ctx, "extend", cmd.ReservationID, err)
	}

	s.logger.Info("Extended reservation",
		"reservationId", cmd.ReservationID,
		"additionalMinutes", cmd.AdditionalMinutes,
		"expiresAt", reservation.ExpiresAt,
	)
	return ToReservationDTO(reservation), nil
}

// GetReservation retrieves a reservation by its public id
func (s *ReservationApplicationService) GetReservation(ctx context.Context, query GetReservationQuery) (*ReservationDTO, error) {
	reservation, err := s.reservations.FindByReservationID(ctx, query.ReservationID)
	if err != nil {
		return nil, MapDomainError(err)
	}
	return ToReservationDTO(reservation), nil
}

// ListByProduct retrieves a product's reservations, optionally filtered by status
func (s *ReservationApplicationService) ListByProduct(ctx context.Context, query ListReservationsQuery) ([]ReservationDTO, error) {
	var status *domain.ReservationStatus
	if query.Status != "" {
		parsed, err := domain.ParseReservationStatus(query.Status)
		if err != nil {
			return nil, MapDomainError(err)
		}
		status = &parsed
	}

	reservations, err := s.reservations.FindByProductID(ctx, query.ProductID, status)
	if err != nil {
		s.logger.Error("Failed to list reservations", "productId", query.ProductID, "error", err)
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	return ToReservationDTOs(reservations), nil
}

// failLifecycle maps the final error of a lifecycle step, logging it unless it
// is a client-facing AppError
func (s *ReservationApplicationService) failLifecycle(ctx context.Context, operation, id string, err error) error {
	if errors.Is(err, domain.ErrVersionConflict) {
		s.logger.WithContext(ctx).Warn("Reservation step exhausted version retries", "operation", operation, "id", id)
	}

	mapped := MapDomainError(err)
	if !isAppError(mapped) {
		s.logger.Error("Reservation step failed", "operation", operation, "id", id, "error", err)
	}
	return mapped
}
