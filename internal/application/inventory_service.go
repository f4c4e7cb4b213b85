package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/pkg/cloudevents"
	apperrors "github.com/oms-platform/inventory-service/pkg/errors"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/metrics"
	"github.com/oms-platform/inventory-service/pkg/resilience"
)

// InventoryApplicationService handles ledger use cases: it is the only
// component that mutates inventory records, and every mutation commits the
// record change, its history entry and its outbox events atomically.
type InventoryApplicationService struct {
	records      domain.InventoryRepository
	history      domain.HistoryRepository
	eventFactory *cloudevents.EventFactory
	notifier     domain.LowStockNotifier
	metrics      *metrics.Metrics
	logger       *logging.Logger
	retry        *resilience.RetryConfig
}

// NewInventoryApplicationService creates a new InventoryApplicationService
func NewInventoryApplicationService(
	records domain.InventoryRepository,
	history domain.HistoryRepository,
	eventFactory *cloudevents.EventFactory,
	notifier domain.LowStockNotifier,
	m *metrics.Metrics,
	logger *logging.Logger,
) *InventoryApplicationService {
	return &InventoryApplicationService{
		records:      records,
		history:      history,
		eventFactory: eventFactory,
		notifier:     notifier,
		metrics:      m,
		logger:       logger,
		retry:        versionConflictRetry(),
	}
}

// versionConflictRetry retries lost optimistic-concurrency races and nothing else
func versionConflictRetry() *resilience.RetryConfig {
	config := resilience.DefaultRetryConfig()
	config.RetryableErrors = func(err error) bool {
		return errors.Is(err, domain.ErrVersionConflict)
	}
	return config
}

// Initialize starts tracking a product and records its opening stock
func (s *InventoryApplicationService) Initialize(ctx context.Context, cmd InitializeInventoryCommand) (dto *InventoryRecordDTO, err error) {
	defer func() { s.metrics.RecordStockMutation("initialize", err == nil) }()

	threshold := domain.DefaultLowStockThreshold
	if cmd.LowStockThreshold != nil {
		threshold = *cmd.LowStockThreshold
	}

	record, err := domain.NewInventoryRecord(cmd.ProductID, cmd.InitialQuantity, threshold, cmd.CreatedBy)
	if err != nil {
		return nil, MapDomainError(err)
	}

	var history *domain.InventoryHistoryRecord
	if cmd.InitialQuantity > 0 {
		history = domain.NewHistoryRecord(cmd.ProductID, domain.ActionInitialize,
			0, cmd.InitialQuantity, 0, 0, "Initial stock", domain.SourceManual, "", cmd.CreatedBy)
	}

	outboxEvents, err := toOutboxEvents(ctx, s.eventFactory, record.GetDomainEvents())
	if err != nil {
		return nil, err
	}

	if err := s.records.Create(ctx, record, history, outboxEvents); err != nil {
		if errors.Is(err, domain.ErrRecordAlreadyExists) {
			return nil, apperrors.ErrAlreadyExists("inventory record", cmd.ProductID)
		}
		s.logger.Error("Failed to create inventory record", "productId", cmd.ProductID, "error", err)
		return nil, fmt.Errorf("failed to create inventory record: %w", err)
	}

	notifyLowStock(ctx, s.notifier, s.logger, record.GetDomainEvents())
	record.ClearDomainEvents()

	s.logger.Info("Initialized inventory",
		"productId", cmd.ProductID,
		"quantity", cmd.InitialQuantity,
		"lowStockThreshold", threshold,
	)
	return ToInventoryRecordDTO(record), nil
}

// AdjustQuantity applies a signed delta to a product's on-hand quantity
func (s *InventoryApplicationService) AdjustQuantity(ctx context.Context, cmd AdjustQuantityCommand) (dto *InventoryRecordDTO, err error) {
	defer func() { s.metrics.RecordStockMutation(adjustmentAction(cmd.QuantityChange), err == nil) }()

	source, perr := domain.ParseStockSource(cmd.Source)
	if perr != nil {
		return nil, MapDomainError(perr)
	}

	record, rerr := resilience.RetryWithResult(ctx, s.retry, func() (*domain.InventoryRecord, error) {
		return s.adjustOnce(ctx, cmd, source)
	})
	if rerr != nil {
		return nil, s.failMutation(ctx, "adjust", cmd.ProductID, rerr)
	}

	notifyLowStock(ctx, s.notifier, s.logger, record.GetDomainEvents())
	record.ClearDomainEvents()

	s.logger.Audit(ctx, "inventory.adjusted", cmd.ProductID, cmd.ChangedBy, map[string]any{
		"quantityChange": cmd.QuantityChange,
		"newQuantity":    record.Quantity,
		"reason":         cmd.Reason,
		"source":         source.String(),
		"allowNegative":  cmd.AllowNegative,
	})
	return ToInventoryRecordDTO(record), nil
}

// adjustOnce runs one load-mutate-commit attempt. Each attempt reloads the
// record so a retry after a version conflict works on fresh state.
func (s *InventoryApplicationService) adjustOnce(ctx context.Context, cmd AdjustQuantityCommand, source domain.StockSource) (*domain.InventoryRecord, error) {
	record, err := s.records.FindByProductID(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}

	quantityBefore := record.Quantity
	reservedBefore := record.Reserved

	if err := record.Adjust(cmd.QuantityChange, cmd.Reason, source, cmd.OrderID, cmd.AllowNegative, cmd.ChangedBy); err != nil {
		return nil, err
	}

	action := domain.ActionIncrease
	if cmd.QuantityChange < 0 {
		action = domain.ActionDecrease
	}
	history := domain.NewHistoryRecord(cmd.ProductID, action,
		quantityBefore, record.Quantity, reservedBefore, record.Reserved,
		cmd.Reason, source, cmd.OrderID, cmd.ChangedBy)

	outboxEvents, err := toOutboxEvents(ctx, s.eventFactory, record.GetDomainEvents())
	if err != nil {
		return nil, err
	}

	commit := &domain.InventoryCommit{
		Record:       record,
		History:      history,
		OutboxEvents: outboxEvents,
	}
	if err := s.records.Commit(ctx, commit); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			s.metrics.RecordVersionConflict("adjust")
		}
		return nil, err
	}

	return record, nil
}

// UpdateThreshold changes a product's low stock threshold
func (s *InventoryApplicationService) UpdateThreshold(ctx context.Context, cmd UpdateThresholdCommand) (dto *InventoryRecordDTO, err error) {
	defer func() { s.metrics.RecordStockMutation("adjust", err == nil) }()

	reason := cmd.Reason
	if reason == "" {
		reason = "Low stock threshold updated"
	}

	record, rerr := resilience.RetryWithResult(ctx, s.retry, func() (*domain.InventoryRecord, error) {
		return s.updateThresholdOnce(ctx, cmd, reason)
	})
	if rerr != nil {
		return nil, s.failMutation(ctx, "threshold update", cmd.ProductID, rerr)
	}

	notifyLowStock(ctx, s.notifier, s.logger, record.GetDomainEvents())
	record.ClearDomainEvents()

	s.logger.Info("Updated low stock threshold",
		"productId", cmd.ProductID,
		"lowStockThreshold", cmd.LowStockThreshold,
		"isLowStock", record.IsLowStock,
	)
	return ToInventoryRecordDTO(record), nil
}

func (s *InventoryApplicationService) updateThresholdOnce(ctx context.Context, cmd UpdateThresholdCommand, reason string) (*domain.InventoryRecord, error) {
	record, err := s.records.FindByProductID(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}

	if err := record.SetLowStockThreshold(cmd.LowStockThreshold, reason, cmd.ChangedBy); err != nil {
		return nil, err
	}

	history := domain.NewHistoryRecord(cmd.ProductID, domain.ActionAdjust,
		record.Quantity, record.Quantity, record.Reserved, record.Reserved,
		reason, domain.SourceManual, "", cmd.ChangedBy)

	outboxEvents, err := toOutboxEvents(ctx, s.eventFactory, record.GetDomainEvents())
	if err != nil {
		return nil, err
	}

	commit := &domain.InventoryCommit{
		Record:       record,
		History:      history,
		OutboxEvents: outboxEvents,
	}
	if err := s.records.Commit(ctx, commit); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			s.metrics.RecordVersionConflict("threshold_update")
		}
		return nil, err
	}

	return record, nil
}

// GetByProduct retrieves a single inventory record
func (s *InventoryApplicationService) GetByProduct(ctx context.Context, query GetInventoryQuery) (*InventoryRecordDTO, error) {
	record, err := s.records.FindByProductID(ctx, query.ProductID)
	if err != nil {
		return nil, MapDomainError(err)
	}
	return ToInventoryRecordDTO(record), nil
}

// ListInventory lists inventory records with pagination
func (s *InventoryApplicationService) ListInventory(ctx context.Context, query ListInventoryQuery) ([]InventoryRecordDTO, int64, error) {
	records, total, err := s.records.List(ctx, domain.ListOptions{
		Page:         query.Page,
		PageSize:     query.PageSize,
		SortBy:       query.SortBy,
		SortDesc:     query.SortDesc,
		LowStockOnly: query.LowStockOnly,
	})
	if err != nil {
		s.logger.Error("Failed to list inventory", "error", err)
		return nil, 0, fmt.Errorf("failed to list inventory: %w", err)
	}

	return ToInventoryRecordDTOs(records), total, nil
}

// GetLowStock retrieves records below their threshold, most depleted first
func (s *InventoryApplicationService) GetLowStock(ctx context.Context, limit int) ([]InventoryRecordDTO, error) {
	records, err := s.records.FindLowStock(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list low stock records", "error", err)
		return nil, fmt.Errorf("failed to list low stock records: %w", err)
	}

	return ToInventoryRecordDTOs(records), nil
}

// GetHistory retrieves a product's audit trail, newest first
func (s *InventoryApplicationService) GetHistory(ctx context.Context, query GetHistoryQuery) ([]HistoryRecordDTO, int64, error) {
	filter := domain.HistoryFilter{
		OrderID:  query.OrderID,
		Since:    query.Since,
		Until:    query.Until,
		Page:     query.Page,
		PageSize: query.PageSize,
	}

	if query.Action != "" {
		action, err := domain.ParseHistoryAction(query.Action)
		if err != nil {
			return nil, 0, MapDomainError(err)
		}
		filter.Action = &action
	}
	if query.Source != "" {
		source, err := domain.ParseStockSource(query.Source)
		if err != nil {
			return nil, 0, MapDomainError(err)
		}
		filter.Source = &source
	}

	records, total, err := s.history.FindByProductID(ctx, query.ProductID, filter)
	if err != nil {
		s.logger.Error("Failed to query history", "productId", query.ProductID, "error", err)
		return nil, 0, fmt.Errorf("failed to query history: %w", err)
	}

	return ToHistoryRecordDTOs(records), total, nil
}

// failMutation maps the final error of a mutation, logging it unless it is a
// client-facing AppError
func (s *InventoryApplicationService) failMutation(ctx context.Context, operation, productID string, err error) error {
	if errors.Is(err, domain.ErrVersionConflict) {
		s.logger.WithContext(ctx).Warn("Mutation exhausted version retries", "operation", operation, "productId", productID)
	}

	mapped := MapDomainError(err)
	if !isAppError(mapped) {
		s.logger.Error("Inventory mutation failed", "operation", operation, "productId", productID, "error", err)
	}
	return mapped
}

// notifyLowStock pushes an alert for each low stock transition in the batch.
// Alert delivery is best effort: a failed push is logged and dropped, the
// committed mutation stands.
func notifyLowStock(ctx context.Context, notifier domain.LowStockNotifier, logger *logging.Logger, events []domain.DomainEvent) {
	if notifier == nil {
		return
	}

	for _, event := range events {
		alert, ok := event.(*domain.LowStockAlertEvent)
		if !ok {
			continue
		}
		if err := notifier.NotifyLowStock(ctx, alert.ProductID, alert.CurrentQuantity, alert.LowStockThreshold); err != nil {
			logger.Warn("Failed to deliver low stock alert",
				"productId", alert.ProductID,
				"currentQuantity", alert.CurrentQuantity,
				"error", err,
			)
		}
	}
}
