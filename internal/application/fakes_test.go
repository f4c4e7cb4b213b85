package application

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/pkg/cloudevents"
	apperrors "github.com/oms-platform/inventory-service/pkg/errors"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/metrics"
	"github.com/oms-platform/inventory-service/pkg/outbox"
)

// fakeReservationRepo backs the reservation port with an in-memory map. The
// inventory fake writes into the same map when a commit carries reservation
// effects, mirroring the shared database.
type fakeReservationRepo struct {
	reservations map[string]*domain.StockReservation

	findErr        error
	findExpiredErr error
	updateErr      error
}

func (f *fakeReservationRepo) FindByReservationID(ctx context.Context, reservationID string) (*domain.StockReservation, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	reservation, ok := f.reservations[reservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return cloneReservation(reservation), nil
}

func (f *fakeReservationRepo) FindByProductID(ctx context.Context, productID string, status *domain.ReservationStatus) ([]*domain.StockReservation, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	results := make([]*domain.StockReservation, 0)
	for _, reservation := range f.reservations {
		if reservation.ProductID != productID {
			continue
		}
		if status != nil && reservation.Status != *status {
			continue
		}
		results = append(results, cloneReservation(reservation))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results, nil
}

func (f *fakeReservationRepo) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]*domain.StockReservation, error) {
	if f.findExpiredErr != nil {
		return nil, f.findExpiredErr
	}
	results := make([]*domain.StockReservation, 0)
	for _, reservation := range f.reservations {
		if reservation.Status == domain.ReservationStatusActive && reservation.ExpiresAt.Before(cutoff) {
			results = append(results, cloneReservation(reservation))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ExpiresAt.Before(results[j].ExpiresAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (f *fakeReservationRepo) Update(ctx context.Context, reservation *domain.StockReservation, expected domain.ReservationStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.reservations[reservation.ReservationID]
	if !ok || stored.Status != expected {
		return domain.ErrReservationNotActive
	}
	f.reservations[reservation.ReservationID] = cloneReservation(reservation)
	return nil
}

// fakeInventoryRepo backs the ledger port. Commit reproduces the transaction
// semantics of the real repository: the version check and the reservation
// status guard run before anything applies, so a failed commit leaves the
// store untouched.
type fakeInventoryRepo struct {
	records      map[string]*domain.InventoryRecord
	reservations *fakeReservationRepo
	history      []*domain.InventoryHistoryRecord
	outbox       []*outbox.OutboxEvent

	commitCalls int
	// conflicts fails this many commits with ErrVersionConflict before
	// letting one through
	conflicts int

	createErr  error
	commitErr  error
	findErr    error
	listErr    error
	forEachErr error
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{
		records:      make(map[string]*domain.InventoryRecord),
		reservations: &fakeReservationRepo{reservations: make(map[string]*domain.StockReservation)},
	}
}

func (f *fakeInventoryRepo) Create(ctx context.Context, record *domain.InventoryRecord, history *domain.InventoryHistoryRecord, events []*outbox.OutboxEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.records[record.ProductID]; exists {
		return domain.ErrRecordAlreadyExists
	}
	f.records[record.ProductID] = cloneRecord(record)
	if history != nil {
		f.history = append(f.history, history)
	}
	f.outbox = append(f.outbox, events...)
	return nil
}

func (f *fakeInventoryRepo) Commit(ctx context.Context, commit *domain.InventoryCommit) error {
	f.commitCalls++
	if f.commitErr != nil {
		return f.commitErr
	}
	if f.conflicts > 0 {
		f.conflicts--
		return domain.ErrVersionConflict
	}

	stored, ok := f.records[commit.Record.ProductID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if stored.Version != commit.Record.Version {
		return domain.ErrVersionConflict
	}
	if commit.ReservationUpdate != nil {
		current, ok := f.reservations.reservations[commit.ReservationUpdate.Reservation.ReservationID]
		if !ok || current.Status != commit.ReservationUpdate.ExpectedStatus {
			return domain.ErrReservationNotActive
		}
	}

	replacement := cloneRecord(commit.Record)
	replacement.Version = stored.Version + 1
	f.records[replacement.ProductID] = replacement

	if commit.History != nil {
		f.history = append(f.history, commit.History)
	}
	if commit.NewReservation != nil {
		f.reservations.reservations[commit.NewReservation.ReservationID] = cloneReservation(commit.NewReservation)
	}
	if commit.ReservationUpdate != nil {
		f.reservations.reservations[commit.ReservationUpdate.Reservation.ReservationID] = cloneReservation(commit.ReservationUpdate.Reservation)
	}
	f.outbox = append(f.outbox, commit.OutboxEvents...)

	commit.Record.Version = stored.Version + 1
	return nil
}

func (f *fakeInventoryRepo) FindByProductID(ctx context.Context, productID string) (*domain.InventoryRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	record, ok := f.records[productID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return cloneRecord(record), nil
}

func (f *fakeInventoryRepo) List(ctx context.Context, opts domain.ListOptions) ([]*domain.InventoryRecord, int64, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	results := make([]*domain.InventoryRecord, 0, len(f.records))
	for _, record := range f.records {
		if opts.LowStockOnly && !record.IsLowStock {
			continue
		}
		results = append(results, cloneRecord(record))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ProductID < results[j].ProductID
	})
	return results, int64(len(results)), nil
}

func (f *fakeInventoryRepo) FindLowStock(ctx context.Context, limit int) ([]*domain.InventoryRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	results := make([]*domain.InventoryRecord, 0)
	for _, record := range f.records {
		if record.IsLowStock {
			results = append(results, cloneRecord(record))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Quantity < results[j].Quantity
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (f *fakeInventoryRepo) ForEach(ctx context.Context, fn func(*domain.InventoryRecord) error) error {
	if f.forEachErr != nil {
		return f.forEachErr
	}
	ids := make([]string, 0, len(f.records))
	for id := range f.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := fn(cloneRecord(f.records[id])); err != nil {
			return err
		}
	}
	return nil
}

// fakeHistoryRepo reads the audit entries the inventory fake collected
type fakeHistoryRepo struct {
	store   *fakeInventoryRepo
	findErr error
}

func (f *fakeHistoryRepo) FindByProductID(ctx context.Context, productID string, filter domain.HistoryFilter) ([]*domain.InventoryHistoryRecord, int64, error) {
	if f.findErr != nil {
		return nil, 0, f.findErr
	}
	results := make([]*domain.InventoryHistoryRecord, 0)
	for _, record := range f.store.history {
		if record.ProductID != productID {
			continue
		}
		if filter.Action != nil && record.Action != *filter.Action {
			continue
		}
		if filter.Source != nil && record.Source != *filter.Source {
			continue
		}
		if filter.OrderID != "" && record.OrderID != filter.OrderID {
			continue
		}
		results = append(results, record)
	}
	return results, int64(len(results)), nil
}

// Finds return clones so a service mutating a loaded aggregate in memory
// cannot leak half-applied state into the store when its commit fails
func cloneRecord(record *domain.InventoryRecord) *domain.InventoryRecord {
	clone := *record
	clone.DomainEvents = make([]domain.DomainEvent, 0)
	return &clone
}

func cloneReservation(reservation *domain.StockReservation) *domain.StockReservation {
	clone := *reservation
	clone.DomainEvents = make([]domain.DomainEvent, 0)
	return &clone
}

type fakeNotifier struct {
	alerts []string
	err    error
}

func (f *fakeNotifier) NotifyLowStock(ctx context.Context, productID string, currentQuantity, threshold int) error {
	f.alerts = append(f.alerts, productID)
	return f.err
}

type fakeCatalog struct {
	prices map[string]domain.Money
	err    error
}

func (f *fakeCatalog) ProductExists(ctx context.Context, productID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.prices[productID]
	return ok, nil
}

func (f *fakeCatalog) GetUnitPrice(ctx context.Context, productID string) (domain.Money, error) {
	if f.err != nil {
		return domain.Money{}, f.err
	}
	price, ok := f.prices[productID]
	if !ok {
		return domain.Money{}, domain.ErrProductNotPriced
	}
	return price, nil
}

func newInventoryService(store *fakeInventoryRepo, notifier domain.LowStockNotifier) *InventoryApplicationService {
	logger := logging.New(logging.DefaultConfig("test"))
	factory := cloudevents.NewEventFactory(cloudevents.SourceInventory)
	return NewInventoryApplicationService(store, &fakeHistoryRepo{store: store}, factory, notifier, metrics.New(metrics.DefaultConfig("test")), logger)
}

func newReservationService(store *fakeInventoryRepo, notifier domain.LowStockNotifier) *ReservationApplicationService {
	logger := logging.New(logging.DefaultConfig("test"))
	factory := cloudevents.NewEventFactory(cloudevents.SourceInventory)
	return NewReservationApplicationService(store, store.reservations, factory, notifier, metrics.New(metrics.DefaultConfig("test")), logger)
}

func seedRecord(t *testing.T, store *fakeInventoryRepo, productID string, quantity, threshold int) *domain.InventoryRecord {
	t.Helper()
	record, err := domain.NewInventoryRecord(productID, quantity, threshold, "seed")
	require.NoError(t, err)
	record.ClearDomainEvents()
	store.records[productID] = record
	return record
}

// seedReservation stores an active reservation and bumps the record's reserved
// count to match. The expiration is set directly so sweeper tests can place it
// in the past.
func seedReservation(t *testing.T, store *fakeInventoryRepo, productID, orderID string, quantity int, expiresAt time.Time) *domain.StockReservation {
	t.Helper()
	record, ok := store.records[productID]
	require.True(t, ok, "seed the record before its reservations")

	reservation, err := domain.NewStockReservation(productID, orderID, "", quantity, domain.DefaultExpirationMinutes)
	require.NoError(t, err)
	reservation.ClearDomainEvents()
	reservation.ExpiresAt = expiresAt

	require.NoError(t, record.Reserve(quantity, "seed"))

	store.reservations.reservations[reservation.ReservationID] = reservation
	return reservation
}

func outboxEventTypes(events []*outbox.OutboxEvent) []string {
	types := make([]string, 0, len(events))
	for _, event := range events {
		types = append(types, event.EventType)
	}
	return types
}

func money(t *testing.T, amount int64, currency string) domain.Money {
	t.Helper()
	m, err := domain.NewMoney(amount, currency)
	require.NoError(t, err)
	return m
}

func requireAppError(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}
