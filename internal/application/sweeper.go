package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/pkg/cloudevents"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/metrics"
	"github.com/oms-platform/inventory-service/pkg/resilience"
)

// changedBySweeper marks sweeper mutations in the record and the history trail
const changedBySweeper = "system"

// SweepResult summarizes one expiration sweep
type SweepResult struct {
	Scanned  int       `json:"scanned"`
	Released int       `json:"released"`
	Failed   int       `json:"failed"`
	SweptAt  time.Time `json:"sweptAt"`
}

// SweeperConfig holds configuration for the expiration sweeper
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultSweeperConfig returns default configuration
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		Interval:  1 * time.Minute,
		BatchSize: 100,
	}
}

// ExpirationSweeper reclaims stock promised to reservations that ran out of
// time. It runs on a ticker and can also be triggered on demand.
type ExpirationSweeper struct {
	records      domain.InventoryRepository
	reservations domain.ReservationRepository
	eventFactory *cloudevents.EventFactory
	metrics      *metrics.Metrics
	logger       *logging.Logger
	retry        *resilience.RetryConfig

	interval  time.Duration
	batchSize int

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewExpirationSweeper creates a new ExpirationSweeper
func NewExpirationSweeper(
	records domain.InventoryRepository,
	reservations domain.ReservationRepository,
	eventFactory *cloudevents.EventFactory,
	m *metrics.Metrics,
	logger *logging.Logger,
	config *SweeperConfig,
) *ExpirationSweeper {
	if config == nil {
		config = DefaultSweeperConfig()
	}

	return &ExpirationSweeper{
		records:      records,
		reservations: reservations,
		eventFactory: eventFactory,
		metrics:      m,
		logger:       logger,
		retry:        versionConflictRetry(),
		interval:     config.Interval,
		batchSize:    config.BatchSize,
		stopCh:       make(chan struct{}),
		stoppedCh:    make(chan struct{}),
	}
}

// Start starts the background sweep loop
func (s *ExpirationSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting expiration sweeper", "interval", s.interval, "batchSize", s.batchSize)

	go s.run(ctx)
	return nil
}

// Stop stops the background sweep loop
func (s *ExpirationSweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper not running")
	}
	s.mu.Unlock()

	s.logger.Info("Stopping expiration sweeper")
	close(s.stopCh)
	<-s.stoppedCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Expiration sweeper stopped")
	return nil
}

// IsRunning returns whether the sweep loop is running
func (s *ExpirationSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run is the main sweep loop
func (s *ExpirationSweeper) run(ctx context.Context) {
	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper context cancelled")
			return
		case <-s.stopCh:
			s.logger.Info("Sweeper received stop signal")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, time.Now()); err != nil {
				s.logger.WithError(err).Error("Scheduled sweep failed")
			}
		}
	}
}

// Sweep releases every reservation that expired before now. Per-reservation
// failures are logged and counted but never abort the pass, and a failed
// reservation is not retried until the next sweep.
func (s *ExpirationSweeper) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	start := time.Now()
	result := &SweepResult{SweptAt: now}

	// Failed reservations stay active and expired, so they would match the
	// next fetch again. Tracking attempted ids keeps the scan terminating.
	attempted := make(map[string]struct{})

	for {
		expired, err := s.reservations.FindExpired(ctx, now, s.batchSize)
		if err != nil {
			s.metrics.RecordSweepRun(false, result.Released, result.Failed, time.Since(start))
			return result, fmt.Errorf("failed to find expired reservations: %w", err)
		}

		progress := false
		for _, reservation := range expired {
			if _, seen := attempted[reservation.ReservationID]; seen {
				continue
			}
			attempted[reservation.ReservationID] = struct{}{}
			progress = true
			result.Scanned++

			released, err := s.expireOne(ctx, reservation.ReservationID, now)
			if err != nil {
				result.Failed++
				s.logger.Error("Failed to expire reservation",
					"reservationId", reservation.ReservationID,
					"productId", reservation.ProductID,
					"error", err,
				)
				continue
			}
			if released {
				result.Released++
			}
		}

		if len(expired) < s.batchSize || !progress {
			break
		}
	}

	s.metrics.RecordSweepRun(true, result.Released, result.Failed, time.Since(start))
	s.logger.SweepRun(ctx, result.Scanned, result.Released, result.Failed, time.Since(start))

	return result, nil
}

// expireOne releases a single expired reservation. Returns false with a nil
// error when another writer finished the reservation first.
func (s *ExpirationSweeper) expireOne(ctx context.Context, reservationID string, sweptAt time.Time) (bool, error) {
	_, err := resilience.RetryWithResult(ctx, s.retry, func() (*domain.StockReservation, error) {
		return s.expireOnce(ctx, reservationID, sweptAt)
	})
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotActive) {
			// Lost the race to a manual release or complete
			return false, nil
		}
		s.metrics.RecordStockMutation("expire", false)
		return false, err
	}

	s.metrics.RecordStockMutation("expire", true)
	return true, nil
}

func (s *ExpirationSweeper) expireOnce(ctx context.Context, reservationID string, sweptAt time.Time) (*domain.StockReservation, error) {
	reservation, err := s.reservations.FindByReservationID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	record, err := s.records.FindByProductID(ctx, reservation.ProductID)
	if err != nil {
		return nil, err
	}

	if err := reservation.MarkExpired(sweptAt); err != nil {
		return nil, err
	}

	reservedBefore := record.Reserved
	if err := record.ReleaseReserved(reservation.Quantity, changedBySweeper); err != nil {
		return nil, err
	}

	history := domain.NewHistoryRecord(record.ProductID, domain.ActionRelease,
		record.Quantity, record.Quantity, reservedBefore, record.Reserved,
		domain.ExpirationReleaseReason, domain.SourceSystem, reservation.OrderID, changedBySweeper)

	outboxEvents, err := toOutboxEvents(ctx, s.eventFactory, reservation.GetDomainEvents())
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
			s.metrics.RecordVersionConflict("expire")
		}
		return nil, err
	}

	reservation.ClearDomainEvents()
	return reservation, nil
}
