package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/pkg/cloudevents"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/metrics"
)

func newSweeper(store *fakeInventoryRepo) *ExpirationSweeper {
	logger := logging.New(logging.DefaultConfig("test"))
	factory := cloudevents.NewEventFactory(cloudevents.SourceInventory)
	return NewExpirationSweeper(store, store.reservations, factory, metrics.New(metrics.DefaultConfig("test")), logger, nil)
}

func TestExpirationSweeper_SweepReleasesExpired(t *testing.T) {
	store := newFakeInventoryRepo()
	seedRecord(t, store, "PROD-001", 100, 10)
	seedRecord(t, store, "PROD-002", 50, 10)

	now := time.Now()
	expiredA := seedReservation(t, store, "PROD-001", "ORD-1", 30, now.Add(-2*time.Hour))
	expiredB := seedReservation(t, store, "PROD-002", "ORD-2", 20, now.Add(-time.Minute))
	future := seedReservation(t, store, "PROD-001", "ORD-3", 10, now.Add(time.Hour))

	sweeper := newSweeper(store)
	result, err := sweeper.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Released)
	assert.Equal(t, 0, result.Failed)

	// Only the future reservation still holds stock
	recordA := store.records["PROD-001"]
	assert.Equal(t, 100, recordA.Quantity)
	assert.Equal(t, 10, recordA.Reserved)
	assert.Equal(t, 90, recordA.Available)
	recordB := store.records["PROD-002"]
	assert.Equal(t, 0, recordB.Reserved)
	assert.Equal(t, 50, recordB.Available)

	for _, reservationID := range []string{expiredA.ReservationID, expiredB.ReservationID} {
		stored := store.reservations.reservations[reservationID]
		require.NotNil(t, stored)
		assert.Equal(t, domain.ReservationStatusExpired, stored.Status)
		assert.Equal(t, domain.ExpirationReleaseReason, stored.ReleaseReason)
		require.NotNil(t, stored.ReleasedAt)
		assert.True(t, stored.ReleasedAt.Equal(now))
	}
	assert.Equal(t, domain.ReservationStatusActive, store.reservations.reservations[future.ReservationID].Status)

	require.Len(t, store.history, 2)
	for _, entry := range store.history {
		assert.Equal(t, domain.ActionRelease, entry.Action)
		assert.Equal(t, domain.SourceSystem, entry.Source)
		assert.Equal(t, domain.ExpirationReleaseReason, entry.Reason)
		assert.Equal(t, "system", entry.ChangedBy)
		assert.Equal(t, 0, entry.QuantityChanged)
	}

	assert.Equal(t, []string{cloudevents.ReservationExpired, cloudevents.ReservationExpired}, outboxEventTypes(store.outbox))

	// Nothing left for the next pass
	result, err = sweeper.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, result.Scanned)
	assert.Zero(t, result.Released)
}

func TestExpirationSweeper_FailuresDoNotAbortThePass(t *testing.T) {
	store := newFakeInventoryRepo()
	seedRecord(t, store, "PROD-001", 100, 10)
	seedRecord(t, store, "PROD-002", 50, 10)

	now := time.Now()
	first := seedReservation(t, store, "PROD-001", "ORD-1", 30, now.Add(-2*time.Hour))
	second := seedReservation(t, store, "PROD-002", "ORD-2", 20, now.Add(-time.Hour))

	// Enough conflicts to exhaust the first expiration's retries, then clear
	store.conflicts = 3

	sweeper := newSweeper(store)
	result, err := sweeper.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Released)
	assert.Equal(t, 1, result.Failed)

	// FindExpired orders by expiration, so the older reservation failed
	assert.Equal(t, domain.ReservationStatusActive, store.reservations.reservations[first.ReservationID].Status)
	assert.Equal(t, domain.ReservationStatusExpired, store.reservations.reservations[second.ReservationID].Status)

	// The failed reservation is picked up again on the next sweep
	result, err = sweeper.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Released)
	assert.Equal(t, domain.ReservationStatusExpired, store.reservations.reservations[first.ReservationID].Status)
}

func TestExpirationSweeper_LosesRaceToManualRelease(t *testing.T) {
	store := newFakeInventoryRepo()
	seedRecord(t, store, "PROD-001", 100, 10)
	reservation := seedReservation(t, store, "PROD-001", "ORD-1", 30, time.Now().Add(-time.Hour))

	// Another writer finished the reservation after the sweeper fetched it
	svc := newReservationService(store, nil)
	_, err := svc.Release(context.Background(), ReleaseReservationCommand{ReservationID: reservation.ReservationID})
	require.NoError(t, err)

	sweeper := newSweeper(store)
	released, err := sweeper.expireOne(context.Background(), reservation.ReservationID, time.Now())
	require.NoError(t, err)
	assert.False(t, released)

	assert.Equal(t, domain.ReservationStatusCompleted, store.reservations.reservations[reservation.ReservationID].Status)
	assert.Equal(t, 0, store.records["PROD-001"].Reserved)
}

func TestExpirationSweeper_FetchErrorAbortsSweep(t *testing.T) {
	store := newFakeInventoryRepo()
	store.reservations.findExpiredErr = context.DeadlineExceeded

	sweeper := newSweeper(store)
	result, err := sweeper.Sweep(context.Background(), time.Now())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Zero(t, result.Scanned)
}

func TestExpirationSweeper_StartStop(t *testing.T) {
	sweeper := newSweeper(newFakeInventoryRepo())

	require.NoError(t, sweeper.Start(context.Background()))
	assert.True(t, sweeper.IsRunning())
	assert.Error(t, sweeper.Start(context.Background()))

	require.NoError(t, sweeper.Stop())
	assert.False(t, sweeper.IsRunning())
	assert.Error(t, sweeper.Stop())
}
