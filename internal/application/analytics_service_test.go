package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/pkg/logging"
)

func newAnalyticsService(store *fakeInventoryRepo, catalog domain.CatalogClient) *AnalyticsService {
	logger := logging.New(logging.DefaultConfig("test"))
	return NewAnalyticsService(store, catalog, otel.Tracer("test"), logger)
}

func TestAnalyticsService_Rollup(t *testing.T) {
	store := newFakeInventoryRepo()
	seedRecord(t, store, "PROD-1", 100, 10)
	seedReservation(t, store, "PROD-1", "ORD-1", 20, time.Now().Add(time.Hour))
	seedRecord(t, store, "PROD-2", 5, 10)
	seedRecord(t, store, "PROD-3", 0, 10)
	seedRecord(t, store, "PROD-4", 3, 5)

	catalog := &fakeCatalog{prices: map[string]domain.Money{
		"PROD-1": money(t, 250, "USD"),
		"PROD-2": money(t, 500, "USD"),
	}}
	svc := newAnalyticsService(store, catalog)

	analytics, err := svc.GetAnalytics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, analytics.TotalProducts)
	assert.Equal(t, 108, analytics.TotalQuantity)
	assert.Equal(t, 20, analytics.TotalReserved)
	assert.Equal(t, 88, analytics.TotalAvailable)

	assert.Equal(t, 2, analytics.LowStockCount)
	assert.InDelta(t, 50.0, analytics.LowStockPercentage, 0.001)
	assert.Equal(t, 1, analytics.OutOfStockCount)
	assert.InDelta(t, 25.0, analytics.OutOfStockPercentage, 0.001)

	require.NotNil(t, analytics.TotalValuation)
	assert.Equal(t, int64(100*250+5*500), analytics.TotalValuation.Amount)
	assert.Equal(t, "USD", analytics.TotalValuation.Currency)
	// PROD-4 has stock but no catalog price, PROD-3 has nothing to price
	assert.Equal(t, 1, analytics.UnpricedProducts)

	require.Len(t, analytics.MostDepleted, 2)
	assert.Equal(t, "PROD-4", analytics.MostDepleted[0].ProductID)
	assert.Equal(t, 3, analytics.MostDepleted[0].Quantity)
	assert.Equal(t, "PROD-2", analytics.MostDepleted[1].ProductID)

	assert.False(t, analytics.GeneratedAt.IsZero())
}

func TestAnalyticsService_WithoutCatalog(t *testing.T) {
	store := newFakeInventoryRepo()
	seedRecord(t, store, "PROD-1", 100, 10)
	svc := newAnalyticsService(store, nil)

	analytics, err := svc.GetAnalytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, analytics.TotalProducts)
	assert.Nil(t, analytics.TotalValuation)
	assert.Zero(t, analytics.UnpricedProducts)
}

func TestAnalyticsService_EmptyInventory(t *testing.T) {
	store := newFakeInventoryRepo()
	svc := newAnalyticsService(store, &fakeCatalog{})

	analytics, err := svc.GetAnalytics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, analytics.TotalProducts)
	assert.Zero(t, analytics.LowStockPercentage)
	assert.Zero(t, analytics.OutOfStockPercentage)
	assert.Nil(t, analytics.TotalValuation)
	assert.Empty(t, analytics.MostDepleted)
}

func TestAnalyticsService_SkipsMismatchedCurrency(t *testing.T) {
	store := newFakeInventoryRepo()
	seedRecord(t, store, "PROD-A", 2, 1)
	seedRecord(t, store, "PROD-B", 3, 1)

	catalog := &fakeCatalog{prices: map[string]domain.Money{
		"PROD-A": money(t, 100, "USD"),
		"PROD-B": money(t, 100, "EUR"),
	}}
	svc := newAnalyticsService(store, catalog)

	analytics, err := svc.GetAnalytics(context.Background())
	require.NoError(t, err)

	// The first priced product pins the currency, the EUR line is skipped
	require.NotNil(t, analytics.TotalValuation)
	assert.Equal(t, int64(200), analytics.TotalValuation.Amount)
	assert.Equal(t, "USD", analytics.TotalValuation.Currency)
	assert.Equal(t, 1, analytics.UnpricedProducts)
}

func TestAnalyticsService_CatalogOutageCountsUnpriced(t *testing.T) {
	store := newFakeInventoryRepo()
	seedRecord(t, store, "PROD-1", 10, 5)
	seedRecord(t, store, "PROD-2", 20, 5)

	catalog := &fakeCatalog{err: errors.New("catalog unavailable")}
	svc := newAnalyticsService(store, catalog)

	analytics, err := svc.GetAnalytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, analytics.UnpricedProducts)
	assert.Nil(t, analytics.TotalValuation)
}

func TestAnalyticsService_MostDepletedCapped(t *testing.T) {
	store := newFakeInventoryRepo()
	for i := 1; i <= 12; i++ {
		seedRecord(t, store, fmt.Sprintf("PROD-%02d", i), i, 20)
	}
	svc := newAnalyticsService(store, nil)

	analytics, err := svc.GetAnalytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, analytics.LowStockCount)
	require.Len(t, analytics.MostDepleted, DefaultMostDepletedLimit)
	assert.Equal(t, 1, analytics.MostDepleted[0].Quantity)
	assert.Equal(t, DefaultMostDepletedLimit, analytics.MostDepleted[DefaultMostDepletedLimit-1].Quantity)
}

func TestAnalyticsService_ScanErrorPropagates(t *testing.T) {
	store := newFakeInventoryRepo()
	store.forEachErr = errors.New("cursor closed")
	svc := newAnalyticsService(store, nil)

	_, err := svc.GetAnalytics(context.Background())
	assert.Error(t, err)
}
