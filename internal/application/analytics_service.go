package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/tracing"
)

// DefaultMostDepletedLimit caps the depletion ranking in the analytics rollup
const DefaultMostDepletedLimit = 10

// AnalyticsService computes inventory-wide rollups. It reads without locks:
// concurrent writers may land mid-pass and the aggregate tolerates the skew.
type AnalyticsService struct {
	records domain.InventoryRepository
	catalog domain.CatalogClient
	tracer  trace.Tracer
	logger  *logging.Logger
}

// NewAnalyticsService creates a new AnalyticsService. The catalog client is
// optional: without one the rollup simply omits the valuation.
func NewAnalyticsService(
	records domain.InventoryRepository,
	catalog domain.CatalogClient,
	tracer trace.Tracer,
	logger *logging.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		records: records,
		catalog: catalog,
		tracer:  tracer,
		logger:  logger,
	}
}

// GetAnalytics aggregates the whole inventory in one pass
func (s *AnalyticsService) GetAnalytics(ctx context.Context) (*InventoryAnalyticsDTO, error) {
	return tracing.TracedOperation(ctx, s.tracer, "analytics.inventory_rollup", func(ctx context.Context) (*InventoryAnalyticsDTO, error) {
		return s.rollup(ctx)
	})
}

type valuationItem struct {
	productID string
	quantity  int
}

func (s *AnalyticsService) rollup(ctx context.Context) (*InventoryAnalyticsDTO, error) {
	analytics := &InventoryAnalyticsDTO{
		MostDepleted: make([]LowStockProductDTO, 0, DefaultMostDepletedLimit),
		GeneratedAt:  time.Now(),
	}

	var (
		lowStock []LowStockProductDTO
		toPrice  []valuationItem
	)

	err := s.records.ForEach(ctx, func(record *domain.InventoryRecord) error {
		analytics.TotalProducts++
		analytics.TotalQuantity += record.Quantity
		analytics.TotalReserved += record.Reserved
		analytics.TotalAvailable += record.Available

		if record.IsLowStock {
			analytics.LowStockCount++
			lowStock = append(lowStock, LowStockProductDTO{
				ProductID:         record.ProductID,
				Quantity:          record.Quantity,
				Available:         record.Available,
				LowStockThreshold: record.LowStockThreshold,
			})
		}
		if record.IsOutOfStock() {
			analytics.OutOfStockCount++
		}
		if s.catalog != nil && record.Quantity > 0 {
			toPrice = append(toPrice, valuationItem{productID: record.ProductID, quantity: record.Quantity})
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to scan inventory for analytics", "error", err)
		return nil, fmt.Errorf("failed to scan inventory: %w", err)
	}

	analytics.LowStockPercentage = percentage(analytics.LowStockCount, analytics.TotalProducts)
	analytics.OutOfStockPercentage = percentage(analytics.OutOfStockCount, analytics.TotalProducts)

	sort.Slice(lowStock, func(i, j int) bool {
		return lowStock[i].Quantity < lowStock[j].Quantity
	})
	if len(lowStock) > DefaultMostDepletedLimit {
		lowStock = lowStock[:DefaultMostDepletedLimit]
	}
	analytics.MostDepleted = append(analytics.MostDepleted, lowStock...)

	// Valuation happens after the cursor closes so the catalog's latency
	// never stretches the record scan
	s.appendValuation(ctx, analytics, toPrice)

	return analytics, nil
}

// appendValuation sums quantity times unit price over the priced products.
// Products the catalog cannot price are skipped and counted.
func (s *AnalyticsService) appendValuation(ctx context.Context, analytics *InventoryAnalyticsDTO, toPrice []valuationItem) {
	var (
		valuation    domain.Money
		hasValuation bool
	)

	for _, item := range toPrice {
		price, err := s.catalog.GetUnitPrice(ctx, item.productID)
		if err != nil {
			analytics.UnpricedProducts++
			if !errors.Is(err, domain.ErrProductNotPriced) {
				s.logger.Warn("Catalog price lookup failed", "productId", item.productID, "error", err)
			}
			continue
		}

		line, err := price.Multiply(item.quantity)
		if err != nil {
			analytics.UnpricedProducts++
			continue
		}

		if !hasValuation {
			valuation = line
			hasValuation = true
			continue
		}

		sum, err := valuation.Add(line)
		if err != nil {
			analytics.UnpricedProducts++
			s.logger.Warn("Skipping product priced in a different currency",
				"productId", item.productID,
				"currency", price.Currency(),
			)
			continue
		}
		valuation = sum
	}

	if hasValuation {
		analytics.TotalValuation = &MoneyDTO{
			Amount:   valuation.Amount(),
			Currency: valuation.Currency(),
		}
	}
}

// percentage returns part over total as a percentage rounded to two decimals
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}
