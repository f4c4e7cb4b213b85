package domain

import "context"

// CatalogClient defines the port to the product catalog service. It only backs
// analytics valuation and consistency audits, ledger mutations never call out.
type CatalogClient interface {
	// ProductExists reports whether the catalog knows the product
	ProductExists(ctx context.Context, productID string) (bool, error)

	// GetUnitPrice retrieves the current unit price, ErrProductNotPriced when
	// the catalog has no price for the product
	GetUnitPrice(ctx context.Context, productID string) (Money, error)
}

// LowStockNotifier defines the port for low stock alerting. Callers treat
// delivery as fire-and-forget, a failed alert never fails the mutation that
// triggered it.
type LowStockNotifier interface {
	NotifyLowStock(ctx context.Context, productID string, currentQuantity, threshold int) error
}
