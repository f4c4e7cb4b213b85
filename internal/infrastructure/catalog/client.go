package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/propagation"

	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/resilience"
	"github.com/oms-platform/inventory-service/pkg/tracing"
)

// Client calls the product catalog service over HTTP. All calls run through a
// circuit breaker so a degraded catalog cannot stall analytics or the monitor.
// Implements domain.CatalogClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     *logging.Logger
}

// productResponse is the catalog's product representation, reduced to what
// valuation needs
type productResponse struct {
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	UnitPrice *priceDTO `json:"unitPrice,omitempty"`
}

type priceDTO struct {
	Amount   int64  `json:"amount"` // smallest currency unit
	Currency string `json:"currency"`
}

// NewClient creates a catalog client with the given base URL
func NewClient(baseURL string, timeout time.Duration, breaker *resilience.CircuitBreaker, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: breaker,
		logger:  logger,
	}
}

// ProductExists reports whether the catalog knows the product
func (c *Client) ProductExists(ctx context.Context, productID string) (bool, error) {
	product, err := c.fetchProduct(ctx, productID)
	if err != nil {
		return false, err
	}

	return product != nil, nil
}

// GetUnitPrice retrieves the current unit price for a product. A missing
// product or a product without a price yields domain.ErrProductNotPriced.
func (c *Client) GetUnitPrice(ctx context.Context, productID string) (domain.Money, error) {
	product, err := c.fetchProduct(ctx, productID)
	if err != nil {
		return domain.Money{}, err
	}
	if product == nil || product.UnitPrice == nil {
		return domain.Money{}, domain.ErrProductNotPriced
	}

	price, err := domain.NewMoney(product.UnitPrice.Amount, product.UnitPrice.Currency)
	if err != nil {
		return domain.Money{}, fmt.Errorf("catalog returned invalid price for %s: %w", productID, err)
	}

	return price, nil
}

// fetchProduct returns nil without error when the catalog has no such product
func (c *Client) fetchProduct(ctx context.Context, productID string) (*productResponse, error) {
	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		url := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, productID)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		tracing.InjectTraceContext(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch product: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return (*productResponse)(nil), nil
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
		}

		var product productResponse
		if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
			return nil, fmt.Errorf("failed to decode product response: %w", err)
		}

		return &product, nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "Catalog lookup failed",
			"product_id", productID,
			"error", err.Error(),
		)
		return nil, err
	}

	return result.(*productResponse), nil
}
