package alerting

import (
	"context"
	"fmt"

	"github.com/oms-platform/inventory-service/pkg/cloudevents"
	"github.com/oms-platform/inventory-service/pkg/kafka"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/metrics"
	"github.com/oms-platform/inventory-service/pkg/resilience"
)

// KafkaNotifier pushes low stock alerts straight to the alerts topic. Unlike
// the business events this path skips the outbox: an alert is a point-in-time
// signal, callers swallow failures and the next threshold crossing re-fires it.
// Implements domain.LowStockNotifier.
type KafkaNotifier struct {
	producer *kafka.InstrumentedProducer
	factory  *cloudevents.EventFactory
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewKafkaNotifier creates a Kafka-backed low stock notifier
func NewKafkaNotifier(
	producer *kafka.InstrumentedProducer,
	factory *cloudevents.EventFactory,
	breaker *resilience.CircuitBreaker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		factory:  factory,
		breaker:  breaker,
		metrics:  m,
		logger:   logger,
	}
}

// NotifyLowStock publishes a low stock alert for the product
func (n *KafkaNotifier) NotifyLowStock(ctx context.Context, productID string, currentQuantity, threshold int) error {
	event := n.factory.CreateLowStockAlertEvent(ctx, productID, currentQuantity, threshold)

	_, err := n.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, n.producer.PublishEvent(ctx, kafka.Topics.InventoryAlerts, event)
	})
	if err != nil {
		n.metrics.RecordLowStockAlert(false)
		return fmt.Errorf("failed to publish low stock alert: %w", err)
	}

	n.metrics.RecordLowStockAlert(true)
	n.logger.InfoContext(ctx, "Low stock alert published",
		"product_id", productID,
		"current_quantity", currentQuantity,
		"threshold", threshold,
	)

	return nil
}
