package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/oms-platform/inventory-service/pkg/errors"
	"github.com/oms-platform/inventory-service/pkg/metrics"
)

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	Name                  string
	MaxRequests           uint32        // requests allowed through while half-open
	Interval              time.Duration // window after which closed-state counts reset, 0 keeps them forever
	Timeout               time.Duration // how long the breaker stays open before probing
	FailureThreshold      uint32        // consecutive failures that trip the breaker
	FailureRatioThreshold float64       // failure ratio that trips once enough requests were seen
	MinRequestsToTrip     uint32        // requests required before the ratio rule applies
}

// DefaultCircuitBreakerConfig returns the settings used for downstream calls.
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:                  name,
		MaxRequests:           3,
		Interval:              60 * time.Second,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
		FailureRatioThreshold: 0.5,
		MinRequestsToTrip:     10,
	}
}

// readyToTrip opens the breaker on a consecutive-failure burst, or on a bad
// failure ratio once the sample is large enough to mean something.
func (c *CircuitBreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= c.FailureThreshold {
		return true
	}
	if counts.Requests < c.MinRequestsToTrip {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatioThreshold
}

// CircuitBreaker wraps gobreaker with logging and state metrics.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
	logger  *slog.Logger
}

// NewCircuitBreaker creates a circuit breaker. A nil metrics instance skips
// state reporting, which the offline tooling relies on.
func NewCircuitBreaker(config *CircuitBreakerConfig, logger *slog.Logger, m *metrics.Metrics) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:          config.Name,
		Timeout:       config.Timeout,
		Interval:      config.Interval,
		MaxRequests:   config.MaxRequests,
		ReadyToTrip:   config.readyToTrip,
		OnStateChange: stateChangeHook(logger, m),
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    config.Name,
		logger:  logger,
	}
}

func stateChangeHook(logger *slog.Logger, m *metrics.Metrics) func(string, gobreaker.State, gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		logger.Warn("Circuit breaker state changed",
			"name", name,
			"from", from.String(),
			"to", to.String(),
		)
		if m == nil {
			return
		}
		m.SetCircuitBreakerState(name, int(to))
		if to == gobreaker.StateOpen {
			m.RecordCircuitBreakerTrip(name)
		}
	}
}

// Execute runs fn through the breaker. Rejections surface as a service
// unavailable error so handlers map them to 503 without special cases.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		c.logger.Warn("Circuit breaker rejected call", "name", c.name, "reason", err.Error())
		return nil, errors.ErrServiceUnavailable(c.name).Wrap(err)
	}

	return result, err
}

// CircuitBreakerRegistry hands out one breaker per downstream dependency.
type CircuitBreakerRegistry struct {
	breakers map[string]*CircuitBreaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewCircuitBreakerRegistry creates an empty registry.
func NewCircuitBreakerRegistry(logger *slog.Logger, m *metrics.Metrics) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
		metrics:  m,
	}
}

// Get returns the breaker for name, creating it with defaults on first use.
// Not safe for concurrent use; register breakers during startup.
func (r *CircuitBreakerRegistry) Get(name string) *CircuitBreaker {
	if b, ok := r.breakers[name]; ok {
		return b
	}

	b := NewCircuitBreaker(DefaultCircuitBreakerConfig(name), r.logger, r.metrics)
	r.breakers[name] = b
	return b
}
