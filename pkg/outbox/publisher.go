package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oms-platform/inventory-service/pkg/cloudevents"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/metrics"
)

// Producer publishes CloudEvents to a message broker.
type Producer interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.CloudEvent) error
}

// PublisherConfig holds configuration for the outbox publisher.
type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultPublisherConfig polls every second in batches of 100.
func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{PollInterval: time.Second, BatchSize: 100}
}

// Publisher drains the outbox to Kafka on a fixed interval. Delivery order
// follows creation time; a failed event keeps its place in line until its
// retry budget runs out.
type Publisher struct {
	repo      Repository
	producer  Producer
	logger    *logging.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	published int
	failed    int
}

// NewPublisher creates an outbox publisher. A nil config uses the defaults.
func NewPublisher(repo Repository, producer Producer, logger *logging.Logger, m *metrics.Metrics, config *PublisherConfig) *Publisher {
	if config == nil {
		config = DefaultPublisherConfig()
	}
	return &Publisher{
		repo:      repo,
		producer:  producer,
		metrics:   m,
		logger:    logger,
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
	}
}

// Start launches the drain loop. It errors if the publisher already runs.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("publisher already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info("Starting outbox publisher", "interval", p.interval, "batchSize", p.batchSize)
	go p.run(runCtx, p.done)
	return nil
}

// Stop halts the drain loop and waits for the in-flight batch to finish.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.cancel == nil {
		p.mu.Unlock()
		return fmt.Errorf("publisher not running")
	}
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	<-done

	p.mu.Lock()
	published, failed := p.published, p.failed
	p.mu.Unlock()

	p.logger.Info("Outbox publisher stopped", "published", published, "failed", failed)
	return nil
}

func (p *Publisher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

// drain delivers one batch of pending events.
func (p *Publisher) drain(ctx context.Context) {
	events, err := p.repo.FindUnpublished(ctx, p.batchSize)
	if err != nil {
		p.logger.WithError(err).Error("Failed to load pending outbox events")
		return
	}

	p.metrics.SetOutboxPending(len(events))
	if len(events) == 0 {
		return
	}

	p.logger.Info("Draining outbox", "count", len(events))

	for _, event := range events {
		if err := p.deliver(ctx, event); err != nil {
			p.record(false)
			p.logger.WithError(err).Error("Failed to publish outbox event",
				"eventId", event.ID,
				"eventType", event.EventType,
				"aggregateId", event.AggregateID,
			)
			if err := p.repo.IncrementRetry(ctx, event.ID, err.Error()); err != nil {
				p.logger.WithError(err).Error("Failed to record delivery failure", "eventId", event.ID)
			}
			continue
		}

		p.record(true)
		if err := p.repo.MarkPublished(ctx, event.ID); err != nil {
			// The event will be delivered again next round; consumers
			// must dedupe on the event id.
			p.logger.WithError(err).Error("Failed to mark event as published", "eventId", event.ID)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, event *OutboxEvent) error {
	start := time.Now()

	cloudEvent, err := event.ToCloudEvent()
	if err != nil {
		return fmt.Errorf("decode stored payload: %w", err)
	}
	if err := p.producer.PublishEvent(ctx, event.Topic, cloudEvent); err != nil {
		return fmt.Errorf("publish to %s: %w", event.Topic, err)
	}

	p.logger.Info("Published event from outbox",
		"eventId", event.ID,
		"topic", event.Topic,
		"eventType", event.EventType,
		"aggregateId", event.AggregateID,
		"duration", time.Since(start),
	)
	return nil
}

func (p *Publisher) record(success bool) {
	p.metrics.RecordOutboxPublished(success)

	p.mu.Lock()
	if success {
		p.published++
	} else {
		p.failed++
	}
	p.mu.Unlock()
}
