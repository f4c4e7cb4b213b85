package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/oms-platform/inventory-service/pkg/cloudevents"
)

// Producer publishes CloudEvents to Kafka, lazily opening one writer per
// topic.
type Producer struct {
	mu      sync.RWMutex
	writers map[string]*kafka.Writer
	config  *Config
}

// NewProducer creates a producer. Writers are opened on first publish.
func NewProducer(config *Config) *Producer {
	return &Producer{
		config:  config,
		writers: make(map[string]*kafka.Writer),
	}
}

func (p *Producer) writer(topic string) *kafka.Writer {
	p.mu.RLock()
	w, ok := p.writers[topic]
	p.mu.RUnlock()
	if ok {
		return w
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writers[topic]; ok {
		return w
	}

	w = &kafka.Writer{
		Topic:        topic,
		Addr:         kafka.TCP(p.config.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequiredAcks(p.config.RequiredAcks),
		BatchSize:    p.config.BatchSize,
		BatchTimeout: p.config.BatchTimeout,
	}
	p.writers[topic] = w
	return w
}

// toMessage serializes the event with its CloudEvents attributes duplicated
// as ce- headers, so consumers can route without parsing the body. The
// subject keys the message, keeping one product's events in partition order.
func toMessage(event *cloudevents.CloudEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "ce-specversion", Value: []byte(event.SpecVersion)},
		{Key: "ce-type", Value: []byte(event.Type)},
		{Key: "ce-source", Value: []byte(event.Source)},
		{Key: "ce-id", Value: []byte(event.ID)},
		{Key: "ce-time", Value: []byte(event.Time.Format(time.RFC3339))},
		{Key: "content-type", Value: []byte(event.DataContentType)},
	}
	if event.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: "ce-omscorrelationid", Value: []byte(event.CorrelationID)})
	}
	if event.OrderID != "" {
		headers = append(headers, kafka.Header{Key: "ce-omsorderid", Value: []byte(event.OrderID)})
	}

	return kafka.Message{
		Key:     []byte(event.Subject),
		Value:   data,
		Headers: headers,
		Time:    event.Time,
	}, nil
}

// PublishEvent publishes one CloudEvent to the topic and waits for the
// configured acks.
func (p *Producer) PublishEvent(ctx context.Context, topic string, event *cloudevents.CloudEvent) error {
	msg, err := toMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish event to topic %s: %w", topic, err)
	}
	return nil
}

// Close closes every topic writer, returning the last error seen.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			lastErr = fmt.Errorf("close writer for topic %s: %w", topic, err)
		}
	}
	return lastErr
}
