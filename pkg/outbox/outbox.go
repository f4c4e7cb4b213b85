// Package outbox implements the transactional outbox side of event
// publishing. Events are committed to the outbox collection in the same
// transaction as the state change, then drained to Kafka by a background
// publisher.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oms-platform/inventory-service/pkg/cloudevents"
)

// MaxAttempts caps delivery retries per event. Both the stored document and
// the drain query use it, so exhausted events stop being picked up.
const MaxAttempts = 10

// OutboxEvent is one pending or delivered event in the outbox collection.
type OutboxEvent struct {
	ID      string          `bson:"_id" json:"id"`
	Topic   string          `bson:"topic" json:"topic"`
	Payload json.RawMessage `bson:"payload" json:"payload"`

	// Aggregate coordinates, for tracing an event back to its record.
	AggregateID   string `bson:"aggregateId" json:"aggregateId"`
	AggregateType string `bson:"aggregateType" json:"aggregateType"`
	EventType     string `bson:"eventType" json:"eventType"`

	// Delivery bookkeeping maintained by the publisher.
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	PublishedAt *time.Time `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount  int        `bson:"retryCount" json:"retryCount"`
	LastError   string     `bson:"lastError,omitempty" json:"lastError,omitempty"`
	MaxRetries  int        `bson:"maxRetries" json:"maxRetries"`
}

// NewOutboxEventFromCloudEvent wraps a CloudEvent for storage, keeping the
// serialized payload exactly as it will appear on the wire.
func NewOutboxEventFromCloudEvent(aggregateID, aggregateType, topic string, cloudEvent *cloudevents.CloudEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(cloudEvent)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	return &OutboxEvent{
		ID:            uuid.New().String(),
		Topic:         topic,
		Payload:       payload,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     cloudEvent.Type,
		CreatedAt:     time.Now(),
		MaxRetries:    MaxAttempts,
	}, nil
}

// ToCloudEvent deserializes the stored payload back into a CloudEvent.
func (e *OutboxEvent) ToCloudEvent() (*cloudevents.CloudEvent, error) {
	var cloudEvent cloudevents.CloudEvent
	if err := json.Unmarshal(e.Payload, &cloudEvent); err != nil {
		return nil, err
	}
	return &cloudEvent, nil
}
