// Package asyncapi validates the CloudEvents this service publishes against
// the message schemas declared in docs/asyncapi.yaml.
package asyncapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// CloudEvent is the envelope shape checked by the validator.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            string      `json:"time,omitempty"`
	DataContentType string      `json:"datacontenttype,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// Schema component names follow the <PascalEvent>Data convention; this table
// ties each one back to the event type on the wire.
var eventTypeBySchema = map[string]string{
	"InventoryInitialized": "oms.inventory.initialized",
	"InventoryAdjusted":    "oms.inventory.adjusted",
	"StockReserved":        "oms.inventory.reserved",
	"ReservationReleased":  "oms.inventory.released",
	"ReservationCompleted": "oms.inventory.reservation-completed",
	"ReservationExpired":   "oms.inventory.reservation-expired",
	"LowStockAlert":        "oms.inventory.low-stock-alert",
}

func eventTypeFor(schemaName string) string {
	name := strings.TrimSuffix(schemaName, "Data")
	name = strings.TrimSuffix(name, "Event")
	return eventTypeBySchema[name]
}

// asyncAPIDoc picks out the only part of the document the validator needs.
type asyncAPIDoc struct {
	Components struct {
		Schemas map[string]interface{} `yaml:"schemas"`
	} `yaml:"components"`
}

// EventValidator validates event payloads against compiled component schemas,
// keyed by event type.
type EventValidator struct {
	schemas  map[string]*jsonschema.Schema
	compiler *jsonschema.Compiler
}

// NewEventValidator loads an AsyncAPI document from disk.
func NewEventValidator(path string) (*EventValidator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read AsyncAPI document: %w", err)
	}
	return NewEventValidatorFromBytes(data)
}

// NewEventValidatorFromBytes compiles every recognized component schema in the
// document. Components without a known event type mapping are ignored.
func NewEventValidatorFromBytes(doc []byte) (*EventValidator, error) {
	var parsed asyncAPIDoc
	if err := yaml.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("parse AsyncAPI document: %w", err)
	}

	v := &EventValidator{
		schemas:  make(map[string]*jsonschema.Schema),
		compiler: jsonschema.NewCompiler(),
	}

	for name, raw := range parsed.Components.Schemas {
		eventType := eventTypeFor(name)
		if eventType == "" {
			continue
		}

		// The YAML decoder produces map[string]interface{} keys; a JSON
		// round trip gives the schema compiler the types it expects.
		schemaJSON, err := json.Marshal(raw)
		if err != nil {
			continue
		}
		compiled, err := v.compile(fmt.Sprintf("asyncapi://schemas/%s", name), schemaJSON)
		if err != nil {
			continue
		}
		v.schemas[eventType] = compiled
	}

	return v, nil
}

func (v *EventValidator) compile(uri string, schemaJSON []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := v.compiler.AddResource(uri, doc); err != nil {
		return nil, fmt.Errorf("register schema %s: %w", uri, err)
	}
	compiled, err := v.compiler.Compile(uri)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", uri, err)
	}
	return compiled, nil
}

// ValidateEvent checks the event's data payload against the schema registered
// for its type.
func (v *EventValidator) ValidateEvent(event CloudEvent) error {
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	schema, ok := v.schemas[event.Type]
	if !ok {
		return fmt.Errorf("no schema found for event type: %s", event.Type)
	}
	if event.Data == nil {
		return fmt.Errorf("event data is required")
	}

	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	data, err := jsonschema.UnmarshalJSON(bytes.NewReader(dataJSON))
	if err != nil {
		return fmt.Errorf("unmarshal event data: %w", err)
	}

	if err := schema.Validate(data); err != nil {
		return fmt.Errorf("event data validation failed for type %s: %w", event.Type, err)
	}
	return nil
}

// ValidateEventJSON parses a serialized CloudEvent and validates it.
func (v *EventValidator) ValidateEventJSON(eventJSON []byte) error {
	var event CloudEvent
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		return fmt.Errorf("parse CloudEvent: %w", err)
	}
	return v.ValidateEvent(event)
}

// GetSupportedEventTypes lists every event type with a registered schema.
func (v *EventValidator) GetSupportedEventTypes() []string {
	var types []string
	for eventType := range v.schemas {
		types = append(types, eventType)
	}
	return types
}

// HasSchema reports whether a schema is registered for the event type.
func (v *EventValidator) HasSchema(eventType string) bool {
	_, ok := v.schemas[eventType]
	return ok
}

// RegisterSchema adds a schema for an event type outside the document, which
// tests use to cover payloads the document does not describe yet.
func (v *EventValidator) RegisterSchema(eventType string, schemaJSON []byte) error {
	compiled, err := v.compile(fmt.Sprintf("custom://schemas/%s", eventType), schemaJSON)
	if err != nil {
		return err
	}
	v.schemas[eventType] = compiled
	return nil
}
