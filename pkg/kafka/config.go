package kafka

import (
	"time"
)

// Config holds producer settings shared by all topic writers.
type Config struct {
	Brokers  []string
	ClientID string

	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0 none, 1 leader, -1 all replicas
}

// Topics names the inventory topics. Domain events and alerts are separate
// streams with different retention.
var Topics = struct {
	InventoryEvents string
	InventoryAlerts string
}{
	InventoryEvents: "oms.inventory.events",
	InventoryAlerts: "oms.inventory.alerts",
}

// TopicConfig describes one topic for provisioning.
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	// RetentionMs maps to the broker's retention.ms topic config.
	RetentionMs int64
}

// DefaultTopicConfigs returns the provisioning layout: events keep a week,
// alerts a month.
func DefaultTopicConfigs() []TopicConfig {
	return []TopicConfig{
		{Name: Topics.InventoryEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: 7 * 24 * 60 * 60 * 1000},
		{Name: Topics.InventoryAlerts, Partitions: 3, ReplicationFactor: 3, RetentionMs: 30 * 24 * 60 * 60 * 1000},
	}
}
