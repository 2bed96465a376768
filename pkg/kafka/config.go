package kafka

import "time"

// Config holds Kafka configuration
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	// Consumer settings
	MinBytes      int
	MaxBytes      int
	MaxWait       time.Duration
	CommitTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "warehouse-core",
		ClientID:      "warehouse-core",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,

		MinBytes:      1,
		MaxBytes:      10e6,
		MaxWait:       500 * time.Millisecond,
		CommitTimeout: 5 * time.Second,
	}
}

// Topics used by the warehouse core
var Topics = struct {
	// WarehouseEvents receives every domain event relayed from the outbox
	WarehouseEvents string
	// WarehouseMovements carries movement commands from scanners and upstream systems
	WarehouseMovements string
}{
	WarehouseEvents:    "wms.warehouse.events",
	WarehouseMovements: "wms.warehouse.movements",
}
