package kafka

import (
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers  []string
	ClientID string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:  []string{"localhost:9092"},
		ClientID: "production-service",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1, // All replicas
	}
}

// Topics contains all MES Kafka topic names
var Topics = struct {
	ProductionEvents      string
	QualityEvents         string
	SchedulingEvents      string
	OrdersEvents          string
	NotificationsOutbound string
}{
	ProductionEvents:      "mes.production.events",
	QualityEvents:         "mes.quality.events",
	SchedulingEvents:      "mes.scheduling.events",
	OrdersEvents:          "mes.orders.events",
	NotificationsOutbound: "mes.notifications.outbound",
}
