package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mes-platform/production-service/pkg/cloudevents"
)

// BreakerProducer wraps a Producer with a circuit breaker so a broker
// outage fails fast instead of blocking request handlers.
type BreakerProducer struct {
	producer *Producer
	breaker  *gobreaker.CircuitBreaker
}

// NewBreakerProducer creates a circuit-breaker-protected producer
func NewBreakerProducer(producer *Producer) *BreakerProducer {
	settings := gobreaker.Settings{
		Name:        "kafka-producer",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &BreakerProducer{
		producer: producer,
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}
}

// PublishEvent publishes an event through the circuit breaker
func (b *BreakerProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.MESCloudEvent) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.producer.PublishEvent(ctx, topic, event)
	})
	if err != nil {
		return fmt.Errorf("publish via breaker: %w", err)
	}
	return nil
}

// State returns the current breaker state
func (b *BreakerProducer) State() gobreaker.State {
	return b.breaker.State()
}

// Close closes the underlying producer
func (b *BreakerProducer) Close() error {
	return b.producer.Close()
}
