package notify

import (
	"context"
	"strings"
	"time"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/cloudevents"
	"github.com/mes-platform/production-service/pkg/kafka"
	"github.com/mes-platform/production-service/pkg/logging"
	"github.com/mes-platform/production-service/pkg/metrics"
)

const publishTimeout = 10 * time.Second

// EventProducer publishes CloudEvents to a Kafka topic. Satisfied by
// both the plain producer and its circuit-breaker wrapper.
type EventProducer interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.MESCloudEvent) error
}

// KafkaNotifier dispatches best-effort notification and order events to
// Kafka. It implements domain.Notifier, domain.OrderNotifier and
// domain.EventPublisher.
//
// Notifications are fire-and-forget: delivery happens on a background
// goroutine and failures are logged and counted, never returned, so a
// broker outage cannot fail a floor operation.
type KafkaNotifier struct {
	producer EventProducer
	factory  *cloudevents.EventFactory
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewKafkaNotifier creates a new KafkaNotifier
func NewKafkaNotifier(producer EventProducer, factory *cloudevents.EventFactory, logger *logging.Logger, m *metrics.Metrics) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		factory:  factory,
		logger:   logger,
		metrics:  m,
	}
}

// Notify publishes a NotificationRequested event to the outbound
// notifications topic
func (n *KafkaNotifier) Notify(ctx context.Context, recipient, kind, subjectID string, payload interface{}) error {
	event := n.factory.CreateNotificationEvent(ctx, recipient, kind, subjectID, payload)

	go func() {
		publishCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := n.producer.PublishEvent(publishCtx, kafka.Topics.NotificationsOutbound, event); err != nil {
			n.metrics.RecordNotificationFailure()
			n.logger.WithError(err).Warn("Failed to publish notification",
				"recipient", recipient,
				"kind", kind,
				"subjectId", subjectID,
			)
		}
	}()

	return nil
}

// PublishEvents broadcasts aggregate events collected during a
// committed operation, wrapped as CloudEvents and routed to the topic
// matching their type. Best-effort like notifications: delivery runs in
// the background and failures are logged and counted, never returned.
func (n *KafkaNotifier) PublishEvents(ctx context.Context, events ...domain.DomainEvent) error {
	for _, event := range events {
		wrapped := n.factory.CreateEvent(ctx, event.EventType(), event.AggregateID(), event)
		topic := topicFor(event.EventType())

		go func(topic string, wrapped *cloudevents.MESCloudEvent) {
			publishCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()

			if err := n.producer.PublishEvent(publishCtx, topic, wrapped); err != nil {
				n.metrics.RecordEventPublishFailure()
				n.logger.WithError(err).Warn("Failed to publish domain event",
					"eventType", wrapped.Type,
					"subject", wrapped.Subject,
					"topic", topic,
				)
			}
		}(topic, wrapped)
	}
	return nil
}

func topicFor(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "mes.qc."):
		return kafka.Topics.QualityEvents
	case strings.HasPrefix(eventType, "mes.machine."):
		return kafka.Topics.SchedulingEvents
	default:
		return kafka.Topics.ProductionEvents
	}
}

// OrderCompleted publishes an OrderCompleted event to the orders topic.
// Unlike notifications this is awaited: the caller decides how to treat
// a failure.
func (n *KafkaNotifier) OrderCompleted(ctx context.Context, orderID string, completedAt time.Time) error {
	event := n.factory.CreateOrderCompletedEvent(ctx, orderID, completedAt)
	return n.producer.PublishEvent(ctx, kafka.Topics.OrdersEvents, event)
}
