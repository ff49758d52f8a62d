package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventFactory creates CloudEvents for MES domain events
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new MESCloudEvent with the given parameters
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *MESCloudEvent {
	return &MESCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// CreateStageEvent creates a stage lifecycle event
func (f *EventFactory) CreateStageEvent(
	ctx context.Context,
	eventType string,
	data StageTransitionData,
) *MESCloudEvent {
	event := f.CreateEvent(ctx, eventType, "stage/"+data.StageID, data)
	event.StageID = data.StageID
	event.OrderID = data.OrderID
	return event
}

// CreateNotificationEvent creates a NotificationRequested event
func (f *EventFactory) CreateNotificationEvent(
	ctx context.Context,
	recipient string,
	kind string,
	subjectID string,
	payload interface{},
) *MESCloudEvent {
	data := NotificationData{
		Recipient: recipient,
		Kind:      kind,
		SubjectID: subjectID,
		Payload:   payload,
	}
	return f.CreateEvent(ctx, NotificationRequested, "notification/"+subjectID, data)
}

// CreateOrderCompletedEvent creates an OrderCompleted event
func (f *EventFactory) CreateOrderCompletedEvent(ctx context.Context, orderID string, completedAt time.Time) *MESCloudEvent {
	data := OrderCompletedData{
		OrderID:     orderID,
		CompletedAt: completedAt.UTC(),
	}
	event := f.CreateEvent(ctx, OrderCompleted, "order/"+orderID, data)
	event.OrderID = orderID
	return event
}
