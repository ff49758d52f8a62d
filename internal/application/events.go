package application

import (
	"context"

	"github.com/mes-platform/production-service/internal/domain"
)

// flushEvents publishes the events a stage collected during a committed
// operation and clears them. Extra events (reservation commits, raised
// issues) ride along in the same batch.
func flushEvents(ctx context.Context, publisher domain.EventPublisher, stage *domain.Stage, extra ...domain.DomainEvent) {
	events := append(stage.DomainEvents(), extra...)
	if len(events) == 0 {
		return
	}
	_ = publisher.PublishEvents(ctx, events...)
	stage.ClearDomainEvents()
}
