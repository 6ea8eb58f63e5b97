// Package events emits onboarding lifecycle events.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	EventBusinessCreated   = "business.created"
	EventCompetitorCreated = "competitor.created"
)

type Publisher interface {
	Publish(ctx context.Context, event *kafka.Event) error
}

// Emitter handles event emission for onboarding
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitBusinessCreated emits a business created event
func (e *Emitter) EmitBusinessCreated(ctx context.Context, b models.Business) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBusinessCreated")
	defer span.End()

	return e.emit(ctx, &kafka.Event{
		EventType:  EventBusinessCreated,
		EntityID:   b.ID,
		EntityType: "business",
		BusinessID: b.ID,
	}, b)
}

// EmitCompetitorCreated emits a competitor created event
func (e *Emitter) EmitCompetitorCreated(ctx context.Context, c models.Competitor) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCompetitorCreated")
	defer span.End()

	return e.emit(ctx, &kafka.Event{
		EventType:  EventCompetitorCreated,
		EntityID:   c.ID,
		EntityType: "competitor",
		BusinessID: c.BusinessID,
	}, c)
}

func (e *Emitter) emit(ctx context.Context, event *kafka.Event, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	event.Data = raw

	if err := e.publisher.Publish(ctx, event); err != nil {
		metrics.RecordEventPublished(event.EventType, "error")
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", event.EventType)
		return err
	}
	metrics.RecordEventPublished(event.EventType, "ok")
	return nil
}
