package subscribers

import (
	"context"

	"github.com/wolfeidau/guildhall/internal/events"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics counts delivered domain events per kind, and level ups per
// resulting level.
type Metrics struct{}

func (Metrics) Name() string { return "metrics" }

func (Metrics) Handle(ctx context.Context, e events.Event) error {
	m := telemetry.GetMetrics()
	m.DomainEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(e.Kind()))))

	if ev, ok := e.(models.CharacterLevelledUp); ok {
		m.LevelUpsTotal.Add(ctx, int64(ev.Current-ev.Previous))
	}
	return nil
}
