package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/guildhall/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SubscriberLookup resolves the subscribers interested in an event kind.
type SubscriberLookup interface {
	SubscribersFor(kind Kind) []Subscriber
}

// SubscriberError records one failed delivery.
type SubscriberError struct {
	Subscriber string
	Kind       Kind
	EventID    uuid.UUID
	Err        error
}

func (e *SubscriberError) Error() string {
	return fmt.Sprintf("subscriber %s failed on %s event %s: %v", e.Subscriber, e.Kind, e.EventID, e.Err)
}

func (e *SubscriberError) Unwrap() error { return e.Err }

// DispatchError bundles every subscriber failure from one dispatch. It is
// only ever returned after the events were committed, so the operation that
// raised them still succeeded.
type DispatchError struct {
	Causes []*SubscriberError
}

func (e *DispatchError) Error() string {
	msgs := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		msgs = append(msgs, c.Error())
	}
	return fmt.Sprintf("event dispatch failed (%d): %s", len(e.Causes), strings.Join(msgs, "; "))
}

func (e *DispatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Causes))
	for _, c := range e.Causes {
		errs = append(errs, c)
	}
	return errs
}

// Dispatcher delivers events to the subscribers registered for their kind.
type Dispatcher struct {
	subscribers SubscriberLookup
}

// NewDispatcher creates a dispatcher over the given subscriber lookup.
func NewDispatcher(subscribers SubscriberLookup) *Dispatcher {
	return &Dispatcher{subscribers: subscribers}
}

// Dispatch attempts every (event, subscriber) pair. A failing subscriber
// never stops delivery to the rest; all failures are returned together as
// a *DispatchError once every delivery has been attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, evs []Event) error {
	metrics := telemetry.GetMetrics()

	var causes []*SubscriberError
	for _, ev := range evs {
		kindAttr := metric.WithAttributes(attribute.String("kind", string(ev.Kind())))
		metrics.EventsDispatchedTotal.Add(ctx, 1, kindAttr)

		for _, sub := range d.subscribers.SubscribersFor(ev.Kind()) {
			err := deliver(ctx, sub, ev)
			if err == nil {
				continue
			}

			log.Error().
				Err(err).
				Str("event_kind", string(ev.Kind())).
				Str("event_id", ev.ID().String()).
				Str("subscriber", sub.Name()).
				Msg("Subscriber failed to handle event")

			metrics.SubscriberFailuresTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("kind", string(ev.Kind())),
				attribute.String("subscriber", sub.Name()),
			))

			causes = append(causes, &SubscriberError{
				Subscriber: sub.Name(),
				Kind:       ev.Kind(),
				EventID:    ev.ID(),
				Err:        err,
			})
		}
	}

	if len(causes) > 0 {
		return &DispatchError{Causes: causes}
	}
	return nil
}

// deliver invokes one subscriber, converting a panic into an error.
func deliver(ctx context.Context, sub Subscriber, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return sub.Handle(ctx, ev)
}
