package events

import (
	"context"
	"slices"
)

// Subscriber receives dispatched events. Delivery is at-least-once, so
// implementations must tolerate seeing the same event ID twice.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, e Event) error
}

type funcSubscriber struct {
	name string
	fn   func(ctx context.Context, e Event) error
}

func (f funcSubscriber) Name() string { return f.name }

func (f funcSubscriber) Handle(ctx context.Context, e Event) error { return f.fn(ctx, e) }

// SubscriberFunc adapts a function to the Subscriber interface.
func SubscriberFunc(name string, fn func(ctx context.Context, e Event) error) Subscriber {
	return funcSubscriber{name: name, fn: fn}
}

type registration struct {
	subscriber Subscriber
	kinds      []Kind // empty means every kind
}

// Registry maps event kinds to an ordered list of subscribers.
// It is built at startup; Subscribe must not be called once dispatching
// has started.
type Registry struct {
	registrations []registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Subscribe registers s for the given kinds. With no kinds, s receives
// every event.
func (r *Registry) Subscribe(s Subscriber, kinds ...Kind) *Registry {
	r.registrations = append(r.registrations, registration{
		subscriber: s,
		kinds:      slices.Clone(kinds),
	})
	return r
}

// SubscribersFor returns the subscribers for kind in registration order.
func (r *Registry) SubscribersFor(kind Kind) []Subscriber {
	var subs []Subscriber
	for _, reg := range r.registrations {
		if len(reg.kinds) == 0 || slices.Contains(reg.kinds, kind) {
			subs = append(subs, reg.subscriber)
		}
	}
	return subs
}
