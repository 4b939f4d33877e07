// Package events holds the domain event plumbing: the per-aggregate buffer,
// the subscriber registry and the dispatcher that delivers drained events
// once a unit of work has committed.
package events

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Kind tags a concrete event type. Subscribers are registered per kind.
type Kind string

// Event is an immutable fact recorded by an aggregate mutation.
type Event interface {
	ID() uuid.UUID
	OccurredAt() time.Time
	Kind() Kind
}

// Meta carries the identity and timestamp shared by every event.
// Concrete events embed it.
type Meta struct {
	EventID uuid.UUID `json:"event_id"`
	At      time.Time `json:"occurred_at"`
}

// NewMeta returns event metadata with a fresh UUIDv7 identifier.
func NewMeta(at time.Time) Meta {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Meta{EventID: id, At: at.UTC()}
}

func (m Meta) ID() uuid.UUID         { return m.EventID }
func (m Meta) OccurredAt() time.Time { return m.At }

// Buffer collects the events raised by a single aggregate instance.
// The zero value is ready to use. A Buffer belongs to one aggregate for the
// lifetime of one unit of work and is not safe for concurrent use.
type Buffer struct {
	pending []Event
}

// Record appends an event to the buffer.
func (b *Buffer) Record(e Event) {
	b.pending = append(b.pending, e)
}

// Pending returns a copy of the buffered events without clearing them.
func (b *Buffer) Pending() []Event {
	return slices.Clone(b.pending)
}

// Drain returns the buffered events and clears the buffer.
func (b *Buffer) Drain() []Event {
	drained := b.pending
	b.pending = nil
	return drained
}

// Source is implemented by aggregates that buffer events.
type Source interface {
	DrainEvents() []Event
}

// DrainAll drains every source once and concatenates the results in
// source order.
func DrainAll(sources []Source) []Event {
	var all []Event
	for _, src := range sources {
		all = append(all, src.DrainEvents()...)
	}
	return all
}
