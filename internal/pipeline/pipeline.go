// Package pipeline runs every operation through a fixed chain of stages:
// containment, authorization, validation, logging, the handler with its
// unit of work, and event dispatch after commit. Performance observation
// spans the whole chain.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/guildhall/internal/auth"
	"github.com/wolfeidau/guildhall/internal/events"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
	"github.com/wolfeidau/guildhall/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const DefaultSlowThreshold = 500 * time.Millisecond

// Authorizer evaluates an operation's requirement for a caller.
type Authorizer interface {
	Authorize(ctx context.Context, req auth.Requirement, caller auth.Caller) (*models.Session, error)
}

// EventDispatcher delivers committed events.
type EventDispatcher interface {
	Dispatch(ctx context.Context, evs []events.Event) error
}

// Request is what a handler sees of the current call.
type Request struct {
	Caller  auth.Caller
	Session *models.Session // nil when the caller has no session
	Tx      store.UnitOfWork
}

// Validator checks an operation's input and returns every violation found.
// An error means the checks themselves could not run.
type Validator func(ctx context.Context, caller auth.Caller, sess *models.Session) ([]Violation, error)

// Handler is the business logic of an operation.
type Handler[R any] func(ctx context.Context, req *Request) (R, error)

// Operation is one command or query with its declared requirement.
type Operation[R any] struct {
	Name        string
	Requirement auth.Requirement
	Validate    Validator
	Handle      Handler[R]

	// ReadOnly operations never commit; their unit of work is rolled back.
	ReadOnly bool
}

// Pipeline holds the collaborators shared by every operation.
type Pipeline struct {
	guard         Authorizer
	units         store.UnitOfWorkFactory
	dispatcher    EventDispatcher
	slowThreshold time.Duration
	now           func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSlowThreshold sets the elapsed time above which an operation is
// reported as slow. 0 disables the warning.
func WithSlowThreshold(d time.Duration) Option {
	return func(p *Pipeline) { p.slowThreshold = d }
}

// WithClock replaces the time source used for performance observation.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline.
func New(guard Authorizer, units store.UnitOfWorkFactory, dispatcher EventDispatcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		guard:         guard,
		units:         units,
		dispatcher:    dispatcher,
		slowThreshold: DefaultSlowThreshold,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs op for caller. The error is nil, or one of *auth.DeniedError,
// *ValidationError, *DomainError, *events.DispatchError (with a valid
// result), *UnexpectedError, or a context error.
func Execute[R any](ctx context.Context, p *Pipeline, caller auth.Caller, op Operation[R]) (result R, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, op.Name, trace.WithAttributes(
		attribute.String("guildhall.operation", op.Name),
	))
	defer span.End()

	started := p.now()
	defer func() {
		p.observe(ctx, span, op.Name, p.now().Sub(started), err)
	}()

	return contain(ctx, op.Name, func(ctx context.Context) (R, error) {
		var zero R

		sess, err := p.guard.Authorize(ctx, op.Requirement, caller)
		if err != nil {
			return zero, err
		}

		if op.Validate != nil {
			violations, err := op.Validate(ctx, caller, sess)
			if err != nil {
				return zero, fmt.Errorf("failed to validate %s: %w", op.Name, err)
			}
			if len(violations) > 0 {
				return zero, &ValidationError{Violations: violations}
			}
		}

		zerolog.Ctx(ctx).Info().
			Str("operation", op.Name).
			Str("user_id", caller.UserID).
			Msg("Executing operation")

		return run(ctx, p, op, &Request{Caller: caller, Session: sess})
	})
}

// contain passes known failures through unchanged and wraps everything
// else, including panics, in an UnexpectedError.
func contain[R any](ctx context.Context, name string, next func(context.Context) (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			result = zero
			err = &UnexpectedError{Operation: name, Cause: fmt.Errorf("panic: %v", r)}
			zerolog.Ctx(ctx).Error().
				Str("operation", name).
				Str("stack", string(debug.Stack())).
				Msgf("Operation panicked: %v", r)
		}
	}()

	result, err = next(ctx)
	if err == nil || known(err) {
		return result, err
	}

	zerolog.Ctx(ctx).Error().Err(err).Str("operation", name).Msg("Unexpected operation failure")

	var zero R
	return zero, &UnexpectedError{Operation: name, Cause: err}
}

// run executes the handler inside a unit of work, commits, then drains and
// dispatches the events of every aggregate the unit of work touched.
func run[R any](ctx context.Context, p *Pipeline, op Operation[R], req *Request) (R, error) {
	var zero R

	tx, err := p.units.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer func() {
		// no-op once committed
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()
	req.Tx = tx

	result, err := op.Handle(ctx, req)
	if err != nil {
		return zero, translate(err)
	}

	if op.ReadOnly {
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if _, err := tx.Commit(ctx); err != nil {
		return zero, translate(err)
	}

	evs := events.DrainAll(tx.Tracked())
	if len(evs) == 0 {
		return result, nil
	}

	// committed facts are delivered even if the caller has gone away
	if err := p.dispatcher.Dispatch(context.WithoutCancel(ctx), evs); err != nil {
		return result, err
	}

	return result, nil
}

func (p *Pipeline) observe(ctx context.Context, span trace.Span, name string, elapsed time.Duration, err error) {
	m := telemetry.GetMetrics()
	result := outcome(err)
	attrs := metric.WithAttributes(
		attribute.String("operation", name),
		attribute.String("outcome", result),
	)

	m.OperationsTotal.Add(ctx, 1, attrs)
	m.OperationDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)

	switch result {
	case "denied":
		m.DenialsTotal.Add(ctx, 1, attrs)
	case "invalid":
		m.ValidationFailuresTotal.Add(ctx, 1, attrs)
	case "unexpected":
		m.UnexpectedFailuresTotal.Add(ctx, 1, attrs)
	}

	span.SetAttributes(attribute.String("guildhall.outcome", result))
	if result == "unexpected" {
		span.SetStatus(codes.Error, err.Error())
	}

	if p.slowThreshold > 0 && elapsed > p.slowThreshold {
		m.SlowOperationsTotal.Add(ctx, 1, attrs)
		zerolog.Ctx(ctx).Warn().
			Str("operation", name).
			Str("outcome", result).
			Dur("elapsed", elapsed).
			Dur("threshold", p.slowThreshold).
			Msg("Slow operation")
	}
}
