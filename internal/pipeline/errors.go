package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfeidau/guildhall/internal/auth"
	"github.com/wolfeidau/guildhall/internal/events"
	"github.com/wolfeidau/guildhall/internal/store"
)

// Violation is one failed validation rule.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Violations accumulates failed rules.
type Violations []Violation

// Add records a failed rule.
func (v *Violations) Add(field, rule, message string) {
	*v = append(*v, Violation{Field: field, Rule: rule, Message: message})
}

// ValidationError lists every rule an operation's input violated.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// DomainKind classifies a business-rule failure.
type DomainKind string

const (
	KindNotFound     DomainKind = "not_found"
	KindConflict     DomainKind = "conflict"
	KindPrecondition DomainKind = "precondition"
	KindNotOwner     DomainKind = "not_owner"
)

// DomainError is a business-rule failure raised deliberately by a handler.
// It aborts the unit of work.
type DomainError struct {
	Kind    DomainKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// Fail builds a DomainError.
func Fail(kind DomainKind, format string, args ...any) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// UnexpectedError wraps any failure the pipeline could not classify. Its
// message is fixed so callers never see internal detail; the cause stays
// reachable through Unwrap for logging.
type UnexpectedError struct {
	Operation string
	Cause     error
}

func (e *UnexpectedError) Error() string {
	return "unexpected failure"
}

func (e *UnexpectedError) Unwrap() error { return e.Cause }

// Succeeded reports whether an Execute result is valid. A dispatch failure
// happens after commit, so the operation itself succeeded.
func Succeeded(err error) bool {
	if err == nil {
		return true
	}
	var dispatchErr *events.DispatchError
	return errors.As(err, &dispatchErr)
}

// known reports whether err is part of the failure taxonomy and passes
// containment unchanged.
func known(err error) bool {
	var (
		denied     *auth.DeniedError
		invalid    *ValidationError
		domain     *DomainError
		dispatch   *events.DispatchError
		unexpected *UnexpectedError
	)
	switch {
	case errors.As(err, &denied),
		errors.As(err, &invalid),
		errors.As(err, &domain),
		errors.As(err, &dispatch),
		errors.As(err, &unexpected):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// translate maps store sentinels raised by handlers or commit onto domain
// failures.
func translate(err error) error {
	switch {
	case errors.Is(err, store.ErrCharacterNameTaken),
		errors.Is(err, store.ErrAccountAlreadyExists):
		return &DomainError{Kind: KindConflict, Message: err.Error(), Err: err}
	case errors.Is(err, store.ErrCharacterNotFound),
		errors.Is(err, store.ErrAccountNotFound):
		return &DomainError{Kind: KindNotFound, Message: err.Error(), Err: err}
	}
	return err
}

// outcome names the result class of an operation for logs and metrics.
func outcome(err error) string {
	var (
		denied   *auth.DeniedError
		invalid  *ValidationError
		domain   *DomainError
		dispatch *events.DispatchError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &denied):
		return "denied"
	case errors.As(err, &invalid):
		return "invalid"
	case errors.As(err, &domain):
		return "domain_failure"
	case errors.As(err, &dispatch):
		return "dispatch_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unexpected"
	}
}
