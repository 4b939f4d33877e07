package server

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/guildhall/internal/auth"
	"github.com/wolfeidau/guildhall/internal/pipeline"
)

const (
	// NotificationFailedHeader is set on a successful response when one or
	// more event subscribers failed after the change was committed.
	NotificationFailedHeader = "Guildhall-Notification-Failed"

	// ViolationHeader carries one "field:rule" pair per failed validation
	// rule on InvalidArgument errors.
	ViolationHeader = "Guildhall-Violation"

	// DenialHeader names the denial reason on Unauthenticated and
	// PermissionDenied errors.
	DenialHeader = "Guildhall-Denial-Reason"
)

// toConnectError maps pipeline failures onto connect codes.
func toConnectError(ctx context.Context, err error) error {
	var (
		denied     *auth.DeniedError
		invalid    *pipeline.ValidationError
		domain     *pipeline.DomainError
		unexpected *pipeline.UnexpectedError
	)

	switch {
	case errors.As(err, &denied):
		code := connect.CodePermissionDenied
		if denied.Reason.IsSessionReason() {
			code = connect.CodeUnauthenticated
		}
		cerr := connect.NewError(code, denied)
		cerr.Meta().Set(DenialHeader, string(denied.Reason))
		return cerr

	case errors.As(err, &invalid):
		cerr := connect.NewError(connect.CodeInvalidArgument, invalid)
		for _, v := range invalid.Violations {
			cerr.Meta().Add(ViolationHeader, v.Field+":"+v.Rule)
		}
		return cerr

	case errors.As(err, &domain):
		switch domain.Kind {
		case pipeline.KindNotFound:
			return connect.NewError(connect.CodeNotFound, errors.New(domain.Message))
		case pipeline.KindConflict:
			return connect.NewError(connect.CodeAlreadyExists, errors.New(domain.Message))
		default:
			return connect.NewError(connect.CodeFailedPrecondition, errors.New(domain.Message))
		}

	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)

	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)

	case errors.As(err, &unexpected):
		zerolog.Ctx(ctx).Error().
			Err(unexpected.Cause).
			Str("operation", unexpected.Operation).
			Msg("Operation failed unexpectedly")
	default:
		zerolog.Ctx(ctx).Error().Err(err).Msg("Unclassified operation failure")
	}

	return connect.NewError(connect.CodeInternal, errors.New("unexpected failure"))
}
