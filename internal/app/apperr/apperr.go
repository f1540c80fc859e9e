// Package apperr translates application errors into gRPC status codes, the
// error vocabulary shared by the HTTP and gRPC surfaces.
package apperr

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/commands"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/middleware"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/queries"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/messaging"
)

// Code classifies err.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return st.Code()
	}
	switch {
	case errors.Is(err, messaging.ErrUnauthenticated):
		return codes.Unauthenticated
	case errors.Is(err, messaging.ErrNotParticipant):
		return codes.PermissionDenied
	case errors.Is(err, messaging.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, messaging.ErrMessageDeleted):
		return codes.FailedPrecondition
	case errors.Is(err, messaging.ErrMissingPeer),
		errors.Is(err, messaging.ErrSelfConversation),
		errors.Is(err, messaging.ErrEmptyContent),
		errors.Is(err, messaging.ErrContentTooLong),
		errors.Is(err, messaging.ErrInvalidEmoji),
		errors.Is(err, messaging.ErrEmptyQuery),
		errors.Is(err, messaging.ErrInvalidCursor),
		errors.Is(err, middleware.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, middleware.ErrRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, commands.ErrHandlerNotFound), errors.Is(err, queries.ErrHandlerNotFound):
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}

// Status converts err to a gRPC status. Internal errors hide their message.
func Status(err error) *status.Status {
	code := Code(err)
	switch code {
	case codes.OK:
		return status.New(codes.OK, "")
	case codes.Internal:
		return status.New(codes.Internal, "internal error")
	default:
		if st, ok := status.FromError(err); ok && st.Code() == code {
			return st
		}
		return status.New(code, err.Error())
	}
}
