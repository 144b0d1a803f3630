// internal/handler/errors.go
package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SyedDaiam9101/session-service/internal/engine"
	"github.com/SyedDaiam9101/session-service/internal/session"
)

// grpcError maps session and engine errors to gRPC status errors
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var (
		countMismatch *session.InputCountMismatchError
		unsupported   *session.UnsupportedSourceTypeError
	)
	switch {
	case errors.As(err, &countMismatch):
		return status.Errorf(codes.InvalidArgument, "%v", err)

	case errors.As(err, &unsupported):
		return status.Errorf(codes.InvalidArgument, "%v", err)

	case errors.Is(err, engine.ErrUnknownInput),
		errors.Is(err, engine.ErrMissingInput),
		errors.Is(err, engine.ErrUnknownOutput),
		errors.Is(err, engine.ErrInvalidTensor):
		return status.Errorf(codes.InvalidArgument, "%v", err)

	case errors.Is(err, engine.ErrProfilingDisabled),
		errors.Is(err, engine.ErrNotInitialized),
		errors.Is(err, engine.ErrNotLoaded):
		return status.Errorf(codes.FailedPrecondition, "%v", err)

	case errors.Is(err, session.ErrClosed):
		return status.Errorf(codes.Unavailable, "%v", err)

	case errors.Is(err, engine.ErrTerminated):
		return status.Errorf(codes.Canceled, "%v", err)

	default:
		return status.Errorf(codes.Internal, "inference execution failed: %v", err)
	}
}

// errorKind labels an error for the run error counter
func errorKind(err error) string {
	var countMismatch *session.InputCountMismatchError
	switch {
	case errors.As(err, &countMismatch):
		return "input_count"
	case errors.Is(err, engine.ErrUnknownInput), errors.Is(err, engine.ErrMissingInput):
		return "input_name"
	case errors.Is(err, engine.ErrUnknownOutput):
		return "output_name"
	case errors.Is(err, engine.ErrInvalidTensor):
		return "invalid_tensor"
	case errors.Is(err, engine.ErrTerminated):
		return "terminated"
	case errors.Is(err, engine.ErrNotInitialized), errors.Is(err, session.ErrClosed):
		return "unavailable"
	default:
		return "engine"
	}
}

// invalidArgumentError creates an InvalidArgument gRPC error
func invalidArgumentError(format string, args ...interface{}) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// unavailableError creates an Unavailable gRPC error
func unavailableError(format string, args ...interface{}) error {
	return status.Errorf(codes.Unavailable, format, args...)
}
