package rpc

import (
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recoverToValue runs fn and converts a panic into a gRPC Internal error
// plus a zero value, logging the stack trace first. Used by GetFlightInfo
// and DoGet, which both execute a query and need the arrow.Record it
// produces, and by the unary interceptor around its handler; a panic
// partway through Store/QueryEngine should degrade a single RPC rather
// than take the whole server down.
func recoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic recovered", "operation", operation, "panic", r, "stack", string(debug.Stack()))
			var zero T
			result = zero
			err = status.Errorf(codes.Internal, "%s panicked: %v", operation, r)
		}
	}()
	return fn()
}

// recoverToError is recoverToValue's void-result counterpart, used by the
// stream interceptor wrapping an arbitrary handler rather than a typed
// query execution.
func recoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic recovered", "operation", operation, "panic", r, "stack", string(debug.Stack()))
			err = status.Errorf(codes.Internal, "%s panicked: %v", operation, r)
		}
	}()
	return fn()
}
