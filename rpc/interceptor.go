package rpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/paulbares/scenariodb/auth"
	"github.com/paulbares/scenariodb/internal/wirecompress"
)

// ServerOptions registers the zstd wire compressor process-wide (via
// wirecompress.Register, not as a ServerOption) and returns the
// grpc.ServerOption set for a Flight server: unary/stream interceptors
// chaining panic recovery and bearer authentication. A nil authenticator
// runs the server open, equivalent to passing auth.NoAuth().
func ServerOptions(authenticator auth.Authenticator, logger *slog.Logger) []grpc.ServerOption {
	if authenticator == nil {
		authenticator = auth.NoAuth()
	}
	wirecompress.Register()
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			recoveringUnaryInterceptor(logger),
			authUnaryInterceptor(authenticator),
		),
		grpc.ChainStreamInterceptor(
			recoveringStreamInterceptor(logger),
			authStreamInterceptor(authenticator),
		),
	}
}

func recoveringUnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		return recoverToValue(logger, info.FullMethod, func() (any, error) {
			return handler(ctx, req)
		})
	}
}

func recoveringStreamInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return recoverToError(logger, info.FullMethod, func() error {
			return handler(srv, ss)
		})
	}
}

// identityKey is the context key the authenticated caller identity is
// stored under. Unexported so only authenticate below can set it.
type identityKey struct{}

// withIdentity returns a context carrying the authenticated caller identity.
func withIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the caller identity authenticate placed on
// ctx, or "" if the request was never authenticated.
func IdentityFromContext(ctx context.Context) string {
	identity, _ := ctx.Value(identityKey{}).(string)
	return identity
}

// extractBearerToken pulls the bearer token out of incoming gRPC metadata.
// Returns "" if there is no authorization header or it isn't a bearer
// token, leaving whether that's fatal to the configured Authenticator --
// auth.NoAuth ignores its token argument entirely, so a missing header is
// fine for it.
func extractBearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	token, err := auth.TokenFromAuthorizationHeader(values[0])
	if err != nil {
		return ""
	}
	return token
}

// authenticate validates the request's bearer token with authenticator and
// returns ctx annotated with the resulting identity. ServerOptions binds a
// single Authenticator for the whole server, so there's no per-request
// choice of authenticator to thread through here.
func authenticate(ctx context.Context, authenticator auth.Authenticator) (context.Context, error) {
	identity, err := authenticator.Authenticate(ctx, extractBearerToken(ctx))
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
	}
	return withIdentity(ctx, identity), nil
}

func authUnaryInterceptor(authenticator auth.Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authenticate(ctx, authenticator)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func authStreamInterceptor(authenticator auth.Authenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), authenticator)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// wrappedServerStream overrides grpc.ServerStream.Context so downstream
// handlers see the authenticated context rather than the raw stream one.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
