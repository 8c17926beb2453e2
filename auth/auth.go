// Package auth provides bearer-token authentication for the rpc query
// facade. It has no bearing on the core store or query engine, both of
// which are usable standalone without any authenticator. There is exactly
// one Authenticator per server (set once via rpc.ServerOptions), not a
// catalog of per-resource authorizers, so the package stays to the shape
// that single-store use actually needs: an interface, a no-op, and a
// closure-based adapter for whatever token backend the embedder already has.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidAuthHeader is returned when the authorization header is malformed.
	ErrInvalidAuthHeader = errors.New("authorization header must use Bearer scheme")

	// ErrTokenIsEmpty is returned when a bearer token is present but empty.
	ErrTokenIsEmpty = errors.New("authorization token is empty")

	// ErrUnauthenticated is returned when authentication fails.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Authenticator validates bearer tokens and returns a caller identity.
// Implementations MUST be goroutine-safe: the rpc facade calls Authenticate
// concurrently from every in-flight request.
type Authenticator interface {
	// Authenticate validates a bearer token and returns the caller identity.
	// Returns an error if the token is invalid or expired. The identity
	// string is used for logging only; scenariodb has no per-caller
	// authorization beyond "this token grants access to this store".
	Authenticate(ctx context.Context, token string) (identity string, err error)
}

// noAuthenticator is an Authenticator that allows all requests.
// Used for development/testing. DO NOT use in production.
type noAuthenticator struct{}

// NoAuth returns an Authenticator that allows all requests.
// Useful for development/testing. DO NOT use in production.
func NoAuth() Authenticator {
	return &noAuthenticator{}
}

// Authenticate implements Authenticator for noAuthenticator.
// Always returns "anonymous" as the identity.
func (n *noAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	return "anonymous", nil
}

// bearerAuthenticator wraps a user-provided validation function, for the
// common case where an embedder already has a token-validation call (a
// session store lookup, a JWT parse) and just needs it adapted to
// Authenticator.
type bearerAuthenticator struct {
	validateFunc func(token string) (identity string, err error)
}

// BearerAuth creates an Authenticator from a validation function.
//
// Example:
//
//	authn := auth.BearerAuth(func(token string) (string, error) {
//	    user, err := lookupSession(token)
//	    if err != nil {
//	        return "", err
//	    }
//	    return user.ID, nil
//	})
func BearerAuth(validateFunc func(token string) (identity string, err error)) Authenticator {
	return &bearerAuthenticator{validateFunc: validateFunc}
}

// Authenticate implements Authenticator for bearerAuthenticator by calling
// the user-provided validation function directly.
func (b *bearerAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	return b.validateFunc(token)
}

const bearerPrefix = "Bearer "

// TokenFromAuthorizationHeader extracts a bearer token from a raw
// "Authorization" header value. Used by rpc's gRPC interceptors, which pull
// the header out of incoming metadata before calling this.
func TokenFromAuthorizationHeader(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrTokenIsEmpty
	}
	return token, nil
}
