package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized indicates the token failed validation (signature, issuer,
// audience, or time checks) and the request must be treated as
// unauthenticated.
var ErrUnauthorized = errors.New("auth: unauthorized")

// ErrInsufficientScope indicates a valid token that does not satisfy the
// required scopes; HTTP surfaces answer it with 403.
var ErrInsufficientScope = errors.New("auth: insufficient scope")

// UserInfo is an authenticated principal. Implementations are immutable and
// safe for concurrent use.
type UserInfo interface {
	// UserID returns the principal's stable identifier (the token subject).
	UserID() string

	// Claims unmarshals the token's claims into the provided struct
	// reference.
	Claims(ref any) error
}

// Authenticator validates a bearer token. Failures are reported through
// ErrUnauthorized or ErrInsufficientScope so callers can branch with
// errors.Is.
type Authenticator interface {
	CheckAuthentication(ctx context.Context, tok string) (UserInfo, error)
}

type userInfoKey struct{}

// WithUserInfo stashes the verified principal on the context. The HTTP
// middleware calls this before invoking the inner handler.
func WithUserInfo(ctx context.Context, ui UserInfo) context.Context {
	return context.WithValue(ctx, userInfoKey{}, ui)
}

// UserInfoFromContext fetches the principal stashed by WithUserInfo.
func UserInfoFromContext(ctx context.Context) (UserInfo, bool) {
	ui, ok := ctx.Value(userInfoKey{}).(UserInfo)
	return ui, ok
}
