package sessions

import (
	"fmt"
	"log/slog"
)

// Ref is the per-request credential reference a tool call carries: an
// existing session id, an inline credentials payload, or neither. When both
// are supplied the session id wins.
type Ref struct {
	SessionID   string
	Credentials *Credentials
}

// Resolved is the credential view handed to a remote-API call. It is a
// snapshot; the underlying session may be evicted at any time after
// resolution, so callers resolve once per logical request.
type Resolved struct {
	// SessionID addresses the backing session. Empty when the view came
	// from the fallback source, which never creates a session.
	SessionID string

	// Created reports that this resolution opened a new session from an
	// inline payload. Callers should surface the id so the caller can reuse
	// it instead of resending secrets.
	Created bool

	BaseURL    string
	APIVersion string
	AuthMode   AuthMode

	ClientID     string
	ClientSecret string
	AccessToken  string
}

// FallbackSource supplies ambient credentials for requests that carry
// neither a session id nor an inline payload. Implementations report ok =
// false when no fallback is configured or the source is currently unusable.
type FallbackSource interface {
	FallbackCredentials() (*Credentials, bool)
}

// Resolver is the narrow boundary tool handlers go through to obtain a
// validated, non-expired credential view before calling the remote API. It
// wraps a Store and an optional fallback source; it performs no remote calls
// itself.
type Resolver struct {
	store    *Store
	fallback FallbackSource
	log      *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFallback installs the ambient credential source used when a request
// carries no session id and no inline credentials.
func WithFallback(src FallbackSource) ResolverOption {
	return func(r *Resolver) { r.fallback = src }
}

// WithResolverLogger overrides the resolver's logger.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.log = log }
}

// NewResolver constructs a Resolver over the given store.
func NewResolver(store *Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve turns a request-level reference into a usable credential view.
//
//   - An explicit session id resolves through Store.Get; absence (never
//     existed, expired, or deleted) surfaces as ErrSessionNotFound, distinct
//     from validation failure.
//   - Inline credentials always open a fresh session, even if an identical
//     payload was seen before; content is not a cache key, the id is. The
//     returned view carries the new id with Created set.
//   - Neither falls back to the configured ambient source, or fails with
//     ErrNoCredentials.
//
// Every successful resolution by id refreshes the session's last-access time
// via the underlying Get.
func (r *Resolver) Resolve(ref Ref) (Resolved, error) {
	switch {
	case ref.SessionID != "":
		sess, err := r.store.Get(ref.SessionID)
		if err != nil {
			return Resolved{}, err
		}
		return resolvedFromSession(&sess, false), nil

	case ref.Credentials != nil:
		id, err := r.store.Create(ref.Credentials)
		if err != nil {
			return Resolved{}, err
		}
		sess, err := r.store.Get(id)
		if err != nil {
			// Only reachable if the new session was deleted or expired
			// between the two calls.
			return Resolved{}, err
		}
		r.log.Debug("session created from inline credentials", slog.String("session_id", id))
		return resolvedFromSession(&sess, true), nil

	default:
		if r.fallback == nil {
			return Resolved{}, ErrNoCredentials
		}
		creds, ok := r.fallback.FallbackCredentials()
		if !ok {
			return Resolved{}, ErrNoCredentials
		}
		if err := ValidateCredentials(creds); err != nil {
			return Resolved{}, fmt.Errorf("fallback credentials: %w", err)
		}
		res := Resolved{
			BaseURL:      creds.BaseURL,
			APIVersion:   creds.APIVersion,
			AuthMode:     authModeOf(creds),
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			AccessToken:  creds.AccessToken,
		}
		if res.APIVersion == "" {
			res.APIVersion = r.store.cfg.DefaultAPIVersion
		}
		return res, nil
	}
}

func resolvedFromSession(sess *Session, created bool) Resolved {
	return Resolved{
		SessionID:    sess.ID,
		Created:      created,
		BaseURL:      sess.BaseURL,
		APIVersion:   sess.APIVersion,
		AuthMode:     sess.AuthMode,
		ClientID:     sess.ClientID,
		ClientSecret: sess.ClientSecret,
		AccessToken:  sess.AccessToken,
	}
}
