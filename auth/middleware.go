package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// MiddlewareOption configures the bearer middleware.
type MiddlewareOption func(*bearerMiddleware)

// WithRealm sets the realm advertised in WWW-Authenticate challenges.
func WithRealm(realm string) MiddlewareOption {
	return func(m *bearerMiddleware) { m.realm = realm }
}

// WithScopeHint advertises the scopes a caller should request, echoed in
// insufficient-scope challenges. Advisory only; validation policy lives in
// the Authenticator.
func WithScopeHint(scopes []string) MiddlewareOption {
	return func(m *bearerMiddleware) { m.scopes = scopes }
}

// WithMiddlewareLogger overrides the middleware's logger.
func WithMiddlewareLogger(log *slog.Logger) MiddlewareOption {
	return func(m *bearerMiddleware) { m.log = log }
}

// Middleware returns net/http middleware that authenticates every request
// through a. Rejections follow RFC 6750: 401 with a Bearer challenge for
// missing or invalid tokens, 403 with error="insufficient_scope" for valid
// tokens lacking scope. On success the principal is available to inner
// handlers via UserInfoFromContext.
func Middleware(a Authenticator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	m := &bearerMiddleware{auth: a, log: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.serve(w, r, next)
		})
	}
}

type bearerMiddleware struct {
	auth   Authenticator
	realm  string
	scopes []string
	log    *slog.Logger
}

func (m *bearerMiddleware) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	tok, ok := bearerToken(r)
	if !ok {
		// No credentials at all: challenge without an error code.
		m.reject(w, http.StatusUnauthorized, nil, "authentication required")
		return
	}

	ui, err := m.auth.CheckAuthentication(r.Context(), tok)
	switch {
	case err == nil:
		next.ServeHTTP(w, r.WithContext(WithUserInfo(r.Context(), ui)))
	case errors.Is(err, ErrInsufficientScope):
		params := map[string]string{"error": "insufficient_scope", "error_description": err.Error()}
		if len(m.scopes) > 0 {
			params["scope"] = strings.Join(m.scopes, " ")
		}
		m.reject(w, http.StatusForbidden, params, "insufficient scope")
	default:
		m.log.Debug("bearer token rejected", slog.String("err", err.Error()))
		m.reject(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_token",
			"error_description": err.Error(),
		}, "invalid token")
	}
}

func (m *bearerMiddleware) reject(w http.ResponseWriter, status int, params map[string]string, msg string) {
	w.Header().Set("WWW-Authenticate", bearerChallenge(m.realm, params))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// bearerToken extracts the token from the Authorization header. The scheme
// comparison is case-insensitive per RFC 9110.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

// bearerChallenge renders a WWW-Authenticate value with the conventional
// parameter ordering: realm, error, error_description, scope.
func bearerChallenge(realm string, params map[string]string) string {
	esc := func(v string) string { return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) }
	pieces := make([]string, 0, 1+len(params))
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc(realm)))
	}
	for _, k := range []string{"error", "error_description", "scope"} {
		if v, ok := params[k]; ok {
			pieces = append(pieces, fmt.Sprintf(`%s="%s"`, k, esc(v)))
		}
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}
