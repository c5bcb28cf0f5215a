package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Config controls token validation policy: issuer, audiences, scopes,
// algorithms, and clock skew.
type Config struct {
	// Issuer is the authorization server's issuer identifier. Tokens must
	// carry it verbatim in iss.
	Issuer string

	// ExpectedAudiences lists the audiences this deployment answers to. A
	// token is accepted when its aud intersects the set. The first entry
	// should be the registered production audience; extra entries exist for
	// local and test setups where the served base URL differs.
	ExpectedAudiences []string

	// RequiredScopes must all be present in the token's scope claim unless
	// ScopeModeAny is set, in which case any one suffices. Empty disables
	// scope checking.
	RequiredScopes []string
	ScopeModeAny   bool

	// AllowedAlgs restricts acceptable signing algorithms. Defaults to
	// RS256 only.
	AllowedAlgs []string

	// Leeway absorbs clock skew in time-based claim checks. Defaults to one
	// minute.
	Leeway time.Duration
}

func (c *Config) applyDefaults() {
	if len(c.AllowedAlgs) == 0 {
		c.AllowedAlgs = []string{"RS256"}
	}
	if c.Leeway == 0 {
		c.Leeway = time.Minute
	}
}

func (c *Config) validate() error {
	if c.Issuer == "" {
		return errors.New("auth: issuer is required")
	}
	if len(c.ExpectedAudiences) == 0 {
		return errors.New("auth: at least one expected audience is required")
	}
	return nil
}

// JWTAuthenticator validates RFC 9068 JWT access tokens against a JWKS it
// keeps refreshed in the background.
type JWTAuthenticator struct {
	cfg     Config
	keyfunc jwt.Keyfunc
}

var _ Authenticator = (*JWTAuthenticator)(nil)

// NewFromDiscovery builds an authenticator by resolving the issuer's OIDC
// discovery document for its JWKS location. The context bounds both the
// discovery fetch and the lifetime of the background JWKS refresher.
func NewFromDiscovery(ctx context.Context, cfg Config) (*JWTAuthenticator, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("auth: oidc discovery failed: %w", err)
	}
	var meta struct {
		JwksURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("auth: invalid discovery metadata: %w", err)
	}
	if meta.JwksURI == "" {
		return nil, errors.New("auth: discovery metadata carries no jwks_uri")
	}

	kf, err := newKeyfunc(ctx, meta.JwksURI, cfg.AllowedAlgs)
	if err != nil {
		return nil, err
	}
	return &JWTAuthenticator{cfg: cfg, keyfunc: kf}, nil
}

// NewWithJWKS builds an authenticator against an explicit JWKS URL,
// bypassing discovery. Issuer and audience policy still come from cfg.
func NewWithJWKS(ctx context.Context, cfg Config, jwksURI string) (*JWTAuthenticator, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if jwksURI == "" {
		return nil, errors.New("auth: jwks uri is required")
	}

	kf, err := newKeyfunc(ctx, jwksURI, cfg.AllowedAlgs)
	if err != nil {
		return nil, err
	}
	return &JWTAuthenticator{cfg: cfg, keyfunc: kf}, nil
}

// newKeyfunc wraps the auto-refreshing JWKS in an allowed-algorithm gate so
// a key is never even looked up for a disallowed alg.
func newKeyfunc(ctx context.Context, jwksURI string, allowedAlgs []string) (jwt.Keyfunc, error) {
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURI})
	if err != nil {
		return nil, fmt.Errorf("auth: jwks init failed: %w", err)
	}
	return func(t *jwt.Token) (any, error) {
		alg := t.Method.Alg()
		for _, a := range allowedAlgs {
			if alg == a {
				return kf.Keyfunc(t)
			}
		}
		return nil, fmt.Errorf("disallowed alg: %s", alg)
	}, nil
}

// CheckAuthentication verifies the token's signature, typ header, issuer,
// audience, time claims, and scope policy, returning the principal on
// success.
func (a *JWTAuthenticator) CheckAuthentication(ctx context.Context, tok string) (UserInfo, error) {
	if tok == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	// With exactly one expected audience the parser's built-in audience
	// enforcement applies; with several, intersection runs after parsing.
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(a.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithLeeway(a.cfg.Leeway),
	}
	if len(a.cfg.ExpectedAudiences) == 1 {
		opts = append(opts, jwt.WithAudience(a.cfg.ExpectedAudiences[0]))
	}
	parser := jwt.NewParser(opts...)

	parsed, err := parser.Parse(tok, a.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", ErrUnauthorized, err)
	}

	// RFC 9068 requires access tokens to be marked in the typ header.
	if typ, _ := parsed.Header["typ"].(string); typ != "at+jwt" && typ != "application/at+jwt" {
		return nil, fmt.Errorf("%w: invalid typ; want at+jwt", ErrUnauthorized)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", ErrUnauthorized)
	}

	if !audIntersects(claims["aud"], a.cfg.ExpectedAudiences) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrUnauthorized)
	}
	if iatf, ok := claims["iat"].(float64); ok {
		iat := time.Unix(int64(iatf), 0)
		if iat.After(time.Now().Add(a.cfg.Leeway + 5*time.Minute)) {
			return nil, fmt.Errorf("%w: iat too far in future", ErrUnauthorized)
		}
	}

	if len(a.cfg.RequiredScopes) > 0 {
		scopeStr, _ := claims["scope"].(string)
		have := map[string]bool{}
		for _, s := range strings.Fields(scopeStr) {
			have[s] = true
		}
		if a.cfg.ScopeModeAny {
			found := false
			for _, want := range a.cfg.RequiredScopes {
				if have[want] {
					found = true
					break
				}
			}
			if !found {
				return nil, ErrInsufficientScope
			}
		} else {
			for _, want := range a.cfg.RequiredScopes {
				if !have[want] {
					return nil, ErrInsufficientScope
				}
			}
		}
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}
	return &userInfo{sub: sub, claims: claims}, nil
}

type userInfo struct {
	sub    string
	claims map[string]any
}

func (u *userInfo) UserID() string { return u.sub }

func (u *userInfo) Claims(ref any) error {
	b, err := json.Marshal(u.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}

func audIntersects(aud any, wants []string) bool {
	wantSet := map[string]struct{}{}
	for _, w := range wants {
		wantSet[w] = struct{}{}
	}
	switch v := aud.(type) {
	case string:
		_, ok := wantSet[v]
		return ok
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				if _, ok2 := wantSet[s]; ok2 {
					return true
				}
			}
		}
	case []string:
		for _, s := range v {
			if _, ok := wantSet[s]; ok {
				return true
			}
		}
	}
	return false
}
