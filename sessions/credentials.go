package sessions

import "fmt"

// AuthMode discriminates the two mutually exclusive credential shapes a
// session can hold. It is decided once, at create or update time, from which
// fields the caller supplied, and stored; it is never re-inferred from field
// presence afterward.
type AuthMode string

const (
	// AuthModeOAuth authenticates with a client id / client secret pair.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeToken authenticates with a pre-issued bearer access token.
	AuthModeToken AuthMode = "token"
)

// Credentials is the uniform payload accepted when opening or updating a
// session. Exactly one of the OAuth pair (ClientID and ClientSecret) or
// AccessToken must be supplied.
type Credentials struct {
	// BaseURL is the root URL of the Casedock deployment, e.g.
	// "https://acme.casedock.io". Required.
	BaseURL string `json:"baseUrl"`

	// APIVersion pins the API version for calls made with this session.
	// Optional; the store applies its configured default when omitted.
	APIVersion string `json:"apiVersion,omitempty"`

	// ClientID and ClientSecret form the OAuth client-credentials pair.
	// Both must be supplied together.
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`

	// AccessToken is a pre-issued bearer token.
	AccessToken string `json:"accessToken,omitempty"`

	// TokenExpiry is the token's remaining lifetime in seconds, relative to
	// now. Only meaningful in token mode. The store converts it to an
	// absolute deadline at create/update time.
	TokenExpiry *float64 `json:"tokenExpiry,omitempty"`
}

// ValidateCredentials checks a credentials payload for structural validity.
// Rules are applied in order and the first failure wins; every failure wraps
// ErrInvalidCredentials with a message naming the violated rule. The function
// is pure and safe to call concurrently.
func ValidateCredentials(c *Credentials) error {
	if c == nil {
		return fmt.Errorf("%w: credentials must be an object", ErrInvalidCredentials)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("%w: baseUrl is required and must be a non-empty string", ErrInvalidCredentials)
	}
	hasPair := c.ClientID != "" && c.ClientSecret != ""
	hasToken := c.AccessToken != ""
	switch {
	case hasPair && hasToken:
		return fmt.Errorf("%w: cannot supply both an OAuth client pair and an access token", ErrInvalidCredentials)
	case !hasPair && !hasToken:
		if c.ClientID != "" || c.ClientSecret != "" {
			return fmt.Errorf("%w: clientId and clientSecret must be supplied together", ErrInvalidCredentials)
		}
		return fmt.Errorf("%w: either clientId and clientSecret or accessToken is required", ErrInvalidCredentials)
	}
	return nil
}

// authModeOf reports the auth mode a valid payload selects. Call only after
// ValidateCredentials has passed.
func authModeOf(c *Credentials) AuthMode {
	if c.AccessToken != "" {
		return AuthModeToken
	}
	return AuthModeOAuth
}
