package sessions

import "time"

// Session is a cached credential bundle. The store owns the live entity;
// lookups hand out value copies, so a Session held by a caller is a snapshot
// that the store may evict at any moment. Callers must re-resolve per logical
// request instead of retaining one.
type Session struct {
	// ID is the opaque random identifier. Never reused, even after eviction.
	ID string `json:"id"`

	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`

	// ExpiresAt is the session-TTL deadline, fixed at creation.
	ExpiresAt time.Time `json:"expiresAt"`

	AuthMode AuthMode `json:"authMode"`

	BaseURL    string `json:"baseUrl"`
	APIVersion string `json:"apiVersion"`

	// OAuth-mode fields. Empty in token mode.
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`

	// Token-mode fields. Empty/zero in OAuth mode. TokenExpiresAt is zero
	// when the caller supplied no tokenExpiry; a non-zero value is a second,
	// independent expiry clock.
	AccessToken    string    `json:"accessToken,omitempty"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt,omitzero"`
}

// ExpiredAt reports whether the session has passed either expiry clock at
// the given instant. Both the lazy eviction path and the sweep use this
// predicate, so the two policies cannot drift apart.
func (s *Session) ExpiredAt(now time.Time) bool {
	if now.After(s.ExpiresAt) {
		return true
	}
	if s.AuthMode == AuthModeToken && !s.TokenExpiresAt.IsZero() && now.After(s.TokenExpiresAt) {
		return true
	}
	return false
}

// Stats is a point-in-time snapshot of the store's population.
type Stats struct {
	Total      int `json:"total"`
	OAuthCount int `json:"oauthCount"`
	TokenCount int `json:"tokenCount"`

	// ExpiredButPresent counts entries past either clock that neither a
	// lookup nor a sweep has evicted yet. Under a healthy sweeper this
	// trends toward zero.
	ExpiredButPresent int `json:"expiredButPresent"`

	// OldestCreatedAt is the creation time of the longest-lived resident
	// entry; zero when the store is empty.
	OldestCreatedAt time.Time `json:"oldestCreatedAt,omitzero"`
}
