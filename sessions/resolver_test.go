package sessions

import (
	"errors"
	"testing"
	"time"
)

type staticFallback struct {
	creds *Credentials
	ok    bool
}

func (f *staticFallback) FallbackCredentials() (*Credentials, bool) {
	return f.creds, f.ok
}

func TestResolveBySessionID(t *testing.T) {
	s := newTestStore(t, Config{})
	r := NewResolver(s)

	id, err := s.Create(oauthCreds())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	res, err := r.Resolve(Ref{SessionID: id})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if res.SessionID != id || res.Created {
		t.Fatalf("Resolve() = %+v, want existing session %q", res, id)
	}
	if res.AuthMode != AuthModeOAuth || res.ClientID != "client-1" || res.ClientSecret != "hunter2" {
		t.Fatalf("resolved view missing credentials: %+v", res)
	}
	if res.BaseURL != "https://acme.casedock.io" || res.APIVersion != "v2" {
		t.Fatalf("resolved view missing connection fields: %+v", res)
	}
}

func TestResolveUnknownSessionID(t *testing.T) {
	s := newTestStore(t, Config{})
	r := NewResolver(s)

	_, err := r.Resolve(Ref{SessionID: "no-such-id"})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrSessionNotFound", err)
	}
}

func TestResolveExpiredSessionID(t *testing.T) {
	s := newTestStore(t, Config{})
	r := NewResolver(s)

	id, err := s.Create(oauthCreds(), WithTTL(10*time.Millisecond))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, err := r.Resolve(Ref{SessionID: id}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Resolve(expired) error = %v, want ErrSessionNotFound", err)
	}
}

func TestResolveInlineAlwaysCreates(t *testing.T) {
	s := newTestStore(t, Config{})
	r := NewResolver(s)

	// Identical payloads resolve to distinct sessions: content is not a
	// cache key, the id is.
	first, err := r.Resolve(Ref{Credentials: oauthCreds()})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	second, err := r.Resolve(Ref{Credentials: oauthCreds()})
	if err != nil {
		t.Fatalf("second Resolve() failed: %v", err)
	}

	if !first.Created || !second.Created {
		t.Fatalf("inline resolutions must report Created; got %+v / %+v", first, second)
	}
	if first.SessionID == "" || first.SessionID == second.SessionID {
		t.Fatalf("inline resolutions share a session id: %q", first.SessionID)
	}
	if st := s.Stats(); st.Total != 2 {
		t.Fatalf("Stats().Total = %d, want 2", st.Total)
	}

	// The returned id is live and reusable.
	if _, err := r.Resolve(Ref{SessionID: first.SessionID}); err != nil {
		t.Fatalf("Resolve(returned id) failed: %v", err)
	}
}

func TestResolveInlineInvalid(t *testing.T) {
	s := newTestStore(t, Config{})
	r := NewResolver(s)

	_, err := r.Resolve(Ref{Credentials: &Credentials{BaseURL: "https://x"}})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Resolve(invalid inline) error = %v, want ErrInvalidCredentials", err)
	}
	if st := s.Stats(); st.Total != 0 {
		t.Fatalf("Stats().Total = %d after rejected inline payload, want 0", st.Total)
	}
}

func TestResolveSessionIDWinsOverInline(t *testing.T) {
	s := newTestStore(t, Config{})
	r := NewResolver(s)

	id, err := s.Create(oauthCreds())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	res, err := r.Resolve(Ref{SessionID: id, Credentials: tokenCreds(60)})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if res.SessionID != id || res.AuthMode != AuthModeOAuth {
		t.Fatalf("Resolve() = %+v, want the referenced session to win", res)
	}
	if st := s.Stats(); st.Total != 1 {
		t.Fatalf("Stats().Total = %d, want 1 (no session created from inline payload)", st.Total)
	}
}

func TestResolveFallback(t *testing.T) {
	s := newTestStore(t, Config{})
	fb := &staticFallback{creds: tokenCreds(0), ok: true}
	r := NewResolver(s, WithFallback(fb))

	res, err := r.Resolve(Ref{})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if res.SessionID != "" || res.Created {
		t.Fatalf("fallback resolution must not create a session: %+v", res)
	}
	if res.AuthMode != AuthModeToken || res.AccessToken != "tok-1" {
		t.Fatalf("resolved view = %+v, want the fallback token credentials", res)
	}
	if res.APIVersion != "v2" {
		t.Fatalf("APIVersion = %q, want defaulted v2", res.APIVersion)
	}
	if st := s.Stats(); st.Total != 0 {
		t.Fatalf("Stats().Total = %d after fallback resolution, want 0", st.Total)
	}
}

func TestResolveNoCredentials(t *testing.T) {
	s := newTestStore(t, Config{})

	// No fallback configured at all.
	r := NewResolver(s)
	if _, err := r.Resolve(Ref{}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Resolve() error = %v, want ErrNoCredentials", err)
	}

	// Fallback configured but currently unusable.
	r = NewResolver(s, WithFallback(&staticFallback{ok: false}))
	if _, err := r.Resolve(Ref{}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Resolve() error = %v, want ErrNoCredentials", err)
	}
}

func TestResolveFallbackInvalidShape(t *testing.T) {
	s := newTestStore(t, Config{})
	fb := &staticFallback{creds: &Credentials{BaseURL: "https://x"}, ok: true}
	r := NewResolver(s, WithFallback(fb))

	_, err := r.Resolve(Ref{})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Resolve(bad fallback) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestResolveRefreshesLastAccess(t *testing.T) {
	s := newTestStore(t, Config{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }
	r := NewResolver(s)

	id, err := s.Create(oauthCreds(), WithTTL(time.Hour))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	now = base.Add(10 * time.Minute)
	if _, err := r.Resolve(Ref{SessionID: id}); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	sess, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if sess.LastAccessed.Before(base.Add(10 * time.Minute)) {
		t.Fatalf("LastAccessed = %v, want refreshed by resolution", sess.LastAccessed)
	}
}
