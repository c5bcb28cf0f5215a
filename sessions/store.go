package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config configures a Store. The zero value is usable; applyDefaults fills
// in the process-wide defaults.
type Config struct {
	// DefaultTTL is the session lifetime applied when Create is not given an
	// explicit TTL. Defaults to 2 hours.
	DefaultTTL time.Duration

	// SweepInterval is the period of the background sweep that evicts
	// expired entries nobody reads again. Defaults to 15 minutes. The
	// interval bounds memory growth under low read traffic; it does not
	// affect correctness, which lazy eviction already guarantees.
	SweepInterval time.Duration

	// DefaultAPIVersion is assumed when credentials omit apiVersion.
	// Defaults to "v2".
	DefaultAPIVersion string

	Metrics MetricsSink
	Logger  *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 2 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 15 * time.Minute
	}
	if c.DefaultAPIVersion == "" {
		c.DefaultAPIVersion = "v2"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// CreateOption customizes a single Create call.
type CreateOption func(*createOptions)

type createOptions struct {
	ttl time.Duration
}

// WithTTL overrides the store's default session TTL for one Create call.
// Non-positive values fall back to the default.
func WithTTL(ttl time.Duration) CreateOption {
	return func(o *createOptions) { o.ttl = ttl }
}

// Store owns the id -> Session mapping and both eviction policies. Construct
// with New; call Close on shutdown to stop the background sweeper. All
// methods are safe for concurrent use and each is atomic with respect to the
// others.
type Store struct {
	cfg Config

	mu      sync.RWMutex
	entries map[string]*Session

	// now is the store's clock. Tests substitute it to pin expiry behavior
	// without sleeping.
	now func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// New constructs a Store and starts its background sweeper.
func New(cfg Config) *Store {
	cfg.applyDefaults()
	s := &Store{
		cfg:     cfg,
		entries: make(map[string]*Session),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go s.runSweeper()
	return s
}

// Create validates the payload, decides the auth mode, and inserts a new
// session, returning its id. Invalid input fails the whole call; nothing is
// stored. A relative tokenExpiry is converted to an absolute deadline here,
// anchored at the current instant.
func (s *Store) Create(creds *Credentials, opts ...CreateOption) (string, error) {
	if err := ValidateCredentials(creds); err != nil {
		return "", err
	}
	o := &createOptions{}
	for _, opt := range opts {
		opt(o)
	}
	ttl := o.ttl
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	id, err := generateID()
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	sess := &Session{
		ID:           id,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(ttl),
		AuthMode:     authModeOf(creds),
		BaseURL:      creds.BaseURL,
		APIVersion:   creds.APIVersion,
	}
	if sess.APIVersion == "" {
		sess.APIVersion = s.cfg.DefaultAPIVersion
	}
	// Populate only the chosen mode's fields so the stored entity never
	// carries both shapes.
	switch sess.AuthMode {
	case AuthModeOAuth:
		sess.ClientID = creds.ClientID
		sess.ClientSecret = creds.ClientSecret
	case AuthModeToken:
		sess.AccessToken = creds.AccessToken
		if creds.TokenExpiry != nil {
			sess.TokenExpiresAt = now.Add(secondsToDuration(*creds.TokenExpiry))
		}
	}

	s.mu.Lock()
	s.entries[id] = sess
	s.mu.Unlock()

	s.count("sessions_created", map[string]string{"mode": string(sess.AuthMode)})
	s.cfg.Logger.Debug("session created",
		slog.String("session_id", id),
		slog.String("mode", string(sess.AuthMode)),
		slog.Time("expires_at", sess.ExpiresAt))
	return id, nil
}

// Get returns a copy of the session, refreshing its last-access time.
// Missing ids and entries past either expiry clock both report
// ErrSessionNotFound; an expired entry is evicted on the spot.
func (s *Store) Get(id string) (Session, error) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.entries[id]
	if !ok {
		s.count("sessions_get", map[string]string{"result": "miss"})
		return Session{}, ErrSessionNotFound
	}
	if s.evictIfExpiredLocked(id, sess, now, "lazy") {
		s.count("sessions_get", map[string]string{"result": "miss"})
		return Session{}, ErrSessionNotFound
	}
	if now.After(sess.LastAccessed) {
		sess.LastAccessed = now
	}
	s.count("sessions_get", map[string]string{"result": "hit"})
	return *sess, nil
}

// Update replaces the session's credentials and auth mode in place,
// preserving its id and creation time. The target is looked up with the same
// expiry semantics as Get, so an already-expired session reports
// ErrSessionNotFound and is evicted. When the new payload omits apiVersion
// the previous value is retained; a supplied tokenExpiry is re-anchored to
// the current instant.
func (s *Store) Update(id string, creds *Credentials) error {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.entries[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.evictIfExpiredLocked(id, sess, now, "lazy") {
		return ErrSessionNotFound
	}
	if err := ValidateCredentials(creds); err != nil {
		return err
	}

	sess.AuthMode = authModeOf(creds)
	sess.BaseURL = creds.BaseURL
	if creds.APIVersion != "" {
		sess.APIVersion = creds.APIVersion
	}
	sess.ClientID = ""
	sess.ClientSecret = ""
	sess.AccessToken = ""
	sess.TokenExpiresAt = time.Time{}
	switch sess.AuthMode {
	case AuthModeOAuth:
		sess.ClientID = creds.ClientID
		sess.ClientSecret = creds.ClientSecret
	case AuthModeToken:
		sess.AccessToken = creds.AccessToken
		if creds.TokenExpiry != nil {
			sess.TokenExpiresAt = now.Add(secondsToDuration(*creds.TokenExpiry))
		}
	}
	if now.After(sess.LastAccessed) {
		sess.LastAccessed = now
	}

	s.count("sessions_updated", nil)
	return nil
}

// Delete removes the session, reporting whether an entry existed. It is the
// only removal path that does not consult the expiry clocks: an
// expired-but-present entry still counts as existing here.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	s.count("sessions_deleted", nil)
	return true
}

// Stats returns a point-in-time snapshot of the store's population.
func (s *Store) Stats() Stats {
	now := s.now().UTC()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, sess := range s.entries {
		st.Total++
		switch sess.AuthMode {
		case AuthModeOAuth:
			st.OAuthCount++
		case AuthModeToken:
			st.TokenCount++
		}
		if sess.ExpiredAt(now) {
			st.ExpiredButPresent++
		}
		if st.OldestCreatedAt.IsZero() || sess.CreatedAt.Before(st.OldestCreatedAt) {
			st.OldestCreatedAt = sess.CreatedAt
		}
	}
	return st
}

// Sweep scans every entry once and evicts those past either expiry clock,
// returning the number removed. The scan holds the write lock for its whole
// duration, so a sweep can never remove an entry a concurrent Update just
// revived and never observes half-applied mutations.
func (s *Store) Sweep() int {
	now := s.now().UTC()
	start := time.Now()

	s.mu.Lock()
	evicted := 0
	for id, sess := range s.entries {
		if s.evictIfExpiredLocked(id, sess, now, "sweep") {
			evicted++
		}
	}
	s.mu.Unlock()

	s.observe("sessions_sweep_duration_seconds", time.Since(start).Seconds(), nil)
	return evicted
}

// Close stops the background sweeper. Idempotent. Entries remain readable
// after Close; only active eviction stops.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// evictIfExpiredLocked is the single eviction primitive shared by the lazy
// path (Get/Update) and the sweep. Caller must hold the write lock.
func (s *Store) evictIfExpiredLocked(id string, sess *Session, now time.Time, trigger string) bool {
	if !sess.ExpiredAt(now) {
		return false
	}
	delete(s.entries, id)
	s.count("sessions_evicted", map[string]string{"trigger": trigger})
	return true
}

// runSweeper drives the active eviction policy. A single goroutine ranges
// over the ticker, so ticks never overlap: a sweep that outlasts the period
// delays subsequent ticks instead of running concurrently with them.
func (s *Store) runSweeper() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.safeSweep()
		}
	}
}

// safeSweep isolates sweep faults so one bad tick cannot kill the sweeper.
func (s *Store) safeSweep() {
	defer func() {
		if r := recover(); r != nil {
			s.cfg.Logger.Error("session sweep panicked", slog.Any("panic", r))
		}
	}()
	if evicted := s.Sweep(); evicted > 0 {
		s.cfg.Logger.Debug("session sweep evicted entries", slog.Int("evicted", evicted))
	}
}

func (s *Store) count(name string, tags map[string]string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.IncCounter(name, tags)
	}
}

func (s *Store) observe(name string, value float64, tags map[string]string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ObserveHistogram(name, value, tags)
	}
}

// generateID returns a 256-bit random id in unpadded base64url form. UUIDs
// carry only 122 random bits, short of the entropy floor wanted for an
// unguessable bearer-like handle, so ids come straight from crypto/rand.
func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("sessions: failed to generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
