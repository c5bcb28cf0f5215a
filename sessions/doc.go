// Package sessions implements the credential session cache at the heart of
// the server. A session is an expiring, process-local bundle of Casedock
// connection credentials addressed by an opaque random id. Tool handlers open
// a session once (or reference one opened earlier) instead of resending
// secrets on every call.
//
// Layers & Roles
//
//	Store    -> owns the id -> Session mapping, both eviction policies, stats
//	Resolver -> turns a per-request reference (session id, inline credentials,
//	            or nothing) into a validated credential view for one call
//	Sweeper  -> background ticker invoking the store's active sweep
//
// # Expiry
//
// Every session carries a session TTL clock (ExpiresAt, fixed at creation).
// Token-mode sessions may additionally carry a token clock (TokenExpiresAt,
// derived from the caller's relative tokenExpiry seconds). Either clock
// passing makes the session expired. Expired entries are removed lazily by
// the next lookup that observes them, and actively by the periodic sweep;
// both paths share one eviction primitive so the expiry predicate is defined
// exactly once.
//
// # Concurrency
//
// The store is safe for concurrent use. Each public operation is atomic, but
// sequences of operations are not: a Get followed by an Update can race with
// a concurrent Delete or with expiry, which is why Update re-checks existence
// itself. Callers must re-resolve per logical request rather than holding a
// Session across calls.
//
// Sessions never survive a process restart and are never shared across
// processes; secrets are held in memory only.
package sessions
