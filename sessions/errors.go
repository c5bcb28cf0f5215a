package sessions

import "errors"

// ErrInvalidCredentials indicates a structurally malformed or ambiguous
// credentials payload (for example both an OAuth client pair and an access
// token, or neither). Create and Update reject the whole call; nothing is
// stored. Specific reasons wrap this sentinel.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSessionNotFound indicates the target session id does not resolve to a
// live session. The store deliberately does not distinguish "never existed"
// from "expired" from "deleted"; callers get one answer for all three.
var ErrSessionNotFound = errors.New("session not found or expired")

// ErrNoCredentials indicates a request carried neither a session id nor
// inline credentials and no fallback credential source is configured.
var ErrNoCredentials = errors.New("no credentials available")
