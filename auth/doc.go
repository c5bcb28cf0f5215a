// Package auth validates inbound bearer tokens for casedock-mcp's HTTP
// transport.
//
// Tokens are RFC 9068 JWT access tokens. An [Authenticator] is built either
// from OIDC discovery (the issuer's metadata supplies the JWKS location) or
// from an explicit JWKS URL; signing keys are fetched and refreshed
// automatically. [Middleware] turns an Authenticator into standard
// net/http middleware that answers 401/403 with RFC 6750 Bearer challenges
// and exposes the verified principal to inner handlers via the request
// context.
//
// The stdio transport has an out-of-band trust model (the parent process)
// and performs no inbound auth; nothing here applies to it.
package auth
