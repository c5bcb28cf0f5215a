// Package casedock is a thin HTTP client for the Casedock case-management
// REST API. A Client is constructed per resolved credential set and performs
// plain parameter-validate-then-delegate calls; it holds no session state and
// knows nothing about the session cache.
//
// Authentication is either a pre-issued bearer token or an OAuth
// client-credentials pair; in the latter case tokens are obtained and
// refreshed through golang.org/x/oauth2/clientcredentials against the
// deployment's /oauth/token endpoint.
//
// API failures surface as *APIError carrying the HTTP status, the server's
// error code and message, and the request correlation id.
package casedock
