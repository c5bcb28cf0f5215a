package server

import "github.com/casedock/casedock-mcp-go/sessions"

// ConnArgs is the connection block every remote tool's arguments embed. All
// fields are optional at the schema level; which combinations are usable is
// decided by credential resolution so the error messages stay uniform
// across tools.
type ConnArgs struct {
	SessionID   string           `json:"sessionId,omitempty" jsonschema:"Id of a credential session opened earlier with session_open. Takes precedence over inline credentials."`
	Credentials *CredentialsArgs `json:"credentials,omitempty" jsonschema:"Inline Casedock credentials. Opens a fresh session for this call; prefer session_open plus sessionId when making several calls."`
}

func (a ConnArgs) ref() sessions.Ref {
	return sessions.Ref{SessionID: a.SessionID, Credentials: a.Credentials.toCredentials()}
}

// CredentialsArgs mirrors the credential payload shape accepted by the
// session cache. Validation (required fields, the exactly-one-auth-shape
// rule) happens in the cache's validator, not in the schema, so a bad
// payload produces the validator's message instead of a schema error.
type CredentialsArgs struct {
	BaseURL      string   `json:"baseUrl,omitempty" jsonschema:"Casedock deployment root URL, e.g. https://acme.casedock.io. Required."`
	APIVersion   string   `json:"apiVersion,omitempty" jsonschema:"API generation to call. Defaults to v2."`
	ClientID     string   `json:"clientId,omitempty" jsonschema:"OAuth client id. Must be paired with clientSecret."`
	ClientSecret string   `json:"clientSecret,omitempty" jsonschema:"OAuth client secret. Must be paired with clientId."`
	AccessToken  string   `json:"accessToken,omitempty" jsonschema:"Pre-issued bearer token. Mutually exclusive with the clientId/clientSecret pair."`
	TokenExpiry  *float64 `json:"tokenExpiry,omitempty" jsonschema:"Seconds until the supplied access token expires. Only meaningful with accessToken."`
}

func (a *CredentialsArgs) toCredentials() *sessions.Credentials {
	if a == nil {
		return nil
	}
	return &sessions.Credentials{
		BaseURL:      a.BaseURL,
		APIVersion:   a.APIVersion,
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		AccessToken:  a.AccessToken,
		TokenExpiry:  a.TokenExpiry,
	}
}
