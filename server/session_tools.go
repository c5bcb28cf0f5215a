package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/casedock/casedock-mcp-go/internal/logctx"
	"github.com/casedock/casedock-mcp-go/sessions"
)

// sessionInfo is the session view returned by the session tools. It
// deliberately carries no secret material: client secrets and access tokens
// go into the cache and never come back out of it.
type sessionInfo struct {
	SessionID      string            `json:"sessionId"`
	AuthMode       sessions.AuthMode `json:"authMode"`
	BaseURL        string            `json:"baseUrl"`
	APIVersion     string            `json:"apiVersion"`
	CreatedAt      time.Time         `json:"createdAt"`
	LastAccessed   time.Time         `json:"lastAccessed"`
	ExpiresAt      time.Time         `json:"expiresAt"`
	TokenExpiresAt time.Time         `json:"tokenExpiresAt,omitzero"`
}

func sessionInfoFrom(sess *sessions.Session) sessionInfo {
	return sessionInfo{
		SessionID:      sess.ID,
		AuthMode:       sess.AuthMode,
		BaseURL:        sess.BaseURL,
		APIVersion:     sess.APIVersion,
		CreatedAt:      sess.CreatedAt,
		LastAccessed:   sess.LastAccessed,
		ExpiresAt:      sess.ExpiresAt,
		TokenExpiresAt: sess.TokenExpiresAt,
	}
}

type sessionOpenArgs struct {
	Credentials *CredentialsArgs `json:"credentials,omitempty" jsonschema:"Credentials to cache: baseUrl plus either a clientId/clientSecret pair or an accessToken."`
	TTLMs       int64            `json:"ttlMs,omitempty" jsonschema:"Session lifetime override in milliseconds. Server default when omitted."`
}

type sessionUpdateArgs struct {
	SessionID   string           `json:"sessionId,omitempty" jsonschema:"Id of the session to update."`
	Credentials *CredentialsArgs `json:"credentials,omitempty" jsonschema:"Replacement credentials. Same shape and rules as session_open."`
}

type sessionCloseArgs struct {
	SessionID string `json:"sessionId,omitempty" jsonschema:"Id of the session to remove."`
}

type sessionCloseInfo struct {
	SessionID string `json:"sessionId"`
	Closed    bool   `json:"closed"`
}

func (ts *toolServer) registerSessionTools(m *mcp.Server) {
	addTool(ts, m, "session_open",
		"Store Casedock credentials in the server's session cache and return a session id for later tool calls. Supports an OAuth client pair or a pre-issued access token.",
		ts.handleSessionOpen)
	addTool(ts, m, "session_update",
		"Replace the credentials behind an existing session in place, keeping its id stable. Use after rotating a client secret or refreshing an access token.",
		ts.handleSessionUpdate)
	addTool(ts, m, "session_close",
		"Remove a session from the cache. Reports whether an entry was actually removed; closing an unknown or expired-and-collected id is not an error.",
		ts.handleSessionClose)
	addTool(ts, m, "session_stats",
		"Report a point-in-time snapshot of the session cache: totals per auth mode, entries awaiting eviction, and the oldest resident session.",
		ts.handleSessionStats)
}

func (ts *toolServer) handleSessionOpen(ctx context.Context, in sessionOpenArgs) (*mcp.CallToolResult, error) {
	var opts []sessions.CreateOption
	if in.TTLMs > 0 {
		opts = append(opts, sessions.WithTTL(time.Duration(in.TTLMs)*time.Millisecond))
	}
	id, err := ts.store.Create(in.Credentials.toCredentials(), opts...)
	if err != nil {
		return nil, err
	}
	sess, err := ts.store.Get(id)
	if err != nil {
		return nil, adviseError(err)
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.ID, AuthMode: sess.AuthMode})
	ts.log.InfoContext(ctx, "session opened", slog.Time("expires_at", sess.ExpiresAt))
	return jsonResult(sessionInfoFrom(&sess)), nil
}

func (ts *toolServer) handleSessionUpdate(ctx context.Context, in sessionUpdateArgs) (*mcp.CallToolResult, error) {
	if err := ts.store.Update(in.SessionID, in.Credentials.toCredentials()); err != nil {
		return nil, adviseError(err)
	}
	sess, err := ts.store.Get(in.SessionID)
	if err != nil {
		return nil, adviseError(err)
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.ID, AuthMode: sess.AuthMode})
	ts.log.InfoContext(ctx, "session credentials replaced")
	return jsonResult(sessionInfoFrom(&sess)), nil
}

func (ts *toolServer) handleSessionClose(ctx context.Context, in sessionCloseArgs) (*mcp.CallToolResult, error) {
	closed := ts.store.Delete(in.SessionID)
	if closed {
		ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: in.SessionID})
		ts.log.InfoContext(ctx, "session closed")
	}
	return jsonResult(sessionCloseInfo{SessionID: in.SessionID, Closed: closed}), nil
}

func (ts *toolServer) handleSessionStats(_ context.Context, _ struct{}) (*mcp.CallToolResult, error) {
	return jsonResult(ts.store.Stats()), nil
}
