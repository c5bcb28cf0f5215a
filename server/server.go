package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/casedock/casedock-mcp-go/casedock"
	"github.com/casedock/casedock-mcp-go/internal/logctx"
	"github.com/casedock/casedock-mcp-go/sessions"
)

const serverName = "casedock-mcp"

// Config wires the tool surface to its collaborators. Store is required;
// everything else has a usable default.
type Config struct {
	// Store backs the session tools and, through Resolver, every remote
	// tool's credential resolution.
	Store *sessions.Store

	// Resolver is the credential resolution boundary. When nil a resolver
	// without a fallback source is built over Store.
	Resolver *sessions.Resolver

	// CasedockOptions are applied to every API client the server builds,
	// e.g. a custom HTTP client or user agent.
	CasedockOptions []casedock.Option

	Logger  *slog.Logger
	Version string
}

func (c *Config) applyDefaults() {
	if c.Resolver == nil {
		c.Resolver = sessions.NewResolver(c.Store)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Version == "" {
		c.Version = "0.0.0-dev"
	}
}

const instructions = `Tools that call the Casedock API need credentials. Either open a session
once with session_open and pass its sessionId on later calls, or pass a
credentials object inline (which opens a fresh session per call). Servers
may also be configured with ambient fallback credentials, in which case
both can be omitted.`

// New builds the MCP server with every tool registered. The returned server
// is ready to serve any transport: pass it to Run for stdio or wrap it with
// mcp.NewStreamableHTTPHandler for HTTP.
func New(cfg Config) (*mcp.Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: Config.Store is required")
	}
	cfg.applyDefaults()

	ts := &toolServer{
		store:    cfg.Store,
		resolver: cfg.Resolver,
		copts:    cfg.CasedockOptions,
		log:      cfg.Logger,
	}

	m := mcp.NewServer(
		&mcp.Implementation{Name: serverName, Version: cfg.Version},
		&mcp.ServerOptions{Instructions: instructions},
	)
	ts.registerSessionTools(m)
	ts.registerCaseTools(m)
	ts.registerParticipantTools(m)
	ts.registerTagTools(m)
	ts.registerDataViewTools(m)
	return m, nil
}

// toolServer holds the state shared by every tool handler. Handlers are
// methods on it; registration closes over the receiver.
type toolServer struct {
	store    *sessions.Store
	resolver *sessions.Resolver
	copts    []casedock.Option
	log      *slog.Logger
}

// addTool registers one tool, wrapping its handler with the cross-cutting
// behavior every tool shares: the tool name on the logging context, and a
// log line for failed calls. SDK conversion of returned errors into IsError
// results happens above this.
func addTool[In any](ts *toolServer, m *mcp.Server, name, description string, h func(ctx context.Context, in In) (*mcp.CallToolResult, error)) {
	mcp.AddTool(m, &mcp.Tool{Name: name, Description: description},
		func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: name})
			res, err := h(ctx, in)
			if err != nil {
				ts.log.InfoContext(ctx, "tool call failed", slog.String("err", err.Error()))
				return nil, nil, err
			}
			return res, nil, nil
		})
}

// connect resolves the request's credential reference and builds an API
// client from the resolved view. The returned context carries the session
// identity for logging.
func (ts *toolServer) connect(ctx context.Context, conn ConnArgs) (context.Context, *casedock.Client, sessions.Resolved, error) {
	rv, err := ts.resolver.Resolve(conn.ref())
	if err != nil {
		return ctx, nil, sessions.Resolved{}, adviseError(err)
	}
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: rv.SessionID, AuthMode: rv.AuthMode})

	client, err := casedock.New(casedock.Config{
		BaseURL:      rv.BaseURL,
		APIVersion:   rv.APIVersion,
		AccessToken:  rv.AccessToken,
		ClientID:     rv.ClientID,
		ClientSecret: rv.ClientSecret,
	}, ts.copts...)
	if err != nil {
		return ctx, nil, sessions.Resolved{}, err
	}
	return ctx, client, rv, nil
}

// adviseError appends a next-step hint to resolution sentinels so the error
// text an agent sees tells it how to recover.
func adviseError(err error) error {
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		return fmt.Errorf("%w; open a new session with session_open or supply credentials inline", err)
	case errors.Is(err, sessions.ErrNoCredentials):
		return fmt.Errorf("%w: supply a sessionId or a credentials object, or configure fallback credentials on the server", err)
	}
	return err
}

// apiResult renders a remote-tool payload: pretty JSON as text content for
// the model, the value itself as structured content for programmatic
// callers. When the resolution opened a session from inline credentials the
// new id is announced first so the caller can reuse it.
func (ts *toolServer) apiResult(rv sessions.Resolved, v any) *mcp.CallToolResult {
	res := jsonResult(v)
	if rv.Created {
		note := fmt.Sprintf("Opened session %s for this call; pass it as sessionId on later calls to reuse these credentials.", rv.SessionID)
		res.Content = append([]mcp.Content{&mcp.TextContent{Text: note}}, res.Content...)
	}
	return res
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		data = fmt.Appendf(nil, "%+v", v)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(data)}},
		StructuredContent: v,
	}
}
