package tests

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casedock/casedock-mcp-go/auth"
	"github.com/casedock/casedock-mcp-go/casedock/casedocktest"
	"github.com/casedock/casedock-mcp-go/internal/logctx"
	"github.com/casedock/casedock-mcp-go/internal/promstats"
	"github.com/casedock/casedock-mcp-go/server"
	"github.com/casedock/casedock-mcp-go/sessions"
)

// stubAuthenticator accepts exactly one bearer token, standing in for the
// JWT validator whose own behavior is covered in the auth package tests.
type stubAuthenticator struct{ token string }

func (a *stubAuthenticator) CheckAuthentication(ctx context.Context, tok string) (auth.UserInfo, error) {
	if tok != a.token {
		return nil, errors.New("unknown token")
	}
	return stubUserInfo("user-1"), nil
}

type stubUserInfo string

func (u stubUserInfo) UserID() string       { return string(u) }
func (u stubUserInfo) Claims(ref any) error { return nil }

// authRT injects the Authorization header on every request.
type authRT struct {
	base  http.RoundTripper
	token string
}

func (t authRT) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(r)
}

const stackToken = "e2e-bearer"

// stack is a full HTTP deployment: fake Casedock upstream, session store
// with Prometheus metrics on a private registry, the MCP server behind
// bearer auth, plus /healthz and /metrics, all on one httptest listener.
type stack struct {
	upstream *casedocktest.Server
	store    *sessions.Store
	registry *prometheus.Registry
	base     string
}

type stackOption func(*stackConfig)

type stackConfig struct {
	resolverOpts []sessions.ResolverOption
}

// withResolverOptions adds resolver options, e.g. a fallback source.
func withResolverOptions(opts ...sessions.ResolverOption) stackOption {
	return func(c *stackConfig) { c.resolverOpts = append(c.resolverOpts, opts...) }
}

func newStack(t *testing.T, opts ...stackOption) *stack {
	t.Helper()
	var sc stackConfig
	for _, opt := range opts {
		opt(&sc)
	}

	upstream := casedocktest.NewServer(t)
	upstream.AllowToken("tok-1")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	store := sessions.New(sessions.Config{
		SweepInterval: time.Hour,
		Metrics:       promstats.New(registry),
		Logger:        log,
	})
	t.Cleanup(func() { _ = store.Close() })

	sc.resolverOpts = append(sc.resolverOpts, sessions.WithResolverLogger(log))
	srv, err := server.New(server.Config{
		Store:    store,
		Resolver: sessions.NewResolver(store, sc.resolverOpts...),
		Logger:   log,
		Version:  "e2e",
	})
	if err != nil {
		t.Fatalf("server.New() failed: %v", err)
	}

	mcpHandler := sdk.NewStreamableHTTPHandler(
		func(*http.Request) *sdk.Server { return srv },
		&sdk.StreamableHTTPOptions{},
	)
	mux := http.NewServeMux()
	mux.Handle("/mcp", auth.Middleware(
		&stubAuthenticator{token: stackToken},
		auth.WithRealm("casedock-mcp"),
		auth.WithMiddlewareLogger(log),
	)(mcpHandler))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	hts := httptest.NewServer(logctx.NewRequestDataMiddleware(mux))
	t.Cleanup(hts.Close)

	return &stack{upstream: upstream, store: store, registry: registry, base: hts.URL}
}

// connect opens an SDK client session against the stack's /mcp endpoint,
// authenticating with the stack bearer token.
func (s *stack) connect(t *testing.T) *sdk.ClientSession {
	t.Helper()
	client := sdk.NewClient(&sdk.Implementation{Name: "e2e", Version: "0.0.0"}, &sdk.ClientOptions{})
	transport := &sdk.StreamableClientTransport{
		Endpoint:   s.base + "/mcp",
		HTTPClient: &http.Client{Transport: authRT{base: http.DefaultTransport, token: stackToken}},
	}
	cs, err := client.Connect(t.Context(), transport, &sdk.ClientSessionOptions{})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call(t *testing.T, cs *sdk.ClientSession, name string, args map[string]any) *sdk.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(t.Context(), &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) failed: %v", name, err)
	}
	return res
}

func succeed(t *testing.T, cs *sdk.ClientSession, name string, args map[string]any) *sdk.CallToolResult {
	t.Helper()
	res := call(t, cs, name, args)
	if res.IsError {
		t.Fatalf("%s returned tool error: %s", name, contentText(t, res))
	}
	return res
}

func contentText(t *testing.T, res *sdk.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := res.Content[0].(*sdk.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

// decodeStructured re-marshals the structured payload into T.
func decodeStructured[T any](t *testing.T, res *sdk.CallToolResult) T {
	t.Helper()
	var out T
	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal structured content into %T: %v", out, err)
	}
	return out
}

func tokenCreds(s *stack) map[string]any {
	return map[string]any{"baseUrl": s.upstream.URL(), "accessToken": "tok-1"}
}
