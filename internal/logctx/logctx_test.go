package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decorated(buf *bytes.Buffer) *slog.Logger {
	inner := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(Handler{Handler: inner})
}

func TestHandlerAddsContextGroups(t *testing.T) {
	var buf bytes.Buffer
	log := decorated(&buf)

	ctx := context.Background()
	ctx = WithRequestData(ctx, &RequestData{RequestID: "req-1", Method: "POST", Path: "/mcp"})
	ctx = WithSessionData(ctx, &SessionData{SessionID: "sess-1", AuthMode: "token"})
	ctx = WithToolCallData(ctx, &ToolCallData{ToolName: "case_list"})

	log.InfoContext(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	req, _ := rec["req"].(map[string]any)
	if req["id"] != "req-1" || req["method"] != "POST" {
		t.Fatalf("req group = %v, want id req-1 method POST", rec["req"])
	}
	sess, _ := rec["sess"].(map[string]any)
	if sess["id"] != "sess-1" || sess["auth_mode"] != "token" {
		t.Fatalf("sess group = %v, want id sess-1 auth_mode token", rec["sess"])
	}
	tool, _ := rec["tool"].(map[string]any)
	if tool["name"] != "case_list" {
		t.Fatalf("tool group = %v, want name case_list", rec["tool"])
	}
}

func TestHandlerWithoutContextValues(t *testing.T) {
	var buf bytes.Buffer
	log := decorated(&buf)

	log.Info("plain")

	line := buf.String()
	for _, group := range []string{`"req"`, `"sess"`, `"tool"`} {
		if strings.Contains(line, group) {
			t.Fatalf("undecorated line contains %s group: %q", group, line)
		}
	}
}

func TestRequestDataMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := decorated(&buf)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.InfoContext(r.Context(), "handling")
	})
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("User-Agent", "test-agent")
	NewRequestDataMiddleware(inner).ServeHTTP(httptest.NewRecorder(), req)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	reqGroup, _ := rec["req"].(map[string]any)
	if reqGroup["method"] != "POST" || reqGroup["path"] != "/mcp" || reqGroup["user_agent"] != "test-agent" {
		t.Fatalf("req group = %v", rec["req"])
	}
	if id, _ := reqGroup["id"].(string); id == "" {
		t.Fatal("middleware assigned no request id")
	}
}

func TestDerivedLoggerKeepsDecoration(t *testing.T) {
	var buf bytes.Buffer
	log := decorated(&buf).With(slog.String("component", "store"))

	ctx := WithToolCallData(context.Background(), &ToolCallData{ToolName: "session_open"})
	log.InfoContext(ctx, "derived")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["component"] != "store" {
		t.Fatalf("With attr lost: %v", rec)
	}
	tool, _ := rec["tool"].(map[string]any)
	if tool["name"] != "session_open" {
		t.Fatalf("decoration lost on derived logger: %v", rec)
	}
}
