// Command casedock-mcp serves the Casedock MCP server over stdio or
// streamable HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/casedock/casedock-mcp-go/auth"
	"github.com/casedock/casedock-mcp-go/internal/config"
	"github.com/casedock/casedock-mcp-go/internal/logctx"
	"github.com/casedock/casedock-mcp-go/internal/promstats"
	"github.com/casedock/casedock-mcp-go/server"
	"github.com/casedock/casedock-mcp-go/sessions"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "0.0.0-dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	env, err := config.Load()
	if err != nil {
		return err
	}

	// Flags default to the environment values, so a passed flag wins and an
	// omitted one falls through to CASEDOCK_*.
	fs := pflag.NewFlagSet("casedock-mcp", pflag.ContinueOnError)
	fs.StringVar(&env.Transport, "transport", env.Transport, "MCP transport: stdio or http")
	fs.StringVar(&env.ListenAddr, "listen", env.ListenAddr, "HTTP listen address")
	fs.StringVar(&env.LogLevel, "log-level", env.LogLevel, "log level: debug, info, warn, or error")
	fs.StringVar(&env.LogFormat, "log-format", env.LogFormat, "log format: json or text")
	printSchema := fs.Bool("print-config-schema", false, "print the JSON Schema for the fallback credentials file and exit")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Printf("casedock-mcp %s\n", version)
		return nil
	}
	if *printSchema {
		schema, err := config.FallbackSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(schema))
		return nil
	}

	if err := env.Validate(); err != nil {
		return err
	}

	log, err := newLogger(env)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics sessions.MetricsSink
	if env.Transport == "http" {
		metrics = promstats.NewDefault()
	}

	store := sessions.New(sessions.Config{
		DefaultTTL:        env.SessionTTL,
		SweepInterval:     env.SweepInterval,
		DefaultAPIVersion: env.DefaultAPIVersion,
		Metrics:           metrics,
		Logger:            log,
	})
	defer func() {
		_ = store.Close()
	}()

	resolverOpts := []sessions.ResolverOption{sessions.WithResolverLogger(log)}
	if env.FallbackCredentialsFile != "" {
		fb, err := config.NewFileFallback(env.FallbackCredentialsFile, config.WithFileFallbackLogger(log))
		if err != nil {
			return err
		}
		go func() {
			if err := fb.Watch(ctx); err != nil {
				log.Warn("fallback credentials watcher stopped", slog.String("err", err.Error()))
			}
		}()
		resolverOpts = append(resolverOpts, sessions.WithFallback(fb))
		log.Info("fallback credentials enabled", slog.String("path", env.FallbackCredentialsFile))
	}

	srv, err := server.New(server.Config{
		Store:    store,
		Resolver: sessions.NewResolver(store, resolverOpts...),
		Logger:   log,
		Version:  version,
	})
	if err != nil {
		return err
	}

	switch env.Transport {
	case "stdio":
		log.Info("serving MCP over stdio", slog.String("version", version))
		return srv.Run(ctx, &mcp.StdioTransport{})
	case "http":
		return serveHTTP(ctx, env, srv, log)
	default:
		return fmt.Errorf("unreachable transport %q", env.Transport)
	}
}

// newLogger builds the process logger: json or text to stderr, wrapped so
// request, session, and tool-call context decorate every record. Stderr keeps
// stdout clean for the stdio transport.
func newLogger(env config.Env) (*slog.Logger, error) {
	level, err := env.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	if env.LogFormat == "text" {
		inner = slog.NewTextHandler(os.Stderr, opts)
	} else {
		inner = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(logctx.Handler{Handler: inner}), nil
}

func serveHTTP(ctx context.Context, env config.Env, srv *mcp.Server, log *slog.Logger) error {
	handler := http.Handler(mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return srv },
		&mcp.StreamableHTTPOptions{},
	))

	if env.AuthIssuer != "" {
		authenticator, err := newAuthenticator(ctx, env)
		if err != nil {
			return err
		}
		mwOpts := []auth.MiddlewareOption{
			auth.WithRealm("casedock-mcp"),
			auth.WithMiddlewareLogger(log),
		}
		if len(env.AuthScopes) > 0 {
			mwOpts = append(mwOpts, auth.WithScopeHint(env.AuthScopes))
		}
		handler = auth.Middleware(authenticator, mwOpts...)(handler)
		log.Info("bearer auth enabled", slog.String("issuer", env.AuthIssuer))
	} else {
		log.Warn("serving HTTP without inbound auth; set CASEDOCK_AUTH_ISSUER in production")
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpSrv := &http.Server{
		Addr:              env.ListenAddr,
		Handler:           logctx.NewRequestDataMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- httpSrv.ListenAndServe() }()
	log.Info("serving MCP over HTTP",
		slog.String("addr", env.ListenAddr),
		slog.String("version", version))

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// Shutdown order: stop accepting HTTP first, then the deferred
	// store.Close stops the sweeper.
	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// newAuthenticator wires env auth settings into a JWT validator: a fixed
// JWKS URL when given, OIDC discovery otherwise.
func newAuthenticator(ctx context.Context, env config.Env) (auth.Authenticator, error) {
	audiences := env.AuthAudiences
	if len(audiences) == 0 && env.PublicBaseURL != "" {
		audiences = []string{env.PublicBaseURL}
	}
	cfg := auth.Config{
		Issuer:            env.AuthIssuer,
		ExpectedAudiences: audiences,
		RequiredScopes:    env.AuthScopes,
	}
	if env.AuthJWKSURL != "" {
		return auth.NewWithJWKS(ctx, cfg, env.AuthJWKSURL)
	}
	return auth.NewFromDiscovery(ctx, cfg)
}
