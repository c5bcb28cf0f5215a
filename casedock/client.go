package casedock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

const defaultUserAgent = "casedock-mcp-go"

// Config carries the connection parameters for one client. Exactly one of
// AccessToken or the ClientID/ClientSecret pair must be set.
type Config struct {
	// BaseURL is the deployment root, e.g. "https://acme.casedock.io".
	BaseURL string

	// APIVersion selects the API generation path segment. Defaults to "v2".
	APIVersion string

	// AccessToken authenticates requests directly when set.
	AccessToken string

	// ClientID and ClientSecret select the OAuth client-credentials flow
	// against {BaseURL}/oauth/token.
	ClientID     string
	ClientSecret string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client. The default has a
// 30 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUserAgent overrides the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger overrides the client's logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Client calls the Casedock REST API. It is safe for concurrent use. A Client
// is cheap; construct one per resolved credential set rather than pooling.
type Client struct {
	baseURL    string
	apiVersion string
	tokens     oauth2.TokenSource
	http       *http.Client
	userAgent  string
	log        *slog.Logger
}

// New constructs a Client for the given connection parameters.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("casedock: base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("casedock: invalid base url %q", cfg.BaseURL)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	version := cfg.APIVersion
	if version == "" {
		version = "v2"
	}

	var tokens oauth2.TokenSource
	switch {
	case cfg.AccessToken != "":
		tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     base + "/oauth/token",
		}
		tokens = cc.TokenSource(context.Background())
	default:
		return nil, errors.New("casedock: either an access token or a client id and secret pair is required")
	}

	c := &Client{
		baseURL:    base,
		apiVersion: version,
		tokens:     tokens,
		http:       &http.Client{Timeout: 30 * time.Second},
		userAgent:  defaultUserAgent,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PageParams selects a window of a list endpoint's results. Zero values mean
// the server defaults.
type PageParams struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

func (p PageParams) applyTo(q url.Values) {
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
}

// List is the standard envelope every list endpoint answers with.
type List[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// do performs one API request. path is relative to /api/{version}; out, when
// non-nil, receives the decoded JSON body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + "/api/" + c.apiVersion + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("casedock: encode request body: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("casedock: build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)
	req.Header.Set("Accept", jsonMediaType.String())
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", jsonMediaType.String())
	}

	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("casedock: obtain access token: %w", err)
	}
	tok.SetAuthHeader(req)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("casedock: %s %s: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= 400 {
		return c.errorFromResponse(res, reqID)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	ct := contenttype.NewMediaType(res.Header.Get("Content-Type"))
	if !ct.Matches(jsonMediaType) {
		return fmt.Errorf("casedock: unexpected response content type %q", res.Header.Get("Content-Type"))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("casedock: decode response: %w", err)
	}
	return nil
}

// errorFromResponse maps a non-2xx answer to an *APIError, preferring the
// standard {"error":{"code","message"}} envelope and falling back to the raw
// body.
func (c *Client) errorFromResponse(res *http.Response, reqID string) error {
	apiErr := &APIError{StatusCode: res.StatusCode, RequestID: reqID}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 64*1024))
	if err != nil {
		apiErr.Message = res.Status
		return apiErr
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = res.Status
		}
	}

	c.log.Debug("api call failed",
		slog.Int("status", apiErr.StatusCode),
		slog.String("code", apiErr.Code),
		slog.String("request_id", reqID))
	return apiErr
}
