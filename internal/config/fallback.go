package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/casedock/casedock-mcp-go/sessions"
)

// FallbackFile is the on-disk shape of the ambient credential file. Field
// names match the credential payload accepted by the session tools, so the
// same document works in either place.
type FallbackFile struct {
	// BaseURL is the root URL of the Casedock deployment.
	BaseURL string `yaml:"baseUrl" json:"baseUrl" jsonschema:"description=Root URL of the Casedock deployment"`
	// APIVersion pins the remote API version for ambient calls.
	APIVersion string `yaml:"apiVersion,omitempty" json:"apiVersion,omitempty" jsonschema:"description=Casedock API version to pin; defaults to the server's configured version"`
	// ClientID and ClientSecret form the OAuth client-credentials pair.
	ClientID     string `yaml:"clientId,omitempty" json:"clientId,omitempty" jsonschema:"description=OAuth client id; requires clientSecret"`
	ClientSecret string `yaml:"clientSecret,omitempty" json:"clientSecret,omitempty" jsonschema:"description=OAuth client secret; requires clientId"`
	// AccessToken is a pre-issued bearer token, mutually exclusive with the
	// OAuth pair.
	AccessToken string `yaml:"accessToken,omitempty" json:"accessToken,omitempty" jsonschema:"description=Pre-issued bearer token; mutually exclusive with the OAuth client pair"`
	// TokenExpiry is the token's remaining lifetime in seconds.
	TokenExpiry *float64 `yaml:"tokenExpiry,omitempty" json:"tokenExpiry,omitempty" jsonschema:"description=Remaining bearer token lifetime in seconds"`
}

func (f *FallbackFile) toCredentials() *sessions.Credentials {
	return &sessions.Credentials{
		BaseURL:      f.BaseURL,
		APIVersion:   f.APIVersion,
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		AccessToken:  f.AccessToken,
		TokenExpiry:  f.TokenExpiry,
	}
}

// FileFallback serves ambient credentials from a YAML file and keeps them
// current while the file is rotated underneath it. It implements
// sessions.FallbackSource.
type FileFallback struct {
	path string
	log  *slog.Logger

	mu    sync.RWMutex
	creds *sessions.Credentials
}

// FileFallbackOption configures a FileFallback.
type FileFallbackOption func(*FileFallback)

// WithFileFallbackLogger overrides the fallback source's logger.
func WithFileFallbackLogger(log *slog.Logger) FileFallbackOption {
	return func(f *FileFallback) { f.log = log }
}

// NewFileFallback loads the credential file at path. The initial load must
// succeed; later reloads that fail keep the previous credentials so a
// half-written rotation never drops ambient auth.
func NewFileFallback(path string, opts ...FileFallbackOption) (*FileFallback, error) {
	f := &FileFallback{path: path, log: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// FallbackCredentials returns a copy of the current credentials.
func (f *FileFallback) FallbackCredentials() (*sessions.Credentials, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.creds == nil {
		return nil, false
	}
	c := *f.creds
	return &c, true
}

func (f *FileFallback) reload() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("config: read fallback credentials: %w", err)
	}
	var file FallbackFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("config: parse fallback credentials: %w", err)
	}
	creds := file.toCredentials()
	if err := sessions.ValidateCredentials(creds); err != nil {
		return fmt.Errorf("config: fallback credentials: %w", err)
	}
	f.mu.Lock()
	f.creds = creds
	f.mu.Unlock()
	return nil
}

// Watch reloads the file whenever it changes, until ctx is done. The watch
// is placed on the parent directory rather than the file itself: editors and
// secret managers rotate by writing a temp file and renaming it into place,
// which would orphan a watch on the original inode.
func (f *FileFallback) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: fallback watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	want := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != want {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) == 0 {
				continue
			}
			if err := f.reload(); err != nil {
				f.log.Warn("fallback credentials reload failed; keeping previous",
					slog.String("path", f.path), slog.String("err", err.Error()))
				continue
			}
			f.log.Info("fallback credentials reloaded", slog.String("path", f.path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.log.Debug("fallback watcher error", slog.String("err", err.Error()))
		}
	}
}
