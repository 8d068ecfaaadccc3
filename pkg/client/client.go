// Package client provides the Google OAuth2 HTTP client used by the Sheets
// export.
package client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Default file locations.
const (
	DefaultSecretsFile = "config/client_secret.json"
	DefaultTokenFile   = "config/token.json"
)

const (
	callbackPort  = 8085
	callbackPath  = "/callback"
	serverTimeout = 5 * time.Minute
)

// ErrNoToken means no stored token exists; run the setup flow first.
var ErrNoToken = errors.New("no oauth token")

// Config locates the OAuth client secret and the stored token.
type Config struct {
	SecretsFile string
	TokenFile   string
}

func (c Config) withDefaults() Config {
	if c.SecretsFile == "" {
		c.SecretsFile = DefaultSecretsFile
	}
	if c.TokenFile == "" {
		c.TokenFile = DefaultTokenFile
	}
	return c
}

// Authenticator builds OAuth2 HTTP clients.
type Authenticator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an authenticator.
func New(cfg Config, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{cfg: cfg.withDefaults(), logger: logger.With("component", "oauth")}
}

// TokenFile returns the token path in use.
func (a *Authenticator) TokenFile() string { return a.cfg.TokenFile }

// SecretsFile returns the client secret path in use.
func (a *Authenticator) SecretsFile() string { return a.cfg.SecretsFile }

// Client returns an HTTP client from the stored token. It never starts the
// browser flow and fails with ErrNoToken when no token is stored.
func (a *Authenticator) Client(ctx context.Context, scopes ...string) (*http.Client, error) {
	config, err := a.oauthConfig(scopes...)
	if err != nil {
		return nil, err
	}
	tok, err := TokenFromFile(a.cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoToken, a.cfg.TokenFile, err)
	}
	return config.Client(ctx, tok), nil
}

// Authorize runs the browser flow and stores the token.
func (a *Authenticator) Authorize(ctx context.Context, scopes ...string) (*oauth2.Token, error) {
	config, err := a.oauthConfig(scopes...)
	if err != nil {
		return nil, err
	}
	tok, err := a.tokenFromWeb(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := SaveToken(a.cfg.TokenFile, tok); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}
	a.logger.Info("saved oauth token", "path", a.cfg.TokenFile)
	return tok, nil
}

func (a *Authenticator) oauthConfig(scopes ...string) (*oauth2.Config, error) {
	b, err := os.ReadFile(a.cfg.SecretsFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}
	return config, nil
}

func (a *Authenticator) tokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	config.RedirectURL = fmt.Sprintf("http://localhost:%d%s", callbackPort, callbackPath)

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)
	server, err := a.startCallbackServer(ctx, state, codeChan, errChan)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Printf("\nOpening browser for Google authentication...\n")
	fmt.Printf("If the browser doesn't open automatically, visit this URL:\n%s\n\n", authURL)
	if err := openBrowser(ctx, authURL); err != nil {
		a.logger.Warn("failed to open browser automatically", "error", err)
	}

	select {
	case code := <-codeChan:
		tok, err := config.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code for token: %w", err)
		}
		return tok, nil
	case err := <-errChan:
		return nil, fmt.Errorf("oauth callback error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(serverTimeout):
		return nil, fmt.Errorf("oauth flow timed out after %v", serverTimeout)
	}
}

func (a *Authenticator) startCallbackServer(ctx context.Context, expectedState string, codeChan chan<- string, errChan chan<- error) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != expectedState {
			errChan <- fmt.Errorf("invalid state parameter")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		if errMsg := q.Get("error"); errMsg != "" {
			errChan <- fmt.Errorf("%s: %s", errMsg, q.Get("error_description"))
			http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "✓ Authentication successful. You can close this window and return to the terminal.")
		codeChan <- code
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", callbackPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("port %d unavailable: %w", callbackPort, err)
	}

	go func() {
		a.logger.Debug("starting OAuth callback server", "port", callbackPort)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("callback server error", "error", err)
			errChan <- err
		}
	}()
	return server, nil
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// TokenFromFile reads a stored token.
func TokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return tok, nil
}

// SaveToken writes token to path with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return nil
}
